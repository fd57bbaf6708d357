package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telecare-backend/internal/domain"
	apperrors "telecare-backend/pkg/errors"
)

// CallRepository persists call records in PostgreSQL
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

// Create inserts a new call record
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	query := `
		INSERT INTO calls (
			call_id, caller_id, receiver_id, call_type, status, session_id, start_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		call.ID,
		call.CallerID,
		call.ReceiverID,
		call.Type,
		call.Status,
		call.SessionID,
		call.StartTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

// GetByID retrieves a call by ID
func (r *CallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	query := `
		SELECT call_id, caller_id, receiver_id, call_type, status, session_id,
		       start_time, end_time
		FROM calls
		WHERE call_id = $1
	`

	call := &domain.Call{}
	err := r.pool.QueryRow(ctx, query, callID).Scan(
		&call.ID,
		&call.CallerID,
		&call.ReceiverID,
		&call.Type,
		&call.Status,
		&call.SessionID,
		&call.StartTime,
		&call.EndTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.CallNotFoundError()
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}

// UpdateStatus updates a call's status and, for terminal transitions that
// stamp completion, its end time
func (r *CallRepository) UpdateStatus(ctx context.Context, callID uuid.UUID, status domain.CallStatus, endTime *time.Time) error {
	query := `
		UPDATE calls
		SET status = $2, end_time = $3
		WHERE call_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, callID, status, endTime)
	if err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.CallNotFoundError()
	}

	return nil
}

// GetUserCalls retrieves all calls where the user is caller or receiver,
// newest first
func (r *CallRepository) GetUserCalls(ctx context.Context, userID string) ([]*domain.Call, error) {
	query := `
		SELECT call_id, caller_id, receiver_id, call_type, status, session_id,
		       start_time, end_time
		FROM calls
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY start_time DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user calls: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// GetIncomingCalls retrieves currently-ringing calls addressed to the user
func (r *CallRepository) GetIncomingCalls(ctx context.Context, userID string) ([]*domain.Call, error) {
	query := `
		SELECT call_id, caller_id, receiver_id, call_type, status, session_id,
		       start_time, end_time
		FROM calls
		WHERE receiver_id = $1 AND status = $2
		ORDER BY start_time DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, domain.CallStatusInitiated)
	if err != nil {
		return nil, fmt.Errorf("failed to get incoming calls: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

func scanCalls(rows pgx.Rows) ([]*domain.Call, error) {
	var calls []*domain.Call
	for rows.Next() {
		call := &domain.Call{}
		err := rows.Scan(
			&call.ID,
			&call.CallerID,
			&call.ReceiverID,
			&call.Type,
			&call.Status,
			&call.SessionID,
			&call.StartTime,
			&call.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calls: %w", err)
	}

	return calls, nil
}
