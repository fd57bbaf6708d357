package redis

import (
	"context"
	"fmt"

	"telecare-backend/internal/database"
	"telecare-backend/pkg/constants"
)

// PresenceRepository is the Redis-backed presence registry. Per-user keys
// auto-expire so a crashed client eventually drops offline without an
// explicit announcement.
type PresenceRepository struct {
	client *database.RedisClient
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *database.RedisClient) *PresenceRepository {
	return &PresenceRepository{client: client}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetOnline marks a participant online or offline
func (r *PresenceRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	if online {
		if err := r.client.SafeSet(ctx, presenceKey(userID), "online", constants.PresenceTTL).Err(); err != nil {
			return fmt.Errorf("failed to set user online: %w", err)
		}
		if err := r.client.SafeSAdd(ctx, "presence:online", userID).Err(); err != nil {
			return fmt.Errorf("failed to add to online set: %w", err)
		}
		return nil
	}

	if err := r.client.SafeDel(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	if err := r.client.SafeSRem(ctx, "presence:online", userID).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}
	return nil
}

// IsOnline checks whether the participant's presence key is still live
func (r *PresenceRepository) IsOnline(ctx context.Context, userID string) (bool, error) {
	exists, err := r.client.SafeExists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return exists > 0, nil
}

// Refresh keeps a participant online (heartbeat)
func (r *PresenceRepository) Refresh(ctx context.Context, userID string) error {
	if err := r.client.SafeExpire(ctx, presenceKey(userID), constants.PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// ListAvailable returns all identities in the online set whose presence key
// has not yet expired
func (r *PresenceRepository) ListAvailable(ctx context.Context) ([]string, error) {
	members, err := r.client.SafeSMembers(ctx, "presence:online").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}

	available := make([]string, 0, len(members))
	for _, userID := range members {
		live, err := r.IsOnline(ctx, userID)
		if err != nil {
			continue
		}
		if live {
			available = append(available, userID)
		} else {
			// expired key, drop the stale set member
			r.client.SafeSRem(ctx, "presence:online", userID)
		}
	}
	return available, nil
}
