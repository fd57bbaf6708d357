package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telecare-backend/internal/database"
	"telecare-backend/pkg/constants"
	"telecare-backend/pkg/logger"
	"telecare-backend/pkg/push"
)

// PushTokenRepository handles push notification token storage in Redis.
// Token sets expire after PushTokenExpiry so abandoned devices age out.
type PushTokenRepository struct {
	client *database.RedisClient
}

// NewPushTokenRepository creates a new push token repository
func NewPushTokenRepository(client *database.RedisClient) *PushTokenRepository {
	return &PushTokenRepository{
		client: client,
	}
}

func userTokensKey(userID string) string {
	return fmt.Sprintf("push:user:%s:tokens", userID)
}

// Store stores a push notification token. Storing the same token value
// again overwrites the prior entry.
func (r *PushTokenRepository) Store(ctx context.Context, token *push.Token) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	tokenKey := fmt.Sprintf("push:token:%s", token.Token)
	if err := r.client.SafeSet(ctx, tokenKey, data, constants.PushTokenExpiry).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	key := userTokensKey(token.UserID)
	if err := r.client.SafeSAdd(ctx, key, token.Token).Err(); err != nil {
		return fmt.Errorf("failed to add token to user set: %w", err)
	}

	if err := r.client.SafeExpire(ctx, key, constants.PushTokenExpiry).Err(); err != nil {
		logger.Warn("Failed to set expiration on user tokens set",
			zap.String("user_id", token.UserID),
			zap.Error(err))
	}

	logger.Debug("Push token stored",
		zap.String("user_id", token.UserID),
		zap.String("token_type", string(token.Type)))

	return nil
}

// GetByUserID retrieves all tokens for a user, dropping entries whose
// token record has expired
func (r *PushTokenRepository) GetByUserID(ctx context.Context, userID string) ([]*push.Token, error) {
	members, err := r.client.SafeSMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user tokens: %w", err)
	}

	var result []*push.Token
	for _, tokenStr := range members {
		tokenKey := fmt.Sprintf("push:token:%s", tokenStr)
		data, err := r.client.SafeGet(ctx, tokenKey).Bytes()
		if err != nil {
			// expired or missing record, clean up the set member
			r.client.SafeSRem(ctx, userTokensKey(userID), tokenStr)
			continue
		}

		var token push.Token
		if err := json.Unmarshal(data, &token); err != nil {
			logger.Warn("Failed to unmarshal push token",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		result = append(result, &token)
	}

	return result, nil
}

// Delete removes one token for a user
func (r *PushTokenRepository) Delete(ctx context.Context, userID, tokenValue string) error {
	tokenKey := fmt.Sprintf("push:token:%s", tokenValue)
	if err := r.client.SafeDel(ctx, tokenKey).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if err := r.client.SafeSRem(ctx, userTokensKey(userID), tokenValue).Err(); err != nil {
		return fmt.Errorf("failed to remove token from user set: %w", err)
	}
	return nil
}

// DeleteByUserID removes all tokens for a user
func (r *PushTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	members, err := r.client.SafeSMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to get user tokens: %w", err)
	}

	for _, tokenStr := range members {
		if err := r.Delete(ctx, userID, tokenStr); err != nil {
			logger.Warn("Failed to delete push token",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	if err := r.client.SafeDel(ctx, userTokensKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete user token set: %w", err)
	}
	return nil
}
