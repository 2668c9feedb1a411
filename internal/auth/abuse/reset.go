package abuse

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SaveResetToken stores a password reset token for the email with a
// 10 minute lifetime, replacing any previous token.
func (g *Guard) SaveResetToken(ctx context.Context, email, token string) error {
	if err := g.rdb.Set(ctx, g.key(kindReset, email), token, resetTTL).Err(); err != nil {
		return fmt.Errorf("abuse: store reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken validates the token against the stored one and deletes
// it on success. Missing, expired and mismatched tokens are reported the
// same way so callers cannot distinguish them.
func (g *Guard) ConsumeResetToken(ctx context.Context, email, token string) error {
	key := g.key(kindReset, email)

	stored, err := g.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("abuse: load reset token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return ErrResetTokenInvalid
	}

	if err := g.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("abuse: consume reset token: %w", err)
	}
	return nil
}
