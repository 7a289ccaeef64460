package sandbox

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const codePrefix = "otp:v1:"

// DevCode is accepted for any session when no Redis code store is wired.
// It exists so the wizard can be exercised locally without infrastructure.
const DevCode = "123456"

// ErrCodeMismatch reports a wrong or expired one-time code.
var ErrCodeMismatch = errors.New("invalid or expired code")

// CodeStore issues and verifies one-time codes for device sessions. Codes
// live in Redis under a TTL and are consumed on successful verification.
type CodeStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewCodeStore builds a code store. cache may be nil; the store then degrades
// to accepting DevCode.
func NewCodeStore(cache *redis.Client, ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CodeStore{cache: cache, ttl: ttl}
}

// Issue generates a fresh 6-digit code for the session, replacing any
// previous one, and returns it for delivery.
func (s *CodeStore) Issue(ctx context.Context, sessionID string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}
	if s.cache == nil {
		return DevCode, nil
	}
	if err := s.cache.Set(ctx, codePrefix+sessionID, code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Verify checks the submitted code against the stored one and consumes it on
// match.
func (s *CodeStore) Verify(ctx context.Context, sessionID, code string) error {
	if s.cache == nil {
		if code == DevCode {
			return nil
		}
		return ErrCodeMismatch
	}

	key := codePrefix + sessionID
	stored, err := s.cache.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCodeMismatch
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if stored != code {
		return ErrCodeMismatch
	}

	// Consumed: a second submission of the same code must not pass.
	s.cache.Del(ctx, key)
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
