package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crewlink/authcore/internal/randtoken"
)

const linkTokenKeyPrefix = "oauth:link"

var errLinkTokenBackend = errors.New("link token backend unavailable")

// linkTokenStore holds single-use OAuth link intents in Redis, keyed per
// (user, provider). Only the sha256 of the token is stored.
type linkTokenStore struct {
	redis *redis.Client
}

func newLinkTokenStore(redisClient *redis.Client) *linkTokenStore {
	return &linkTokenStore{redis: redisClient}
}

func (s *linkTokenStore) key(userID int64, provider string) string {
	return fmt.Sprintf("%s:%d:%s", linkTokenKeyPrefix, userID, provider)
}

func (s *linkTokenStore) Save(ctx context.Context, userID int64, provider, linkToken string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(userID, provider), randtoken.Hash(linkToken), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLinkTokenBackend, err)
	}
	return nil
}

// Consume validates linkToken against the stored hash and deletes the key on
// success. Unknown, expired, or mismatched tokens return ErrOAuthLinkInvalid.
func (s *linkTokenStore) Consume(ctx context.Context, userID int64, provider, linkToken string) error {
	key := s.key(userID, provider)

	stored, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrOAuthLinkInvalid
		}
		return fmt.Errorf("%w: %v", errLinkTokenBackend, err)
	}

	if !randtoken.Equal(stored, randtoken.Hash(linkToken)) {
		return ErrOAuthLinkInvalid
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLinkTokenBackend, err)
	}
	return nil
}
