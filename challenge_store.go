package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "2fa-otp"

var errChallengeBackend = errors.New("challenge backend unavailable")

type otpChallenge struct {
	Secret    string `json:"secret"`
	Attempts  int    `json:"attempts"`
	CreatedAt int64  `json:"created_at"`
	Email     string `json:"email"`
}

// challengeStore keeps short-lived M2FA login challenges in Redis. Records
// survive attempt exhaustion so that a correct code on a burned challenge
// still reads as too many attempts; expiry is left to the key TTL.
type challengeStore struct {
	redis *redis.Client
}

func newChallengeStore(redisClient *redis.Client) *challengeStore {
	return &challengeStore{redis: redisClient}
}

func (s *challengeStore) key(token string) string {
	return challengeKeyPrefix + ":" + token
}

func (s *challengeStore) Save(ctx context.Context, token string, rec *otpChallenge, ttl time.Duration) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(token), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return nil
}

// Get returns the challenge record, or ErrChallengeInvalid when the token is
// unknown or expired, or ErrOTPAttemptsExceeded when the attempt budget is
// already spent.
func (s *challengeStore) Get(ctx context.Context, token string, maxAttempts int) (*otpChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeInvalid
		}
		return nil, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	var rec otpChallenge
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, ErrChallengeInvalid
	}
	if rec.Attempts >= maxAttempts {
		return nil, ErrOTPAttemptsExceeded
	}
	return &rec, nil
}

func (s *challengeStore) Delete(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the attempt counter under WATCH so concurrent
// failures never lose an increment. It reports whether the budget is now
// exhausted. The record is kept either way; the key TTL is preserved.
func (s *challengeStore) RecordFailure(ctx context.Context, token string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(token)

	for i := 0; i < maxRetries; i++ {
		var exhausted bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrChallengeInvalid
				}
				return err
			}

			var rec otpChallenge
			if err := json.Unmarshal(data, &rec); err != nil {
				return ErrChallengeInvalid
			}

			rec.Attempts++
			exhausted = rec.Attempts >= maxAttempts

			updated, err := json.Marshal(&rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if err == nil {
			return exhausted, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrChallengeInvalid) {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	return false, fmt.Errorf("%w: optimistic retry budget exhausted", errChallengeBackend)
}
