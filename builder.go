package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crewlink/authcore/oauth"
	"github.com/crewlink/authcore/password"
	"github.com/crewlink/authcore/token"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	store  Store
	redis  *redis.Client
	mailer Mailer

	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the with config operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore describes the with store operation and its observable behavior.
//
// WithStore may return an error when input validation, dependency calls, or security checks fail.
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithRedis describes the with redis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithMailer describes the with mailer operation and its observable behavior.
//
// WithMailer may return an error when input validation, dependency calls, or security checks fail.
// WithMailer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink describes the with audit sink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source. Nil restores the wall clock. Tests
// use this to step through TTL windows deterministically.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled describes the with metrics enabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("store required")
	}

	redisClient := b.redis
	if redisClient == nil {
		if cfg.Redis.Address == "" {
			return nil, errors.New("redis client or Redis.Address required")
		}
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	tm, err := token.NewManager(cfg.tokenConfig())
	if err != nil {
		return nil, err
	}

	ph, err := password.New(password.Config{Cost: cfg.Password.BcryptCost})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config:    cfg,
		store:     b.store,
		redis:     redisClient,
		tokens:    tm,
		passwords: ph,
		mailer:    b.mailer,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		now:       time.Now,
	}
	if b.clock != nil {
		svc.now = b.clock
	}

	if len(cfg.OAuth.StateSecret) > 0 {
		codec, err := oauth.NewStateCodec(cfg.OAuth.StateSecret)
		if err != nil {
			return nil, err
		}
		svc.stateCodec = codec
	}

	svc.challenges = newChallengeStore(redisClient)
	svc.linkTokens = newLinkTokenStore(redisClient)
	svc.limiter = newEmailRateLimiter(redisClient, cfg.RateLimit)
	svc.attempts = newAttemptCounter(redisClient, cfg.RateLimit.RedisKeyNS)

	if svc.mailer == nil {
		svc.mailer = NoOpMailer{}
	}

	b.built = true

	return svc, nil
}
