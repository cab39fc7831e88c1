package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crewlink/authcore/internal/randtoken"
	"github.com/crewlink/authcore/oauth"
	"github.com/crewlink/authcore/otp"
	"github.com/crewlink/authcore/password"
	"github.com/crewlink/authcore/token"
)

// Service defines a public type used by authcore APIs.
//
// Service instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Service struct {
	config Config

	store Store
	redis *redis.Client

	tokens     *token.Manager
	passwords  *password.Hasher
	stateCodec *oauth.StateCodec

	mailer  Mailer
	audit   *auditDispatcher
	metrics *Metrics

	challenges *challengeStore
	linkTokens *linkTokenStore
	limiter    *emailRateLimiter
	attempts   *attemptCounter

	now func() time.Time
}

// Close drains the audit dispatcher. The Service performs no further work
// after Close returns.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// MetricsSnapshot describes the metrics snapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// AuditDropped describes the audit dropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

func (s *Service) emit(ctx context.Context, event AuditEvent) {
	event.Timestamp = s.now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	s.audit.Emit(ctx, event)
}

func (s *Service) totpOptions() otp.Options {
	return otp.Options{
		Digits:    s.config.TOTP.Digits,
		Period:    s.config.TOTP.Period,
		Skew:      s.config.TOTP.Skew,
		Algorithm: s.config.TOTP.Algorithm,
	}
}

// emailOTPOptions derive single-window code parameters for emailed codes:
// one period spans the whole TTL so a code stays valid until expiry.
func (s *Service) emailOTPOptions(ttl time.Duration) otp.Options {
	return otp.Options{
		Digits: 6,
		Period: int(ttl.Seconds()),
		Skew:   1,
	}
}

/*
====================================
SESSION AND TOKEN PLUMBING
====================================
*/

// establishSession creates a session row and a matching refresh-token row
// for the user inside the given transaction scope, then returns the session
// together with the signed pair.
func (s *Service) establishSession(ctx context.Context, r Repos, u *User, sctx SessionContext, m2faRequired bool) (*Session, token.Pair, error) {
	now := s.now()
	sessionID := uuid.NewString()

	pair, err := s.tokens.IssuePair(token.Payload{
		UserID:            u.ID,
		SessionID:         sessionID,
		M2FARequired:      m2faRequired,
		M2FAAuthenticated: false,
	}, now)
	if err != nil {
		return nil, token.Pair{}, err
	}

	sess := &Session{
		ID:                sessionID,
		UserID:            u.ID,
		DeviceFingerprint: sctx.DeviceFingerprint,
		IPAddress:         sctx.IPAddress,
		UserAgent:         sctx.UserAgent,
		IsActive:          true,
		ExpiresAt:         pair.SessionExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.Sessions.Create(ctx, sess); err != nil {
		return nil, token.Pair{}, err
	}

	if err := r.RefreshTokens.Create(ctx, &RefreshToken{
		UserID:    u.ID,
		SessionID: sessionID,
		TokenHash: randtoken.Hash(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: now,
	}); err != nil {
		return nil, token.Pair{}, err
	}

	s.metrics.Inc(MetricSessionCreated)
	return sess, pair, nil
}

// remintPair rotates the session's refresh token and issues a fresh pair
// carrying the given second-factor flags. Caller must hold an atomic scope.
func (s *Service) remintPair(ctx context.Context, r Repos, u *User, sessionID string, m2faRequired, m2faAuthenticated bool) (token.Pair, error) {
	now := s.now()

	pair, err := s.tokens.IssuePair(token.Payload{
		UserID:            u.ID,
		SessionID:         sessionID,
		M2FARequired:      m2faRequired,
		M2FAAuthenticated: m2faAuthenticated,
	}, now)
	if err != nil {
		return token.Pair{}, err
	}

	if _, err := r.RefreshTokens.DeleteForSession(ctx, sessionID); err != nil {
		return token.Pair{}, err
	}
	if err := r.RefreshTokens.Create(ctx, &RefreshToken{
		UserID:    u.ID,
		SessionID: sessionID,
		TokenHash: randtoken.Hash(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: now,
	}); err != nil {
		return token.Pair{}, err
	}

	return pair, nil
}

// revokeEverything revokes all of the user's sessions and deletes all of
// their refresh tokens within the caller's atomic scope.
func (s *Service) revokeEverything(ctx context.Context, r Repos, userID int64, reason RevokeReason) error {
	n, err := r.Sessions.RevokeAllForUser(ctx, userID, reason, s.now())
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s.metrics.Inc(MetricSessionRevoked)
	}
	if _, err := r.RefreshTokens.DeleteForUser(ctx, userID); err != nil {
		return err
	}
	return nil
}

func (s *Service) cookieSpecs(pair token.Pair, sessionID string) []CookieSpec {
	c := s.config.Cookie
	base := CookieSpec{
		HTTPOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
		Path:     c.Path,
	}

	access := base
	access.Name = c.AccessName
	access.Value = pair.AccessToken
	access.Expires = pair.AccessExpiresAt

	refresh := base
	refresh.Name = c.RefreshName
	refresh.Value = pair.RefreshToken
	refresh.Expires = pair.RefreshExpiresAt

	session := base
	session.Name = c.SessionName
	session.Value = sessionID
	session.Expires = pair.SessionExpiresAt

	return []CookieSpec{access, refresh, session}
}

// m2faConfigured reports whether the user has a confirmed authenticator row.
func (s *Service) m2faConfigured(ctx context.Context, r Repos, userID int64) (bool, error) {
	rec, err := r.M2FA.ByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.TOTPEnabled, nil
}

/*
====================================
EMAIL DISPATCH
====================================
*/

// sendEmail delivers fire-and-forget mail. Failures are recorded in metrics
// and the audit stream but never fail the calling operation.
func (s *Service) sendEmail(ctx context.Context, msg Email) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.Inc(MetricEmailFailed)
		s.emit(ctx, AuditEvent{
			EventType: "email_failed",
			Email:     msg.To,
			Success:   false,
			Error:     err.Error(),
			Metadata:  map[string]string{"kind": string(msg.Kind)},
		})
		return
	}
	s.metrics.Inc(MetricEmailSent)
}

func (s *Service) allowSend(ctx context.Context, userID int64, action string) error {
	err := s.limiter.Allow(ctx, userID, action, s.now())
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.metrics.Inc(MetricRateLimitHit)
			s.emit(ctx, AuditEvent{EventType: AuditRateLimited, UserID: userID, Success: false, Metadata: map[string]string{"action": action}})
		}
		return err
	}
	return nil
}
