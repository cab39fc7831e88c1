package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/crewlink/authcore/oauth"
)

// BeginOAuthLink describes the begin oauth link operation and its observable behavior.
//
// An authenticated user starting a provider link gets a single-use intent:
// a UUID link token stored hashed in Redis for five minutes, folded into
// the signed state blob the provider will echo back.
//
// BeginOAuthLink may return an error when input validation, dependency calls, or security checks fail.
// BeginOAuthLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) BeginOAuthLink(ctx context.Context, userID int64, provider, authType string) (string, error) {
	if s.stateCodec == nil {
		return "", ErrServiceNotReady
	}
	if _, err := s.store.Repos().Users.ByID(ctx, userID); err != nil {
		return "", err
	}

	linkToken := uuid.NewString()
	if err := s.linkTokens.Save(ctx, userID, provider, linkToken, s.config.OAuth.LinkTokenTTL); err != nil {
		return "", err
	}

	return s.stateCodec.Encode(oauth.State{
		DeviceFingerprint: fingerprintFromContext(ctx),
		AuthType:          authType,
		UserID:            userID,
		Action:            oauth.ActionLink,
		LinkToken:         linkToken,
	})
}

// BeginOAuthLogin describes the begin oauth login operation and its observable behavior.
//
// BeginOAuthLogin may return an error when input validation, dependency calls, or security checks fail.
// BeginOAuthLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) BeginOAuthLogin(ctx context.Context, authType string) (string, error) {
	if s.stateCodec == nil {
		return "", ErrServiceNotReady
	}
	return s.stateCodec.Encode(oauth.State{
		DeviceFingerprint: fingerprintFromContext(ctx),
		AuthType:          authType,
		Action:            oauth.ActionLogin,
	})
}

// VerifyOAuthAccount describes the verify oauth account operation and its observable behavior.
//
// The callback entry point. The state blob must verify against the HMAC key
// or the whole exchange fails closed; the provider profile must carry a
// verified email. Login resolution order: existing provider link, then
// email match (links in place), then a brand-new account with the default
// role. Link resolution consumes the single-use intent and attaches the
// provider account to the state's user.
//
// VerifyOAuthAccount may return an error when input validation, dependency calls, or security checks fail.
// VerifyOAuthAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) VerifyOAuthAccount(ctx context.Context, encodedState string, profile oauth.Profile) (*AuthResult, error) {
	if s.stateCodec == nil {
		return nil, ErrServiceNotReady
	}

	state, err := s.stateCodec.Decode(encodedState)
	if err != nil {
		s.metrics.Inc(MetricOAuthFailure)
		return nil, ErrOAuthStateInvalid
	}
	if err := profile.Validate(); err != nil {
		s.metrics.Inc(MetricOAuthFailure)
		return nil, err
	}
	if !profile.EmailVerified {
		s.metrics.Inc(MetricOAuthFailure)
		return nil, ErrOAuthEmailUnverified
	}

	switch state.Action {
	case oauth.ActionLogin:
		return s.resolveOAuthLogin(ctx, state, profile)
	case oauth.ActionLink:
		return s.resolveOAuthLink(ctx, state, profile)
	default:
		s.metrics.Inc(MetricOAuthFailure)
		return nil, ErrOAuthStateInvalid
	}
}

func (s *Service) resolveOAuthLogin(ctx context.Context, state oauth.State, profile oauth.Profile) (*AuthResult, error) {
	email := normalizeEmail(profile.Email)

	var result *AuthResult
	err := s.store.Atomic(ctx, func(r Repos) error {
		var u *User

		acct, err := r.OAuthAccounts.ByProviderAccount(ctx, profile.Provider, profile.ProviderAccountID)
		if err != nil {
			return err
		}

		switch {
		case acct != nil:
			u, err = r.Users.ByID(ctx, acct.UserID)
			if err != nil {
				return err
			}

		default:
			u, err = r.Users.ByEmail(ctx, email)
			if err != nil && !errors.Is(err, ErrUserNotFound) {
				return err
			}
			if u == nil {
				role, roleErr := r.Roles.ByName(ctx, s.config.Account.DefaultRole)
				if roleErr != nil {
					return ErrDefaultRoleMissing
				}

				now := s.now()
				u = &User{
					Email:      email,
					FullName:   profile.FullName,
					Status:     StatusActive,
					IsVerified: true,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if err := r.Users.Create(ctx, u); err != nil {
					return err
				}
				if err := r.Users.AssignRole(ctx, u.ID, role.ID); err != nil {
					return err
				}
			}

			if err := r.OAuthAccounts.Create(ctx, &OAuthAccount{
				UserID:            u.ID,
				Provider:          profile.Provider,
				ProviderAccountID: profile.ProviderAccountID,
				CreatedAt:         s.now(),
			}); err != nil {
				return err
			}
		}

		configured, err := s.m2faConfigured(ctx, r, u.ID)
		if err != nil {
			return err
		}

		sctx := sessionContextFrom(ctx)
		if sctx.DeviceFingerprint == "" {
			sctx.DeviceFingerprint = state.DeviceFingerprint
		}

		m2faRequired := u.IsM2FAEnabled
		sess, pair, err := s.establishSession(ctx, r, u, sctx, m2faRequired)
		if err != nil {
			return err
		}

		result = &AuthResult{
			User:         u,
			Session:      sess,
			Tokens:       pair,
			M2FARequired: m2faRequired,
			NextActions:  ComputeNextActions(u, configured),
			Cookies:      s.cookieSpecs(pair, sess.ID),
		}
		return nil
	})
	if err != nil {
		s.metrics.Inc(MetricOAuthFailure)
		return nil, err
	}

	s.metrics.Inc(MetricOAuthLoginSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditOAuthLogin, UserID: result.User.ID, SessionID: result.Session.ID, Success: true, Metadata: map[string]string{"provider": profile.Provider}})
	return result, nil
}

func (s *Service) resolveOAuthLink(ctx context.Context, state oauth.State, profile oauth.Profile) (*AuthResult, error) {
	if err := s.linkTokens.Consume(ctx, state.UserID, profile.Provider, state.LinkToken); err != nil {
		s.metrics.Inc(MetricOAuthFailure)
		return nil, err
	}

	var result *AuthResult
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, state.UserID)
		if err != nil {
			return err
		}

		existing, err := r.OAuthAccounts.ByProviderAccount(ctx, profile.Provider, profile.ProviderAccountID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.UserID != u.ID {
				return ErrOAuthAccountExists
			}
			// already linked to this user; nothing to do
		} else {
			if err := r.OAuthAccounts.Create(ctx, &OAuthAccount{
				UserID:            u.ID,
				Provider:          profile.Provider,
				ProviderAccountID: profile.ProviderAccountID,
				CreatedAt:         s.now(),
			}); err != nil {
				return err
			}
		}

		configured, err := s.m2faConfigured(ctx, r, u.ID)
		if err != nil {
			return err
		}

		result = &AuthResult{
			User:        u,
			NextActions: ComputeNextActions(u, configured),
		}
		return nil
	})
	if err != nil {
		s.metrics.Inc(MetricOAuthFailure)
		return nil, err
	}

	s.metrics.Inc(MetricOAuthLinkSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditOAuthLink, UserID: result.User.ID, Success: true, Metadata: map[string]string{"provider": profile.Provider}})
	return result, nil
}

// UnlinkOAuthAccount describes the unlink oauth account operation and its observable behavior.
//
// UnlinkOAuthAccount may return an error when input validation, dependency calls, or security checks fail.
// UnlinkOAuthAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) UnlinkOAuthAccount(ctx context.Context, userID int64, provider string) error {
	err := s.store.Atomic(ctx, func(r Repos) error {
		acct, err := r.OAuthAccounts.ByUserAndProvider(ctx, userID, provider)
		if err != nil {
			return err
		}
		if acct == nil {
			return ErrOAuthAccountNotFound
		}
		return r.OAuthAccounts.Delete(ctx, acct.ID)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, AuditEvent{EventType: AuditOAuthUnlink, UserID: userID, Success: true, Metadata: map[string]string{"provider": provider}})
	return nil
}
