package authcore

import (
	"context"
	"errors"

	"github.com/crewlink/authcore/authz"
	"github.com/crewlink/authcore/token"
)

// Authorize describes the authorize operation and its observable behavior.
//
// The pure decision comes from authz.Decide; this wrapper loads the account
// snapshot, applies the decision's side effects (an elapsed suspension is
// lifted and persisted), and records metrics and audit events. Public routes
// tolerate a missing or invalid token.
//
// Authorize may return an error when input validation, dependency calls, or security checks fail.
// Authorize does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) Authorize(ctx context.Context, accessToken string, route authz.RouteConfig) (*authz.Decision, *token.Claims, error) {
	now := s.now()

	var claims *token.Claims
	if accessToken != "" {
		parsed, err := s.tokens.ParseAccess(accessToken)
		if err == nil {
			claims = parsed
		} else if !route.Public {
			s.metrics.Inc(MetricAuthzDenied)
			return nil, nil, ErrTokenInvalid
		}
	}

	if claims == nil {
		if route.Public {
			d := authz.Decide(now, authz.Account{}, authz.TokenState{}, route)
			s.metrics.Inc(MetricAuthzAllowed)
			return &d, nil, nil
		}
		s.metrics.Inc(MetricAuthzDenied)
		return nil, nil, ErrTokenInvalid
	}

	payload := claims.Payload()
	r := s.store.Repos()

	u, err := r.Users.ByID(ctx, payload.UserID)
	if err != nil {
		return nil, nil, err
	}

	roles, err := r.Roles.ForUser(ctx, payload.UserID)
	if err != nil {
		return nil, nil, err
	}
	var perms []string
	for _, role := range roles {
		perms = append(perms, role.Permissions...)
	}

	acct := authz.Account{
		Status:           string(u.Status),
		DeletedAt:        u.DeletedAt,
		SuspensionEndsAt: u.SuspensionEndsAt,
		SuspensionReason: u.SuspensionReason,
		IsVerified:       u.IsVerified,
		IsM2FAEnabled:    u.IsM2FAEnabled,
		Permissions:      perms,
	}
	tok := authz.TokenState{
		Present:           true,
		M2FARequired:      payload.M2FARequired,
		M2FAAuthenticated: payload.M2FAAuthenticated,
	}

	decision := authz.Decide(now, acct, tok, route)

	if decision.Unsuspend {
		err := s.store.Atomic(ctx, func(tr Repos) error {
			fresh, err := tr.Users.ByID(ctx, u.ID)
			if err != nil {
				return err
			}
			if fresh.Status != StatusSuspended {
				return nil
			}
			fresh.Status = StatusActive
			fresh.SuspendedAt = nil
			fresh.SuspensionEndsAt = nil
			fresh.SuspensionReason = ""
			fresh.UpdatedAt = now
			return tr.Users.Update(ctx, fresh)
		})
		if err != nil {
			return nil, nil, err
		}
		s.metrics.Inc(MetricAccountUnsuspended)
		s.emit(ctx, AuditEvent{EventType: AuditAccountUnsusp, UserID: u.ID, Success: true})
	}

	if decision.Allowed {
		s.metrics.Inc(MetricAuthzAllowed)
	} else {
		s.metrics.Inc(MetricAuthzDenied)
		s.emit(ctx, AuditEvent{
			EventType: AuditAuthzDenied,
			UserID:    u.ID,
			SessionID: payload.SessionID,
			Success:   false,
			Error:     decision.Reason,
		})
	}

	return &decision, claims, nil
}

/*
====================================
ACCOUNT LIFECYCLE
====================================
*/

// RestoreAccount describes the restore account operation and its observable behavior.
//
// A soft-deleted account may come back within the restore window; the
// password re-proves ownership. Day fourteen still restores, day fifteen is
// permanently out.
//
// RestoreAccount may return an error when input validation, dependency calls, or security checks fail.
// RestoreAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RestoreAccount(ctx context.Context, email, plainPassword string) error {
	email = normalizeEmail(email)

	var userID int64
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}

		ok, err := s.passwords.Verify(plainPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}

		if u.Status != StatusSoftDeleted || u.DeletedAt == nil {
			return ErrAccountNotDeleted
		}

		days := int(s.now().Sub(*u.DeletedAt).Hours() / 24)
		if days > s.config.Account.SoftDeleteRestoreDays {
			return ErrRestoreWindowExpired
		}

		u.Status = StatusActive
		u.DeletedAt = nil
		u.UpdatedAt = s.now()
		userID = u.ID
		return r.Users.Update(ctx, u)
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricAccountRestored)
	s.emit(ctx, AuditEvent{EventType: AuditAccountRestore, UserID: userID, Email: email, Success: true})
	return nil
}

// DeactivateAccount describes the deactivate account operation and its observable behavior.
//
// Deactivation is voluntary and fully reversible through ReactivateAccount.
// Every session and refresh token dies with it.
//
// DeactivateAccount may return an error when input validation, dependency calls, or security checks fail.
// DeactivateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) DeactivateAccount(ctx context.Context, userID int64, plainPassword string) error {
	return s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}

		ok, err := s.passwords.Verify(plainPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}

		u.Status = StatusDeactivated
		u.UpdatedAt = s.now()
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}
		return s.revokeEverything(ctx, r, userID, RevokeAdminRevocation)
	})
}

// ReactivateAccount describes the reactivate account operation and its observable behavior.
//
// ReactivateAccount may return an error when input validation, dependency calls, or security checks fail.
// ReactivateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ReactivateAccount(ctx context.Context, email, plainPassword string) error {
	email = normalizeEmail(email)

	return s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}

		ok, err := s.passwords.Verify(plainPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}

		if u.Status != StatusDeactivated {
			return nil
		}

		u.Status = StatusActive
		u.UpdatedAt = s.now()
		return r.Users.Update(ctx, u)
	})
}

// SoftDeleteAccount describes the soft delete account operation and its observable behavior.
//
// The row survives with a deletion timestamp so RestoreAccount can undo the
// delete inside the restore window. Sessions and refresh tokens are purged
// immediately.
//
// SoftDeleteAccount may return an error when input validation, dependency calls, or security checks fail.
// SoftDeleteAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) SoftDeleteAccount(ctx context.Context, userID int64, plainPassword string) error {
	return s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}

		ok, err := s.passwords.Verify(plainPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}

		now := s.now()
		u.Status = StatusSoftDeleted
		u.DeletedAt = &now
		u.UpdatedAt = now
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}
		return s.revokeEverything(ctx, r, userID, RevokeAdminRevocation)
	})
}
