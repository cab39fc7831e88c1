package authcore

// NextAction defines a public type used by authcore APIs.
//
// NextAction instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NextAction string

const (
	// ActionContactSupport is an exported constant or variable used by the authentication service.
	ActionContactSupport NextAction = "contact_support"
	// ActionResetPassword is an exported constant or variable used by the authentication service.
	ActionResetPassword NextAction = "reset_password"
	// ActionVerifyEmail is an exported constant or variable used by the authentication service.
	ActionVerifyEmail NextAction = "verify_email"
	// ActionReactivateAccount is an exported constant or variable used by the authentication service.
	ActionReactivateAccount NextAction = "reactivate_account"
	// ActionSetupM2FA is an exported constant or variable used by the authentication service.
	ActionSetupM2FA NextAction = "m2fa_setup"
)

// ComputeNextActions derives the ordered onboarding checklist for a user.
// Pure function over the user row; it performs no I/O.
//
// Terminal states short-circuit to contact_support alone. Otherwise actions
// accumulate in a fixed order: forced password reset, email verification,
// reactivation for dormant accounts, then authenticator setup for accounts
// with m2fa enabled but no confirmed authenticator. A deactivated account
// appends reactivate_account after the accumulated items and stops there.
func ComputeNextActions(u *User, m2faConfigured bool) []NextAction {
	if u == nil {
		return nil
	}

	if u.Status == StatusSuspended || u.Status == StatusSoftDeleted {
		return []NextAction{ActionContactSupport}
	}

	var actions []NextAction
	if u.PasswordResetRequired {
		actions = append(actions, ActionResetPassword)
	}
	if !u.IsVerified {
		actions = append(actions, ActionVerifyEmail)
	}
	if u.Status == StatusInactive {
		actions = append(actions, ActionReactivateAccount)
	}
	if u.Status == StatusDeactivated {
		return append(actions, ActionReactivateAccount)
	}
	if u.IsM2FAEnabled && !m2faConfigured {
		actions = append(actions, ActionSetupM2FA)
	}

	return actions
}
