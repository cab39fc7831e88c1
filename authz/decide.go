package authz

import (
	"fmt"
	"time"
)

// SoftDeleteRestoreDays is the window during which a soft-deleted account
// can still be restored by its owner.
const SoftDeleteRestoreDays = 14

// Action defines a public type used by authcore APIs.
//
// Action instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Action string

const (
	// ActionRestoreAccount is an exported constant or variable used by the authorization pipeline.
	ActionRestoreAccount Action = "restore_account"
	// ActionContactSupport is an exported constant or variable used by the authorization pipeline.
	ActionContactSupport Action = "contact_support"
	// ActionVerifyEmail is an exported constant or variable used by the authorization pipeline.
	ActionVerifyEmail Action = "verify_email"
	// ActionReactivateAccount is an exported constant or variable used by the authorization pipeline.
	ActionReactivateAccount Action = "reactivate_account"
	// ActionEnableM2FA is an exported constant or variable used by the authorization pipeline.
	ActionEnableM2FA Action = "enable_m2fa"
	// ActionVerifyM2FA is an exported constant or variable used by the authorization pipeline.
	ActionVerifyM2FA Action = "verify_m2fa"
)

// Account is the view of the authenticated user the pipeline evaluates.
// Permissions is the pre-computed union of all role permission strings.
type Account struct {
	Status           string
	DeletedAt        *time.Time
	SuspensionEndsAt *time.Time
	SuspensionReason string
	IsVerified       bool
	IsM2FAEnabled    bool
	Permissions      []string
}

// TokenState carries the M2FA claims of the presented access token.
type TokenState struct {
	Present           bool
	M2FARequired      bool
	M2FAAuthenticated bool
}

// Permission defines a public type used by authcore APIs.
//
// Permission instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Permission struct {
	Resource string
	Actions  []string
}

// RouteConfig defines a public type used by authcore APIs.
//
// RouteConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RouteConfig struct {
	Public            bool
	Permissions       []Permission
	SkipEmailVerified bool
	RequireM2FA       bool
}

// Decision defines a public type used by authcore APIs.
//
// Decision instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Decision struct {
	Allowed        bool
	Reason         string
	RequiresAction Action
	Metadata       map[string]any

	// Pending lists remediation steps that do not block the request.
	Pending []Action
	// Unsuspend is set when the suspension window has elapsed; the caller
	// must persist the status change.
	Unsuspend bool
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string, action Action, metadata map[string]any) Decision {
	return Decision{Reason: reason, RequiresAction: action, Metadata: metadata}
}

// Decide evaluates the authorization pipeline for one request. It is a pure
// function of its inputs; see the package documentation for the step order.
func Decide(now time.Time, acct Account, tok TokenState, route RouteConfig) Decision {
	if route.Public {
		return allow()
	}

	if d, blocked := checkSoftDelete(now, acct); blocked {
		return d
	}

	d, blocked := checkAccountStatus(now, acct)
	if blocked {
		return d
	}
	// carry pending actions and the unsuspend side effect forward
	result := d

	if !acct.IsVerified && !route.SkipEmailVerified {
		return deny("Email address not verified", ActionVerifyEmail, nil)
	}

	if route.RequireM2FA && !acct.IsM2FAEnabled {
		return deny("Two-factor authentication must be enabled for this resource", ActionEnableM2FA, nil)
	}
	// unconditional whenever the claim is present: a partial token never
	// reaches protected resources, regardless of route metadata
	if tok.Present && tok.M2FARequired && !tok.M2FAAuthenticated {
		return deny("Two-factor challenge not completed for this session", ActionVerifyM2FA, nil)
	}

	if missing, ok := firstMissingPermission(acct.Permissions, route.Permissions); !ok {
		return deny(
			fmt.Sprintf("Missing required permission: %s", missing),
			"",
			map[string]any{"permission": missing},
		)
	}

	return result
}

func checkSoftDelete(now time.Time, acct Account) (Decision, bool) {
	if acct.DeletedAt == nil && acct.Status != "soft_deleted" {
		return Decision{}, false
	}
	if acct.DeletedAt == nil {
		// soft_deleted status without a timestamp is a data fault; fail closed
		return deny("Account deleted", ActionContactSupport, nil), true
	}

	daysSince := int(now.Sub(*acct.DeletedAt).Hours() / 24)
	if daysSince > SoftDeleteRestoreDays {
		return deny("Account deleted and past the restore window", ActionContactSupport, map[string]any{
			"days_since_delete": daysSince,
		}), true
	}

	return deny("Account deleted", ActionRestoreAccount, map[string]any{
		"days_since_delete": daysSince,
		"days_remaining":    SoftDeleteRestoreDays - daysSince,
	}), true
}

func checkAccountStatus(now time.Time, acct Account) (Decision, bool) {
	switch acct.Status {
	case "active":
		return allow(), false

	case "inactive":
		d := allow()
		d.Pending = append(d.Pending, ActionVerifyEmail)
		return d, false

	case "suspended":
		if acct.SuspensionEndsAt != nil && now.After(*acct.SuspensionEndsAt) {
			d := allow()
			d.Unsuspend = true
			return d, false
		}
		metadata := map[string]any{"reason": acct.SuspensionReason}
		if acct.SuspensionEndsAt != nil {
			metadata["suspension_ends_at"] = acct.SuspensionEndsAt.UTC()
		}
		return deny("Account suspended", "", metadata), true

	case "deactivated":
		return deny("Account deactivated", ActionReactivateAccount, nil), true

	case "soft_deleted":
		return deny("Account deleted", ActionRestoreAccount, nil), true

	default:
		// fail closed on unrecognized state
		return deny("Account in an unknown state", ActionContactSupport, nil), true
	}
}

func firstMissingPermission(granted []string, required []Permission) (string, bool) {
	if len(required) == 0 {
		return "", true
	}

	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}

	for _, req := range required {
		for _, action := range req.Actions {
			needle := req.Resource + ":" + action
			if _, ok := set[needle]; !ok {
				return needle, false
			}
		}
	}

	return "", true
}
