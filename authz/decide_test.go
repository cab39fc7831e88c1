package authz

import (
	"testing"
	"time"
)

func activeAccount() Account {
	return Account{
		Status:      "active",
		IsVerified:  true,
		Permissions: []string{"users:read", "users:update"},
	}
}

func fullToken() TokenState {
	return TokenState{Present: true, M2FARequired: false, M2FAAuthenticated: true}
}

func TestDecideAllowsActiveVerifiedUser(t *testing.T) {
	d := Decide(time.Now(), activeAccount(), fullToken(), RouteConfig{
		Permissions: []Permission{{Resource: "users", Actions: []string{"read"}}},
	})
	if !d.Allowed {
		t.Fatalf("expected allow, got %+v", d)
	}
}

func TestDecidePublicRouteSkipsEverything(t *testing.T) {
	acct := Account{Status: "deactivated"}
	d := Decide(time.Now(), acct, TokenState{}, RouteConfig{Public: true})
	if !d.Allowed {
		t.Fatalf("public route denied: %+v", d)
	}
}

func TestDecideSoftDeleteWindow(t *testing.T) {
	now := time.Now()

	t.Run("inside window", func(t *testing.T) {
		deleted := now.Add(-13 * 24 * time.Hour)
		acct := activeAccount()
		acct.Status = "soft_deleted"
		acct.DeletedAt = &deleted

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if d.Allowed || d.RequiresAction != ActionRestoreAccount {
			t.Fatalf("want restore_account denial, got %+v", d)
		}
		if d.Metadata["days_remaining"] != 1 {
			t.Fatalf("want 1 day remaining, got %v", d.Metadata["days_remaining"])
		}
	})

	t.Run("past window", func(t *testing.T) {
		deleted := now.Add(-15 * 24 * time.Hour)
		acct := activeAccount()
		acct.Status = "soft_deleted"
		acct.DeletedAt = &deleted

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if d.Allowed || d.RequiresAction != ActionContactSupport {
			t.Fatalf("want contact_support denial, got %+v", d)
		}
	})

	t.Run("deleted timestamp overrides active status", func(t *testing.T) {
		deleted := now.Add(-24 * time.Hour)
		acct := activeAccount()
		acct.DeletedAt = &deleted

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if d.Allowed {
			t.Fatalf("deleted account allowed: %+v", d)
		}
	})
}

func TestDecideAccountStatus(t *testing.T) {
	now := time.Now()

	t.Run("inactive allows with pending verify", func(t *testing.T) {
		acct := activeAccount()
		acct.Status = "inactive"

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if !d.Allowed {
			t.Fatalf("inactive account denied: %+v", d)
		}
		if len(d.Pending) != 1 || d.Pending[0] != ActionVerifyEmail {
			t.Fatalf("want pending verify_email, got %+v", d.Pending)
		}
	})

	t.Run("suspended with window remaining denies", func(t *testing.T) {
		ends := now.Add(time.Hour)
		acct := activeAccount()
		acct.Status = "suspended"
		acct.SuspensionEndsAt = &ends
		acct.SuspensionReason = "abuse"

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if d.Allowed {
			t.Fatalf("suspended account allowed: %+v", d)
		}
		if d.Metadata["reason"] != "abuse" {
			t.Fatalf("suspension metadata missing: %+v", d.Metadata)
		}
	})

	t.Run("elapsed suspension auto-unsuspends", func(t *testing.T) {
		ends := now.Add(-time.Minute)
		acct := activeAccount()
		acct.Status = "suspended"
		acct.SuspensionEndsAt = &ends

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if !d.Allowed || !d.Unsuspend {
			t.Fatalf("want allow with unsuspend side effect, got %+v", d)
		}
	})

	t.Run("deactivated denies", func(t *testing.T) {
		acct := activeAccount()
		acct.Status = "deactivated"

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if d.Allowed || d.RequiresAction != ActionReactivateAccount {
			t.Fatalf("want reactivate_account denial, got %+v", d)
		}
	})

	t.Run("unknown status fails closed", func(t *testing.T) {
		acct := activeAccount()
		acct.Status = "weird"

		d := Decide(now, acct, fullToken(), RouteConfig{})
		if d.Allowed || d.RequiresAction != ActionContactSupport {
			t.Fatalf("want contact_support denial, got %+v", d)
		}
	})
}

func TestDecideEmailVerification(t *testing.T) {
	acct := activeAccount()
	acct.IsVerified = false

	d := Decide(time.Now(), acct, fullToken(), RouteConfig{})
	if d.Allowed || d.RequiresAction != ActionVerifyEmail {
		t.Fatalf("want verify_email denial, got %+v", d)
	}

	d = Decide(time.Now(), acct, fullToken(), RouteConfig{SkipEmailVerified: true})
	if !d.Allowed {
		t.Fatalf("skip-verified route denied: %+v", d)
	}
}

func TestDecideM2FA(t *testing.T) {
	t.Run("route requires m2fa but user has none", func(t *testing.T) {
		d := Decide(time.Now(), activeAccount(), fullToken(), RouteConfig{RequireM2FA: true})
		if d.Allowed || d.RequiresAction != ActionEnableM2FA {
			t.Fatalf("want enable_m2fa denial, got %+v", d)
		}
	})

	t.Run("partial token is denied on any protected route", func(t *testing.T) {
		acct := activeAccount()
		acct.IsM2FAEnabled = true
		tok := TokenState{Present: true, M2FARequired: true, M2FAAuthenticated: false}

		d := Decide(time.Now(), acct, tok, RouteConfig{})
		if d.Allowed || d.RequiresAction != ActionVerifyM2FA {
			t.Fatalf("want verify_m2fa denial, got %+v", d)
		}
	})

	t.Run("completed challenge passes", func(t *testing.T) {
		acct := activeAccount()
		acct.IsM2FAEnabled = true
		tok := TokenState{Present: true, M2FARequired: true, M2FAAuthenticated: true}

		d := Decide(time.Now(), acct, tok, RouteConfig{RequireM2FA: true})
		if !d.Allowed {
			t.Fatalf("completed challenge denied: %+v", d)
		}
	})
}

func TestDecidePermissions(t *testing.T) {
	route := RouteConfig{Permissions: []Permission{
		{Resource: "users", Actions: []string{"read", "delete"}},
	}}

	d := Decide(time.Now(), activeAccount(), fullToken(), route)
	if d.Allowed {
		t.Fatalf("missing permission allowed: %+v", d)
	}
	if d.Metadata["permission"] != "users:delete" {
		t.Fatalf("denial must name the first missing permission, got %+v", d.Metadata)
	}

	acct := activeAccount()
	acct.Permissions = append(acct.Permissions, "users:delete")
	d = Decide(time.Now(), acct, fullToken(), route)
	if !d.Allowed {
		t.Fatalf("granted permissions denied: %+v", d)
	}
}
