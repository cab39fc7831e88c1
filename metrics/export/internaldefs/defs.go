package internaldefs

import (
	authcore "github.com/crewlink/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication service.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful account registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected for duplicate email."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginM2FAChallenge, Name: "authcore_login_m2fa_challenge_total", Help: "Logins answered with a second-factor challenge."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logout operations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Revoked sessions."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Failed password changes."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: authcore.MetricPasswordResetSuccess, Name: "authcore_password_reset_success_total", Help: "Successful password reset confirmations."},
	{ID: authcore.MetricPasswordResetFailure, Name: "authcore_password_reset_failure_total", Help: "Failed password reset confirmations."},
	{ID: authcore.MetricVerificationRequest, Name: "authcore_email_verification_request_total", Help: "Email verification requests."},
	{ID: authcore.MetricVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Successful email verifications."},
	{ID: authcore.MetricVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: authcore.MetricEmailChangeRequest, Name: "authcore_email_change_request_total", Help: "Email change requests."},
	{ID: authcore.MetricEmailChangeSuccess, Name: "authcore_email_change_success_total", Help: "Confirmed email changes."},
	{ID: authcore.MetricM2FAChallengeIssued, Name: "authcore_m2fa_challenge_issued_total", Help: "Issued second-factor challenges."},
	{ID: authcore.MetricM2FAVerifySuccess, Name: "authcore_m2fa_verify_success_total", Help: "Successful second-factor verifications."},
	{ID: authcore.MetricM2FAVerifyFailure, Name: "authcore_m2fa_verify_failure_total", Help: "Failed second-factor verifications."},
	{ID: authcore.MetricM2FALockout, Name: "authcore_m2fa_lockout_total", Help: "Second-factor lockouts triggered by repeated failures."},
	{ID: authcore.MetricOAuthLoginSuccess, Name: "authcore_oauth_login_success_total", Help: "Successful OAuth logins."},
	{ID: authcore.MetricOAuthLinkSuccess, Name: "authcore_oauth_link_success_total", Help: "Successful OAuth account links."},
	{ID: authcore.MetricOAuthFailure, Name: "authcore_oauth_failure_total", Help: "Failed OAuth resolutions."},
	{ID: authcore.MetricAuthzAllowed, Name: "authcore_authz_allowed_total", Help: "Allowed authorization decisions."},
	{ID: authcore.MetricAuthzDenied, Name: "authcore_authz_denied_total", Help: "Denied authorization decisions."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Email rate-limit checks that denied requests."},
	{ID: authcore.MetricEmailSent, Name: "authcore_email_sent_total", Help: "Emails handed to the mailer."},
	{ID: authcore.MetricEmailFailed, Name: "authcore_email_failed_total", Help: "Mailer failures."},
	{ID: authcore.MetricAccountRestored, Name: "authcore_account_restored_total", Help: "Soft-deleted accounts restored."},
	{ID: authcore.MetricAccountUnsuspended, Name: "authcore_account_unsuspended_total", Help: "Expired suspensions lifted."},
}
