package authcore

import "context"

// EmailKind defines a public type used by authcore APIs.
//
// EmailKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailKind string

const (
	// EmailWelcome is an exported constant or variable used by the authentication service.
	EmailWelcome EmailKind = "welcome"
	// EmailVerification is an exported constant or variable used by the authentication service.
	EmailVerification EmailKind = "verification"
	// EmailVerificationOTP is an exported constant or variable used by the authentication service.
	EmailVerificationOTP EmailKind = "verification_otp"
	// EmailPasswordReset is an exported constant or variable used by the authentication service.
	EmailPasswordReset EmailKind = "password_reset"
	// EmailPasswordResetOTP is an exported constant or variable used by the authentication service.
	EmailPasswordResetOTP EmailKind = "password_reset_otp"
	// EmailPasswordChanged is an exported constant or variable used by the authentication service.
	EmailPasswordChanged EmailKind = "password_changed"
	// EmailChangeEmail is an exported constant or variable used by the authentication service.
	EmailChangeEmail EmailKind = "change_email"
	// EmailEmailChanged is an exported constant or variable used by the authentication service.
	EmailEmailChanged EmailKind = "email_changed"
	// EmailM2FAOTP is an exported constant or variable used by the authentication service.
	EmailM2FAOTP EmailKind = "m2fa_otp"
)

// Email is one outbound message handed to the Mailer. Exactly one of Link,
// Code, or neither is set depending on Kind.
type Email struct {
	Kind      EmailKind
	To        string
	FullName  string
	Link      string
	Code      string
	NewEmail  string
	ExpiresIn string
}

// Mailer delivers transactional email. Implementations own templating and
// transport; the service only decides what to send and when.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// NoOpMailer discards every message. Useful in tests and in header-auth
// deployments that deliver email elsewhere.
type NoOpMailer struct{}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpMailer) Send(context.Context, Email) error { return nil }

// Subject returns the default subject line for the message kind. Custom
// mailers may ignore it.
func (e Email) Subject() string {
	switch e.Kind {
	case EmailWelcome:
		return "Welcome"
	case EmailVerification, EmailVerificationOTP:
		return "Verify your email address"
	case EmailPasswordReset, EmailPasswordResetOTP:
		return "Reset your password"
	case EmailPasswordChanged:
		return "Your password was changed"
	case EmailChangeEmail:
		return "Confirm your new email address"
	case EmailEmailChanged:
		return "Your email address was changed"
	case EmailM2FAOTP:
		return "Your sign-in code"
	default:
		return "Notification"
	}
}
