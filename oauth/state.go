package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const minKeyLen = 32

var (
	// ErrStateInvalid is an exported constant or variable used by the oauth layer.
	ErrStateInvalid = errors.New("oauth state invalid")
	// ErrStateTampered is an exported constant or variable used by the oauth layer.
	ErrStateTampered = errors.New("oauth state signature mismatch")
)

const (
	// ActionLogin is an exported constant or variable used by the oauth layer.
	ActionLogin = "login"
	// ActionLink is an exported constant or variable used by the oauth layer.
	ActionLink = "link"
)

const (
	// AuthTypeCookie is an exported constant or variable used by the oauth layer.
	AuthTypeCookie = "cookie"
	// AuthTypeHeader is an exported constant or variable used by the oauth layer.
	AuthTypeHeader = "header"
)

// Profile is the canonical shape a provider adapter produces from a
// third-party identity.
type Profile struct {
	Provider          string
	ProviderAccountID string
	Email             string
	FullName          string
	EmailVerified     bool
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Provider) == "" {
		return errors.New("profile missing provider")
	}
	if strings.TrimSpace(p.ProviderAccountID) == "" {
		return errors.New("profile missing provider account id")
	}
	if strings.TrimSpace(p.Email) == "" {
		return errors.New("profile missing email")
	}
	return nil
}

// State is the blob carried through the OAuth redirect round-trip.
type State struct {
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	AuthType          string `json:"auth_type"`
	UserID            int64  `json:"user_id,omitempty"`
	Action            string `json:"action"`
	LinkToken         string `json:"link_token,omitempty"`
}

func (s State) validate() error {
	switch s.AuthType {
	case AuthTypeCookie, AuthTypeHeader:
	default:
		return fmt.Errorf("%w: unknown auth type", ErrStateInvalid)
	}

	switch s.Action {
	case ActionLogin:
		return nil
	case ActionLink:
		if s.UserID <= 0 {
			return fmt.Errorf("%w: link state requires user id", ErrStateInvalid)
		}
		if s.LinkToken == "" {
			return fmt.Errorf("%w: link state requires link token", ErrStateInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action", ErrStateInvalid)
	}
}

// StateCodec signs and verifies redirect state blobs.
type StateCodec struct {
	key []byte
}

// NewStateCodec describes the newstatecodec operation and its observable behavior.
//
// NewStateCodec may return an error when input validation, dependency calls, or security checks fail.
// NewStateCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewStateCodec(key []byte) (*StateCodec, error) {
	if len(key) < minKeyLen {
		return nil, fmt.Errorf("state key must be at least %d bytes", minKeyLen)
	}
	owned := make([]byte, len(key))
	copy(owned, key)
	return &StateCodec{key: owned}, nil
}

// Encode describes the encode operation and its observable behavior.
//
// Encode may return an error when input validation, dependency calls, or security checks fail.
// Encode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *StateCodec) Encode(s State) (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + base64.RawURLEncoding.EncodeToString(c.sign(body)), nil
}

// Decode describes the decode operation and its observable behavior.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *StateCodec) Decode(encoded string) (State, error) {
	body, sigPart, found := strings.Cut(encoded, ".")
	if !found || body == "" || sigPart == "" {
		return State{}, ErrStateInvalid
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return State{}, ErrStateInvalid
	}
	if !hmac.Equal(sig, c.sign(body)) {
		return State{}, ErrStateTampered
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return State{}, ErrStateInvalid
	}

	var s State
	if err := json.Unmarshal(payload, &s); err != nil {
		return State{}, ErrStateInvalid
	}
	if err := s.validate(); err != nil {
		return State{}, err
	}

	return s, nil
}

func (c *StateCodec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.key)
	_, _ = mac.Write([]byte(body))
	return mac.Sum(nil)
}
