package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

// Options defines a public type used by authcore APIs.
//
// Options instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Options struct {
	Digits    int
	Period    int
	Skew      int
	Algorithm string
}

// Defaults returns the standard authenticator parameters: 6 digits, a
// 30-second period, a one-period skew window, and SHA1.
func Defaults() Options {
	return Options{Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"}
}

func (o Options) normalized() Options {
	if o.Digits <= 0 {
		o.Digits = 6
	}
	if o.Period <= 0 {
		o.Period = 30
	}
	if o.Skew < 0 {
		o.Skew = 0
	}
	if o.Algorithm == "" {
		o.Algorithm = "SHA1"
	}
	return o
}

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh 20-byte random seed in base32 (no padding).
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// DecodeSecret describes the decodesecret operation and its observable behavior.
//
// DecodeSecret may return an error when input validation, dependency calls, or security checks fail.
// DecodeSecret does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DecodeSecret(secretBase32 string) ([]byte, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(secretBase32))
	if trimmed == "" {
		return nil, errors.New("empty otp secret")
	}
	return b32.DecodeString(trimmed)
}

// Code derives the code for the period containing now.
func Code(secretBase32 string, now time.Time, opts Options) (string, error) {
	opts = opts.normalized()
	secret, err := DecodeSecret(secretBase32)
	if err != nil {
		return "", err
	}
	counter := now.Unix() / int64(opts.Period)
	return hotpCode(secret, counter, opts.Digits, opts.Algorithm)
}

// Validate reports whether code is valid for the secret at now, accepting
// codes from the surrounding skew window.
func Validate(secretBase32, code string, now time.Time, opts Options) (bool, error) {
	opts = opts.normalized()

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != opts.Digits || !isNumeric(trimmed) {
		return false, nil
	}

	secret, err := DecodeSecret(secretBase32)
	if err != nil {
		return false, err
	}

	baseCounter := now.Unix() / int64(opts.Period)
	for step := -opts.Skew; step <= opts.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, opts.Digits, opts.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// ProvisionURI returns the otpauth:// enrollment URI for authenticator apps.
func ProvisionURI(issuer, account, secretBase32 string, opts Options) string {
	opts = opts.normalized()
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(opts.Period))
	v.Set("digits", strconv.Itoa(opts.Digits))
	v.Set("algorithm", strings.ToUpper(opts.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported otp algorithm")
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
