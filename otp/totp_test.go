package otp

import (
	"strings"
	"testing"
	"time"
)

func TestValidateRFCVectorsSHA1(t *testing.T) {
	opts := Options{Digits: 8, Period: 30, Skew: 0, Algorithm: "SHA1"}
	secret := b32.EncodeToString([]byte("12345678901234567890"))

	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		ok, err := Validate(secret, tc.code, time.Unix(tc.ts, 0), opts)
		if err != nil || !ok {
			t.Fatalf("SHA1 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestValidateRFCVectorsSHA256(t *testing.T) {
	opts := Options{Digits: 8, Period: 30, Skew: 0, Algorithm: "SHA256"}
	secret := b32.EncodeToString([]byte("12345678901234567890123456789012"))

	cases := []struct {
		ts   int64
		code string
	}{
		{59, "46119246"},
		{1111111109, "68084774"},
		{2000000000, "90698825"},
	}

	for _, tc := range cases {
		ok, err := Validate(secret, tc.code, time.Unix(tc.ts, 0), opts)
		if err != nil || !ok {
			t.Fatalf("SHA256 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestCodeMatchesValidate(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}

	now := time.Unix(1700000000, 0)
	code, err := Code(secret, now, Defaults())
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	ok, err := Validate(secret, code, now, Defaults())
	if err != nil || !ok {
		t.Fatalf("Validate(own code) = %v, %v", ok, err)
	}
}

func TestValidateSkewWindow(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}

	now := time.Unix(1700000015, 0)
	prev, err := Code(secret, now.Add(-30*time.Second), Defaults())
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	next, err := Code(secret, now.Add(30*time.Second), Defaults())
	if err != nil {
		t.Fatalf("Code: %v", err)
	}

	for _, code := range []string{prev, next} {
		ok, err := Validate(secret, code, now, Defaults())
		if err != nil || !ok {
			t.Fatalf("adjacent-period code rejected: ok=%v err=%v", ok, err)
		}
	}

	far, err := Code(secret, now.Add(2*time.Minute), Defaults())
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if ok, _ := Validate(secret, far, now, Defaults()); ok {
		t.Fatal("code outside skew window accepted")
	}
}

func TestValidateRejectsMalformedCodes(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	now := time.Now()

	for _, code := range []string{"", "12345", "1234567", "12a456", "  "} {
		if ok, _ := Validate(secret, code, now, Defaults()); ok {
			t.Fatalf("malformed code %q accepted", code)
		}
	}
}

func TestGenerateSecretShape(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	b, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if a == b {
		t.Fatal("secrets must be random")
	}
	if strings.Contains(a, "=") {
		t.Fatal("secret must be unpadded base32")
	}
	raw, err := DecodeSecret(a)
	if err != nil {
		t.Fatalf("DecodeSecret: %v", err)
	}
	if len(raw) != 20 {
		t.Fatalf("expected 20-byte seed, got %d", len(raw))
	}
}

func TestProvisionURI(t *testing.T) {
	uri := ProvisionURI("authcore", "a@x.com", "SECRETBASE32", Defaults())

	if !strings.HasPrefix(uri, "otpauth://totp/authcore:a@x.com?") {
		t.Fatalf("unexpected uri prefix: %s", uri)
	}
	for _, part := range []string{"secret=SECRETBASE32", "issuer=authcore", "period=30", "digits=6", "algorithm=SHA1"} {
		if !strings.Contains(uri, part) {
			t.Fatalf("uri missing %q: %s", part, uri)
		}
	}
}
