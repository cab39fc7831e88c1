package oauth

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testCodec(t *testing.T) *StateCodec {
	t.Helper()

	c, err := NewStateCodec(bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("NewStateCodec: %v", err)
	}
	return c
}

func TestNewStateCodecRejectsShortKey(t *testing.T) {
	if _, err := NewStateCodec([]byte("short")); err == nil {
		t.Fatal("short key accepted")
	}
}

func TestStateRoundTrip(t *testing.T) {
	c := testCodec(t)

	in := State{
		DeviceFingerprint: "fp-1",
		AuthType:          AuthTypeCookie,
		Action:            ActionLogin,
	}

	encoded, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecodeRejectsTamperedBody(t *testing.T) {
	c := testCodec(t)

	encoded, err := c.Encode(State{AuthType: AuthTypeHeader, Action: ActionLogin})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	body, sig, _ := strings.Cut(encoded, ".")
	flipped := []byte(body)
	flipped[0] ^= 0x01

	if _, err := c.Decode(string(flipped) + "." + sig); !errors.Is(err, ErrStateTampered) {
		t.Fatalf("want ErrStateTampered, got %v", err)
	}
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	c := testCodec(t)
	other, err := NewStateCodec(bytes.Repeat([]byte("x"), 32))
	if err != nil {
		t.Fatalf("NewStateCodec: %v", err)
	}

	encoded, err := other.Encode(State{AuthType: AuthTypeCookie, Action: ActionLogin})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := c.Decode(encoded); !errors.Is(err, ErrStateTampered) {
		t.Fatalf("want ErrStateTampered, got %v", err)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	c := testCodec(t)

	for _, in := range []string{"", "nosig", ".", "a.", "%%%.%%%"} {
		if _, err := c.Decode(in); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("Decode(%q): want ErrStateInvalid, got %v", in, err)
		}
	}
}

func TestStateShapeValidation(t *testing.T) {
	c := testCodec(t)

	cases := []struct {
		name  string
		state State
	}{
		{"unknown auth type", State{AuthType: "query", Action: ActionLogin}},
		{"unknown action", State{AuthType: AuthTypeCookie, Action: "steal"}},
		{"link without user id", State{AuthType: AuthTypeCookie, Action: ActionLink, LinkToken: "tok"}},
		{"link without token", State{AuthType: AuthTypeCookie, Action: ActionLink, UserID: 4}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Encode(tc.state); !errors.Is(err, ErrStateInvalid) {
				t.Fatalf("want ErrStateInvalid, got %v", err)
			}
		})
	}

	valid := State{AuthType: AuthTypeHeader, Action: ActionLink, UserID: 4, LinkToken: "tok"}
	if _, err := c.Encode(valid); err != nil {
		t.Fatalf("valid link state rejected: %v", err)
	}
}

func TestProfileValidate(t *testing.T) {
	ok := Profile{Provider: "google", ProviderAccountID: "123", Email: "a@x.com", EmailVerified: true}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}

	for _, p := range []Profile{
		{ProviderAccountID: "123", Email: "a@x.com"},
		{Provider: "google", Email: "a@x.com"},
		{Provider: "google", ProviderAccountID: "123"},
	} {
		if err := p.Validate(); err == nil {
			t.Fatalf("incomplete profile accepted: %+v", p)
		}
	}
}
