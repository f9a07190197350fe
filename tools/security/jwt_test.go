package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, exp, err := Generate(opts, "user42")
	if err != nil {
		t.Fatal(err)
	}
	if !exp.After(time.Now()) {
		t.Error("expiry not in the future")
	}
	got, err := Verify(opts, token)
	if err != nil {
		t.Fatal(err)
	}
	if got != "user42" {
		t.Errorf("subject = %q, want user42", got)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("right")), "user42")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(DefaultOptions([]byte("wrong")), token); err == nil {
		t.Fatal("want signature error")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	secret := []byte("s")
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "user42",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(DefaultOptions(secret), signed); err == nil {
		t.Fatal("want expiry error")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := DefaultOptions([]byte("s"))
	opts.Alg = "RS256"
	if _, _, err := Generate(opts, "u"); err == nil {
		t.Fatal("want unsupported-alg error")
	}
}
