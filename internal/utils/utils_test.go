package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	claims := AccessClaims{Role: "department", Department: "Physics", Name: "Ada"}
	claims.Subject = "u-1"
	tok, err := NewAccessToken("secret", claims, 5)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Subject != "u-1" || got.Role != "department" || got.Department != "Physics" || got.Name != "Ada" {
		t.Fatalf("claims=%+v", got)
	}
	if _, err := ParseAccessToken("other", tok.Token); err != ErrInvalidToken {
		t.Fatalf("wrong secret err=%v", err)
	}
}

func TestAccessTokenExpired(t *testing.T) {
	claims := AccessClaims{Role: "admin"}
	claims.Subject = "u-1"
	tok, err := NewAccessToken("secret", claims, -1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken("secret", tok.Token); err != ErrInvalidToken {
		t.Fatalf("expired err=%v", err)
	}
}

func TestAccessTokenRejectsNone(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "role": "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseAccessToken("secret", raw); err != ErrInvalidToken {
		t.Fatalf("none alg err=%v", err)
	}
}

func TestPasswordHelpers(t *testing.T) {
	if err := CheckPassword("short"); err != ErrPasswordTooShort {
		t.Fatalf("CheckPassword(short)=%v", err)
	}
	if err := CheckPassword("longer1"); err != nil {
		t.Fatalf("CheckPassword(longer1)=%v", err)
	}
	h, err := HashPassword("longer1", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(h, "longer1") || VerifyPassword(h, "longer2") {
		t.Fatalf("verify mismatch")
	}
}

func TestHashRefreshRawStable(t *testing.T) {
	if HashRefreshRaw("abc") != HashRefreshRaw("abc") || len(HashRefreshRaw("abc")) != 64 {
		t.Fatalf("unexpected hash")
	}
	r, err := NewRefreshToken(1)
	if err != nil || len(r.Raw) != 96 {
		t.Fatalf("refresh token %q %v", r.Raw, err)
	}
}
