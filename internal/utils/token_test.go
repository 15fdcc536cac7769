package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAccessTokenClaims(t *testing.T) {
	const secret = "test-secret"
	at, err := NewAccessToken(secret, 42, "STUDENT", 30)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}

	parsed, err := jwt.Parse(at.Token, func(tok *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if sub, _ := claims["sub"].(float64); uint64(sub) != 42 {
		t.Fatalf("sub = %v", claims["sub"])
	}
	if claims["role"] != "STUDENT" {
		t.Fatalf("role = %v", claims["role"])
	}
	if at.Exp.Before(time.Now().Add(29 * time.Minute)) {
		t.Fatalf("exp too early: %v", at.Exp)
	}
}

func TestNewAccessTokenRejectsWrongSecret(t *testing.T) {
	at, err := NewAccessToken("right", 1, "ADMIN", 5)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	_, err = jwt.Parse(at.Token, func(tok *jwt.Token) (any, error) {
		return []byte("wrong"), nil
	})
	if err == nil {
		t.Fatal("token should not verify with a different secret")
	}
}

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if len(a.Raw) != 96 { // 48 random bytes, hex encoded
		t.Fatalf("raw length = %d, want 96", len(a.Raw))
	}
	b, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if a.Raw == b.Raw {
		t.Fatal("two tokens should never collide")
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("abc")
	h2 := HashToken("abc")
	if h1 != h2 {
		t.Fatal("hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}
	if h1 == HashToken("abd") {
		t.Fatal("different inputs should hash differently")
	}
}

func TestNewOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewOTP(6)
		if err != nil {
			t.Fatalf("new otp: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("otp %q has length %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("otp %q contains non-digit", code)
			}
		}
	}

	// Non-positive lengths fall back to six digits.
	code, err := NewOTP(0)
	if err != nil {
		t.Fatalf("new otp: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("default otp length = %d, want 6", len(code))
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "s3cret!") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
