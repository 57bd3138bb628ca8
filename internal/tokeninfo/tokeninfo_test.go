package tokeninfo

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-only-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestInspectReadsClaimsWithoutKey(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signHS256(t, jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(exp)})

	claims, err := Inspect(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Subject != "user-1" || !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestInspectOpaqueToken(t *testing.T) {
	for _, token := range []string{"", "abc123", "a.b.c"} {
		if _, err := Inspect(token); !errors.Is(err, ErrOpaqueToken) {
			t.Fatalf("Inspect(%q) err = %v, want ErrOpaqueToken", token, err)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past := signHS256(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))})
	recent := signHS256(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second))})
	future := signHS256(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})
	noExp := signHS256(t, jwt.RegisteredClaims{Subject: "x"})

	if !Expired(past, now, 30*time.Second) {
		t.Fatalf("token expired an hour ago should be expired")
	}
	if Expired(recent, now, 30*time.Second) {
		t.Fatalf("token within leeway should not be expired")
	}
	if Expired(future, now, 0) {
		t.Fatalf("future token should not be expired")
	}
	if Expired(noExp, now, 0) {
		t.Fatalf("token without exp should not be expired")
	}
	if Expired("opaque-token", now, 0) {
		t.Fatalf("opaque token should not be expired")
	}
}
