// Package tokeninfo reads claims from bearer tokens held by the client.
//
// The client never has the signing key, so signatures are not checked here;
// the server remains the authority. Claims are only used to avoid restoring a
// session whose token has visibly expired.
package tokeninfo

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken means the token is not a JWT and carries no readable claims.
var ErrOpaqueToken = errors.New("token is not a jwt")

// Claims are the fields the client cares about.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Inspect parses token without verifying its signature.
func Inspect(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return Claims{}, ErrOpaqueToken
	}
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, errors.Join(ErrOpaqueToken, err)
	}
	out := Claims{Subject: strings.TrimSpace(claims.Subject)}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Expired reports whether token is a JWT whose exp lies before now-leeway.
// Opaque tokens and JWTs without exp are never considered expired.
func Expired(token string, now time.Time, leeway time.Duration) bool {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return claims.ExpiresAt.Before(now.Add(-leeway))
}
