package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned for a token whose exp claim lies in the past.
var ErrTokenExpired = errors.New("session: token expired")

// Principal is the identity carried by a billing API access token.
type Principal struct {
	Subject   string    `json:"subject"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	roleClaims    = []string{"role", "roles", "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"}
	nameClaims    = []string{"name", "unique_name", "fullName", "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"}
	subjectClaims = []string{"sub", "nameid", "userId", "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"}
)

// ErrSigningKeyMissing is returned by NewVerifier without a signing key.
var ErrSigningKeyMissing = errors.New("session: token signing key is required")

// Verifier checks billing API access tokens against the issuer's HMAC key before any claim
// is trusted.
type Verifier struct {
	key      []byte
	issuer   string
	audience string
}

// NewVerifier builds a Verifier for tokens signed with key. Empty issuer or audience skip
// those checks.
func NewVerifier(key, issuer, audience string) (*Verifier, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrSigningKeyMissing
	}
	return &Verifier{key: []byte(key), issuer: strings.TrimSpace(issuer), audience: strings.TrimSpace(audience)}, nil
}

// Principal verifies token as of now and reads the principal out of its claims.
func (v *Verifier) Principal(token string, now time.Time) (Principal, error) {
	if v == nil {
		return Principal{}, ErrSigningKeyMissing
	}
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Principal{}, errors.New("session: token is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Principal{}, ErrTokenExpired
	case err != nil:
		return Principal{}, fmt.Errorf("session: verify token: %w", err)
	}

	p := Principal{
		Subject: claimString(claims, subjectClaims),
		Name:    claimString(claims, nameClaims),
		Role:    claimString(claims, roleClaims),
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Principal{}, fmt.Errorf("session: read exp: %w", err)
	}
	if exp != nil {
		p.ExpiresAt = exp.Time.UTC()
	}
	return p, nil
}

func claimString(claims jwt.MapClaims, keys []string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}
