package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by caller tokens.
type Claims struct {
	Host       string   `json:"host,omitempty"`
	Privileges []string `json:"privileges,omitempty"`
	jwt.RegisteredClaims
}

// TokenProvider resolves callers from HS256-signed JWTs. The subject is the
// user; the host claim wins over the transport address when present.
type TokenProvider struct {
	secret []byte
	issuer string
}

// NewTokenProvider returns a provider verifying tokens with secret. A
// non-empty issuer is required to match the iss claim.
func NewTokenProvider(secret, issuer string) (*TokenProvider, error) {
	if secret == "" {
		return nil, errors.New("token provider: empty secret")
	}
	return &TokenProvider{secret: []byte(secret), issuer: issuer}, nil
}

// Resolve implements Provider.
func (p *TokenProvider) Resolve(_ context.Context, c Caller) (SecurityContext, error) {
	if c.Token == "" {
		return nil, ErrUnknownCaller
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(c.Token, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", ErrUnknownCaller)
	}
	host := c.Host
	if claims.Host != "" {
		host = claims.Host
	}
	return NewSecurityContext(claims.Subject, host, claims.Privileges...), nil
}

// Issue signs a token for user holding privileges. A zero ttl never
// expires; a negative ttl yields a token that is already expired.
func (p *TokenProvider) Issue(user, host string, privileges []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Host:       host,
		Privileges: privileges,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user,
			Issuer:   p.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
