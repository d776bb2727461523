// Package auth validates access tokens and enforces tenant roles.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
var ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", shared.ErrUnauthorized)

// Claims carried by access tokens issued to portal and storefront users.
type Claims struct {
	TenantID   int64  `json:"tenant_id"`
	UserID     int64  `json:"user_id"`
	Role       string `json:"role"`
	RetailerID int64  `json:"retailer_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts claims into the request actor.
func (c Claims) Actor() shared.Actor {
	return shared.Actor{
		TenantID:   c.TenantID,
		UserID:     c.UserID,
		Role:       c.Role,
		RetailerID: c.RetailerID,
	}
}

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokens constructs a token helper.
func NewTokens(secret, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs a token for the actor valid for ttl.
func (t *Tokens) Issue(actor shared.Actor, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		TenantID:   actor.TenantID,
		UserID:     actor.UserID,
		Role:       actor.Role,
		RetailerID: actor.RetailerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates the token and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := claims.validate(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Claims) validate() error {
	if c.TenantID <= 0 || c.UserID <= 0 {
		return fmt.Errorf("%w: tenant and user required", ErrInvalidToken)
	}
	if !shared.IsKnownRole(c.Role) {
		return fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
	if c.Role == shared.RoleRetailer && c.RetailerID <= 0 {
		return errors.Join(ErrInvalidToken, errors.New("retailer token without retailer_id"))
	}
	return nil
}
