package auth

import (
	"fmt"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/tenant"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Email    string      `json:"email"`
	VendorID uuid.UUID   `json:"vendor_id"`
	Role     tenant.Role `json:"role"`
	jwt.RegisteredClaims
}

// PrincipalID is the authenticated principal carried in the subject.
func (c *Claims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func (c *Claims) Scope() (tenant.Scope, error) {
	id, err := c.PrincipalID()
	if err != nil {
		return tenant.Scope{}, err
	}
	return tenant.Scope{VendorID: c.VendorID, UserID: id, Role: c.Role}, nil
}

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (ti *TokenIssuer) Issue(email string, scope tenant.Scope) (string, *Claims, error) {
	now := ti.now()
	claims := &Claims{
		Email:    email,
		VendorID: scope.VendorID,
		Role:     scope.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   scope.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Parse verifies signature and expiry. Any failure is NotAuthenticated.
func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil || !token.Valid {
		return nil, apperr.NotAuthenticated()
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ID == "" || claims.VendorID == uuid.Nil {
		return nil, apperr.NotAuthenticated()
	}
	if _, err := claims.PrincipalID(); err != nil {
		return nil, apperr.NotAuthenticated()
	}
	return claims, nil
}
