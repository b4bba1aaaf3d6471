package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleCoordinator is the only staff role.
const RoleCoordinator = "coordinator"

// Session is a signed staff session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Claims represents the session JWT payload.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a session token for a coordinator. The key must not be the
// credential signing key.
func Issue(coordinatorID, email, issuer, key string, ttl time.Duration) (Session, error) {
	if key == "" {
		return Session{}, errors.New("session signing key required")
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Subject: coordinatorID,
		Email:   email,
		Role:    RoleCoordinator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   coordinatorID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp}, nil
}

// Parse validates a session token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Role != RoleCoordinator {
		return Claims{}, errors.New("not a coordinator session")
	}
	return *claims, nil
}
