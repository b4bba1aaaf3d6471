package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token fails signature, algorithm or issuer checks.
	ErrInvalidToken = errors.New("invalid credential token")
	// ErrEmptyKey is returned when a signer is built without key material.
	ErrEmptyKey = errors.New("credential signing key required")
)

// Binding is the identity a credential is minted for.
type Binding struct {
	EventID string
	TeamID  string
}

// Signer mints and verifies credential tokens. Implementations hold the
// symmetric key; it never leaves the process.
type Signer interface {
	Sign(b Binding) (string, error)
	Verify(token string) (Binding, error)
}

// Claims is the JWT payload of a credential. No expiry is set.
type Claims struct {
	EventID string `json:"eventId"`
	TeamID  string `json:"teamId"`
	jwt.RegisteredClaims
}

// HMACSigner signs credentials with HS256.
type HMACSigner struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewHMACSigner builds a signer. issuer is optional metadata checked on verify when set.
func NewHMACSigner(key, issuer string) (*HMACSigner, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &HMACSigner{key: []byte(key), issuer: issuer, now: time.Now}, nil
}

// Sign returns a compact JWT carrying exactly the event and team ids.
func (s *HMACSigner) Sign(b Binding) (string, error) {
	if b.EventID == "" || b.TeamID == "" {
		return "", errors.New("event and team required")
	}
	claims := Claims{
		EventID: b.EventID,
		TeamID:  b.TeamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the signature and returns the embedded binding.
func (s *HMACSigner) Verify(token string) (Binding, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		return Binding{}, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Binding{}, ErrInvalidToken
	}
	if claims.EventID == "" || claims.TeamID == "" {
		return Binding{}, ErrInvalidToken
	}
	return Binding{EventID: claims.EventID, TeamID: claims.TeamID}, nil
}
