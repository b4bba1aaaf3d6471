package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidCoordinator = errors.New("please provide all required fields")
	ErrCoordinatorExists  = errors.New("coordinator already exists")
	ErrCoordinatorMissing = errors.New("coordinator not found")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Coordinator is a staff member allowed to run scanning stations.
type Coordinator struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Department  string    `json:"department"`
	Year        string    `json:"year"`
	CreatedAt   time.Time `json:"created_at"`
}

// CoordinatorStore persists coordinators.
type CoordinatorStore interface {
	// CreateCoordinator returns ErrCoordinatorExists for a taken email.
	CreateCoordinator(ctx context.Context, c Coordinator) (Coordinator, error)
	// FindCoordinator returns ErrCoordinatorMissing when no coordinator has
	// both the email and the name.
	FindCoordinator(ctx context.Context, email, name string) (Coordinator, error)
}

// Service registers coordinators and opens sessions.
type Service struct {
	store      CoordinatorStore
	secret     string
	issuer     string
	sessionKey string
	ttl        time.Duration
}

// NewService builds the staff login service. secret is the shared
// coordinator secret key; sessionKey signs session tokens.
func NewService(store CoordinatorStore, secret, issuer, sessionKey string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{store: store, secret: secret, issuer: issuer, sessionKey: sessionKey, ttl: ttl}
}

// Register creates a coordinator.
func (s *Service) Register(ctx context.Context, c Coordinator) (Coordinator, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	c.Department = strings.TrimSpace(c.Department)
	c.Year = strings.TrimSpace(c.Year)
	if c.Name == "" || c.Email == "" || c.PhoneNumber == "" || c.Department == "" || c.Year == "" {
		return Coordinator{}, ErrInvalidCoordinator
	}
	return s.store.CreateCoordinator(ctx, c)
}

// Login checks the shared secret and the coordinator identity, then issues a
// session.
func (s *Service) Login(ctx context.Context, email, name, secretKey string) (Coordinator, Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" || secretKey == "" {
		return Coordinator{}, Session{}, ErrInvalidCoordinator
	}
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(secretKey), []byte(s.secret)) != 1 {
		return Coordinator{}, Session{}, ErrUnauthorized
	}
	c, err := s.store.FindCoordinator(ctx, email, name)
	if err != nil {
		return Coordinator{}, Session{}, err
	}
	sess, err := Issue(c.ID, c.Email, s.issuer, s.sessionKey, s.ttl)
	if err != nil {
		return Coordinator{}, Session{}, err
	}
	return c, sess, nil
}

// TTL is the session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }
