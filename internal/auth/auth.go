// Package auth registers accounts, checks passwords and manages login sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vynguyen175/vizion/internal/store"
)

var (
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("not logged in")
)

// Message returns the text shown to users for an auth error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "Please fill empty fields."
	case errors.Is(err, ErrEmailTaken):
		return "User with this email already exists."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrNoSession):
		return "Please log in."
	}
	return "Something went wrong. Please try again."
}

// DefaultSessionTTL is used when the service is built with a zero TTL.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Service implements account and session operations on top of the store.
type Service struct {
	store *store.Store
	log   *zap.Logger
	cost  int
	ttl   time.Duration
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost sets the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithSessionTTL sets how long a login lasts.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a Service.
func New(st *store.Store, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{store: st, log: log, cost: bcrypt.DefaultCost, ttl: DefaultSessionTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*store.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &store.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return u, nil
}

// Login checks the password and opens a session. The returned token is the
// only copy of the secret; the store keeps its hash.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	u, err := s.store.UserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Info("login rejected", zap.String("user_id", u.ID))
		return nil, "", ErrInvalidCredentials
	}
	token, err := newToken()
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	sess := &store.Session{Token: hashToken(token), UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, "", err
	}
	s.log.Info("user logged in", zap.String("user_id", u.ID))
	return u, token, nil
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	sess, err := s.store.Session(ctx, hashToken(token), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	u, err := s.store.UserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	return u, err
}

// Logout ends the session for token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, hashToken(token))
}

// PurgeExpired drops sessions past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredSessions(ctx, s.now())
}

// TTL is the lifetime of new sessions.
func (s *Service) TTL() time.Duration { return s.ttl }

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
