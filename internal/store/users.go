package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts u. A taken email returns ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("create user %s: %w", u.Email, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByID looks up a user by id.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.queryUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

// UserByEmail looks up a user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (s *Store) queryUser(ctx context.Context, q string, arg string) (*User, error) {
	var u User
	var created string
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return &u, nil
}
