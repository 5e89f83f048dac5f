// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"markme/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionNotFound indicates that the requested login session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the login session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// SessionTTL is how long a login token stays valid.
const SessionTTL = 24 * time.Hour

// AuthService handles authentication and login sessions.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.AuthSessionRepository
	now      func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.AuthSessionRepository) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		now:      time.Now,
	}
}

// Login authenticates a user by email and password and creates a login session.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ip string) (string, *domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil || user == nil || user.PasswordHash == "" {
		return "", nil, ErrInvalidCredentials
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.startSession(ctx, user.ID, userAgent, ip)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout invalidates a login session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ValidateSession checks that a token is live and was issued to the same user agent.
func (s *AuthService) ValidateSession(ctx context.Context, token, userAgent string) (*domain.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if s.now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	if session.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ValidateForwardAuth resolves the Remote-User header set by a trusted
// reverse proxy. Only existing users are accepted.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, remoteUser string) (*domain.User, error) {
	if remoteUser == "" {
		return nil, errors.New("no remote user header")
	}
	user, err := s.users.GetByEmail(ctx, remoteUser)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// LoginWithUser creates a login session for a user already authenticated
// elsewhere (e.g. via SSO). Employees are provisioned by admins, so unknown
// emails are rejected.
func (s *AuthService) LoginWithUser(ctx context.Context, email, userAgent, ip string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return s.startSession(ctx, user.ID, userAgent, ip)
}

// EnsureAdmin creates an admin account when no users exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := validateEmail(email); err != nil {
		return false, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}
	if _, err := s.users.Create(ctx, domain.NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		WorkingHours: "09:00",
	}); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

func (s *AuthService) startSession(ctx context.Context, userID int64, userAgent, ip string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(ctx, userID, token, userAgent, ip, s.now().Add(SessionTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
