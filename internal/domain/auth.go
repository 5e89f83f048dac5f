// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// Role is the flat permission level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// User represents an employee or administrator.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Timezone     string    `json:"timezone"`
	WorkingHours string    `json:"workingHours"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user may use the admin API.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NewUser carries the fields needed to create a user.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Timezone     string
	WorkingHours string
}

// UserUpdate carries admin edits. Nil fields are left unchanged.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *Role
	WorkingHours *string
}

// AuthSession represents an active login.
type AuthSession struct {
	Token     string
	UserID    int64
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u NewUser) (*User, error)
	Update(ctx context.Context, id int64, upd UserUpdate) (*User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
	UpdateTimezone(ctx context.Context, id int64, tz string) error
}

// AuthSessionRepository defines the port for login session persistence.
type AuthSessionRepository interface {
	Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*AuthSession, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
