package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"markme/internal/domain"

	"github.com/lib/pq"
)

const userColumns = "id, name, email, password_hash, role, timezone, working_hours, created_at"

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Timezone, &u.WorkingHours, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// uniqueViolation reports whether err is a PostgreSQL unique_violation.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetByEmail retrieves a user by email, case-insensitively.
func (d *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get user by email", err)
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get user", err)
	}
	return u, nil
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, timezone, working_hours, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+userColumns,
		nu.Name, nu.Email, nu.PasswordHash, string(nu.Role), nu.Timezone, nu.WorkingHours, time.Now().UTC(),
	))
	if uniqueViolation(err) {
		return nil, fmt.Errorf("%w: email %q already registered", domain.ErrInvalidInput, nu.Email)
	}
	if err != nil {
		return nil, persistErr("create user", err)
	}
	return u, nil
}

// Update applies non-nil fields of upd.
func (d *DB) Update(ctx context.Context, id int64, upd domain.UserUpdate) (*domain.User, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.Role != nil {
		add("role", string(*upd.Role))
	}
	if upd.WorkingHours != nil {
		add("working_hours", *upd.WorkingHours)
	}
	if len(sets) == 0 {
		u, err := d.GetByID(ctx, id)
		if err == nil && u == nil {
			return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return u, err
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(d.sql.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if uniqueViolation(err) {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, persistErr("update user", err)
	}
	return u, nil
}

// Delete removes a user; attendance and logins cascade.
func (d *DB) Delete(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return persistErr("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns all users ordered by ID.
func (d *DB) List(ctx context.Context) ([]domain.User, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, persistErr("list users", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, persistErr("scan user", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list users", err)
	}
	return out, nil
}

// Count returns the total number of users.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, persistErr("count users", err)
	}
	return count, nil
}

// UpdateTimezone stores the user's last known timezone.
func (d *DB) UpdateTimezone(ctx context.Context, id int64, tz string) error {
	res, err := d.sql.ExecContext(ctx, "UPDATE users SET timezone = $1 WHERE id = $2", tz, id)
	if err != nil {
		return persistErr("update timezone", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AuthSessionRepo implements login session repository operations on DB.
type AuthSessionRepo struct {
	db *DB
}

// NewAuthSessionRepo wraps a DB as an AuthSessionRepository.
func NewAuthSessionRepo(db *DB) *AuthSessionRepo {
	return &AuthSessionRepo{db: db}
}

// Create creates a new login session.
func (r *AuthSessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO auth_sessions (user_id, token, user_agent, ip, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		userID, token, userAgent, ip, expiresAt, time.Now(),
	)
	if err != nil {
		return persistErr("create auth session", err)
	}
	return nil
}

// GetByToken retrieves an unexpired login session by token.
func (r *AuthSessionRepo) GetByToken(ctx context.Context, token string) (*domain.AuthSession, error) {
	var s domain.AuthSession
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, ip, expires_at, created_at FROM auth_sessions WHERE token = $1 AND expires_at > now()",
		token,
	).Scan(&s.Token, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auth session: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get auth session", err)
	}
	return &s, nil
}

// Delete deletes a login session by token.
func (r *AuthSessionRepo) Delete(ctx context.Context, token string) error {
	if _, err := r.db.sql.ExecContext(ctx, "DELETE FROM auth_sessions WHERE token = $1", token); err != nil {
		return persistErr("delete auth session", err)
	}
	return nil
}

// DeleteExpired deletes all expired login sessions.
func (r *AuthSessionRepo) DeleteExpired(ctx context.Context) error {
	if _, err := r.db.sql.ExecContext(ctx, "DELETE FROM auth_sessions WHERE expires_at < $1", time.Now()); err != nil {
		return persistErr("delete expired auth sessions", err)
	}
	return nil
}
