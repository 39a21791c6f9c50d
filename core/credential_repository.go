package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUsernameTaken is returned when a rename collides with an existing credential.
var ErrUsernameTaken = errors.New("username already exists")

// Credential is the stored identity of a back-office user.
type Credential struct {
	Username     string
	PasswordHash string
	FullName     string
	Email        string
	Role         string
	CreatedAt    time.Time
}

// CredentialPatch carries a partial update; nil fields stay untouched.
type CredentialPatch struct {
	Username     *string
	FullName     *string
	Email        *string
	PasswordHash *string
}

// CredentialRepository defines persistence operations for credentials.
type CredentialRepository interface {
	FindByUsername(ctx context.Context, username string) (*Credential, error)
	Create(ctx context.Context, cred Credential) error
	Update(ctx context.Context, username string, patch CredentialPatch) (*Credential, error)
	Count(ctx context.Context) (int, error)
}

// PgCredentialRepository implements CredentialRepository on PostgreSQL.
type PgCredentialRepository struct {
	db DBTX
}

func NewPgCredentialRepository(db DBTX) *PgCredentialRepository {
	return &PgCredentialRepository{db: db}
}

func (r *PgCredentialRepository) FindByUsername(ctx context.Context, username string) (*Credential, error) {
	const q = `SELECT username, password_hash, full_name, email, role, created_at FROM users WHERE username=$1`
	var c Credential
	err := r.db.QueryRowContext(ctx, q, username).Scan(&c.Username, &c.PasswordHash, &c.FullName, &c.Email, &c.Role, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &c, nil
}

func (r *PgCredentialRepository) Create(ctx context.Context, cred Credential) error {
	const q = `INSERT INTO users (username, password_hash, full_name, email, role) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.db.ExecContext(ctx, q, cred.Username, cred.PasswordHash, cred.FullName, cred.Email, cred.Role); err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

func (r *PgCredentialRepository) Update(ctx context.Context, username string, patch CredentialPatch) (*Credential, error) {
	const q = `
UPDATE users SET
  username = COALESCE($2, username),
  full_name = COALESCE($3, full_name),
  email = COALESCE($4, email),
  password_hash = COALESCE($5, password_hash),
  updated_at = NOW()
WHERE username = $1
RETURNING username, password_hash, full_name, email, role, created_at`
	var c Credential
	err := r.db.QueryRowContext(ctx, q, username,
		nullableString(patch.Username), nullableString(patch.FullName),
		nullableString(patch.Email), nullableString(patch.PasswordHash),
	).Scan(&c.Username, &c.PasswordHash, &c.FullName, &c.Email, &c.Role, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update credential: %w", err)
	}
	return &c, nil
}

func (r *PgCredentialRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}

func nullableString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// MemoryCredentialRepository keeps credentials in a map guarded by a mutex.
type MemoryCredentialRepository struct {
	mu    sync.RWMutex
	users map[string]Credential
	now   func() time.Time
}

func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{users: make(map[string]Credential), now: time.Now}
}

func (r *MemoryCredentialRepository) FindByUsername(_ context.Context, username string) (*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryCredentialRepository) Create(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[cred.Username]; ok {
		return ErrUsernameTaken
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = r.now()
	}
	r.users[cred.Username] = cred
	return nil
}

func (r *MemoryCredentialRepository) Update(_ context.Context, username string, patch CredentialPatch) (*Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Username != nil && *patch.Username != username {
		if _, taken := r.users[*patch.Username]; taken {
			return nil, ErrUsernameTaken
		}
		delete(r.users, username)
		c.Username = *patch.Username
	}
	if patch.FullName != nil {
		c.FullName = *patch.FullName
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		c.PasswordHash = *patch.PasswordHash
	}
	r.users[c.Username] = c
	return &c, nil
}

func (r *MemoryCredentialRepository) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}
