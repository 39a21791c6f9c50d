package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Session marks a token as live until ExpiresAt.
type Session struct {
	ID        string
	Username  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionRepository is the storage side of the session registry.
// Every method is a single atomic statement against the backing store.
type SessionRepository interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Insert(ctx context.Context, s Session) error
	FindLive(ctx context.Context, token string, now time.Time) (*Session, error)
	DeleteByToken(ctx context.Context, token string) error
	Count(ctx context.Context) (int, error)
}

type PgSessionRepository struct {
	db DBTX
}

func NewPgSessionRepository(db DBTX) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

func (r *PgSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM sessions WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *PgSessionRepository) Insert(ctx context.Context, s Session) error {
	// Two logins of one user within the same millisecond mint the same token; the later row wins.
	const q = `INSERT INTO sessions (id, username, token, expires_at, created_at) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (token) DO UPDATE SET expires_at = EXCLUDED.expires_at`
	if _, err := r.db.ExecContext(ctx, q, s.ID, s.Username, s.Token, s.ExpiresAt, s.CreatedAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PgSessionRepository) FindLive(ctx context.Context, token string, now time.Time) (*Session, error) {
	const q = `SELECT id, username, token, expires_at, created_at FROM sessions WHERE token=$1 AND expires_at > $2`
	var s Session
	err := r.db.QueryRowContext(ctx, q, token, now).Scan(&s.ID, &s.Username, &s.Token, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

func (r *PgSessionRepository) DeleteByToken(ctx context.Context, token string) error {
	const q = `DELETE FROM sessions WHERE token=$1`
	if _, err := r.db.ExecContext(ctx, q, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *PgSessionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// MemorySessionRepository guards every operation with one mutex.
type MemorySessionRepository struct {
	mu      sync.Mutex
	byToken map[string]Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{byToken: make(map[string]Session)}
}

func (r *MemorySessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.byToken {
		if !s.ExpiresAt.After(now) {
			delete(r.byToken, token)
			n++
		}
	}
	return n, nil
}

func (r *MemorySessionRepository) Insert(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[s.Token] = s
	return nil
}

func (r *MemorySessionRepository) FindLive(_ context.Context, token string, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemorySessionRepository) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}

func (r *MemorySessionRepository) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken), nil
}
