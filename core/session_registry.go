package core

import (
	"context"
	"time"
)

// DefaultSessionTTL matches the token age limit and the cookie Max-Age.
const DefaultSessionTTL = 24 * time.Hour

// SessionRegistry records which issued tokens are currently live.
// Expired rows are removed lazily on Create; there is no background sweeper.
type SessionRegistry struct {
	repo SessionRepository
	now  func() time.Time
	ttl  time.Duration
}

func NewSessionRegistry(repo SessionRepository) *SessionRegistry {
	return &SessionRegistry{repo: repo, now: time.Now, ttl: DefaultSessionTTL}
}

// WithClock returns a copy reading time from now.
func (r *SessionRegistry) WithClock(now func() time.Time) *SessionRegistry {
	cp := *r
	cp.now = now
	return &cp
}

// Create stores a session for token with the default TTL.
func (r *SessionRegistry) Create(ctx context.Context, username, token string) (*Session, error) {
	return r.CreateWithTTL(ctx, username, token, r.ttl)
}

// CreateWithTTL sweeps expired rows, then inserts a new session expiring at now+ttl.
// The row is committed before this returns.
func (r *SessionRegistry) CreateWithTTL(ctx context.Context, username, token string, ttl time.Duration) (*Session, error) {
	now := r.now()
	if _, err := r.repo.DeleteExpired(ctx, now); err != nil {
		return nil, err
	}
	s := Session{
		ID:        NewSessionID(),
		Username:  username,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := r.repo.Insert(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindLive returns ErrNotFound for unknown, revoked or expired tokens.
func (r *SessionRegistry) FindLive(ctx context.Context, token string) (*Session, error) {
	return r.repo.FindLive(ctx, token, r.now())
}

// Revoke deletes the session for token. Unknown tokens are not an error.
func (r *SessionRegistry) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return r.repo.DeleteByToken(ctx, token)
}

// Stored counts rows, live or not yet swept.
func (r *SessionRegistry) Stored(ctx context.Context) (int, error) {
	return r.repo.Count(ctx)
}
