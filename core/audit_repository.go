package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// AuditEntry is one immutable record of an administrative action.
type AuditEntry struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"adminUsername"`
	Action        string    `json:"action"`
	Detail        string    `json:"details"`
	OriginAddress string    `json:"ipAddress"`
	Timestamp     time.Time `json:"timestamp"`
}

// AuditRepository stores audit entries. List returns newest first; an empty actor means everyone.
type AuditRepository interface {
	Insert(ctx context.Context, e AuditEntry) error
	List(ctx context.Context, actor string) ([]AuditEntry, error)
	DistinctActors(ctx context.Context) ([]string, error)
	DeleteAll(ctx context.Context) error
}

type PgAuditRepository struct {
	db DBTX
}

func NewPgAuditRepository(db DBTX) *PgAuditRepository {
	return &PgAuditRepository{db: db}
}

func (r *PgAuditRepository) Insert(ctx context.Context, e AuditEntry) error {
	const q = `INSERT INTO audit_entries (id, actor_username, action, detail, origin_address, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.db.ExecContext(ctx, q, e.ID, e.ActorUsername, e.Action, e.Detail, e.OriginAddress, e.Timestamp); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PgAuditRepository) List(ctx context.Context, actor string) ([]AuditEntry, error) {
	const q = `
SELECT id, actor_username, action, detail, origin_address, created_at
FROM audit_entries
WHERE ($1 = '' OR actor_username = $1)
ORDER BY created_at DESC, seq DESC`
	rows, err := r.db.QueryContext(ctx, q, actor)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	items := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorUsername, &e.Action, &e.Detail, &e.OriginAddress, &e.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *PgAuditRepository) DistinctActors(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT actor_username FROM audit_entries ORDER BY actor_username`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list audit actors: %w", err)
	}
	defer rows.Close()

	actors := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (r *PgAuditRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM audit_entries`); err != nil {
		return fmt.Errorf("delete audit entries: %w", err)
	}
	return nil
}

// MemoryAuditRepository keeps entries in insertion order.
type MemoryAuditRepository struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Insert(_ context.Context, e AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryAuditRepository) List(_ context.Context, actor string) ([]AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := []AuditEntry{}
	// newest insertion first, then a stable sort keeps it as the tie-breaker
	for i := len(r.entries) - 1; i >= 0; i-- {
		if actor == "" || r.entries[i].ActorUsername == actor {
			items = append(items, r.entries[i])
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	return items, nil
}

func (r *MemoryAuditRepository) DistinctActors(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	actors := []string{}
	for _, e := range r.entries {
		if _, ok := seen[e.ActorUsername]; ok {
			continue
		}
		seen[e.ActorUsername] = struct{}{}
		actors = append(actors, e.ActorUsername)
	}
	sort.Strings(actors)
	return actors, nil
}

func (r *MemoryAuditRepository) DeleteAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	return nil
}
