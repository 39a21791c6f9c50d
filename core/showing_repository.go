package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Showing is a scheduled visit of a property.
type Showing struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"objectId"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

var (
	showingDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	showingTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

func (s *Showing) Normalize() {
	s.Date = strings.TrimSpace(s.Date)
	s.Time = strings.TrimSpace(s.Time)
}

func (s *Showing) Validate() error {
	if !showingDatePattern.MatchString(s.Date) {
		return errors.New("date must be YYYY-MM-DD")
	}
	if !showingTimePattern.MatchString(s.Time) {
		return errors.New("time must be HH:MM")
	}
	return nil
}

type ShowingRepository interface {
	ListAll(ctx context.Context) ([]Showing, error)
	ListByProperty(ctx context.Context, propertyID string) ([]Showing, error)
	Get(ctx context.Context, propertyID, id string) (*Showing, error)
	Create(ctx context.Context, s Showing) (*Showing, error)
	Update(ctx context.Context, s Showing) (*Showing, error)
	Delete(ctx context.Context, propertyID, id string) error
}

type PgShowingRepository struct {
	db DBTX
}

func NewPgShowingRepository(db DBTX) *PgShowingRepository {
	return &PgShowingRepository{db: db}
}

const showingColumns = `id, property_id, date, time, notes, created_at`

func scanShowing(row rowScanner) (*Showing, error) {
	var s Showing
	if err := row.Scan(&s.ID, &s.PropertyID, &s.Date, &s.Time, &s.Notes, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgShowingRepository) list(ctx context.Context, q string, args ...any) ([]Showing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list showings: %w", err)
	}
	defer rows.Close()
	items := []Showing{}
	for rows.Next() {
		s, err := scanShowing(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func (r *PgShowingRepository) ListAll(ctx context.Context) ([]Showing, error) {
	return r.list(ctx, `SELECT `+showingColumns+` FROM showings ORDER BY date, time, id`)
}

func (r *PgShowingRepository) ListByProperty(ctx context.Context, propertyID string) ([]Showing, error) {
	return r.list(ctx, `SELECT `+showingColumns+` FROM showings WHERE property_id=$1 ORDER BY date, time, id`, propertyID)
}

func (r *PgShowingRepository) Get(ctx context.Context, propertyID, id string) (*Showing, error) {
	s, err := scanShowing(r.db.QueryRowContext(ctx, `SELECT `+showingColumns+` FROM showings WHERE property_id=$1 AND id=$2`, propertyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get showing: %w", err)
	}
	return s, nil
}

func (r *PgShowingRepository) Create(ctx context.Context, s Showing) (*Showing, error) {
	const q = `INSERT INTO showings (id, property_id, date, time, notes) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`
	if err := r.db.QueryRowContext(ctx, q, s.ID, s.PropertyID, s.Date, s.Time, s.Notes).Scan(&s.CreatedAt); err != nil {
		return nil, fmt.Errorf("create showing: %w", err)
	}
	return &s, nil
}

func (r *PgShowingRepository) Update(ctx context.Context, s Showing) (*Showing, error) {
	const q = `UPDATE showings SET date=$3, time=$4, notes=$5 WHERE property_id=$1 AND id=$2 RETURNING created_at`
	err := r.db.QueryRowContext(ctx, q, s.PropertyID, s.ID, s.Date, s.Time, s.Notes).Scan(&s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update showing: %w", err)
	}
	return &s, nil
}

func (r *PgShowingRepository) Delete(ctx context.Context, propertyID, id string) error {
	return execAffectingOne(ctx, r.db, `DELETE FROM showings WHERE property_id=$1 AND id=$2`, propertyID, id)
}

type MemoryShowingRepository struct {
	mu    sync.RWMutex
	items map[string]Showing
	now   func() time.Time
}

func NewMemoryShowingRepository() *MemoryShowingRepository {
	return &MemoryShowingRepository{items: make(map[string]Showing), now: time.Now}
}

func (r *MemoryShowingRepository) filter(keep func(Showing) bool) []Showing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := []Showing{}
	for _, s := range r.items {
		if keep(s) {
			items = append(items, s)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
	return items
}

func (r *MemoryShowingRepository) ListAll(context.Context) ([]Showing, error) {
	return r.filter(func(Showing) bool { return true }), nil
}

func (r *MemoryShowingRepository) ListByProperty(_ context.Context, propertyID string) ([]Showing, error) {
	return r.filter(func(s Showing) bool { return s.PropertyID == propertyID }), nil
}

func (r *MemoryShowingRepository) Get(_ context.Context, propertyID, id string) (*Showing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok || s.PropertyID != propertyID {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryShowingRepository) Create(_ context.Context, s Showing) (*Showing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.CreatedAt = r.now()
	r.items[s.ID] = s
	return &s, nil
}

func (r *MemoryShowingRepository) Update(_ context.Context, s Showing) (*Showing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[s.ID]
	if !ok || cur.PropertyID != s.PropertyID {
		return nil, ErrNotFound
	}
	s.CreatedAt = cur.CreatedAt
	r.items[s.ID] = s
	return &s, nil
}

func (r *MemoryShowingRepository) Delete(_ context.Context, propertyID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok || s.PropertyID != propertyID {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryShowingRepository) deleteByProperty(propertyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.items {
		if s.PropertyID == propertyID {
			delete(r.items, id)
		}
	}
}

func (r *MemoryShowingRepository) deleteAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]Showing)
}
