package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Client is a buyer (or buyer and seller) the agency works with.
type Client struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	CallStatus string    `json:"callStatus"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Budget     string    `json:"budget,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (c *Client) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.CallStatus == "" {
		c.CallStatus = "not_called"
	}
	if c.Type == "" {
		c.Type = "buyer"
	}
	if c.Status == "" {
		c.Status = "active"
	}
}

func (c *Client) Validate() error {
	if c.Name == "" || c.Phone == "" {
		return errors.New("name and phone are required")
	}
	switch c.CallStatus {
	case "not_called", "reached", "not_reached":
	default:
		return fmt.Errorf("unknown call status %q", c.CallStatus)
	}
	switch c.Type {
	case "buyer", "both":
	default:
		return fmt.Errorf("unknown client type %q", c.Type)
	}
	switch c.Status {
	case "active", "inactive", "completed":
	default:
		return fmt.Errorf("unknown client status %q", c.Status)
	}
	return nil
}

type ClientRepository interface {
	List(ctx context.Context) ([]Client, error)
	Get(ctx context.Context, id string) (*Client, error)
	Create(ctx context.Context, c Client) (*Client, error)
	Update(ctx context.Context, c Client) (*Client, error)
	Delete(ctx context.Context, id string) error
}

type PgClientRepository struct {
	db DBTX
}

func NewPgClientRepository(db DBTX) *PgClientRepository {
	return &PgClientRepository{db: db}
}

const clientColumns = `id, name, phone, call_status, type, status, budget, notes, created_at`

func scanClient(row rowScanner) (*Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.CallStatus, &c.Type, &c.Status, &c.Budget, &c.Notes, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgClientRepository) List(ctx context.Context) ([]Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()
	items := []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (r *PgClientRepository) Get(ctx context.Context, id string) (*Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (r *PgClientRepository) Create(ctx context.Context, c Client) (*Client, error) {
	const q = `INSERT INTO clients (id, name, phone, call_status, type, status, budget, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`
	if err := r.db.QueryRowContext(ctx, q, c.ID, c.Name, c.Phone, c.CallStatus, c.Type, c.Status, c.Budget, c.Notes).Scan(&c.CreatedAt); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &c, nil
}

func (r *PgClientRepository) Update(ctx context.Context, c Client) (*Client, error) {
	const q = `UPDATE clients SET name=$2, phone=$3, call_status=$4, type=$5, status=$6, budget=$7, notes=$8
WHERE id=$1 RETURNING created_at`
	err := r.db.QueryRowContext(ctx, q, c.ID, c.Name, c.Phone, c.CallStatus, c.Type, c.Status, c.Budget, c.Notes).Scan(&c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return &c, nil
}

func (r *PgClientRepository) Delete(ctx context.Context, id string) error {
	return execAffectingOne(ctx, r.db, `DELETE FROM clients WHERE id=$1`, id)
}

type MemoryClientRepository struct {
	mu    sync.RWMutex
	items map[string]Client
	now   func() time.Time
}

func NewMemoryClientRepository() *MemoryClientRepository {
	return &MemoryClientRepository{items: make(map[string]Client), now: time.Now}
}

func (r *MemoryClientRepository) List(context.Context) ([]Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Client, 0, len(r.items))
	for _, c := range r.items {
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryClientRepository) Get(_ context.Context, id string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryClientRepository) Create(_ context.Context, c Client) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.CreatedAt = r.now()
	r.items[c.ID] = c
	return &c, nil
}

func (r *MemoryClientRepository) Update(_ context.Context, c Client) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[c.ID]
	if !ok {
		return nil, ErrNotFound
	}
	c.CreatedAt = cur.CreatedAt
	r.items[c.ID] = c
	return &c, nil
}

func (r *MemoryClientRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryClientRepository) deleteAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]Client)
}
