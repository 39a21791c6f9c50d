package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Property is a listed real-estate object.
type Property struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Price        float64   `json:"price"`
	Area         float64   `json:"area"`
	Rooms        *int      `json:"rooms,omitempty"`
	Floor        *int      `json:"floor,omitempty"`
	TotalFloors  *int      `json:"totalFloors,omitempty"`
	Owner        string    `json:"owner,omitempty"`
	OwnerPhone   string    `json:"ownerPhone,omitempty"`
	Description  string    `json:"description,omitempty"`
	Inventory    string    `json:"inventory,omitempty"`
	HasFurniture bool      `json:"hasFurniture"`
	Photos       []string  `json:"photos"`
	Notes        string    `json:"notes,omitempty"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Normalize trims free text and fills defaults for optional enums.
func (p *Property) Normalize() {
	p.Address = strings.TrimSpace(p.Address)
	if p.Type == "" {
		p.Type = "apartment"
	}
	if p.Status == "" {
		p.Status = "available"
	}
	if p.Photos == nil {
		p.Photos = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
}

// Validate checks required fields and enums.
func (p *Property) Validate() error {
	if p.ID == "" || strings.ContainsAny(p.ID, "/?# \t") {
		return errors.New("id must be non-empty and must not contain slashes or spaces")
	}
	if p.Address == "" {
		return errors.New("address is required")
	}
	switch p.Type {
	case "apartment", "house":
	default:
		return fmt.Errorf("unknown property type %q", p.Type)
	}
	switch p.Status {
	case "available", "reserved", "sold":
	default:
		return fmt.Errorf("unknown property status %q", p.Status)
	}
	if p.Price < 0 || p.Area < 0 {
		return errors.New("price and area must not be negative")
	}
	return nil
}

type PropertyRepository interface {
	List(ctx context.Context) ([]Property, error)
	Get(ctx context.Context, id string) (*Property, error)
	Create(ctx context.Context, p Property) (*Property, error)
	Update(ctx context.Context, p Property) (*Property, error)
	Delete(ctx context.Context, id string) error
	// ListOwnedBy returns properties whose owner field names the client by id or by name.
	ListOwnedBy(ctx context.Context, clientID, clientName string) ([]Property, error)
}

type PgPropertyRepository struct {
	db DBTX
}

func NewPgPropertyRepository(db DBTX) *PgPropertyRepository {
	return &PgPropertyRepository{db: db}
}

const propertyColumns = `id, address, type, status, price, area, rooms, floor, total_floors, owner, owner_phone,
  description, inventory, has_furniture, photos, notes, tags, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*Property, error) {
	var (
		p                         Property
		rooms, floor, totalFloors sql.NullInt64
		photos, tags              []byte
	)
	if err := row.Scan(&p.ID, &p.Address, &p.Type, &p.Status, &p.Price, &p.Area, &rooms, &floor, &totalFloors,
		&p.Owner, &p.OwnerPhone, &p.Description, &p.Inventory, &p.HasFurniture, &photos, &p.Notes, &tags, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Rooms = intPtrFromNull(rooms)
	p.Floor = intPtrFromNull(floor)
	p.TotalFloors = intPtrFromNull(totalFloors)
	if err := json.Unmarshal(photos, &p.Photos); err != nil {
		return nil, fmt.Errorf("decode photos: %w", err)
	}
	if err := json.Unmarshal(tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	p.Normalize()
	return &p, nil
}

func (r *PgPropertyRepository) List(ctx context.Context) ([]Property, error) {
	return r.list(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY created_at DESC, id`)
}

func (r *PgPropertyRepository) ListOwnedBy(ctx context.Context, clientID, clientName string) ([]Property, error) {
	return r.list(ctx, `SELECT `+propertyColumns+` FROM properties WHERE owner IN ($1, $2) ORDER BY created_at DESC, id`,
		clientID, clientName)
}

func (r *PgPropertyRepository) list(ctx context.Context, q string, args ...any) ([]Property, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()
	items := []Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (r *PgPropertyRepository) Get(ctx context.Context, id string) (*Property, error) {
	p, err := scanProperty(r.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}

func (r *PgPropertyRepository) Create(ctx context.Context, p Property) (*Property, error) {
	photos, tags, err := encodeLists(p.Photos, p.Tags)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO properties (id, address, type, status, price, area, rooms, floor, total_floors, owner, owner_phone,
  description, inventory, has_furniture, photos, notes, tags)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
RETURNING created_at`
	if err := r.db.QueryRowContext(ctx, q, p.ID, p.Address, p.Type, p.Status, p.Price, p.Area,
		nullFromIntPtr(p.Rooms), nullFromIntPtr(p.Floor), nullFromIntPtr(p.TotalFloors), p.Owner, p.OwnerPhone,
		p.Description, p.Inventory, p.HasFurniture, photos, p.Notes, tags).Scan(&p.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create property: %w", err)
	}
	return &p, nil
}

func (r *PgPropertyRepository) Update(ctx context.Context, p Property) (*Property, error) {
	photos, tags, err := encodeLists(p.Photos, p.Tags)
	if err != nil {
		return nil, err
	}
	const q = `
UPDATE properties SET address=$2, type=$3, status=$4, price=$5, area=$6, rooms=$7, floor=$8, total_floors=$9,
  owner=$10, owner_phone=$11, description=$12, inventory=$13, has_furniture=$14, photos=$15, notes=$16, tags=$17
WHERE id=$1
RETURNING created_at`
	err = r.db.QueryRowContext(ctx, q, p.ID, p.Address, p.Type, p.Status, p.Price, p.Area,
		nullFromIntPtr(p.Rooms), nullFromIntPtr(p.Floor), nullFromIntPtr(p.TotalFloors), p.Owner, p.OwnerPhone,
		p.Description, p.Inventory, p.HasFurniture, photos, p.Notes, tags).Scan(&p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update property: %w", err)
	}
	return &p, nil
}

// Delete removes the property; its showings go with it (ON DELETE CASCADE).
func (r *PgPropertyRepository) Delete(ctx context.Context, id string) error {
	return execAffectingOne(ctx, r.db, `DELETE FROM properties WHERE id=$1`, id)
}

func encodeLists(photos, tags []string) ([]byte, []byte, error) {
	if photos == nil {
		photos = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	pb, err := json.Marshal(photos)
	if err != nil {
		return nil, nil, err
	}
	tb, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, err
	}
	return pb, tb, nil
}

// clone copies the slices and optional numbers so callers never share storage with the store.
func (p Property) clone() Property {
	p.Rooms = cloneInt(p.Rooms)
	p.Floor = cloneInt(p.Floor)
	p.TotalFloors = cloneInt(p.TotalFloors)
	p.Photos = slices.Clone(p.Photos)
	p.Tags = slices.Clone(p.Tags)
	return p
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func intPtrFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullFromIntPtr(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// execAffectingOne maps "no row affected" to ErrNotFound.
func execAffectingOne(ctx context.Context, db DBTX, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryPropertyRepository cascades deletes into the linked showing repository.
type MemoryPropertyRepository struct {
	mu       sync.RWMutex
	items    map[string]Property
	showings *MemoryShowingRepository
	now      func() time.Time
}

func NewMemoryPropertyRepository(showings *MemoryShowingRepository) *MemoryPropertyRepository {
	return &MemoryPropertyRepository{items: make(map[string]Property), showings: showings, now: time.Now}
}

func (r *MemoryPropertyRepository) List(context.Context) ([]Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter(func(Property) bool { return true }), nil
}

func (r *MemoryPropertyRepository) ListOwnedBy(_ context.Context, clientID, clientName string) ([]Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter(func(p Property) bool { return p.Owner == clientID || p.Owner == clientName }), nil
}

// filter must be called with the lock held.
func (r *MemoryPropertyRepository) filter(keep func(Property) bool) []Property {
	items := []Property{}
	for _, p := range r.items {
		if keep(p) {
			items = append(items, p.clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (r *MemoryPropertyRepository) Get(_ context.Context, id string) (*Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = p.clone()
	return &p, nil
}

func (r *MemoryPropertyRepository) Create(_ context.Context, p Property) (*Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; ok {
		return nil, ErrAlreadyExists
	}
	p.CreatedAt = r.now()
	r.items[p.ID] = p.clone()
	return &p, nil
}

func (r *MemoryPropertyRepository) Update(_ context.Context, p Property) (*Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	r.items[p.ID] = p.clone()
	return &p, nil
}

func (r *MemoryPropertyRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	if r.showings != nil {
		r.showings.deleteByProperty(id)
	}
	return nil
}

func (r *MemoryPropertyRepository) deleteAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]Property)
}
