package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Report statuses.
const (
	ReportPending   = "pending"
	ReportRunning   = "running"
	ReportSucceeded = "succeeded"
	ReportFailed    = "failed"
)

// ErrReportNotPending is returned when a worker picks up a report someone already handled.
var ErrReportNotPending = errors.New("report not pending")

// Report is one requested HTML snapshot of the back-office data.
type Report struct {
	ID           string     `json:"id"`
	RequestedBy  string     `json:"requestedBy"`
	Status       string     `json:"status"`
	Path         string     `json:"-"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	RetryCount   int        `json:"retryCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

type ReportRepository interface {
	Create(ctx context.Context, r Report) (*Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context) ([]Report, error)
	Delete(ctx context.Context, id string) error
	AcquirePending(ctx context.Context, id string) (*Report, error)
	MarkStatus(ctx context.Context, id, status string) error
	IncrementRetry(ctx context.Context, id string) (int, error)
	SaveResult(ctx context.Context, id, status, path, errMsg string) error
}

type PgReportRepository struct {
	db DBTX
}

func NewPgReportRepository(db DBTX) *PgReportRepository {
	return &PgReportRepository{db: db}
}

const reportColumns = `id, requested_by, status, path, error_message, retry_count, created_at, finished_at`

func scanReport(row rowScanner) (*Report, error) {
	var (
		r        Report
		finished sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.RequestedBy, &r.Status, &r.Path, &r.ErrorMessage, &r.RetryCount, &r.CreatedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func (p *PgReportRepository) Create(ctx context.Context, r Report) (*Report, error) {
	const q = `INSERT INTO reports (id, requested_by, status) VALUES ($1,$2,$3) RETURNING created_at`
	if r.Status == "" {
		r.Status = ReportPending
	}
	if err := p.db.QueryRowContext(ctx, q, r.ID, r.RequestedBy, r.Status).Scan(&r.CreatedAt); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return &r, nil
}

func (p *PgReportRepository) Get(ctx context.Context, id string) (*Report, error) {
	r, err := scanReport(p.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (p *PgReportRepository) List(ctx context.Context) ([]Report, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	items := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *r)
	}
	return items, rows.Err()
}

func (p *PgReportRepository) Delete(ctx context.Context, id string) error {
	return execAffectingOne(ctx, p.db, `DELETE FROM reports WHERE id=$1`, id)
}

// AcquirePending flips pending -> running in one statement so two workers cannot both win.
func (p *PgReportRepository) AcquirePending(ctx context.Context, id string) (*Report, error) {
	const q = `UPDATE reports SET status='running' WHERE id=$1 AND status='pending' RETURNING ` + reportColumns
	r, err := scanReport(p.db.QueryRowContext(ctx, q, id))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("acquire report: %w", err)
	}
	if _, err := p.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrReportNotPending
}

func (p *PgReportRepository) MarkStatus(ctx context.Context, id, status string) error {
	return execAffectingOne(ctx, p.db, `UPDATE reports SET status=$1 WHERE id=$2`, status, id)
}

// IncrementRetry increments retry_count and returns the latest value.
func (p *PgReportRepository) IncrementRetry(ctx context.Context, id string) (int, error) {
	const q = `UPDATE reports SET retry_count = retry_count + 1 WHERE id=$1 RETURNING retry_count`
	var n int
	err := p.db.QueryRowContext(ctx, q, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment report retry: %w", err)
	}
	return n, nil
}

func (p *PgReportRepository) SaveResult(ctx context.Context, id, status, path, errMsg string) error {
	const q = `UPDATE reports SET status=$2, path=$3, error_message=$4, finished_at=NOW() WHERE id=$1`
	return execAffectingOne(ctx, p.db, q, id, status, path, errMsg)
}

type MemoryReportRepository struct {
	mu    sync.Mutex
	items map[string]Report
	now   func() time.Time
}

func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{items: make(map[string]Report), now: time.Now}
}

func (m *MemoryReportRepository) Create(_ context.Context, r Report) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Status == "" {
		r.Status = ReportPending
	}
	r.CreatedAt = m.now()
	m.items[r.ID] = r
	return &r, nil
}

func (m *MemoryReportRepository) Get(_ context.Context, id string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryReportRepository) List(context.Context) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]Report, 0, len(m.items))
	for _, r := range m.items {
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (m *MemoryReportRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryReportRepository) AcquirePending(_ context.Context, id string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != ReportPending {
		return nil, ErrReportNotPending
	}
	r.Status = ReportRunning
	m.items[id] = r
	return &r, nil
}

func (m *MemoryReportRepository) MarkStatus(_ context.Context, id, status string) error {
	return m.update(id, func(r *Report) { r.Status = status })
}

func (m *MemoryReportRepository) IncrementRetry(_ context.Context, id string) (int, error) {
	var n int
	err := m.update(id, func(r *Report) {
		r.RetryCount++
		n = r.RetryCount
	})
	return n, err
}

func (m *MemoryReportRepository) SaveResult(_ context.Context, id, status, path, errMsg string) error {
	now := m.now()
	return m.update(id, func(r *Report) {
		r.Status = status
		r.Path = path
		r.ErrorMessage = errMsg
		r.FinishedAt = &now
	})
}

func (m *MemoryReportRepository) update(id string, fn func(*Report)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	fn(&r)
	m.items[id] = r
	return nil
}
