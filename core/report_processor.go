package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReportProcessor renders one queued report to an HTML file.
type ReportProcessor struct {
	reports    ReportRepository
	properties PropertyRepository
	clients    ClientRepository
	showings   ShowingRepository
	dir        string
	now        func() time.Time
}

func NewReportProcessor(stores *Stores, dir string) *ReportProcessor {
	return &ReportProcessor{
		reports:    stores.Reports,
		properties: stores.Properties,
		clients:    stores.Clients,
		showings:   stores.Showings,
		dir:        dir,
		now:        time.Now,
	}
}

// ReportPath is where the rendered file for id lives.
func (p *ReportProcessor) ReportPath(id string) string {
	return filepath.Join(p.dir, id+".html")
}

// Process claims the report and renders it. A non-nil error means the job should be retried,
// except ErrReportNotPending and ErrNotFound which mean there is nothing left to do.
func (p *ReportProcessor) Process(ctx context.Context, id string) error {
	r, err := p.reports.AcquirePending(ctx, id)
	if err != nil {
		return err
	}

	props, err := p.properties.List(ctx)
	if err != nil {
		return fmt.Errorf("load objects: %w", err)
	}
	clients, err := p.clients.List(ctx)
	if err != nil {
		return fmt.Errorf("load clients: %w", err)
	}
	showings, err := p.showings.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load showings: %w", err)
	}

	path, err := p.write(r.ID, NewReportData(r.RequestedBy, p.now(), props, clients, showings))
	if err != nil {
		return err
	}
	return p.reports.SaveResult(ctx, r.ID, ReportSucceeded, path, "")
}

// write renders into a temp file and renames it so readers never see a partial report.
func (p *ReportProcessor) write(id string, data ReportData) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(p.dir, id+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := RenderReport(tmp, data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("render report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := p.ReportPath(id)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	return path, nil
}

// finished reports whether a processing error leaves nothing to retry.
func finished(err error) bool {
	return errors.Is(err, ErrReportNotPending) || errors.Is(err, ErrNotFound)
}
