package core

import (
	"context"
	"database/sql"
)

// DataWiper removes every property, client, showing and audit entry.
// Credentials, sessions and reports survive.
type DataWiper interface {
	WipeAll(ctx context.Context) error
}

// Stores bundles one backend's repositories.
type Stores struct {
	Credentials CredentialRepository
	Sessions    SessionRepository
	Audit       AuditRepository
	Properties  PropertyRepository
	Clients     ClientRepository
	Showings    ShowingRepository
	Reports     ReportRepository
	Wiper       DataWiper
}

// NewPgStores wires every repository to one PostgreSQL pool.
func NewPgStores(db *sql.DB) Stores {
	return Stores{
		Credentials: NewPgCredentialRepository(db),
		Sessions:    NewPgSessionRepository(db),
		Audit:       NewPgAuditRepository(db),
		Properties:  NewPgPropertyRepository(db),
		Clients:     NewPgClientRepository(db),
		Showings:    NewPgShowingRepository(db),
		Reports:     NewPgReportRepository(db),
		Wiper:       &pgWiper{db: db},
	}
}

// NewMemoryStores returns mutex-guarded in-process repositories for development and tests.
func NewMemoryStores() Stores {
	showings := NewMemoryShowingRepository()
	properties := NewMemoryPropertyRepository(showings)
	clients := NewMemoryClientRepository()
	audit := NewMemoryAuditRepository()
	return Stores{
		Credentials: NewMemoryCredentialRepository(),
		Sessions:    NewMemorySessionRepository(),
		Audit:       audit,
		Properties:  properties,
		Clients:     clients,
		Showings:    showings,
		Reports:     NewMemoryReportRepository(),
		Wiper:       &memoryWiper{properties: properties, clients: clients, showings: showings, audit: audit},
	}
}

type pgWiper struct {
	db *sql.DB
}

func (w *pgWiper) WipeAll(ctx context.Context) error {
	return WithTx(ctx, w.db, func(ctx context.Context, tx DBTX) error {
		for _, q := range []string{
			`DELETE FROM showings`,
			`DELETE FROM properties`,
			`DELETE FROM clients`,
			`DELETE FROM audit_entries`,
		} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

type memoryWiper struct {
	properties *MemoryPropertyRepository
	clients    *MemoryClientRepository
	showings   *MemoryShowingRepository
	audit      *MemoryAuditRepository
}

func (w *memoryWiper) WipeAll(ctx context.Context) error {
	w.showings.deleteAll()
	w.properties.deleteAll()
	w.clients.deleteAll()
	return w.audit.DeleteAll(ctx)
}
