package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Action kinds written to the audit log.
const (
	ActionLoggedIn        = "logged in"
	ActionLoggedOut       = "logged out"
	ActionCreatedClient   = "created client"
	ActionUpdatedClient   = "updated client"
	ActionDeletedClient   = "deleted client"
	ActionCreatedProperty = "created object"
	ActionUpdatedProperty = "updated object"
	ActionDeletedProperty = "deleted object"
	ActionCreatedShowing  = "created showing"
	ActionUpdatedShowing  = "updated showing"
	ActionDeletedShowing  = "deleted showing"
	ActionUpdatedProfile  = "updated profile"
	ActionRequestedReport = "requested report"
	ActionClearedDatabase = "cleared database"
)

// UnknownOrigin is recorded when no forwarding header names the caller.
const UnknownOrigin = "Unknown"

// AuditLog is the append-only ledger of administrative actions.
type AuditLog struct {
	repo    AuditRepository
	now     func() time.Time
	log     logrus.FieldLogger
	metrics *Instruments
}

func NewAuditLog(repo AuditRepository, log logrus.FieldLogger, metrics *Instruments) *AuditLog {
	return &AuditLog{repo: repo, now: time.Now, log: log, metrics: metrics}
}

// Append stores an entry verbatim. The actor is not checked against the credential store.
func (a *AuditLog) Append(ctx context.Context, actor, action, detail, origin string) (*AuditEntry, error) {
	if origin == "" {
		origin = UnknownOrigin
	}
	e := AuditEntry{
		ID:            NewRecordID(),
		ActorUsername: actor,
		Action:        action,
		Detail:        detail,
		OriginAddress: origin,
		Timestamp:     a.now(),
	}
	if err := a.repo.Insert(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Record appends after a mutation has committed. Failures are logged and counted, never returned:
// the mutation stays in place either way.
func (a *AuditLog) Record(ctx context.Context, actor, action, detail, origin string) {
	if _, err := a.Append(ctx, actor, action, detail, origin); err != nil {
		a.metrics.auditFailure()
		a.log.WithError(err).WithFields(logrus.Fields{
			"actor":  actor,
			"action": action,
			"detail": detail,
		}).Error("audit append failed")
	}
}

// Query returns entries newest first, optionally only those of actor.
func (a *AuditLog) Query(ctx context.Context, actor string) ([]AuditEntry, error) {
	return a.repo.List(ctx, actor)
}

// ListDistinctActors returns every actor that has at least one entry.
func (a *AuditLog) ListDistinctActors(ctx context.Context) ([]string, error) {
	return a.repo.DistinctActors(ctx)
}

// OriginAddress picks the caller address from X-Forwarded-For (first entry), X-Real-IP,
// then CF-Connecting-IP.
func OriginAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
		return v
	}
	return UnknownOrigin
}

func clientDetail(c *Client) string {
	return fmt.Sprintf("Client %s - %s", c.Name, c.Phone)
}

func propertyDetail(p *Property) string {
	return fmt.Sprintf("Object %s - %s", p.ID, p.Address)
}

func showingDetail(s *Showing) string {
	return fmt.Sprintf("Showing %s for object %s on %s %s", s.ID, s.PropertyID, s.Date, s.Time)
}
