package core

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// App is the explicit application context shared by the router and handlers.
type App struct {
	Config      Config
	Log         logrus.FieldLogger
	Stores      Stores
	Codec       *TokenCodec
	Credentials *CredentialStore
	Sessions    *SessionRegistry
	Gate        *AuthGate
	Audit       *AuditLog
	Queue       ReportQueue
	Monitor     *MetricsService
	Instruments *Instruments
	StartedAt   time.Time
}

// NewApp wires the auth core and the audit log on top of one storage backend.
func NewApp(cfg Config, log logrus.FieldLogger, stores Stores, redisClient *redis.Client) *App {
	metrics := NewInstruments()
	codec := NewTokenCodec(cfg.AuthSecret)
	credentials := NewCredentialStore(stores.Credentials, cfg.PasswordSalt)
	sessions := NewSessionRegistry(stores.Sessions)
	return &App{
		Config:      cfg,
		Log:         log,
		Stores:      stores,
		Codec:       codec,
		Credentials: credentials,
		Sessions:    sessions,
		Gate:        NewAuthGate(codec, sessions, credentials, metrics),
		Audit:       NewAuditLog(stores.Audit, log, metrics),
		Queue:       NewRedisQueue(redisClient),
		Monitor:     NewMetricsService(redisClient),
		Instruments: metrics,
		StartedAt:   time.Now(),
	}
}
