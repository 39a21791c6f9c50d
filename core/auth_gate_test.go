package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateFixture struct {
	gate     *AuthGate
	codec    *TokenCodec
	sessions *SessionRegistry
	creds    *CredentialStore
	metrics  *Instruments
}

func newGateFixture(t *testing.T) gateFixture {
	t.Helper()
	creds, _ := newTestCredentialStore(t)
	require.NoError(t, creds.Provision(context.Background(), "admin", "admin123", "Адміністратор", "admin@liana.ua", RoleAdmin))
	codec := NewTokenCodec("gate-secret")
	sessions := NewSessionRegistry(NewMemorySessionRepository())
	metrics := NewInstruments()
	return gateFixture{
		gate:     NewAuthGate(codec, sessions, creds, metrics),
		codec:    codec,
		sessions: sessions,
		creds:    creds,
		metrics:  metrics,
	}
}

func (f gateFixture) login(t *testing.T, username string) string {
	t.Helper()
	token, err := f.codec.Issue(username)
	require.NoError(t, err)
	_, err = f.sessions.Create(context.Background(), username, token)
	require.NoError(t, err)
	return token
}

func TestExtractTokenOrder(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	tok, src := ExtractToken(r)
	assert.Empty(t, tok)
	assert.Empty(t, src)

	r.Header.Set("Authorization", "Bearer from-header")
	tok, src = ExtractToken(r)
	assert.Equal(t, "from-header", tok)
	assert.Equal(t, TokenFromHeader, src)

	r.AddCookie(&http.Cookie{Name: LegacySessionCookieName, Value: "from-legacy"})
	tok, src = ExtractToken(r)
	assert.Equal(t, "from-legacy", tok)
	assert.Equal(t, TokenFromLegacyCookie, src)

	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-primary"})
	tok, src = ExtractToken(r)
	assert.Equal(t, "from-primary", tok)
	assert.Equal(t, TokenFromCookie, src)
}

func TestExtractTokenIgnoresEmptyAndNonBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: ""})
	r.Header.Set("Authorization", "Basic YWRtaW46YWRtaW4=")
	tok, _ := ExtractToken(r)
	assert.Empty(t, tok)

	r.Header.Set("Authorization", "bearer lower")
	tok, src := ExtractToken(r)
	assert.Equal(t, "lower", tok)
	assert.Equal(t, TokenFromHeader, src)
}

func TestAuthGateAuthenticated(t *testing.T) {
	f := newGateFixture(t)
	token := f.login(t, "admin")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	res, err := f.gate.Authenticate(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, res.Authenticated)
	assert.Equal(t, Identity{Username: "admin", FullName: "Адміністратор", Role: RoleAdmin}, res.Identity)
	assert.Equal(t, TokenFromCookie, res.Source)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthDecisions.WithLabelValues("authenticated")))
}

func TestAuthGateReasons(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	res, err := f.gate.AuthenticateToken(ctx, "")
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
	assert.Equal(t, ReasonMissing, res.Reason)

	res, err = f.gate.AuthenticateToken(ctx, "garbage")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidOrExpired, res.Reason)

	// Valid signature, but no session row.
	orphan, err := f.codec.Issue("admin")
	require.NoError(t, err)
	res, err = f.gate.AuthenticateToken(ctx, orphan)
	require.NoError(t, err)
	assert.Equal(t, ReasonMissing, res.Reason)

	// Live session for a user that does not exist.
	ghost := f.login(t, "ghost")
	res, err = f.gate.AuthenticateToken(ctx, ghost)
	require.NoError(t, err)
	assert.Equal(t, ReasonUserNotFound, res.Reason)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AuthDecisions.WithLabelValues(ReasonMissing)))
}

func TestAuthGateRevokedSessionIsRejected(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	token := f.login(t, "admin")

	require.NoError(t, f.sessions.Revoke(ctx, token))
	res, err := f.gate.AuthenticateToken(ctx, token)
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
	assert.Equal(t, ReasonMissing, res.Reason)
}

func TestAuthGateExpiredTokenWithLiveSession(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	issued := time.Now().Add(-25 * time.Hour)
	old := NewTokenCodec("gate-secret").WithClock(fixedClock(issued))
	token, err := old.Issue("admin")
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, "admin", token)
	require.NoError(t, err)

	res, err := f.gate.AuthenticateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidOrExpired, res.Reason)
}

type brokenSessionRepository struct {
	SessionRepository
}

func (brokenSessionRepository) FindLive(context.Context, string, time.Time) (*Session, error) {
	return nil, errors.New("connection refused")
}

func TestAuthGateStorageFailureIsAnError(t *testing.T) {
	f := newGateFixture(t)
	token, err := f.codec.Issue("admin")
	require.NoError(t, err)

	gate := NewAuthGate(f.codec, NewSessionRegistry(brokenSessionRepository{}), f.creds, nil)
	res, err := gate.AuthenticateToken(context.Background(), token)
	require.Error(t, err)
	assert.False(t, res.Authenticated)
}
