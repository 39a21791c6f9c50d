package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	app    *App
	engine *gin.Engine
	redis  *miniredis.Miniredis
	client *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	cfg := Config{
		Environment:  "development",
		AuthSecret:   "router-secret",
		PasswordSalt: "salt",
		SessionKey:   "0123456789abcdef0123456789abcdef",
		SeedUsers:    true,
		ReportDir:    t.TempDir(),
	}
	stores := NewMemoryStores()
	seedStore := NewCredentialStore(stores.Credentials, cfg.PasswordSalt)
	seedStore.cost = bcrypt.MinCost
	require.NoError(t, SeedCredentials(context.Background(), stores.Credentials, seedStore, cfg, quietLogger()))

	app := NewApp(cfg, quietLogger(), stores, rc)
	app.Credentials.cost = bcrypt.MinCost
	return &testEnv{app: app, engine: NewRouter(app, NewCookieStore(cfg)), redis: mr, client: rc}
}

// browser keeps cookies and the CSRF token between requests like a real client would.
type browser struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]*http.Cookie
	csrf    string
	bearer  string
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, env: e, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	if b.csrf != "" {
		req.Header.Set(csrfHeader, b.csrf)
	}
	if b.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+b.bearer)
	}
	w := httptest.NewRecorder()
	b.env.engine.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	if tok := w.Header().Get(csrfHeader); tok != "" {
		b.csrf = tok
	}
	return w
}

func (b *browser) login(username, password string) *httptest.ResponseRecorder {
	b.t.Helper()
	b.do(http.MethodGet, "/healthz", nil)
	return b.do(http.MethodPost, "/api/v1/auth/login", gin.H{"username": username, "password": password})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestLoginVerifyLogoutReplay(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	w := b.login("admin", "admin123")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "admin", body["username"])
	require.Contains(t, b.cookies, SessionCookieName)
	token := b.cookies[SessionCookieName].Value
	assert.Equal(t, token, body["token"])
	assert.True(t, b.cookies[SessionCookieName].HttpOnly)

	w = b.do(http.MethodGet, "/api/v1/auth/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	verify := decode[map[string]any](t, w)
	assert.Equal(t, "admin", verify["username"])
	assert.Equal(t, RoleAdmin, verify["role"])

	w = b.do(http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, b.cookies, SessionCookieName)

	replay := env.browser(t)
	replay.cookies[SessionCookieName] = &http.Cookie{Name: SessionCookieName, Value: token}
	w = replay.do(http.MethodGet, "/api/v1/auth/verify", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ReasonMissing, decode[map[string]any](t, w)["reason"])

	w = replay.do(http.MethodGet, "/api/v1/clients", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	entries, err := env.app.Audit.Query(context.Background(), "admin")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionLoggedOut, entries[0].Action)
	assert.Equal(t, ActionLoggedIn, entries[1].Action)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	w := b.login("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	wrongPassword := w.Body.String()

	w = b.login("nobody", "admin123")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, wrongPassword, w.Body.String())
	assert.Contains(t, wrongPassword, invalidLoginMessage)
	assert.NotContains(t, b.cookies, SessionCookieName)

	w = b.login("", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLegacyCookieIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("Elena", "12345").Code)

	legacy := env.browser(t)
	legacy.cookies[LegacySessionCookieName] = &http.Cookie{Name: LegacySessionCookieName, Value: b.cookies[SessionCookieName].Value}
	w := legacy.do(http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Elena", decode[map[string]any](t, w)["username"])
}

func TestMutationWritesAuditEntryAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)
	before, err := env.app.Audit.Query(context.Background(), "")
	require.NoError(t, err)

	w := b.do(http.MethodPost, "/api/v1/clients", gin.H{"name": "Ivan", "phone": "+380501112233"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[Client](t, w)
	assert.Equal(t, "not_called", created.CallStatus)

	w = b.do(http.MethodGet, "/api/v1/admin-actions?username=admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[struct{ Actions []AuditEntry }](t, w).Actions
	require.Len(t, entries, len(before)+1)
	assert.Equal(t, ActionCreatedClient, entries[0].Action)
	assert.Equal(t, "admin", entries[0].ActorUsername)
	assert.Equal(t, "Client Ivan - +380501112233", entries[0].Detail)
	assert.Equal(t, UnknownOrigin, entries[0].OriginAddress)

	// Invalid input never reaches the store, so nothing is logged.
	w = b.do(http.MethodPost, "/api/v1/clients", gin.H{"name": "No phone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	after, err := env.app.Audit.Query(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, after, len(entries))

	w = b.do(http.MethodGet, "/api/v1/admin-actions/usernames", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"admin"}, decode[struct{ Usernames []string }](t, w).Usernames)
}

func TestMutationSurvivesAuditFailure(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)
	env.app.Audit = NewAuditLog(&failingAuditRepository{}, quietLogger(), env.app.Instruments)

	w := b.do(http.MethodPost, "/api/v1/clients", gin.H{"name": "Petro", "phone": "380"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[Client](t, w)

	stored, err := env.app.Stores.Clients.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Petro", stored.Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.app.Instruments.AuditAppendFailures))
}

func TestCSRFRequiredForCookieAuth(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)

	token := b.csrf
	b.csrf = ""
	w := b.do(http.MethodPost, "/api/v1/clients", gin.H{"name": "A", "phone": "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	b.csrf = token
	w = b.do(http.MethodPost, "/api/v1/clients", gin.H{"name": "A", "phone": "1"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBearerRequestsSkipCSRF(t *testing.T) {
	env := newTestEnv(t)
	login := env.browser(t)
	w := login.login("admin", "admin123")
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]any](t, w)["token"].(string)

	api := env.browser(t)
	api.bearer = token
	w = api.do(http.MethodPost, "/api/v1/properties", gin.H{"address": "Kyiv, Khreshchatyk 1", "price": 120000, "area": 54.5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[Property](t, w)
	assert.Equal(t, "available", p.Status)
	assert.NotEmpty(t, p.ID)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.app.Credentials.Provision(ctx, "agent", "agentpw", "Agent", "", RoleUser))

	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("agent", "agentpw").Code)
	assert.Equal(t, http.StatusForbidden, b.do(http.MethodGet, "/api/v1/admin/queue", nil).Code)
	assert.Equal(t, http.StatusForbidden, b.do(http.MethodPost, "/api/v1/admin/clear-database", nil).Code)
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/v1/clients", nil).Code)

	admin := env.browser(t)
	require.Equal(t, http.StatusOK, admin.login("admin", "admin123").Code)
	w := admin.do(http.MethodGet, "/api/v1/admin/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/v1/admin/system/status", nil).Code)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodGet, "/api/v1/admin/workers/none", nil).Code)
}

func TestPropertyShowingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)

	w := b.do(http.MethodPost, "/api/v1/properties", gin.H{"address": "Lviv, Rynok 5", "type": "house", "price": 90000, "area": 120})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[Property](t, w)

	w = b.do(http.MethodPut, "/api/v1/properties/"+p.ID, gin.H{"status": "reserved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[Property](t, w)
	assert.Equal(t, "reserved", updated.Status)
	assert.Equal(t, "Lviv, Rynok 5", updated.Address)

	w = b.do(http.MethodPost, "/api/v1/properties/"+p.ID+"/showings", gin.H{"date": "2025-03-01", "time": "14:30"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s := decode[Showing](t, w)
	assert.Equal(t, p.ID, s.PropertyID)

	w = b.do(http.MethodPost, "/api/v1/properties/"+p.ID+"/showings", gin.H{"date": "01.03.2025", "time": "14:30"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = b.do(http.MethodPost, "/api/v1/properties/missing/showings", gin.H{"date": "2025-03-01", "time": "14:30"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = b.do(http.MethodPut, "/api/v1/properties/"+p.ID+"/showings/"+s.ID, gin.H{"notes": "bring keys"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bring keys", decode[Showing](t, w).Notes)

	require.Equal(t, http.StatusOK, b.do(http.MethodDelete, "/api/v1/properties/"+p.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodGet, "/api/v1/properties/"+p.ID, nil).Code)
	w = b.do(http.MethodGet, "/api/v1/showings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]Showing](t, w))

	entries, err := env.app.Audit.Query(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, ActionDeletedProperty, entries[0].Action)
	assert.Equal(t, "Object "+p.ID+" - Lviv, Rynok 5", entries[0].Detail)
}

func TestPropertyCallerSuppliedID(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)

	w := b.do(http.MethodPost, "/api/v1/properties", gin.H{"id": " K-101 ", "address": "Kyiv, Lesi 3", "price": 1, "area": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "K-101", decode[Property](t, w).ID)

	w = b.do(http.MethodPost, "/api/v1/properties", gin.H{"id": "K-101", "address": "Elsewhere"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = b.do(http.MethodPost, "/api/v1/properties", gin.H{"id": "a/b", "address": "Elsewhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.do(http.MethodGet, "/api/v1/properties/K-101", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Kyiv, Lesi 3", decode[Property](t, w).Address)

	entries, err := env.app.Audit.Query(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "Object K-101 - Kyiv, Lesi 3", entries[0].Detail)
}

func TestRejectedUpdateLeavesPropertyUntouched(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)

	w := b.do(http.MethodPost, "/api/v1/properties", gin.H{"id": "P1", "address": "Dnipro", "rooms": 2, "photos": []string{"a.jpg"}, "tags": []string{"new"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = b.do(http.MethodPut, "/api/v1/properties/P1", gin.H{"status": "bogus", "rooms": 9, "photos": []string{"other.jpg"}, "tags": []string{"x"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	stored, err := env.app.Stores.Properties.Get(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, stored.Photos)
	assert.Equal(t, []string{"new"}, stored.Tags)
	require.NotNil(t, stored.Rooms)
	assert.Equal(t, 2, *stored.Rooms)
	assert.Equal(t, "available", stored.Status)
}

func TestClientObjects(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)

	w := b.do(http.MethodPost, "/api/v1/clients", gin.H{"name": "Ivan Franko", "phone": "1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cl := decode[Client](t, w)

	for _, p := range []gin.H{
		{"id": "by-name", "address": "A", "owner": "Ivan Franko"},
		{"id": "by-id", "address": "B", "owner": cl.ID},
		{"id": "other", "address": "C", "owner": "Someone"},
	} {
		require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/v1/properties", p).Code)
	}

	w = b.do(http.MethodGet, "/api/v1/clients/"+cl.ID+"/objects", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ids []string
	for _, p := range decode[[]Property](t, w) {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"by-name", "by-id"}, ids)

	assert.Equal(t, http.StatusNotFound, b.do(http.MethodGet, "/api/v1/clients/missing/objects", nil).Code)
}

func TestProfileRejectsOverlongPassword(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)

	w := b.do(http.MethodPut, "/api/v1/auth/profile", gin.H{"currentPassword": "admin123", "newPassword": strings.Repeat("x", 70)})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	assert.True(t, env.app.Credentials.VerifyPassword(context.Background(), "admin", "admin123"))
}

func TestClearDatabase(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)

	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/v1/clients", gin.H{"name": "A", "phone": "1"}).Code)
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/v1/properties", gin.H{"address": "Odesa"}).Code)

	w := b.do(http.MethodPost, "/api/v1/admin/clear-database", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Empty(t, decode[[]Client](t, b.do(http.MethodGet, "/api/v1/clients", nil)))
	assert.Empty(t, decode[[]Property](t, b.do(http.MethodGet, "/api/v1/properties", nil)))
	entries := decode[struct{ Actions []AuditEntry }](t, b.do(http.MethodGet, "/api/v1/admin-actions", nil)).Actions
	require.Len(t, entries, 1)
	assert.Equal(t, ActionClearedDatabase, entries[0].Action)

	// Credentials survive the wipe.
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/v1/auth/verify", nil).Code)
}

func TestProfileRenameRotatesSession(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("Anna", "09876").Code)
	oldToken := b.cookies[SessionCookieName].Value

	w := b.do(http.MethodPut, "/api/v1/auth/profile", gin.H{"newUsername": "Hanna", "currentPassword": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = b.do(http.MethodPut, "/api/v1/auth/profile", gin.H{"newUsername": "Hanna", "currentPassword": "09876", "fullName": "Ганна"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, "Hanna", body["username"])
	assert.Equal(t, b.cookies[SessionCookieName].Value, body["token"])
	assert.NotEqual(t, oldToken, b.cookies[SessionCookieName].Value)

	w = b.do(http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ганна", decode[map[string]any](t, w)["fullName"])

	res, err := env.app.Gate.AuthenticateToken(context.Background(), oldToken)
	require.NoError(t, err)
	assert.False(t, res.Authenticated)

	assert.Equal(t, http.StatusOK, env.browser(t).login("Hanna", "09876").Code)
}

func TestReportRequestRenderAndView(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/v1/properties", gin.H{"address": "Kharkiv <Sumska> 10"}).Code)

	w := b.do(http.MethodPost, "/api/v1/reports", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	r := decode[Report](t, w)
	assert.Equal(t, ReportPending, r.Status)

	pending, err := env.redis.List(PendingReportsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, pending)

	view := "/reports/" + r.ID + "/view"
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodGet, view, nil).Code)

	worker := &ReportWorker{
		Queue:     env.app.Queue,
		Reports:   env.app.Stores.Reports,
		Processor: NewReportProcessor(&env.app.Stores, env.app.Config.ReportDir),
		Log:       quietLogger(),
	}
	ctx := context.Background()
	id, err := env.app.Queue.Reserve(ctx, DefaultVisibilityTimeout)
	require.NoError(t, err)
	worker.Handle(ctx, quietLogger(), id)

	w = b.do(http.MethodGet, "/api/v1/reports/"+r.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ReportSucceeded, decode[Report](t, w).Status)

	w = b.do(http.MethodGet, view, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Kharkiv &lt;Sumska&gt; 10")

	anon := env.browser(t)
	w = anon.do(http.MethodGet, view, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
}

type undeletableReportRepository struct {
	ReportRepository
}

func (undeletableReportRepository) Delete(context.Context, string) error {
	return errors.New("row locked")
}

func TestReportEnqueueFailureLogsCleanup(t *testing.T) {
	env := newTestEnv(t)
	var logs bytes.Buffer
	env.app.Log = NewLogger(&logs, "info")
	env.app.Stores.Reports = undeletableReportRepository{env.app.Stores.Reports}
	env.engine = NewRouter(env.app, NewCookieStore(env.app.Config))

	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.login("admin", "admin123").Code)
	env.redis.Close()

	w := b.do(http.MethodPost, "/api/v1/reports", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, logs.String(), "report enqueue failed")
	assert.Contains(t, logs.String(), "remove unqueued report failed")
	assert.Contains(t, logs.String(), "row locked")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/healthz", nil).Code)
	b.login("admin", "nope")

	w := b.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `liana_login_attempts_total{outcome="invalid"} 1`), w.Body.String())
}
