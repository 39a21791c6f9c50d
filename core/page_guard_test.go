package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func pageEngine(f gateFixture) *gin.Engine {
	cfg := Config{Environment: "development"}
	r := gin.New()
	r.GET("/page",
		PageGuard(f.codec, cfg),
		ConfirmPage(f.gate, cfg, quietLogger()),
		func(c *gin.Context) {
			id, _ := currentIdentity(c)
			c.String(http.StatusOK, "hello "+id.Username)
		},
	)
	return r
}

func assertClearedCookies(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	cleared := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	assert.True(t, cleared[SessionCookieName], "auth_token not cleared")
	assert.True(t, cleared[LegacySessionCookieName], "authToken not cleared")
}

func TestPageGuardRedirectsWithoutToken(t *testing.T) {
	f := newGateFixture(t)
	w := httptest.NewRecorder()
	pageEngine(f).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/page", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
	assertClearedCookies(t, w)
}

func TestPageGuardRedirectsForgedToken(t *testing.T) {
	f := newGateFixture(t)
	forged, err := NewTokenCodec("someone-else").Issue("admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: forged})
	w := httptest.NewRecorder()
	pageEngine(f).ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assertClearedCookies(t, w)
}

func TestPageGuardAcceptsGateTokens(t *testing.T) {
	f := newGateFixture(t)
	token := f.login(t, "admin")

	// The stateless guard alone accepts what the codec issued.
	guard := PageGuard(f.codec, Config{})
	r := gin.New()
	r.GET("/edge", guard, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "/edge", nil)
	req.AddCookie(&http.Cookie{Name: LegacySessionCookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w = httptest.NewRecorder()
	pageEngine(f).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello admin", w.Body.String())
}

func TestPageGuardPassesRevokedTokenToGate(t *testing.T) {
	f := newGateFixture(t)
	token := f.login(t, "admin")
	require.NoError(t, f.sessions.Revoke(context.Background(), token))

	// Signature and age are fine, so only the gate can notice the revocation.
	_, err := f.codec.DecodeAndVerify(token)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	pageEngine(f).ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assertClearedCookies(t, w)
}

func TestPageGuardRejectsExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	old := NewTokenCodec("gate-secret").WithClock(fixedClock(time.Now().Add(-48 * time.Hour)))
	token, err := old.Issue("admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	pageEngine(f).ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
}
