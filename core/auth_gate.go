package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	SessionCookieName       = "auth_token"
	LegacySessionCookieName = "authToken"
)

// Auth gate rejection reasons.
const (
	ReasonMissing          = "missing"
	ReasonInvalidOrExpired = "invalid-or-expired"
	ReasonUserNotFound     = "user-not-found"
)

// Token sources, in lookup order.
const (
	TokenFromCookie       = "cookie"
	TokenFromLegacyCookie = "legacy-cookie"
	TokenFromHeader       = "header"
)

// AuthResult is the gate verdict. Reason is set only when Authenticated is false.
type AuthResult struct {
	Authenticated bool
	Identity      Identity
	Reason        string
	Token         string
	Source        string
}

// ExtractToken looks at auth_token, then authToken, then "Authorization: Bearer".
// The first non-empty value wins.
func ExtractToken(r *http.Request) (token, source string) {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value, TokenFromCookie
	}
	if c, err := r.Cookie(LegacySessionCookieName); err == nil && c.Value != "" {
		return c.Value, TokenFromLegacyCookie
	}
	header := r.Header.Get("Authorization")
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		if t := strings.TrimSpace(header[len("Bearer "):]); t != "" {
			return t, TokenFromHeader
		}
	}
	return "", ""
}

// AuthGate combines token validity, session liveness and credential existence.
// It never writes; the only side effects are metrics.
type AuthGate struct {
	codec       TokenVerifier
	sessions    *SessionRegistry
	credentials *CredentialStore
	metrics     *Instruments
}

func NewAuthGate(codec TokenVerifier, sessions *SessionRegistry, credentials *CredentialStore, metrics *Instruments) *AuthGate {
	return &AuthGate{codec: codec, sessions: sessions, credentials: credentials, metrics: metrics}
}

// Authenticate resolves the request's token to an identity. Expected failures come back as an
// unauthenticated result; a non-nil error means the backing store failed.
func (g *AuthGate) Authenticate(ctx context.Context, r *http.Request) (AuthResult, error) {
	token, source := ExtractToken(r)
	res, err := g.AuthenticateToken(ctx, token)
	res.Source = source
	return res, err
}

// AuthenticateToken runs the gate on an already extracted token.
func (g *AuthGate) AuthenticateToken(ctx context.Context, token string) (AuthResult, error) {
	res := AuthResult{Token: token}
	if token == "" {
		return g.reject(res, ReasonMissing), nil
	}

	claims, err := g.codec.DecodeAndVerify(token)
	if err != nil {
		return g.reject(res, ReasonInvalidOrExpired), nil
	}

	if _, err := g.sessions.FindLive(ctx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return g.reject(res, ReasonMissing), nil
		}
		g.metrics.authDecision("error")
		return res, err
	}

	cred, err := g.credentials.FindByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return g.reject(res, ReasonUserNotFound), nil
		}
		g.metrics.authDecision("error")
		return res, err
	}

	res.Authenticated = true
	res.Identity = IdentityOf(cred)
	g.metrics.authDecision("authenticated")
	return res, nil
}

func (g *AuthGate) reject(res AuthResult, reason string) AuthResult {
	res.Authenticated = false
	res.Reason = reason
	g.metrics.authDecision(reason)
	return res
}
