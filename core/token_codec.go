package core

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TokenMaxAge bounds how long an issued token verifies, independent of its session row.
const TokenMaxAge = 24 * time.Hour

// TokenClaims is what a verified token proves.
type TokenClaims struct {
	Username string
	IssuedAt int64 // unix milliseconds
}

// IssuedTime converts the embedded millisecond timestamp.
func (c TokenClaims) IssuedTime() time.Time {
	return time.UnixMilli(c.IssuedAt)
}

// TokenVerifier is the read side of the codec. The page guard depends only on this.
type TokenVerifier interface {
	DecodeAndVerify(token string) (TokenClaims, error)
}

// tokenPayload is the wire form. Field order is part of the format.
type tokenPayload struct {
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// TokenCodec issues and verifies base64(JSON{username,timestamp,signature}) tokens where
// signature is hex(HMAC-SHA256(secret, "username:timestamp")).
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	maxAge time.Duration
}

// NewTokenCodec builds a codec; an empty secret falls back to DefaultAuthSecret.
func NewTokenCodec(secret string) *TokenCodec {
	if secret == "" {
		secret = DefaultAuthSecret
	}
	return &TokenCodec{secret: []byte(secret), now: time.Now, maxAge: TokenMaxAge}
}

// WithClock returns a copy that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue mints a fresh token for username stamped with the current time.
func (c *TokenCodec) Issue(username string) (string, error) {
	ts := c.now().UnixMilli()
	payload := tokenPayload{
		Username:  username,
		Timestamp: ts,
		Signature: c.sign(username, ts),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	raw := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeAndVerify checks encoding, required fields, signature and age.
// Every failure is reported as ErrInvalidToken.
func (c *TokenCodec) DecodeAndVerify(token string) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return TokenClaims{}, ErrInvalidToken
	}

	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TokenClaims{}, ErrInvalidToken
	}
	if payload.Username == "" || payload.Timestamp == 0 || payload.Signature == "" {
		return TokenClaims{}, ErrInvalidToken
	}

	expected := c.sign(payload.Username, payload.Timestamp)
	if !hmac.Equal([]byte(expected), []byte(payload.Signature)) {
		return TokenClaims{}, ErrInvalidToken
	}
	if c.now().UnixMilli()-payload.Timestamp > c.maxAge.Milliseconds() {
		return TokenClaims{}, ErrInvalidToken
	}

	return TokenClaims{Username: payload.Username, IssuedAt: payload.Timestamp}, nil
}

func (c *TokenCodec) sign(username string, ts int64) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(username + ":" + strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
