// Package auth gates the training-session upgrade with bearer tokens.
// Validation happens once, before the WebSocket handshake; commands on
// an established session are not re-authenticated.
//
// It intentionally avoids policy decisions and storage concerns.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator checks the token a client presented on upgrade.
type Validator interface {
	Validate(token string) error
}

// StaticToken matches one shared token, trainerd's deployment model:
// one backend process, one operator token from config or env.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// BearerToken extracts the token from an Authorization: Bearer header.
// Missing or non-bearer headers yield an empty string.
func BearerToken(h http.Header) string {
	raw := strings.TrimSpace(h.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CheckRequest validates the bearer token on an upgrade request. A nil
// validator means the endpoint is open.
func CheckRequest(v Validator, r *http.Request) error {
	if v == nil {
		return nil
	}
	return v.Validate(BearerToken(r.Header))
}
