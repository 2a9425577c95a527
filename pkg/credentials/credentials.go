// Package credentials supplies the opaque bearer token used to authorize
// the realtime connection. Secure storage is out of scope; tokens come from
// the environment or are injected directly.
package credentials

import (
	"errors"
	"os"
	"strings"
)

// ErrNoCredential indicates no token could be found.
var ErrNoCredential = errors.New("credentials: no API key found")

// Provider returns an opaque bearer token string.
type Provider interface {
	Token() (string, error)
}

// Env reads the token from an environment variable on every call, so a key
// exported after startup is picked up without a restart.
type Env struct {
	// Var is the environment variable name. Defaults to OPENAI_API_KEY.
	Var string
}

// Token implements Provider.
func (e Env) Token() (string, error) {
	name := e.Var
	if name == "" {
		name = "OPENAI_API_KEY"
	}
	token := strings.TrimSpace(os.Getenv(name))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Static is a fixed token, used for tests and direct injection.
type Static string

// Token implements Provider.
func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}
