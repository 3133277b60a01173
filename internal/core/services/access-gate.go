package services

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"model-artefact-registry/internal/core/domain"
)

type Credentials struct {
	Username string
	Password string
	// PasswordHash is a bcrypt hash. When set it is used instead of
	// Password.
	PasswordHash string
}

// AccessGate is a single-user credential check. It holds no sessions and
// issues no tokens; an unconfigured gate rejects everything.
type AccessGate struct {
	creds Credentials
}

func NewAccessGate(creds Credentials) *AccessGate {
	return &AccessGate{creds: creds}
}

// Configured reports whether any request can ever pass the gate.
func (g *AccessGate) Configured() bool {
	return g.creds.Username != "" && (g.creds.Password != "" || g.creds.PasswordHash != "")
}

func (g *AccessGate) Authenticate(username, password string) error {
	if !g.Configured() {
		return domain.ErrUnauthorized
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.creds.Username)) == 1

	var passOK bool
	if g.creds.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(g.creds.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(g.creds.Password)) == 1
	}

	if !userOK || !passOK {
		return domain.ErrUnauthorized
	}
	return nil
}
