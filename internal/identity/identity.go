package identity

import (
	"context"
	"errors"
)

// ErrUnauthorized marks a bad, missing or expired credential.
var ErrUnauthorized = errors.New("unauthorized")

// User is the identity resolved from a verified credential.
type User struct {
	ID       int64
	Username string
}

// Verifier is the boundary to the external identity system. Credential
// issuance and rotation happen entirely outside this service.
type Verifier interface {
	VerifyCredential(ctx context.Context, token string) (User, error)
}
