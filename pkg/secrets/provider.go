// Package secrets resolves ${secret:name} references in configuration
// values, such as the access token of the policy repository.
//
// Secrets come from an ordered list of providers: environment variables
// and a directory holding one file per secret. The first provider that
// has a secret wins.
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a provider that does not hold a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns the value of the named secret, or an error wrapping
	// ErrNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}
