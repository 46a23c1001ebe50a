package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultHTTPTimeout is the timeout for GitHub Packages API requests.
const DefaultHTTPTimeout = 30 * time.Second

// ProviderKind identifies how a registry authenticates and is inspected.
type ProviderKind string

const (
	// ProviderGHCR is the first-party registry, ghcr.io.
	ProviderGHCR ProviderKind = "ghcr"
	// ProviderDockerHub is Docker Hub, reachable as docker.io or index.docker.io.
	ProviderDockerHub ProviderKind = "dockerhub"
	// ProviderECR is AWS Elastic Container Registry (*.amazonaws.com).
	ProviderECR ProviderKind = "ecr"
	// ProviderGeneric is any other Docker-compatible registry.
	ProviderGeneric ProviderKind = "generic"
)

// Sentinel errors for credential and authentication problems.
var (
	ErrAuth            = errors.New("registry authentication failed")
	ErrMissingUsername = errors.New("registry username is required")
	ErrMissingToken    = errors.New("registry token is required")
)

// AuthError describes a failed login against an endpoint.
type AuthError struct {
	Endpoint string
	Provider ProviderKind
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login to %s (%s) failed: %v", e.Endpoint, e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAuth) match any AuthError.
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// Credentials are the user-supplied identity for token based providers.
type Credentials struct {
	Username string
	Token    string
}

// Provider implements login, logout and presence checks for one kind of
// registry.
type Provider interface {
	Kind() ProviderKind

	// Login stores credentials in the engine for endpoint.
	Login(ctx context.Context, endpoint string, creds Credentials) error

	// Logout removes stored credentials for endpoint.
	Logout(ctx context.Context, endpoint string) error

	// Exists reports whether the registry serves a manifest for ref.
	// Every lookup error collapses to false.
	Exists(ctx context.Context, ref string) bool

	// RequiresCredentials reports whether Login needs a username and token.
	RequiresCredentials() bool
}

// ValidateCredentials checks that both username and token are set. It runs
// before any network call.
func ValidateCredentials(username, token string) error {
	if username == "" {
		return ErrMissingUsername
	}
	if token == "" {
		return ErrMissingToken
	}
	return nil
}
