package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/chis/imagesmith/internal/executor"
	"github.com/chis/imagesmith/internal/logging"
)

// ecrUsername is the fixed identity ECR expects with a get-login-password token.
const ecrUsername = "AWS"

// DefaultECRRegion is used when neither the endpoint nor configuration names a region.
const DefaultECRRegion = "us-east-1"

// <account>.dkr.ecr.<region>.amazonaws.com
var ecrHostPattern = regexp.MustCompile(`^\d+\.dkr\.ecr(?:-fips)?\.([a-z0-9-]+)\.amazonaws\.com$`)

// engineProvider holds the parts shared by every provider: logout and
// manifest probing go straight to the engine.
type engineProvider struct {
	kind   ProviderKind
	engine executor.Engine
	log    *logging.Logger
}

func (p *engineProvider) Kind() ProviderKind { return p.kind }

func (p *engineProvider) Logout(ctx context.Context, endpoint string) error {
	return p.engine.Logout(ctx, endpoint)
}

func (p *engineProvider) Exists(ctx context.Context, ref string) bool {
	if err := p.engine.InspectManifest(ctx, ref); err != nil {
		p.log.DebugContext(ctx, "Manifest check for %s failed: %v", ref, err)
		return false
	}
	return true
}

// tokenProvider pipes a user token as the password. Used for ghcr, Docker Hub
// and generic registries, always against the literal endpoint string.
type tokenProvider struct {
	engineProvider
}

func (p *tokenProvider) RequiresCredentials() bool { return true }

func (p *tokenProvider) Login(ctx context.Context, endpoint string, creds Credentials) error {
	if err := ValidateCredentials(creds.Username, creds.Token); err != nil {
		return err
	}
	if err := p.engine.Login(ctx, endpoint, creds.Username, creds.Token); err != nil {
		return &AuthError{Endpoint: endpoint, Provider: p.kind, Err: err}
	}
	return nil
}

// ecrProvider fetches a short-lived password from the AWS CLI and logs in as
// the fixed AWS identity. User credentials are ignored.
type ecrProvider struct {
	engineProvider
	runner        executor.Runner
	defaultRegion string
}

func (p *ecrProvider) RequiresCredentials() bool { return false }

func (p *ecrProvider) Login(ctx context.Context, endpoint string, _ Credentials) error {
	region := ECRRegion(endpoint, p.defaultRegion)

	res, err := p.runner.Run(ctx, executor.Command{
		Name: "aws",
		Args: []string{"ecr", "get-login-password", "--region", region},
	})
	if err != nil {
		return &AuthError{Endpoint: endpoint, Provider: p.kind, Err: fmt.Errorf("get-login-password: %w", err)}
	}

	password := strings.TrimSpace(res.Stdout)
	if password == "" {
		return &AuthError{Endpoint: endpoint, Provider: p.kind, Err: fmt.Errorf("get-login-password returned an empty password")}
	}

	if err := p.engine.Login(ctx, endpoint, ecrUsername, password); err != nil {
		return &AuthError{Endpoint: endpoint, Provider: p.kind, Err: err}
	}
	return nil
}

// ECRRegion extracts the region from an ECR hostname, falling back to
// fallback and then DefaultECRRegion.
func ECRRegion(endpoint, fallback string) string {
	if m := ecrHostPattern.FindStringSubmatch(Host(endpoint)); m != nil {
		return m[1]
	}
	if fallback != "" {
		return fallback
	}
	return DefaultECRRegion
}
