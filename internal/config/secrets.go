package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrEmptySecret is returned when a secret holds no usable token.
var ErrEmptySecret = errors.New("secret holds no token")

// tokenJSONKeys are the fields checked when a secret stores a JSON object.
var tokenJSONKeys = []string{"token", "password", "GITHUB_TOKEN"}

// SecretsAPI is the Secrets Manager call used to read a token.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretSource reads registry tokens from AWS Secrets Manager.
type SecretSource struct {
	api SecretsAPI
}

// NewSecretSource loads the default AWS configuration. region overrides the
// configured region when set.
func NewSecretSource(ctx context.Context, region string) (*SecretSource, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SecretSource{api: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewSecretSourceWithAPI wraps an existing client.
func NewSecretSourceWithAPI(api SecretsAPI) *SecretSource {
	return &SecretSource{api: api}
}

// Token fetches secretID. A plain string secret is the token itself; a JSON
// object secret yields its "token", "password" or "GITHUB_TOKEN" field.
func (s *SecretSource) Token(ctx context.Context, secretID string) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", secretID, err)
	}

	raw := strings.TrimSpace(aws.ToString(out.SecretString))
	if raw == "" {
		return "", fmt.Errorf("%s: %w", secretID, ErrEmptySecret)
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return raw, nil
	}
	for _, key := range tokenJSONKeys {
		if v, ok := fields[key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s: %w", secretID, ErrEmptySecret)
}

// TokenSource yields a token for a secret ID.
type TokenSource interface {
	Token(ctx context.Context, secretID string) (string, error)
}

// ResolveToken fills cfg.Token from the secret named by cfg.TokenSecret when
// no token was given directly. open is only called when a lookup is needed.
func ResolveToken(ctx context.Context, cfg *Config, open func(ctx context.Context, region string) (TokenSource, error)) error {
	if cfg.Token != "" || cfg.TokenSecret == "" {
		return nil
	}

	src, err := open(ctx, cfg.AWSRegion)
	if err != nil {
		return err
	}
	token, err := src.Token(ctx, cfg.TokenSecret)
	if err != nil {
		return err
	}
	cfg.Token = token
	return nil
}

// OpenSecretSource adapts NewSecretSource for ResolveToken.
func OpenSecretSource(ctx context.Context, region string) (TokenSource, error) {
	return NewSecretSource(ctx, region)
}
