package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	values map[string]string
	calls  []string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	id := aws.ToString(in.SecretId)
	f.calls = append(f.calls, id)
	v, ok := f.values[id]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestSecretSource_Token(t *testing.T) {
	api := &fakeSecrets{values: map[string]string{
		"plain":     "ghp_plain\n",
		"json":      `{"username":"bot","token":"ghp_json"}`,
		"password":  `{"password":"pw"}`,
		"json-none": `{"username":"bot"}`,
		"empty":     "  ",
		"brace":     "{not json",
	}}
	src := NewSecretSourceWithAPI(api)
	ctx := context.Background()

	tests := []struct {
		id      string
		want    string
		wantErr error
	}{
		{id: "plain", want: "ghp_plain"},
		{id: "json", want: "ghp_json"},
		{id: "password", want: "pw"},
		{id: "brace", want: "{not json"},
		{id: "json-none", wantErr: ErrEmptySecret},
		{id: "empty", wantErr: ErrEmptySecret},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := src.Token(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := src.Token(ctx, "missing")
	assert.ErrorContains(t, err, "missing")
}

func TestResolveToken(t *testing.T) {
	api := &fakeSecrets{values: map[string]string{"ci/token": "ghp_fromsecret"}}
	var openedRegion string
	open := func(_ context.Context, region string) (TokenSource, error) {
		openedRegion = region
		return NewSecretSourceWithAPI(api), nil
	}
	ctx := context.Background()

	cfg := &Config{TokenSecret: "ci/token", AWSRegion: "us-west-2"}
	require.NoError(t, ResolveToken(ctx, cfg, open))
	assert.Equal(t, "ghp_fromsecret", cfg.Token)
	assert.Equal(t, "us-west-2", openedRegion)

	// A direct token wins and no lookup happens.
	api.calls = nil
	cfg = &Config{Token: "ghp_direct", TokenSecret: "ci/token"}
	require.NoError(t, ResolveToken(ctx, cfg, open))
	assert.Equal(t, "ghp_direct", cfg.Token)
	assert.Empty(t, api.calls)

	// Nothing configured.
	cfg = &Config{}
	require.NoError(t, ResolveToken(ctx, cfg, func(context.Context, string) (TokenSource, error) {
		t.Fatal("open must not be called")
		return nil, nil
	}))
}

func TestResolveToken_OpenError(t *testing.T) {
	cfg := &Config{TokenSecret: "x"}
	err := ResolveToken(context.Background(), cfg, func(context.Context, string) (TokenSource, error) {
		return nil, errors.New("no credentials")
	})
	assert.ErrorContains(t, err, "no credentials")
}
