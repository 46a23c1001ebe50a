package registry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chis/imagesmith/internal/executor"
	"github.com/chis/imagesmith/internal/logging"
	"github.com/chis/imagesmith/internal/testutil"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *testutil.FakeEngine, *testutil.FakeRunner, *bytes.Buffer) {
	t.Helper()
	engine := testutil.NewFakeEngine()
	runner := &testutil.FakeRunner{}
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, logging.LevelDebug, false)
	return NewDispatcher(engine, runner, Options{Logger: log}), engine, runner, &buf
}

func TestLogin_TokenProviders(t *testing.T) {
	for _, endpoint := range []string{"ghcr.io", "docker.io", "index.docker.io", "registry.example.com"} {
		t.Run(endpoint, func(t *testing.T) {
			d, engine, runner, _ := newTestDispatcher(t)

			err := d.Login(context.Background(), endpoint, "octocat", "s3cret")
			require.NoError(t, err)

			assert.Equal(t, []string{"login " + endpoint + " octocat"}, engine.Calls())
			assert.Empty(t, runner.Commands())
		})
	}
}

func TestLogin_MissingCredentialsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name     string
		username string
		token    string
		want     error
	}{
		{"no username", "", "tok", ErrMissingUsername},
		{"no token", "user", "", ErrMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, engine, _, _ := newTestDispatcher(t)

			err := d.Login(context.Background(), "ghcr.io", tt.username, tt.token)

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, engine.Calls(), "no engine call may happen without credentials")
		})
	}
}

func TestLogin_RejectedIsAuthError(t *testing.T) {
	d, engine, _, _ := newTestDispatcher(t)
	engine.LoginErr = errors.New("unauthorized")

	err := d.Login(context.Background(), "ghcr.io", "user", "bad")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ProviderGHCR, authErr.Provider)
	assert.Equal(t, "ghcr.io", authErr.Endpoint)
}

func TestLogin_ECR(t *testing.T) {
	d, engine, runner, _ := newTestDispatcher(t)
	runner.Handler = func(cmd executor.Command) (*executor.Result, error) {
		return &executor.Result{Stdout: "ecr-password\n"}, nil
	}
	endpoint := "123456789012.dkr.ecr.eu-west-1.amazonaws.com"

	err := d.Login(context.Background(), endpoint, "", "")
	require.NoError(t, err)

	cmds := runner.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "aws", cmds[0].Name)
	assert.Equal(t, []string{"ecr", "get-login-password", "--region", "eu-west-1"}, cmds[0].Args)
	assert.Equal(t, []string{"login " + endpoint + " AWS"}, engine.Calls())
}

func TestLogin_ECRHelperFails(t *testing.T) {
	d, engine, runner, _ := newTestDispatcher(t)
	runner.Handler = func(cmd executor.Command) (*executor.Result, error) {
		return &executor.Result{ExitCode: 255}, &executor.ExitError{Command: cmd.String(), ExitCode: 255}
	}

	err := d.Login(context.Background(), "1.dkr.ecr.us-east-2.amazonaws.com", "", "")

	assert.ErrorIs(t, err, ErrAuth)
	assert.Empty(t, engine.Calls())
}

func TestLogin_ECREmptyPassword(t *testing.T) {
	d, _, runner, _ := newTestDispatcher(t)
	runner.Handler = func(executor.Command) (*executor.Result, error) {
		return &executor.Result{Stdout: "  \n"}, nil
	}

	err := d.Login(context.Background(), "1.dkr.ecr.us-east-2.amazonaws.com", "", "")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestLogout_FailureOnlyWarns(t *testing.T) {
	d, engine, _, buf := newTestDispatcher(t)
	engine.LogoutErr = errors.New("not logged in")

	d.Logout(context.Background(), "ghcr.io")

	assert.Equal(t, []string{"logout ghcr.io"}, engine.Calls())
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "not logged in")
}

func TestExists(t *testing.T) {
	d, engine, _, _ := newTestDispatcher(t)
	engine.Published["ghcr.io/acme/ci:24.04-22"] = true

	ctx := context.Background()
	assert.True(t, d.Exists(ctx, "ghcr.io/acme/ci:24.04-22"))
	assert.False(t, d.Exists(ctx, "ghcr.io/acme/ci:missing"))
}

func TestSession_OpenClose(t *testing.T) {
	d, engine, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	s, err := d.Open(ctx, "ghcr.io", "user", "tok")
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io", s.Endpoint())
	s.Close(ctx)

	assert.Equal(t, []string{"login ghcr.io user", "logout ghcr.io"}, engine.Calls())
}

func TestSession_OpenRequiresCredentials(t *testing.T) {
	d, engine, _, _ := newTestDispatcher(t)

	s, err := d.Open(context.Background(), "registry.example.com", "", "")

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrMissingUsername)
	assert.Empty(t, engine.Calls())
}

func TestSession_ECRSkipsValidation(t *testing.T) {
	d, engine, runner, _ := newTestDispatcher(t)
	runner.Handler = func(executor.Command) (*executor.Result, error) {
		return &executor.Result{Stdout: "pw"}, nil
	}

	s, err := d.Open(context.Background(), "1.dkr.ecr.us-east-2.amazonaws.com", "", "")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Len(t, engine.CallsWithPrefix("login "), 1)
}

func TestSession_CloseNil(t *testing.T) {
	var s *Session
	s.Close(context.Background())
}

func TestAuthError_Message(t *testing.T) {
	err := &AuthError{Endpoint: "docker.io", Provider: ProviderDockerHub, Err: errors.New("denied")}
	assert.True(t, strings.Contains(err.Error(), "docker.io"))
	assert.True(t, strings.Contains(err.Error(), "dockerhub"))
}
