package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the config reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range envBindings {
		for _, env := range b.envs {
			t.Setenv(env, "")
			os.Unsetenv(env)
		}
	}
	t.Setenv("XDG_DATA_HOME", "")
	os.Unsetenv("XDG_DATA_HOME")
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("registry", "", "")
	fs.String("username", "", "")
	fs.String("owner", "", "")
	fs.String("root", "", "")
	fs.String("engine", "", "")
	fs.String("token-secret", "", "")
	return fs
}

func load(t *testing.T, fs *pflag.FlagSet) Config {
	t.Helper()
	v := New()
	if fs != nil {
		require.NoError(t, BindFlags(v, fs))
	}
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := load(t, newFlags())

	assert.Equal(t, DefaultRegistry, cfg.Registry)
	assert.Equal(t, DefaultRoot, cfg.Root)
	assert.Equal(t, DefaultEngine, cfg.Engine)
	assert.Empty(t, cfg.Username)
	assert.Empty(t, cfg.Owner)
	assert.Equal(t, filepath.Join(".imagesmith", "history.db"), cfg.DBPath)
}

func TestLoad_EnvironmentOrder(t *testing.T) {
	clearEnv(t)
	t.Setenv("REGISTRY", "quay.io")
	t.Setenv("GITHUB_ACTOR", "octocat")
	t.Setenv("GITHUB_TOKEN", "ghp_fallback")
	t.Setenv("IMAGESMITH_TOKEN", "ghp_primary")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")

	cfg := load(t, nil)

	assert.Equal(t, "quay.io", cfg.Registry)
	assert.Equal(t, "octocat", cfg.Username)
	assert.Equal(t, "octocat", cfg.Owner, "owner defaults to username")
	assert.Equal(t, "ghp_primary", cfg.Token, "IMAGESMITH_TOKEN wins over GITHUB_TOKEN")
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMAGESMITH_REGISTRY", "env.example.com")
	t.Setenv("IMAGESMITH_OWNER", "env-owner")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--registry", "flag.example.com/"}))

	cfg := load(t, fs)

	assert.Equal(t, "flag.example.com", cfg.Registry)
	assert.Equal(t, "env-owner", cfg.Owner, "unset flag falls through to env")
}

func TestLoad_XDGDataHome(t *testing.T) {
	clearEnv(t)
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	cfg := load(t, nil)
	assert.Equal(t, filepath.Join(dataHome, "imagesmith", "history.db"), cfg.DBPath)

	t.Setenv("DB_PATH", "/tmp/custom.db")
	cfg = load(t, nil)
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
}

func TestReadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "imagesmith.yml")
	require.NoError(t, os.WriteFile(path, []byte("registry: file.example.com\nowner: file-owner\nroot: containers\n"), 0o644))
	t.Setenv("IMAGESMITH_OWNER", "env-owner")

	v := New()
	require.NoError(t, ReadFile(v, path, true))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "file.example.com", cfg.Registry)
	assert.Equal(t, "env-owner", cfg.Owner, "env beats file")
	assert.Equal(t, "containers", cfg.Root)
}

func TestReadFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yml")

	assert.NoError(t, ReadFile(New(), missing, false))
	assert.Error(t, ReadFile(New(), missing, true))
	assert.NoError(t, ReadFile(New(), "", true))
}

func TestConfig_StringMasksToken(t *testing.T) {
	cfg := Config{Registry: "ghcr.io", Token: "ghp_secret"}

	s := cfg.String()

	assert.NotContains(t, s, "ghp_secret")
	assert.Contains(t, s, "token=<set>")
}
