// Package config resolves imagesmith settings from flags, environment and an
// optional config file. Precedence is flag > environment > file > default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys shared by flags, environment bindings and the config file.
const (
	KeyRegistry    = "registry"
	KeyUsername    = "username"
	KeyToken       = "token"
	KeyOwner       = "owner"
	KeyRoot        = "root"
	KeyEngine      = "engine"
	KeyDBPath      = "db_path"
	KeyTokenSecret = "token_secret"
	KeyAWSRegion   = "aws_region"
)

const (
	DefaultRegistry = "ghcr.io"
	DefaultRoot     = "images"
	DefaultEngine   = "docker"

	appDir     = "imagesmith"
	historyDB  = "history.db"
	localDBDir = ".imagesmith"
)

// envBindings lists, per key, the environment variables consulted in order.
var envBindings = []struct {
	key  string
	envs []string
}{
	{KeyRegistry, []string{"IMAGESMITH_REGISTRY", "REGISTRY"}},
	{KeyUsername, []string{"IMAGESMITH_USERNAME", "GITHUB_ACTOR"}},
	{KeyToken, []string{"IMAGESMITH_TOKEN", "GITHUB_TOKEN"}},
	{KeyOwner, []string{"IMAGESMITH_OWNER"}},
	{KeyRoot, []string{"IMAGESMITH_ROOT"}},
	{KeyEngine, []string{"IMAGESMITH_ENGINE"}},
	{KeyDBPath, []string{"DB_PATH"}},
	{KeyTokenSecret, []string{"IMAGESMITH_TOKEN_SECRET"}},
	{KeyAWSRegion, []string{"AWS_REGION", "AWS_DEFAULT_REGION"}},
}

// flagNames maps keys to the CLI flag that sets them.
var flagNames = map[string]string{
	KeyRegistry:    "registry",
	KeyUsername:    "username",
	KeyOwner:       "owner",
	KeyRoot:        "root",
	KeyEngine:      "engine",
	KeyTokenSecret: "token-secret",
}

// Config is the resolved configuration, built once and passed down.
type Config struct {
	Registry    string `mapstructure:"registry" json:"registry"`
	Username    string `mapstructure:"username" json:"username,omitempty"`
	Token       string `mapstructure:"token" json:"-"`
	Owner       string `mapstructure:"owner" json:"owner,omitempty"`
	Root        string `mapstructure:"root" json:"root"`
	Engine      string `mapstructure:"engine" json:"engine"`
	DBPath      string `mapstructure:"db_path" json:"db_path"`
	TokenSecret string `mapstructure:"token_secret" json:"token_secret,omitempty"`
	AWSRegion   string `mapstructure:"aws_region" json:"aws_region,omitempty"`
}

// New returns a viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyRegistry, DefaultRegistry)
	v.SetDefault(KeyRoot, DefaultRoot)
	v.SetDefault(KeyEngine, DefaultEngine)

	for _, b := range envBindings {
		args := append([]string{b.key}, b.envs...)
		_ = v.BindEnv(args...)
	}
	return v
}

// BindFlags binds the known flags of fs to v. Flags absent from fs are skipped,
// so subcommands may register a subset.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagNames {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// ReadFile merges a YAML config file into v. A missing file is not an error
// when the path was not given explicitly.
func ReadFile(v *viper.Viper, path string, explicit bool) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Load resolves v into a Config and fills derived defaults.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Registry = strings.TrimRight(strings.TrimSpace(c.Registry), "/")
	if c.Registry == "" {
		c.Registry = DefaultRegistry
	}
	if c.Owner == "" {
		c.Owner = c.Username
	}
	if c.Root == "" {
		c.Root = DefaultRoot
	}
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
}

// DefaultDBPath is $XDG_DATA_HOME/imagesmith/history.db, or
// .imagesmith/history.db when XDG_DATA_HOME is unset.
func DefaultDBPath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appDir, historyDB)
	}
	return filepath.Join(localDBDir, historyDB)
}

// String renders the configuration with the token masked.
func (c Config) String() string {
	token := "<unset>"
	if c.Token != "" {
		token = "<set>"
	}
	return fmt.Sprintf("registry=%s owner=%s username=%s token=%s root=%s engine=%s db=%s",
		c.Registry, c.Owner, c.Username, token, c.Root, c.Engine, c.DBPath)
}
