package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chis/imagesmith/internal/bootstrap"
	"github.com/chis/imagesmith/internal/config"
	"github.com/chis/imagesmith/internal/docker"
	"github.com/chis/imagesmith/internal/executor"
	"github.com/chis/imagesmith/internal/logging"
	"github.com/chis/imagesmith/internal/registry"
	"github.com/chis/imagesmith/internal/storage"
)

// errFailed signals a run that completed with failures already reported.
var errFailed = errors.New("run finished with failures")

// app carries state shared by every command. The override fields let tests
// replace the process, Docker and AWS boundaries.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	jsonOut    bool
	logLevel   string

	cfg config.Config
	log *logging.Logger

	engine      executor.Engine
	runner      executor.Runner
	store       storage.Storage
	images      func() (docker.ImageLister, error)
	packagesURL string
	openSecrets func(ctx context.Context, region string) (config.TokenSource, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		openSecrets: config.OpenSecretSource,
		images: func() (docker.ImageLister, error) {
			return docker.NewService()
		},
	}
}

// setup resolves configuration and the logger before any command runs.
func (a *app) setup(cmd *cobra.Command) error {
	level := logging.LevelInfo
	if a.logLevel == "" {
		a.logLevel = os.Getenv("LOG_LEVEL")
	}
	if a.logLevel != "" {
		level = logging.ParseLevel(a.logLevel)
	}
	a.log = logging.NewWithWriter(a.stderr, level, a.jsonOut || os.Getenv("LOG_FORMAT") == "json")
	logging.SetDefault(a.log)

	v := config.New()
	if err := config.ReadFile(v, a.configPath, cmd.Flags().Changed("config")); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := config.ResolveToken(cmd.Context(), &cfg, a.openSecrets); err != nil {
		return fmt.Errorf("failed to resolve registry token: %w", err)
	}

	result := config.ValidateConfig(&cfg)
	for _, w := range result.Warnings {
		a.log.Warn("%s", w)
	}
	if err := result.Err(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log.Debug("Configuration: %s", cfg)
	return nil
}

// services builds the service graph for a command from the resolved
// configuration and any test overrides.
func (a *app) services(opts bootstrap.InitOptions) (*bootstrap.Services, func(), error) {
	opts.Config = a.cfg
	opts.Logger = a.log
	opts.Runner = a.runner
	if opts.Runner == nil {
		opts.Runner = a.execRunner()
	}
	opts.Engine = a.engine
	if !opts.DisableStorage {
		opts.Storage = a.store
	}
	return bootstrap.InitializeServices(opts)
}

// execRunner streams engine output to the command's writers. With --json
// stdout carries only the envelope, so engine output goes to stderr.
func (a *app) execRunner() *executor.ExecRunner {
	r := executor.NewExecRunner(a.log)
	r.Stdout = a.stdout
	r.Stderr = a.stderr
	if a.jsonOut {
		r.Stdout = a.stderr
	}
	return r
}

// packages returns a GitHub Packages client, pointed at the test server when set.
func (a *app) packages(svc *bootstrap.Services) *registry.PackagesClient {
	if a.packagesURL != "" {
		return svc.Packages.WithBaseURL(a.packagesURL)
	}
	return svc.Packages
}

// requireGHCR rejects registries the Packages API does not serve.
func (a *app) requireGHCR() error {
	if registry.Classify(a.cfg.Registry) != registry.ProviderGHCR {
		return fmt.Errorf("registry %s is not ghcr.io; tag listing and deletion use the GitHub Packages API", a.cfg.Registry)
	}
	if a.cfg.Owner == "" {
		return errors.New("owner is required (--owner, IMAGESMITH_OWNER or --username)")
	}
	return nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) println(args ...interface{}) {
	fmt.Fprintln(a.stdout, args...)
}

func indent(lines []string, prefix string) string {
	return prefix + strings.Join(lines, "\n"+prefix)
}
