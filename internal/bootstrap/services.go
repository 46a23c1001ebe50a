// Package bootstrap wires configuration into the services the CLI commands
// use, and runs the build and sweep pipelines on top of them.
package bootstrap

import (
	"fmt"

	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/config"
	"github.com/chis/imagesmith/internal/docker"
	"github.com/chis/imagesmith/internal/events"
	"github.com/chis/imagesmith/internal/executor"
	"github.com/chis/imagesmith/internal/logging"
	"github.com/chis/imagesmith/internal/namespace"
	"github.com/chis/imagesmith/internal/orchestrator"
	"github.com/chis/imagesmith/internal/registry"
	"github.com/chis/imagesmith/internal/storage"
	"github.com/chis/imagesmith/internal/sweep"
)

// Services holds all initialized service dependencies for CLI commands.
type Services struct {
	Config       config.Config
	Log          *logging.Logger
	Runner       executor.Runner
	Engine       executor.Engine
	Registry     *registry.Dispatcher
	Packages     *registry.PackagesClient
	Driver       *build.Driver
	Orchestrator *orchestrator.Orchestrator
	Namespaces   *namespace.Runner
	Storage      storage.Storage
	EventBus     *events.Bus

	mode orchestrator.Mode
}

// InitOptions configures service initialization behavior.
type InitOptions struct {
	Config config.Config
	Build  build.Options
	Mode   orchestrator.Mode
	// Jobs caps concurrent variants; 0 means unbounded.
	Jobs   int
	Logger *logging.Logger

	// RequireStorage makes a history database failure fatal.
	RequireStorage bool
	// DisableStorage skips the history database entirely.
	DisableStorage bool

	// Runner and Engine replace the exec-backed defaults when set.
	Runner executor.Runner
	Engine executor.Engine
	// Storage replaces the SQLite history store when set.
	Storage storage.Storage
}

// InitializeServices initializes all service dependencies with consistent error handling.
// Returns Services and a cleanup function that should be deferred.
func InitializeServices(opts InitOptions) (*Services, func(), error) {
	log := logging.OrDefault(opts.Logger)
	cfg := opts.Config

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if opts.Jobs < 0 {
		return nil, nil, fmt.Errorf("jobs must not be negative, got %d", opts.Jobs)
	}
	mode := opts.Mode
	if mode == "" {
		mode = orchestrator.ModeSequential
	}
	if mode != orchestrator.ModeSequential && mode != orchestrator.ModeConcurrent {
		return nil, nil, fmt.Errorf("unknown mode %q", mode)
	}

	s := &Services{
		Config:   cfg,
		Log:      log,
		Runner:   opts.Runner,
		Engine:   opts.Engine,
		EventBus: events.NewBus(),
		mode:     mode,
	}

	if s.Runner == nil {
		s.Runner = executor.NewExecRunner(log)
	}
	if s.Engine == nil {
		s.Engine = executor.NewCLIEngine(cfg.Engine, s.Runner)
	}

	s.Registry = registry.NewDispatcher(s.Engine, s.Runner, registry.Options{
		ECRRegion: cfg.AWSRegion,
		Logger:    log,
	})
	s.Packages = registry.NewPackagesClient(log)

	s.Driver = build.NewDriver(s.Engine, opts.Build, log).WithEvents(s.EventBus)
	s.Orchestrator = orchestrator.New(s.Driver, opts.Jobs, log).WithEvents(s.EventBus)
	s.Namespaces = namespace.NewRunner(s.Orchestrator, mode, cfg.Registry, cfg.Owner, log).WithEvents(s.EventBus)

	// Initialize storage (optional - graceful degradation unless required)
	switch {
	case opts.Storage != nil:
		s.Storage = opts.Storage
	case opts.DisableStorage:
	default:
		store, err := storage.NewSQLiteStorage(cfg.DBPath, log)
		if err != nil {
			if opts.RequireStorage {
				cleanup()
				return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
			}
			log.Warn("Failed to initialize run history (continuing without it): %v", err)
		} else {
			s.Storage = store
			cleanups = append(cleanups, func() { store.Close() })
		}
	}

	return s, cleanup, nil
}

// Mode is the scheduling mode builds run with.
func (s *Services) Mode() orchestrator.Mode {
	return s.mode
}

// Sweeper returns a sweeper over images publishing to the configured registry.
func (s *Services) Sweeper(images docker.ImageLister) *sweep.Sweeper {
	return sweep.New(images, s.Engine, s.Config.Registry, s.Log).WithEvents(s.EventBus)
}
