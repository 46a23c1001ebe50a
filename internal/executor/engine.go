package executor

import (
	"context"
	"fmt"
)

// DefaultEngine is the container engine binary used when none is configured.
const DefaultEngine = "docker"

// BuildArg is one key=value build parameter. A slice keeps the order stable.
type BuildArg struct {
	Key   string
	Value string
}

// BuildSpec describes a single image build producing one or more tags.
type BuildSpec struct {
	ContextDir string
	Dockerfile string
	BuildArgs  []BuildArg
	Tags       []string
	Platform   string // forwarded verbatim, e.g. "linux/amd64,linux/arm64"
	NoCache    bool
}

// Engine is the container engine collaborator. Every call blocks until the
// underlying process exits and reports only success or failure.
type Engine interface {
	// BuildCommand renders the build invocation without running it.
	BuildCommand(spec BuildSpec) Command
	// PushCommand renders the push invocation without running it.
	PushCommand(tag string) Command

	Build(ctx context.Context, spec BuildSpec) error
	Push(ctx context.Context, tag string) error
	Login(ctx context.Context, endpoint, username, secret string) error
	Logout(ctx context.Context, endpoint string) error
	InspectManifest(ctx context.Context, tag string) error
}

// CLIEngine drives a docker-compatible CLI (docker, podman).
type CLIEngine struct {
	binary string
	runner Runner
}

// NewCLIEngine creates an engine invoking binary through runner.
func NewCLIEngine(binary string, runner Runner) *CLIEngine {
	if binary == "" {
		binary = DefaultEngine
	}
	return &CLIEngine{binary: binary, runner: runner}
}

// Binary returns the engine executable name.
func (e *CLIEngine) Binary() string {
	return e.binary
}

// BuildCommand renders a single build with every tag attached.
func (e *CLIEngine) BuildCommand(spec BuildSpec) Command {
	args := []string{"build"}
	if spec.Dockerfile != "" {
		args = append(args, "--file", spec.Dockerfile)
	}
	if spec.Platform != "" {
		args = append(args, "--platform", spec.Platform)
	}
	if spec.NoCache {
		args = append(args, "--no-cache")
	}
	for _, ba := range spec.BuildArgs {
		args = append(args, "--build-arg", ba.Key+"="+ba.Value)
	}
	for _, tag := range spec.Tags {
		args = append(args, "--tag", tag)
	}

	contextDir := spec.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	args = append(args, contextDir)

	return Command{Name: e.binary, Args: args, Stream: true}
}

// PushCommand renders a push of one tag.
func (e *CLIEngine) PushCommand(tag string) Command {
	return Command{Name: e.binary, Args: []string{"push", tag}, Stream: true}
}

// Build runs the build.
func (e *CLIEngine) Build(ctx context.Context, spec BuildSpec) error {
	if len(spec.Tags) == 0 {
		return fmt.Errorf("build requires at least one tag")
	}
	_, err := e.runner.Run(ctx, e.BuildCommand(spec))
	return err
}

// Push pushes one tag.
func (e *CLIEngine) Push(ctx context.Context, tag string) error {
	_, err := e.runner.Run(ctx, e.PushCommand(tag))
	return err
}

// Login stores credentials for endpoint. The secret is piped on stdin.
func (e *CLIEngine) Login(ctx context.Context, endpoint, username, secret string) error {
	_, err := e.runner.Run(ctx, Command{
		Name:  e.binary,
		Args:  []string{"login", endpoint, "--username", username, "--password-stdin"},
		Stdin: secret,
	})
	return err
}

// Logout removes stored credentials for endpoint.
func (e *CLIEngine) Logout(ctx context.Context, endpoint string) error {
	_, err := e.runner.Run(ctx, Command{Name: e.binary, Args: []string{"logout", endpoint}})
	return err
}

// InspectManifest succeeds when the registry serves a manifest for tag.
func (e *CLIEngine) InspectManifest(ctx context.Context, tag string) error {
	_, err := e.runner.Run(ctx, Command{Name: e.binary, Args: []string{"manifest", "inspect", tag}})
	return err
}
