package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chis/imagesmith/internal/executor"
)

// FakeEngine is an in-memory executor.Engine. It records every call and fails
// the ones configured to fail. Safe for concurrent use.
type FakeEngine struct {
	*executor.CLIEngine

	mu    sync.Mutex
	calls []string

	// FailBuild fails a build whose first tag is listed.
	FailBuild map[string]bool
	// FailPush fails a push of the listed tags.
	FailPush map[string]bool
	// Published is the set of refs InspectManifest finds.
	Published map[string]bool

	LoginErr  error
	LogoutErr error

	// BuildDelay slows every build, used to observe concurrency.
	BuildDelay time.Duration

	inFlight    int
	maxInFlight int
}

// NewFakeEngine creates a fake that renders commands like the docker CLI.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		CLIEngine: executor.NewCLIEngine(executor.DefaultEngine, nil),
		FailBuild: make(map[string]bool),
		FailPush:  make(map[string]bool),
		Published: make(map[string]bool),
	}
}

func (f *FakeEngine) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls in order, e.g. "build r/o/x:1 r/o/x:a".
func (f *FakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsWithPrefix returns recorded calls starting with prefix.
func (f *FakeEngine) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// MaxConcurrentBuilds is the highest number of builds seen in flight at once.
func (f *FakeEngine) MaxConcurrentBuilds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func (f *FakeEngine) Build(ctx context.Context, spec executor.BuildSpec) error {
	f.record("build %s", strings.Join(spec.Tags, " "))

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.BuildDelay > 0 {
		select {
		case <-time.After(f.BuildDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if len(spec.Tags) > 0 && f.FailBuild[spec.Tags[0]] {
		return &executor.ExitError{Command: "docker build", ExitCode: 1, Stderr: "build failed"}
	}
	return nil
}

func (f *FakeEngine) Push(_ context.Context, tag string) error {
	f.record("push %s", tag)
	if f.FailPush[tag] {
		return &executor.ExitError{Command: "docker push " + tag, ExitCode: 1, Stderr: "denied"}
	}
	return nil
}

func (f *FakeEngine) Login(_ context.Context, endpoint, username, _ string) error {
	f.record("login %s %s", endpoint, username)
	return f.LoginErr
}

func (f *FakeEngine) Logout(_ context.Context, endpoint string) error {
	f.record("logout %s", endpoint)
	return f.LogoutErr
}

func (f *FakeEngine) InspectManifest(_ context.Context, tag string) error {
	f.record("inspect %s", tag)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Published[tag] {
		return nil
	}
	return &executor.ExitError{Command: "docker manifest inspect " + tag, ExitCode: 1, Stderr: "no such manifest"}
}

// FakeRunner answers commands with a handler and records them.
type FakeRunner struct {
	mu       sync.Mutex
	commands []executor.Command

	Handler func(cmd executor.Command) (*executor.Result, error)
}

func (r *FakeRunner) Run(_ context.Context, cmd executor.Command) (*executor.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.Handler == nil {
		return &executor.Result{}, nil
	}
	return r.Handler(cmd)
}

// Commands returns the commands run so far.
func (r *FakeRunner) Commands() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.Command(nil), r.commands...)
}
