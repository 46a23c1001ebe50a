package registry

import (
	"context"

	"github.com/chis/imagesmith/internal/executor"
	"github.com/chis/imagesmith/internal/logging"
)

// Options configures a Dispatcher.
type Options struct {
	// ECRRegion is used when an ECR hostname does not encode its region.
	ECRRegion string
	Logger    *logging.Logger
}

// Dispatcher selects a Provider for an endpoint and runs registry operations
// through it. It keeps no state besides its collaborators; classification
// happens on every call.
type Dispatcher struct {
	engine    executor.Engine
	runner    executor.Runner
	ecrRegion string
	log       *logging.Logger
}

// NewDispatcher creates a dispatcher. runner executes vendor credential
// helpers; engine executes login/logout/inspect.
func NewDispatcher(engine executor.Engine, runner executor.Runner, opts Options) *Dispatcher {
	return &Dispatcher{
		engine:    engine,
		runner:    runner,
		ecrRegion: opts.ECRRegion,
		log:       logging.OrDefault(opts.Logger).Named("registry"),
	}
}

// Provider returns the implementation for endpoint's kind.
func (d *Dispatcher) Provider(endpoint string) Provider {
	kind := Classify(endpoint)
	base := engineProvider{kind: kind, engine: d.engine, log: d.log}

	switch kind {
	case ProviderECR:
		return &ecrProvider{engineProvider: base, runner: d.runner, defaultRegion: d.ecrRegion}
	default:
		return &tokenProvider{engineProvider: base}
	}
}

// Login authenticates the engine against endpoint.
func (d *Dispatcher) Login(ctx context.Context, endpoint, username, token string) error {
	p := d.Provider(endpoint)
	d.log.InfoContext(ctx, "Logging in to %s (%s)", endpoint, p.Kind())
	return p.Login(ctx, endpoint, Credentials{Username: username, Token: token})
}

// Logout removes stored credentials. Failures are logged and swallowed so
// they never mask the outcome of a publish.
func (d *Dispatcher) Logout(ctx context.Context, endpoint string) {
	if err := d.Provider(endpoint).Logout(ctx, endpoint); err != nil {
		d.log.WarnContext(ctx, "Logout from %s failed: %v", endpoint, err)
		return
	}
	d.log.DebugContext(ctx, "Logged out of %s", endpoint)
}

// Exists reports whether ref is already published. Errors mean false.
func (d *Dispatcher) Exists(ctx context.Context, ref string) bool {
	return d.Provider(Host(ref)).Exists(ctx, ref)
}

// Session is an authenticated engine session against one endpoint. It must be
// opened before any push starts and closed only after all pushers finished.
type Session struct {
	dispatcher *Dispatcher
	endpoint   string
}

// Open validates credentials (when the provider needs them) and logs in.
func (d *Dispatcher) Open(ctx context.Context, endpoint, username, token string) (*Session, error) {
	if d.Provider(endpoint).RequiresCredentials() {
		if err := ValidateCredentials(username, token); err != nil {
			return nil, err
		}
	}
	if err := d.Login(ctx, endpoint, username, token); err != nil {
		return nil, err
	}
	return &Session{dispatcher: d, endpoint: endpoint}, nil
}

// Endpoint returns the endpoint the session is logged in to.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// Close logs out. Safe on a nil session.
func (s *Session) Close(ctx context.Context) {
	if s == nil {
		return
	}
	s.dispatcher.Logout(ctx, s.endpoint)
}
