package clock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openclock/clockd/pkg/cache"
	"github.com/openclock/clockd/pkg/creds"
	"github.com/openclock/clockd/pkg/device"
	"github.com/openclock/clockd/pkg/health"
	"github.com/openclock/clockd/pkg/msauth"
	"github.com/openclock/clockd/pkg/refresh"
	"github.com/openclock/clockd/pkg/session"
	"github.com/openclock/clockd/pkg/untis"
)

const (
	// loopStopTimeout is how long shutdown waits for a refresh loop to
	// acknowledge cancellation before abandoning it.
	loopStopTimeout = 5 * time.Second

	// dataDirMode keeps the state directory private to the service user.
	dataDirMode = 0o700
)

// State file names inside the data directory.
const (
	untisCredsFile   = "untis-credentials.json"
	microsoftTokFile = "microsoft-token.json"
	deviceConfigFile = "device-config.json"
	cacheSnapshot    = "cache.json"
)

// Options carries the injectable pieces of an App.
type Options struct {
	// Logger is the root logger. Defaults to slog.Default.
	Logger *slog.Logger

	// Runner executes host-OS operations. Defaults to the exec-backed
	// implementation; tests inject a fake.
	Runner device.Runner

	// Version is reported on health and status endpoints.
	Version string
}

// App wires the stores, session managers, cache and refresh loops together
// and exposes the operations the HTTP server calls.
type App struct {
	cfg *Config
	log *slog.Logger

	Creds  *creds.Store
	Tokens *msauth.Store
	Device *device.ConfigStore
	System device.Runner
	Cache  *cache.Store
	Health *health.Checker

	Untis     *session.Manager[*untis.Session]
	Microsoft *session.Manager[*msauth.Token]

	msClient *msauth.Client
	graph    *msauth.Graph

	lifecycle *Lifecycle

	flowMu     sync.Mutex
	activeFlow *msauth.DeviceFlow
}

// New assembles an App from cfg. Nothing talks to the network until Start.
func New(cfg *Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = device.NewExecRunner(log)
	}

	dataDir := cfg.Server.DataDir
	a := &App{
		cfg:    cfg,
		log:    log.With("component", "app"),
		Creds:  creds.NewStore(filepath.Join(dataDir, untisCredsFile), log),
		Tokens: msauth.NewStore(filepath.Join(dataDir, microsoftTokFile), log),
		Device: device.NewConfigStore(filepath.Join(dataDir, deviceConfigFile), log),
		System: runner,
		Cache:  cache.NewStore(),
	}
	a.Health = health.NewChecker(opts.Version, a.serviceStatus)

	untisClient := untis.NewClient(untis.Config{
		Timeout:  cfg.Untis.Timeout,
		Insecure: cfg.Untis.Insecure,
		Logger:   log,
	})
	a.Untis = session.NewManager(session.Config{
		Service: "untis",
		Logger:  log,
	}, untis.NewConnector(untisClient, a.Creds))

	var msConnector session.Connector[*msauth.Token]
	if cfg.Microsoft.ClientID != "" {
		client, err := msauth.NewClient(msauth.Config{
			ClientID:  cfg.Microsoft.ClientID,
			Authority: cfg.Microsoft.Authority,
			Scopes:    cfg.Microsoft.Scopes,
			Timeout:   cfg.Microsoft.Timeout,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		a.msClient = client
		msConnector = msauth.NewConnector(client, a.Tokens, log)
	} else {
		msConnector = unconfiguredConnector{}
	}
	a.Microsoft = session.NewManager(session.Config{
		Service: "microsoft",
		Logger:  log,
	}, msConnector)

	a.graph = msauth.NewGraph(msauth.GraphConfig{
		Endpoint: cfg.Microsoft.GraphEndpoint,
		Timeout:  cfg.Microsoft.Timeout,
		Logger:   log,
	})

	a.assembleLifecycle(log)
	return a, nil
}

// assembleLifecycle registers components in boot order: persisted state
// first, then the refresh loops, readiness last.
func (a *App) assembleLifecycle(log *slog.Logger) {
	a.lifecycle = NewLifecycle(log)

	a.lifecycle.RegisterFuncs("state", a.loadState, a.saveState)

	untisLoop := refresh.NewLoop("timetable", a.cfg.Untis.RefreshInterval, a.RefreshTimetable, log)
	a.registerLoop("timetable-loop", untisLoop)

	msLoop := refresh.NewLoop("mail-token", a.cfg.Microsoft.RefreshInterval, a.RefreshToken, log)
	a.registerLoop("mail-token-loop", msLoop)

	a.lifecycle.RegisterFuncs("readiness",
		func(context.Context) error { a.Health.SetReady(); return nil },
		func(context.Context) error { a.Health.SetDraining(); return nil })
}

// registerLoop registers a refresh loop with a bounded stop so one stuck
// iteration cannot hold the whole shutdown hostage.
func (a *App) registerLoop(name string, loop *refresh.Loop) {
	a.lifecycle.RegisterFuncs(name, loop.Start, func(ctx context.Context) error {
		sctx, cancel := context.WithTimeout(ctx, loopStopTimeout)
		defer cancel()
		return loop.Stop(sctx)
	})
}

// Start boots the App: restores persisted state, starts the refresh loops
// and flips readiness.
func (a *App) Start(ctx context.Context) error {
	return a.lifecycle.Start(ctx)
}

// Stop shuts the App down in reverse boot order and persists the cache.
func (a *App) Stop(ctx context.Context) error {
	a.Untis.Invalidate(ctx)
	return a.lifecycle.Stop(ctx)
}

// Config returns the configuration the App was built from.
func (a *App) Config() *Config {
	return a.cfg
}

func (a *App) loadState(context.Context) error {
	if err := os.MkdirAll(a.cfg.Server.DataDir, dataDirMode); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	a.Creds.Load()
	a.Tokens.Load()
	a.Device.Load()

	path := filepath.Join(a.cfg.Server.DataDir, cacheSnapshot)
	if err := a.Cache.Load(path); err != nil {
		if !os.IsNotExist(err) {
			a.log.Warn("could not restore cache snapshot, starting empty", "error", err)
		}
	}
	return nil
}

func (a *App) saveState(context.Context) error {
	path := filepath.Join(a.cfg.Server.DataDir, cacheSnapshot)
	if err := a.Cache.Save(path); err != nil {
		return fmt.Errorf("persisting cache snapshot: %w", err)
	}
	return nil
}

// RefreshTimetable fetches the timetable window and holidays into the
// cache. Run by the timetable loop and after a credential change.
func (a *App) RefreshTimetable(ctx context.Context) error {
	if err := a.Untis.Ensure(ctx); err != nil {
		return err
	}
	return a.Untis.Use(ctx, func(ctx context.Context, s *untis.Session) error {
		now := time.Now()
		lessons, err := s.Timetable(ctx, now, now.AddDate(0, 0, a.cfg.Untis.DayRange))
		if err != nil {
			return err
		}
		a.Cache.SetLessons(lessons)

		holidays, err := s.Holidays(ctx)
		if err != nil {
			return err
		}
		a.Cache.SetHolidays(holidays)
		return nil
	})
}

// RefreshToken keeps the cached mail token fresh via silent refresh.
func (a *App) RefreshToken(ctx context.Context) error {
	if err := a.Microsoft.Ensure(ctx); err != nil {
		return err
	}
	return a.Microsoft.Use(ctx, func(_ context.Context, tok *msauth.Token) error {
		a.Cache.SetToken(tok)
		return nil
	})
}

// SetUntisCredentials validates and stores new timetable credentials, then
// logs in with them so the caller learns immediately whether they work.
func (a *App) SetUntisCredentials(ctx context.Context, c untis.Credentials) error {
	if err := a.Creds.Set(c); err != nil {
		return err
	}

	a.Untis.Invalidate(ctx)
	if err := a.Untis.Ensure(ctx); err != nil {
		return err
	}

	if err := a.RefreshTimetable(ctx); err != nil {
		// Login worked; the first fetch can catch up on the next tick.
		a.log.Warn("initial timetable refresh failed", "error", err)
	}
	return nil
}

// ClearUntisCredentials logs out and forgets the stored credentials. The
// cached timetable stays; it is served as stale data until new credentials
// arrive.
func (a *App) ClearUntisCredentials(ctx context.Context) error {
	a.Untis.Invalidate(ctx)
	return a.Creds.Clear()
}

// UntisLoginName returns the configured Untis username, if any.
func (a *App) UntisLoginName() (string, bool) {
	return a.Creds.Username()
}

// StartMicrosoftLogin begins a device flow sign-in and completes it in the
// background. While a flow is still pending the same flow is returned, so
// a frontend re-poll does not invalidate the code the user is typing.
func (a *App) StartMicrosoftLogin(ctx context.Context) (*msauth.DeviceFlow, error) {
	if a.msClient == nil {
		return nil, session.ErrNotConfigured
	}

	a.flowMu.Lock()
	defer a.flowMu.Unlock()

	if f := a.activeFlow; f != nil && time.Now().Before(f.ExpiresAt) {
		return f, nil
	}

	flow, err := a.msClient.StartDeviceFlow(ctx)
	if err != nil {
		return nil, err
	}
	a.activeFlow = flow

	go a.completeLogin(flow)
	return flow, nil
}

// completeLogin polls the authority until the user approves the flow, then
// persists the token and hands the session over to the manager.
func (a *App) completeLogin(flow *msauth.DeviceFlow) {
	ctx, cancel := context.WithDeadline(context.Background(), flow.ExpiresAt.Add(time.Minute))
	defer cancel()

	tok, err := a.msClient.WaitForCompletion(ctx, flow)

	a.flowMu.Lock()
	if a.activeFlow == flow {
		a.activeFlow = nil
	}
	a.flowMu.Unlock()

	if err != nil {
		a.log.Warn("device flow did not complete", "flow_id", flow.ID, "error", err)
		return
	}

	if err := a.Tokens.Set(tok); err != nil {
		a.log.Warn("could not persist signed-in token", "error", err)
	}
	a.Cache.SetToken(tok)

	// Re-establish the managed session from the new refresh token.
	a.Microsoft.Invalidate(ctx)
	if err := a.Microsoft.Ensure(ctx); err != nil {
		a.log.Warn("post-login session establishment failed", "error", err)
	}
}

// MicrosoftAccounts lists the signed-in accounts (at most one).
func (a *App) MicrosoftAccounts() []string {
	return a.Tokens.Accounts()
}

// MicrosoftMessages fetches the signed-in account's inbox.
func (a *App) MicrosoftMessages(ctx context.Context) ([]msauth.Message, error) {
	if err := a.Microsoft.Ensure(ctx); err != nil {
		return nil, err
	}

	var msgs []msauth.Message
	err := a.Microsoft.Use(ctx, func(ctx context.Context, tok *msauth.Token) error {
		m, err := a.graph.Messages(ctx, tok.AccessToken)
		if err != nil {
			return err
		}
		msgs = m
		return nil
	})
	return msgs, err
}

// MicrosoftLogout signs the account out: the managed session is dropped,
// the stored token removed, the cached token cleared.
func (a *App) MicrosoftLogout(ctx context.Context) error {
	a.flowMu.Lock()
	a.activeFlow = nil
	a.flowMu.Unlock()

	a.Microsoft.Invalidate(ctx)
	a.Cache.ClearToken()
	return a.Tokens.Clear()
}

// serviceStatus feeds the readiness payload.
func (a *App) serviceStatus() map[string]health.ServiceStatus {
	out := make(map[string]health.ServiceStatus, 2)
	for name, st := range map[string]session.Status{
		"untis":     a.Untis.Status(),
		"microsoft": a.Microsoft.Status(),
	} {
		out[name] = health.ServiceStatus{
			State:     st.State.String(),
			LastError: st.LastError,
		}
	}
	return out
}

// unconfiguredConnector stands in when no Microsoft client id is set.
type unconfiguredConnector struct{}

func (unconfiguredConnector) Connect(context.Context) (*msauth.Token, time.Time, error) {
	return nil, time.Time{}, session.ErrNotConfigured
}

func (unconfiguredConnector) Logout(context.Context, *msauth.Token) error {
	return nil
}

var _ session.Connector[*msauth.Token] = unconfiguredConnector{}
