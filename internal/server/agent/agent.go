package agent

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/fieldstore-go/internal/core/service"
	"github.com/yndnr/fieldstore-go/internal/infra/buildinfo"
	"github.com/yndnr/fieldstore-go/internal/infra/confloader"
	"github.com/yndnr/fieldstore-go/internal/infra/shutdown"
	"github.com/yndnr/fieldstore-go/internal/infra/tlsroots"
	"github.com/yndnr/fieldstore-go/internal/notify"
	"github.com/yndnr/fieldstore-go/internal/server/config"
	"github.com/yndnr/fieldstore-go/internal/server/httpserver"
	"github.com/yndnr/fieldstore-go/internal/server/httpserver/handler"
	"github.com/yndnr/fieldstore-go/internal/server/localserver"
	"github.com/yndnr/fieldstore-go/internal/storage"
	"github.com/yndnr/fieldstore-go/internal/telemetry/logger"
	"github.com/yndnr/fieldstore-go/internal/telemetry/metric"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// Options configures an Agent beyond the server configuration.
type Options struct {
	// ConfigPath is the configuration file to watch for reloads. Optional.
	ConfigPath string
	// Clock overrides the system clock (tests).
	Clock tzclock.Clock
	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

// Agent is a running fieldstore-server instance.
type Agent struct {
	cfg        *config.ServerConfig
	configPath string
	logger     *slog.Logger

	clock     *tzclock.Service
	metrics   *metric.Registry
	store     *storage.Store
	bus       *notify.Bus
	channel   *notify.DirChannel
	users     *service.UserService
	lifecycle *service.LifecycleService

	shutdown *shutdown.Handler

	// resweep coalesces sweep requests raised by remote order changes.
	resweep chan struct{}
	sweepMu sync.Mutex

	ready    chan struct{}
	httpAddr string
}

// New opens the store and wires the services. The caller must Run the
// agent or Close it.
func New(cfg *config.ServerConfig, opts Options) (*Agent, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	clock, err := tzclock.New(cfg.Clock.Timezone, opts.Clock)
	if err != nil {
		return nil, err
	}
	metrics := metric.NewRegistry()

	storeCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storeCfg.InMemory = cfg.Storage.InMemory
	storeCfg.SyncWrites = cfg.Storage.SyncWrites && !cfg.Storage.InMemory
	storeCfg.GCInterval = cfg.Storage.GCInterval
	storeCfg.MemTableSize = cfg.Storage.MemTableSize
	storeCfg.Clock = clock
	storeCfg.Metrics = metrics
	storeCfg.Logger = opts.Logger.With("component", "storage")
	store, err := storage.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	metrics.MustRegister(metric.NewCollector(store))

	a := &Agent{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		clock:      clock,
		metrics:    metrics,
		store:      store,
		shutdown:   shutdown.NewHandler(cfg.Server.ShutdownTimeout, opts.Logger),
		resweep:    make(chan struct{}, 1),
		ready:      make(chan struct{}),
	}

	busCfg := notify.Config{
		Clock:   clock,
		Metrics: metrics,
		Logger:  opts.Logger.With("component", "notify"),
	}
	if dir := cfg.BroadcastDir(); cfg.Notify.Enabled && dir != "" {
		ch, err := notify.NewDirChannel(notify.DirConfig{
			Dir:        dir,
			KeepEvents: cfg.Notify.KeepEvents,
			Logger:     busCfg.Logger,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		a.channel = ch
		busCfg.Broadcast = ch
	}
	a.bus = notify.NewBus(busCfg)
	store.SetNotifier(a.bus)

	svcOpts := service.Options{Clock: clock, Metrics: metrics, Logger: opts.Logger.With("component", "service")}
	a.users = service.NewUserService(store, svcOpts)
	a.lifecycle = service.NewLifecycleService(store, nil, svcOpts)
	return a, nil
}

// Store returns the record store.
func (a *Agent) Store() *storage.Store {
	return a.store
}

// Bus returns the change notification bus.
func (a *Agent) Bus() *notify.Bus {
	return a.bus
}

// Ready is closed once the agent has finished startup and its
// endpoints accept connections.
func (a *Agent) Ready() <-chan struct{} {
	return a.ready
}

// HTTPAddr returns the bound ops address, empty when disabled. Valid
// after Ready.
func (a *Agent) HTTPAddr() string {
	return a.httpAddr
}

// Shutdown asks a running agent to stop.
func (a *Agent) Shutdown() {
	a.shutdown.Trigger()
}

// Close releases the store of an agent that never ran.
func (a *Agent) Close() error {
	return a.store.Close()
}

// Run starts the agent and blocks until a termination signal, Shutdown
// or the end of ctx, then stops every component.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting fieldstore-server",
		"version", buildinfo.Version,
		"timezone", a.clock.Location().String(),
		"data_dir", a.cfg.Storage.DataDir,
		"in_memory", a.cfg.Storage.InMemory)

	a.shutdown.OnShutdown("store", func(context.Context) error {
		return a.store.Close()
	})

	if err := a.bootstrap(ctx); err != nil {
		a.store.Close()
		return err
	}

	probe := a.store.ProbePersistence()
	if !probe.Persisted {
		a.logger.Warn("data may not survive a restart", "supported", probe.Supported, "reason", probe.Reason)
	}

	if _, err := a.Sweep(ctx, "startup"); err != nil {
		a.logger.Error("startup sweep failed", "error", err)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	a.shutdown.OnShutdown("background", func(context.Context) error {
		cancel()
		wg.Wait()
		return nil
	})

	sub := a.bus.Subscribe(0)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sub.Close()
		a.logEvents(bgCtx, sub)
	}()

	if a.channel != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.channel.Listen(bgCtx, a.bus.Deliver); err != nil {
				a.logger.Error("broadcast listener stopped", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scheduleSweeps(bgCtx)
	}()

	if err := a.startEndpoints(bgCtx, &wg); err != nil {
		a.shutdown.Trigger()
		waitErr := a.shutdown.Wait(context.Background())
		return errors.Join(err, waitErr)
	}

	if a.configPath != "" {
		if err := a.watchConfig(); err != nil {
			a.logger.Warn("config watcher disabled", "path", a.configPath, "error", err)
		}
	}

	close(a.ready)
	a.logger.Info("fieldstore-server started", "http_addr", a.httpAddr, "socket", a.cfg.SocketPath())

	if err := a.shutdown.Wait(ctx); err != nil {
		a.logger.Error("shutdown error", "error", err)
		return err
	}
	a.logger.Info("fieldstore-server stopped")
	return nil
}

// bootstrap seeds the configured administrator.
func (a *Agent) bootstrap(ctx context.Context) error {
	b := a.cfg.Bootstrap
	if !b.IsSet() {
		return nil
	}
	created, err := a.users.EnsureAdmin(ctx, service.BootstrapAdmin{
		Name:     b.AdminName,
		Password: b.AdminPassword,
		Code:     b.AdminCode,
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		a.logger.Info("bootstrap administrator created", "code", b.AdminCode)
	}
	return nil
}

// Sweep runs one expiration sweep over every order, tagged with a run ID.
func (a *Agent) Sweep(ctx context.Context, trigger string) (*service.SweepResult, error) {
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()

	ctx = logger.WithLogger(ctx, a.logger)
	ctx = logger.WithRunID(ctx, ulid.MustNew(ulid.Now(), rand.Reader).String())
	log := logger.L(ctx)

	start := time.Now()
	result, err := a.lifecycle.SweepExpirations(ctx, nil)
	if err != nil {
		return nil, err
	}
	log.Debug("sweep finished",
		"trigger", trigger,
		"evaluated", result.Evaluated,
		"expired", len(result.Expired),
		"restored", len(result.Restored),
		"version", result.Version,
		"duration", time.Since(start))
	return result, nil
}

// SweepExpirations implements handler.SweepRunner, serializing on-demand
// sweeps with scheduled ones.
func (a *Agent) SweepExpirations(ctx context.Context, codes []int64) (*service.SweepResult, error) {
	if len(codes) == 0 {
		return a.Sweep(ctx, "http")
	}
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()
	return a.lifecycle.SweepExpirations(ctx, codes)
}

// scheduleSweeps re-sweeps at each reference-zone midnight, on the
// safety interval and after remote order changes.
func (a *Agent) scheduleSweeps(ctx context.Context) {
	midnight := time.NewTimer(a.untilMidnight())
	defer midnight.Stop()

	var tick <-chan time.Time
	if a.cfg.Sweep.Interval > 0 {
		ticker := time.NewTicker(a.cfg.Sweep.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	run := func(trigger string) {
		if _, err := a.Sweep(ctx, trigger); err != nil && ctx.Err() == nil {
			a.logger.Error("scheduled sweep failed", "trigger", trigger, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-midnight.C:
			run("midnight")
			midnight.Reset(a.untilMidnight())
		case <-tick:
			run("interval")
		case <-a.resweep:
			run("remote-change")
		}
	}
}

// untilMidnight is measured on the agent clock so a fixed clock never
// yields a past deadline.
func (a *Agent) untilMidnight() time.Duration {
	now := a.clock.Now()
	return a.clock.NextMidnight(now).Sub(now)
}

// logEvents logs change events and queues a sweep when another process
// changed orders.
func (a *Agent) logEvents(ctx context.Context, sub *notify.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			remote := e.Origin != a.bus.Origin()
			a.logger.Info("change event",
				"event", e.Name,
				"id", e.ID,
				"reason", e.Reason,
				"timestamp", e.Timestamp,
				"remote", remote)
			if remote && e.Name == notify.OrdersChanged {
				select {
				case a.resweep <- struct{}{}:
				default:
				}
			}
		}
	}
}

// startEndpoints binds the TCP and Unix socket endpoints. Background
// work tied to the endpoints runs on ctx and is tracked by wg.
func (a *Agent) startEndpoints(ctx context.Context, wg *sync.WaitGroup) error {
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.Config{
			Store:   a.store,
			Sweeper: a,
			Metrics: a.metrics.Handler(),
			Clock:   a.clock,
		},
		Logger:          a.logger.With("component", "http"),
		GlobalRateLimit: httpserver.DefaultRouterConfig().GlobalRateLimit,
		AccessLog:       true,
	})

	if addr := a.cfg.Server.HTTP.Addr; addr != "" {
		tlsCfg, err := a.tlsConfig(ctx, wg)
		if err != nil {
			return err
		}
		srv := httpserver.New(httpserver.Config{Addr: addr, Handler: router, TLS: tlsCfg})
		if err := srv.Listen(); err != nil {
			return err
		}
		a.httpAddr = srv.Addr()
		a.shutdown.OnShutdown("http", srv.Shutdown)
		go func() {
			if err := srv.Serve(); err != nil {
				a.logger.Error("HTTP server error", "error", err)
			}
		}()
	}

	if path := a.cfg.SocketPath(); path != "" {
		local := localserver.New(path, localserver.NewHandler(router, localserver.Control{
			Reload:   a.reload,
			Shutdown: a.shutdown.Trigger,
			Logger:   a.logger,
		}))
		if err := local.Listen(); err != nil {
			return err
		}
		a.shutdown.OnShutdown("socket", local.Shutdown)
		go func() {
			if err := local.Serve(); err != nil {
				a.logger.Error("socket server error", "error", err)
			}
		}()
	}
	return nil
}

// tlsConfig loads the ops endpoint key pair and starts its reload
// watcher. It returns nil when TLS is not configured.
func (a *Agent) tlsConfig(ctx context.Context, wg *sync.WaitGroup) (*tls.Config, error) {
	httpCfg := a.cfg.Server.HTTP
	if !httpCfg.TLSEnabled() {
		return nil, nil
	}
	log := a.logger.With("component", "tls")
	w, err := tlsroots.NewWatcher(httpCfg.TLSCertFile, httpCfg.TLSKeyFile, 0, log)
	if err != nil {
		return nil, err
	}
	var clientCAs *x509.CertPool
	if httpCfg.ClientCAFile != "" {
		if clientCAs, err = tlsroots.LoadClientCAs(httpCfg.ClientCAFile); err != nil {
			return nil, err
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			log.Warn("certificate reload disabled", "error", err)
		}
	}()
	return tlsroots.ServerConfig(w, clientCAs), nil
}

// watchConfig reloads the configuration when its file changes.
func (a *Agent) watchConfig() error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(a.logger))
	if err != nil {
		return err
	}
	if err := w.Watch(a.configPath); err != nil {
		w.Stop()
		return err
	}
	w.OnChange(func(string) {
		if err := a.reload(); err != nil {
			a.logger.Warn("config reload failed", "path", a.configPath, "error", err)
		}
	})
	w.StartAsync()
	a.shutdown.OnShutdown("config-watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}

// reload re-reads the configuration file. Only the log level is applied
// at runtime; other changes need a restart.
func (a *Agent) reload() error {
	if a.configPath == "" {
		return errors.New("no configuration file")
	}
	next, err := config.Load(a.configPath, nil)
	if err != nil {
		return err
	}
	if !logger.ValidLevel(next.Log.Level) {
		return fmt.Errorf("invalid log level %q", next.Log.Level)
	}
	prev := logger.GetLevel()
	logger.SetLevel(next.Log.Level)
	if now := logger.GetLevel(); now != prev {
		a.logger.Info("log level changed", "from", prev, "to", now)
	}
	return nil
}
