package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tallymesh/internal/core/actor"
	"github.com/yndnr/tallymesh/internal/core/service"
	"github.com/yndnr/tallymesh/internal/infra/buildinfo"
	"github.com/yndnr/tallymesh/internal/infra/confloader"
	"github.com/yndnr/tallymesh/internal/infra/shutdown"
	"github.com/yndnr/tallymesh/internal/infra/tlsroots"
	"github.com/yndnr/tallymesh/internal/server/config"
	"github.com/yndnr/tallymesh/internal/server/httpserver"
	"github.com/yndnr/tallymesh/internal/server/httpserver/handler"
	"github.com/yndnr/tallymesh/internal/storage"
	"github.com/yndnr/tallymesh/internal/storage/memory"
	"github.com/yndnr/tallymesh/internal/storage/sqlstore"
	"github.com/yndnr/tallymesh/internal/telemetry/logger"
	"github.com/yndnr/tallymesh/internal/telemetry/metric"
	"github.com/yndnr/tallymesh/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// counterStore is what every storage driver provides.
type counterStore interface {
	actor.Store
	service.AlarmSource
	Close() error
}

// backend is an opened storage driver.
type backend struct {
	store counterStore
	// ready is nil when the driver has no remote dependency.
	ready     func(context.Context) error
	collector prometheus.Collector
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		envFile     = flag.String("env-file", "", "Load TALLYMESH_* variables from a dotenv file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("tallymesh-server " + buildinfo.String())
		return nil
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	loader := newLoader(*configFile)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := logger.Slog(log)

	info := buildinfo.Get()
	log.Info("starting tallymesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"storage", cfg.Storage.Driver)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx := context.Background()
	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)

	// Storage
	be, err := openStorage(ctx, cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return be.store.Close()
	})

	// Metrics and sockets
	metrics := metric.NewRegistry()
	sockets := transport.NewRegistry()
	collectors := []prometheus.Collector{metric.NewSocketCollector(sockets.CountByKind)}
	if be.collector != nil {
		collectors = append(collectors, be.collector)
	}
	if err := metrics.Register(collectors...); err != nil {
		return fmt.Errorf("register collectors: %w", err)
	}

	acceptor := transport.NewAcceptor(transport.Config{
		MaxConnections:   cfg.Transport.MaxConnections,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteWait:        cfg.Transport.WriteWait,
		PongWait:         cfg.Transport.PongWait,
		PingPeriod:       cfg.Transport.PingPeriod,
		MaxMessageSize:   cfg.Transport.MaxMessageSize,
		SendBuffer:       cfg.Transport.SendBuffer,
		AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
	}, sockets, log)
	acceptor.OnReject(func(reason string) {
		metrics.SocketsRejected.WithLabelValues(reason).Inc()
	})

	// Actors
	scheduler := actor.NewScheduler(cfg.Actor.AlarmTick, log)
	counters := actor.NewNamespace(actor.KindCounter, actor.NewCounterFactory(&actor.CounterEnv{
		Store:               be.store,
		Sockets:             sockets,
		Alarms:              scheduler,
		Logger:              log,
		Metrics:             metrics,
		MaintenanceInterval: cfg.Actor.MaintenanceInterval,
		StoreTimeout:        cfg.Actor.StoreTimeout,
		Hooks:               []actor.MaintenanceHook{actor.SummaryHook(log, metrics)},
	}), actor.NamespaceOptions{
		IdleTimeout: cfg.Actor.IdleTimeout,
		Metrics:     metrics,
		Logger:      log,
	})
	presence := actor.NewNamespace(actor.KindPresence, actor.NewPresenceFactory(&actor.PresenceEnv{
		Sockets: sockets,
		Logger:  log,
		Metrics: metrics,
	}), actor.NamespaceOptions{
		IdleTimeout: cfg.Actor.IdleTimeout,
		Metrics:     metrics,
		Logger:      log,
	})
	counters.Start()
	presence.Start()
	shutdownHandler.OnShutdown("actors", func(context.Context) error {
		counters.Close()
		presence.Close()
		return nil
	})

	counterSvc := service.NewCounterService(counters, cfg.Actor.CallTimeout, log)
	presenceSvc := service.NewPresenceService(presence, cfg.Actor.CallTimeout)

	scheduler.SetHandler(counterSvc.Alarm)
	restored, err := counterSvc.RestoreAlarms(ctx, be.store, scheduler)
	if err != nil {
		// Counters without a restored alarm get one on next activation.
		log.Warn("alarm restore incomplete", "restored", restored, "error", err)
	} else {
		log.Info("alarms restored", "count", restored)
	}
	scheduler.Start()
	shutdownHandler.OnShutdown("scheduler", scheduler.Stop)

	counterEvents := actor.NewDispatcher(counters, cfg.Transport.SettleDelay, cfg.Actor.CallTimeout, log)
	presenceEvents := actor.NewDispatcher(presence, cfg.Transport.SettleDelay, cfg.Actor.CallTimeout, log)
	shutdownHandler.OnShutdown("sockets", func(ctx context.Context) error {
		n := sockets.CloseAll(websocket.CloseGoingAway, "server shutting down")
		log.Info("sockets closed", "count", n)
		done := make(chan struct{})
		go func() {
			counterEvents.Wait()
			presenceEvents.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for socket events: %w", ctx.Err())
		}
	})

	// Config and certificate watching
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}
	shutdownHandler.OnShutdown("watcher", func(context.Context) error {
		return watcher.Stop()
	})
	if *configFile != "" {
		if err := watchConfig(watcher, loader, *configFile, log); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		}
	}

	srvCfg := httpserver.Config{
		Addr:         cfg.Server.HTTP.Addr,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}
	if cfg.Server.HTTP.TLSCertFile != "" {
		certs, err := tlsroots.NewReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile, log)
		if err != nil {
			return fmt.Errorf("init tls: %w", err)
		}
		if err := certs.Watch(watcher); err != nil {
			log.Warn("certificate hot reload disabled", "error", err)
		}
		srvCfg.TLS = certs.ServerConfig()
	}
	watcher.StartAsync()

	// HTTP
	rateRPS := 0.0
	if cfg.Server.RateLimit.Enabled {
		rateRPS = cfg.Server.RateLimit.RPS
	}
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Deps: handler.Deps{
			Counters:       counterSvc,
			Presence:       presenceSvc,
			Acceptor:       acceptor,
			CounterEvents:  counterEvents,
			PresenceEvents: presenceEvents,
			Ready:          be.ready,
			Logger:         log,
		},
		Metrics:            metrics,
		Logger:             log,
		CORSAllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		RateLimitRPS:       rateRPS,
		RateLimitBurst:     cfg.Server.RateLimit.Burst,
		EnableAudit:        cfg.Log.Audit,
	})
	httpServer := httpserver.New(srvCfg, router, log)

	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}
	shutdownHandler.OnShutdown("http", httpServer.Shutdown)

	go func() {
		log.Info("HTTP server listening", "addr", ln.Addr().String(), "tls", srvCfg.TLS != nil)
		if err := httpServer.Serve(ln); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func newLoader(configFile string) *confloader.Loader {
	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig loads defaults, then the file, then TALLYMESH_* variables.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// watchConfig applies log level changes from the config file without a
// restart. Other settings need a restart.
func watchConfig(w *confloader.Watcher, loader *confloader.Loader, path string, log logger.Logger) error {
	if err := w.Watch(path); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.OnChange(func(changed string) {
		if changed != abs {
			return
		}
		next := config.Default()
		if err := loader.Reload(next); err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		if err := config.Verify(next); err != nil {
			log.Error("reloaded config is invalid", "error", err)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
	})
	return nil
}

func openStorage(ctx context.Context, cfg *config.ServerConfig, slogLogger *slog.Logger) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return &backend{store: storage.NewCounterStore(memory.New())}, nil

	case config.DriverPostgres:
		openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := sqlstore.Open(openCtx, cfg.Storage.Postgres.DSN, cfg.Storage.Postgres.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(openCtx); err != nil {
			db.Close()
			return nil, err
		}
		return &backend{store: db, ready: db.Ping, collector: db.Collector()}, nil

	case config.DriverBadger:
		bc := storage.DefaultBadgerConfig()
		bc.GCInterval = cfg.Storage.Badger.GCInterval
		bc.GCThreshold = cfg.Storage.Badger.GCThreshold
		bc.ValueLogFileSize = cfg.Storage.Badger.ValueLogFileSize
		bc.SyncWrites = cfg.Storage.Badger.SyncWrites

		engine, err := storage.NewBadgerEngine(storage.KVConfig{
			Dir:    cfg.Storage.DataDir,
			Badger: bc,
		}, slogLogger)
		if err != nil {
			return nil, err
		}
		return &backend{store: storage.NewCounterStore(engine), collector: engine.Collector()}, nil
	}
	return nil, errors.New("unknown storage driver " + cfg.Storage.Driver)
}
