package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/infra/confloader"
	"github.com/yndnr/kvmesh-go/internal/infra/shutdown"
	"github.com/yndnr/kvmesh-go/internal/server/config"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/kvmesh-go/internal/server/localserver"
	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
	"github.com/yndnr/kvmesh-go/pkg/arena"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		noLogs      = flag.Bool("no-logs", false, "Disable per-request access logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("kvmesh-server " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *noLogs {
		cfg.Log.EachRequest = false
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	build := buildinfo.Get()
	log.Info("starting kvmesh-server",
		"version", build.Version,
		"commit", build.Commit,
		"config", *configFile)
	log.Debug("configuration", "config", config.Sanitize(cfg))

	store, err := newStore(cfg, log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	persister, err := recoverStore(ctx, cfg, store, log)
	if err != nil {
		store.Close()
		return err
	}

	metrics := metric.NewRegistry()
	if bb, ok := persister.Backend().(*storage.BadgerBackend); ok {
		bb.RegisterMetrics(metrics.Registerer())
	}

	svc := service.NewKVService(store,
		service.WithLimits(cfg.Limits()),
		service.WithLogger(log),
		service.WithSnapshot(func(ctx context.Context) (int, error) {
			start := time.Now()
			n, err := persister.Save(ctx, store)
			metrics.ObserveSave(time.Since(start), err)
			return n, err
		}))
	metrics.Registerer().MustRegister(metric.NewStoreCollector(svc, false))

	persister.StartAutoSave(store, cfg.Storage.SaveInterval)

	// Listen before reporting ready so bind errors end startup.
	httpLn, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		_ = persister.Close()
		store.Close()
		return fmt.Errorf("http listen: %w", err)
	}
	var respLn net.Listener
	if cfg.Server.Redis.Enabled {
		if respLn, err = net.Listen("tcp", cfg.Server.Redis.Addr); err != nil {
			httpLn.Close()
			_ = persister.Close()
			store.Close()
			return fmt.Errorf("resp listen: %w", err)
		}
	}
	var localLn net.Listener
	if path := cfg.Server.Local.Socket; path != "" {
		if localLn, err = localserver.Listen(path); err != nil {
			if respLn != nil {
				respLn.Close()
			}
			httpLn.Close()
			_ = persister.Close()
			store.Close()
			return err
		}
	}

	var ready atomic.Bool
	started := time.Now()
	h := handler.New(svc, log, handler.WithReady(ready.Load), handler.WithStartTime(started))
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Handler:     h,
		Metrics:     metrics,
		Logger:      log,
		EachRequest: cfg.Log.EachRequest,
		RateLimit:   cfg.Server.HTTP.RateLimit,
		RateBurst:   cfg.Server.HTTP.RateBurst,
	})
	httpSrv := httpserver.New(httpserver.Config{
		Addr:         cfg.Server.HTTP.Addr,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}, router, log)

	var localSrv *localserver.Server
	if localLn != nil {
		// Same routes without the per-client rate limit.
		localSrv = localserver.New(cfg.Server.Local.Socket, httpserver.NewRouter(httpserver.RouterConfig{
			Handler:     h,
			Metrics:     metrics,
			Logger:      log.With("listener", "local"),
			EachRequest: cfg.Log.EachRequest,
		}), log)
	}

	var respSrv *redisserver.Server
	if respLn != nil {
		rcfg := redisserver.DefaultConfig()
		rcfg.MaxConnections = int64(cfg.Server.Redis.MaxConnections)
		rcfg.RateLimit = cfg.Server.HTTP.RateLimit
		rcfg.RateBurst = cfg.Server.HTTP.RateBurst
		rcfg.MaxBulkLen = cfg.Server.HTTP.MaxValueBytes
		respSrv = redisserver.New(rcfg, redisserver.NewCommandHandler(svc, metrics, log), metrics, log)
	}

	// Hooks run in reverse: stop serving, then save, then release memory.
	sd := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)
	sd.OnShutdown("store", func(context.Context) error {
		store.Close()
		return nil
	})
	sd.OnShutdown("persistence", func(ctx context.Context) error {
		var saveErr error
		if cfg.Storage.SaveOnShutdown {
			_, saveErr = persister.Save(ctx, store)
		}
		return errors.Join(saveErr, persister.Close())
	})
	sd.OnShutdown("http", httpSrv.Shutdown)
	if respSrv != nil {
		sd.OnShutdown("resp", respSrv.Shutdown)
	}
	if localSrv != nil {
		sd.OnShutdown("local", localSrv.Shutdown)
	}
	if *configFile != "" {
		w, err := watchLogLevel(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sd.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
		}
	}
	sd.OnShutdown("readiness", func(context.Context) error {
		ready.Store(false)
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Serve(httpLn) })
	if respSrv != nil {
		g.Go(func() error { return respSrv.Serve(gctx, respLn) })
	}
	if localSrv != nil {
		g.Go(func() error { return localSrv.Serve(localLn) })
	}
	g.Go(func() error { return sd.Wait(gctx) })

	ready.Store(true)
	log.Info("server started",
		"keys", store.Len(),
		"startup", time.Since(started).Round(time.Millisecond))

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// loadConfig merges defaults, the optional file and KVMESH_* variables.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newStore builds the arena provider and the bucket array.
func newStore(cfg *config.ServerConfig, log *slog.Logger) (*lfmap.Store, error) {
	strategy, err := arena.ParseStrategy(cfg.Arena.Strategy, cfg.Arena.ChunkSize)
	if err != nil {
		return nil, err
	}
	provider := arena.New(arena.WithStrategy(strategy), arena.WithSlots(cfg.Arena.Slots))

	hash, err := lfmap.ParseHash(cfg.Storage.Hash)
	if err != nil {
		return nil, err
	}

	buckets := cfg.Storage.BucketCount()
	store := lfmap.New(buckets, lfmap.WithProvider(provider), lfmap.WithHash(hash))
	log.Info("store created",
		"buckets", store.BucketCount(),
		"bucket_array", humanize.IBytes(uint64(store.BucketCount())*8),
		"hash", cfg.Storage.Hash,
		"arena", provider.StrategyName(),
		"arena_slots", provider.Slots())

	if !store.IsLockFree() {
		log.Warn("atomic operations are not lock-free on this platform")
	}
	return store, nil
}

// recoverStore opens the backend and bulk-loads it into store. A failed
// load is fatal unless storage.allow_partial_load is set.
func recoverStore(ctx context.Context, cfg *config.ServerConfig, store *lfmap.Store, log *slog.Logger) (*storage.Persister, error) {
	backend, err := storage.Open(cfg.StorageConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	persister := storage.NewPersister(backend, log)

	n, err := persister.Recover(ctx, store)
	if err != nil {
		if !cfg.Storage.AllowPartialLoad {
			_ = persister.Close()
			return nil, fmt.Errorf("load database: %w", err)
		}
		log.Warn("continuing with partial dataset", "records", n, "error", err)
	}

	st := store.Provider().Stats()
	log.Info("dataset in memory",
		"records", store.Len(),
		"key_bytes", humanize.IBytes(st.BytesUsed))
	return persister, nil
}

// watchLogLevel reloads log.level whenever the config file changes.
func watchLogLevel(path string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level == logger.GetLevel() {
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		log.Info("log level changed", "level", cfg.Log.Level)
	})
	w.StartAsync()
	return w, nil
}
