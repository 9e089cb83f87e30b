// Package app assembles the sync engine from configuration: the store, the
// backend client, connectivity, services, the orchestrator and the status
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"snapshoot-sync/config"
	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/auth"
	"snapshoot-sync/internal/connectivity"
	"snapshoot-sync/internal/kv"
	"snapshoot-sync/internal/metrics"
	"snapshoot-sync/internal/outbox"
	"snapshoot-sync/internal/repository"
	"snapshoot-sync/internal/server"
	"snapshoot-sync/internal/services"
	"snapshoot-sync/internal/storage"
	snapshoot_errors "snapshoot-sync/pkg/errors"
	"snapshoot-sync/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthKey = "health_check"

type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Store    kv.Store
	Repos    *repository.Repositories
	API      *api.Client
	Monitor  *connectivity.Monitor
	Session  *auth.Session
	Services *services.Services
	Sync     *outbox.Orchestrator
	Hub      *server.Hub
	Registry *prometheus.Registry
}

// New opens the configured store and wires everything on top of it. The
// caller owns the result and must Close it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	repos := repository.New(store, nil)

	client := api.New(
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithTimeout(cfg.API.Timeout),
		api.WithTokenSource(repos.Token.Get),
	)

	media, err := mediaStore(ctx, cfg.Media, client)
	if err != nil {
		kv.Close(store)
		return nil, err
	}

	prober, err := newProber(cfg.Connectivity, cfg.API)
	if err != nil {
		kv.Close(store)
		return nil, err
	}
	var monitorOpts []connectivity.Option
	monitorOpts = append(monitorOpts, connectivity.WithLogger(log))
	if prober != nil {
		monitorOpts = append(monitorOpts, connectivity.WithProber(prober, cfg.Connectivity.Interval))
	}
	monitor := connectivity.NewMonitor(prober == nil, monitorOpts...)

	session := auth.NewSession(client, repos.Token, repos.User, monitor, log, auth.WithClaim(repos.ClaimFor))
	env := &services.Env{Signal: monitor, Auth: session, Log: log}
	svc := services.New(env, repos, client, media)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := server.NewHub(log)
	orchestrator := outbox.New(monitor, session, outbox.Steps(repos, svc),
		outbox.WithRateLimit(cfg.Sync.RatePerSecond, cfg.Sync.Burst),
		outbox.WithLogger(log),
		outbox.WithMetrics(metrics.NewSync(registry)),
		outbox.WithReportHook(hub.PublishReport),
	)

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Repos:    repos,
		API:      client,
		Monitor:  monitor,
		Session:  session,
		Services: svc,
		Sync:     orchestrator,
		Hub:      hub,
		Registry: registry,
	}, nil
}

// Server builds the status server over this app.
func (a *App) Server() *server.Server {
	return server.New(a.Config, server.Deps{
		Sync:         a.Sync,
		Connectivity: a.Monitor,
		Session:      a.Session,
		Hub:          a.Hub,
		Health:       a.Health,
		Metrics:      promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
	}, a.Log)
}

// Run probes connectivity, syncs on every online edge and serves the status
// server until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.Monitor.Run(ctx)
	}()

	a.Sync.Start(ctx)
	err := a.Server().Run(ctx)

	cancel()
	a.Sync.Stop()
	wg.Wait()
	a.Services.Env.Wait()
	return err
}

// Health checks that the store answers.
func (a *App) Health(ctx context.Context) error {
	if _, _, err := a.Store.Get(ctx, healthKey); err != nil {
		return fmt.Errorf("%w: %v", snapshoot_errors.ErrStoreUnavailable, err)
	}
	return nil
}

func (a *App) Close() error {
	a.Services.Env.Wait()
	return kv.Close(a.Store)
}

// OpenStore opens the configured backend, namespaced by KeyPrefix.
func OpenStore(ctx context.Context, cfg config.Store) (kv.Store, error) {
	var (
		store kv.Store
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		store = kv.NewMemoryStore()
	case "sqlite", "":
		store, err = kv.OpenSQLite(cfg.SQLitePath)
	case "redis":
		rs := kv.NewRedisStore(kv.NewRedisClient(kv.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		if err = rs.Ping(ctx); err != nil {
			rs.Close()
		} else {
			store = rs
		}
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("store: postgres backend needs DATABASE_URL")
		}
		store, err = kv.OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Backend, err)
	}
	if cfg.KeyPrefix != "" {
		store = kv.WithPrefix(store, cfg.KeyPrefix)
	}
	return store, nil
}

func mediaStore(ctx context.Context, cfg config.Media, client *api.Client) (services.MediaStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "api", "":
		return client, nil
	case "s3":
		s3, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.Region,
			Bucket:     cfg.Bucket,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			Endpoint:   cfg.Endpoint,
			PublicBase: cfg.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating s3 client: %w", err)
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("media: unknown backend %q", cfg.Backend)
	}
}

// newProber returns nil for "none", which leaves the device online until
// told otherwise.
func newProber(cfg config.Connectivity, apiCfg config.API) (connectivity.Prober, error) {
	url := cfg.ProbeURL(apiCfg)
	switch strings.ToLower(cfg.Probe) {
	case "http", "":
		return connectivity.NewHTTPProber(url, cfg.Timeout), nil
	case "websocket", "ws":
		return connectivity.NewWebSocketProber(toWebSocketURL(url), cfg.Timeout), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("connectivity: unknown probe %q", cfg.Probe)
	}
}

func toWebSocketURL(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}
