package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"offline-cart-sync/internal/cartapi"
	"offline-cart-sync/internal/config"
	"offline-cart-sync/internal/connectivity"
	"offline-cart-sync/internal/events"
	"offline-cart-sync/internal/handler"
	"offline-cart-sync/internal/repository"
	"offline-cart-sync/internal/service"
	"offline-cart-sync/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// engine is a fully wired daemon. Nothing runs until Run is called.
type engine struct {
	cfg     *config.Config
	store   repository.KeyValueStore
	guard   *service.InstanceGuard
	monitor *connectivity.Monitor
	hub     *websocket.Hub
	sync    *service.SyncService
	detach  func()
	handler http.Handler
	log     *zap.SugaredLogger
}

func openStore(ctx context.Context, cfg *config.Config) (repository.KeyValueStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return repository.NewMemoryStore(), nil
	case "couch":
		return repository.OpenCouchStore(ctx, cfg.Database.URL(), cfg.Database.Name)
	default:
		return repository.OpenSQLiteStore(cfg.Store.SQLitePath)
	}
}

func newEngine(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*engine, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	e := &engine{cfg: cfg, store: store, log: log}

	if !cfg.Store.AllowShared {
		e.guard = service.NewInstanceGuard(repository.NewInstanceClaimRepository(store), cfg.Store.ClaimTTL, log.Named("instance"))
		if err := e.guard.Acquire(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	bus := events.NewBus()

	e.monitor = connectivity.NewMonitor(connectivity.MonitorConfig{
		HealthURL:        cfg.Remote.BaseURL + "/health",
		ProbeInterval:    cfg.Connectivity.ProbeInterval,
		MaxProbeInterval: cfg.Connectivity.MaxProbeInterval,
		ProbeTimeout:     cfg.Connectivity.ProbeTimeout,
	}, bus, log.Named("connectivity"))

	remote := cartapi.NewClient(cartapi.Config{
		BaseURL:      cfg.Remote.BaseURL,
		ClientID:     cfg.Remote.ClientID,
		ClientSecret: cfg.Remote.ClientSecret,
		Timeout:      cfg.Remote.RequestTimeout,
	}, log.Named("cartapi"))

	session := service.NewSessionContext(bus)
	queue := service.NewQueueService(repository.NewOfflineQueueRepository(store), bus, log.Named("queue"))
	resolver := service.NewCartResolver(session, repository.NewCartIdentityRepository(store), remote, cfg.Sync.CreateCart, log.Named("resolver"))
	notifier := service.MultiNotifier{
		service.NewLogNotifier(log.Named("notify")),
		service.NewEventNotifier(bus),
	}

	e.sync = service.NewSyncService(queue, resolver, session, remote, e.monitor, notifier, bus, service.SyncConfig{
		NotifyPartialSuccess: cfg.Sync.NotifyPartialSuccess,
		PassTimeout:          cfg.Sync.PassTimeout,
	}, log.Named("sync"))
	cartSvc := service.NewCartService(queue, resolver, remote, e.monitor, log.Named("cart"))

	e.hub = websocket.NewHub(websocket.HubConfig{
		MaxClients:     cfg.WebSocket.MaxClients,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
	}, log.Named("ws"))
	e.detach = e.hub.Attach(bus)

	router := handler.NewRouter(&handler.Handlers{
		Cart:         handler.NewCartHandler(cartSvc),
		Queue:        handler.NewQueueHandler(queue),
		Sync:         handler.NewSyncHandler(e.sync),
		Connectivity: handler.NewConnectivityHandler(e.monitor),
		WebSocket: handler.NewWebSocketHandler(e.hub, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, func() interface{} {
			return e.sync.Status()
		}, log.Named("ws")),
	}, cfg.CORS, log.Named("http"))

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	health.AddReadinessCheck("store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return store.Ping(ctx)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/live", health.LiveEndpoint)
	router.HandleFunc("/ready", health.ReadyEndpoint)
	router.HandleFunc("/health", healthHandler).Methods("GET")

	e.handler = router
	return e, nil
}

// Run serves HTTP on addr until ctx is done, then shuts everything down.
func (e *engine) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      e.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: e.cfg.Sync.PassTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.monitor.Run(gctx) })
	g.Go(func() error { return e.hub.Run(gctx) })
	if e.guard != nil {
		g.Go(func() error { return e.guard.Run(gctx) })
	}

	g.Go(func() error {
		e.log.Infow("Starting cartsync engine", "addr", addr, "store", e.cfg.Store.Driver, "env", e.cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		e.log.Infow("Shutting down engine")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		e.sync.Close()
		return err
	})

	err := g.Wait()
	e.close()
	return err
}

func (e *engine) close() {
	e.detach()
	if err := e.store.Close(); err != nil {
		e.log.Warnw("Failed to close store", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"cartsync"}`))
}
