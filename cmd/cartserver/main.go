package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offline-cart-sync/internal/cartserver"
	"offline-cart-sync/internal/config"
	"offline-cart-sync/internal/logger"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	log := logger.For("cartserver")

	if cfg.CartServer.ClientSecretHash == "" {
		log.Warnw("CARTSERVER_CLIENT_SECRET_HASH is empty; every token request will be refused")
	}

	client, err := kivik.New("couch", cfg.Database.URL())
	if err != nil {
		log.Fatalw("Failed to connect to CouchDB", "error", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalw("Failed to check database existence", "error", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalw("Failed to create database", "error", err)
		}
		log.Infow("Created database", "name", cfg.Database.Name)
	}

	cartRepo := cartserver.NewCartRepository(client, cfg.Database.Name)
	productRepo := cartserver.NewProductRepository(client, cfg.Database.Name)

	svc := cartserver.NewService(cartRepo, productRepo, cartserver.Credentials{
		ClientID:         cfg.CartServer.ClientID,
		ClientSecretHash: cfg.CartServer.ClientSecretHash,
		JWTSecret:        cfg.JWT.Secret,
		TokenExpiration:  cfg.JWT.Expiration,
	}, log.Named("service"))

	r := cartserver.NewRouter(cartserver.NewHandler(svc), cfg.JWT.Secret, cfg.CORS, log.Named("http"))

	addr := fmt.Sprintf("%s:%s", cfg.CartServer.Host, cfg.CartServer.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("Starting cart server", "addr", addr, "env", cfg.Server.Env)
		log.Infow("Connected to CouchDB", "host", cfg.Database.Host, "port", cfg.Database.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("Server forced to shutdown", "error", err)
	}

	client.Close()
	log.Infow("Server stopped gracefully")
}
