package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hively/config"
	"hively/internal/database"
	"hively/internal/router"
	"hively/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Server.Env != "production")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		lg.Fatalw("database open failed", "error", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		lg.Fatalw("migrate failed", "error", err)
	}

	app := router.Setup(cfg, db, lg)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		lg.Infow("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatalw("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Infow("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Errorw("server shutdown failed", "error", err)
	}
	// Give in-flight deliveries a chance to finish; anything still pending
	// stays at status pending in the store.
	if !app.Queue.Drain(5 * time.Second) {
		lg.Warnw("shutdown with delivery jobs still in flight")
	}
	lg.Infow("server stopped")
}
