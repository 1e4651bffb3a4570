package main

// The id-service hands out snowflake ids together with their shiny form.

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MagnunAVF/shinyid/internal/api"
	"github.com/MagnunAVF/shinyid/internal/config"
	applog "github.com/MagnunAVF/shinyid/internal/logger"
	"github.com/MagnunAVF/shinyid/internal/snowflake"
)

func main() {
	config.LoadDotEnv()
	log := applog.InitFromEnv("id-service")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	gen, err := snowflake.NewGenerator(cfg.NodeID)
	if err != nil {
		log.Error("Failed to create ID generator", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := api.NewIDApp(gen, log)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("Error shutting down", "err", err)
		}
	}()

	log.Info("Starting ID Service", "addr", cfg.IDAddr, "node_id", cfg.NodeID)
	if err := app.Listen(cfg.IDAddr); err != nil {
		log.Error("ID Service failed", "err", err)
		os.Exit(1)
	}
}
