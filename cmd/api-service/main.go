package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/MagnunAVF/shinyid/internal/api"
	"github.com/MagnunAVF/shinyid/internal/config"
	"github.com/MagnunAVF/shinyid/internal/events"
	"github.com/MagnunAVF/shinyid/internal/idclient"
	applog "github.com/MagnunAVF/shinyid/internal/logger"
	"github.com/MagnunAVF/shinyid/internal/store"
)

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func main() {
	config.LoadDotEnv()
	log := applog.InitFromEnv("api-service")

	cfg, err := config.FromEnv()
	if err != nil {
		fatal("Invalid configuration", err)
	}
	if err := cfg.RequireDB(); err != nil {
		fatal("Invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBURL, cfg.GormLogLevel)
	if err != nil {
		fatal("Unable to connect to database", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal("Unable to connect to Redis", err)
	}

	st := store.New(db, rdb, cfg.CacheTTL)
	log.Info("Running auto-migration")
	if err := st.Migrate(ctx); err != nil {
		fatal("Failed to migrate database", err)
	}

	rabbitConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		fatal("Unable to connect to RabbitMQ", err)
	}
	defer rabbitConn.Close()
	rabbitCH, err := rabbitConn.Channel()
	if err != nil {
		fatal("Unable to open RabbitMQ channel", err)
	}
	defer rabbitCH.Close()
	if _, err := events.DeclareQueue(rabbitCH, cfg.LookupQueue); err != nil {
		fatal("Failed to declare queue", err)
	}

	app := api.NewApp(api.Deps{
		Records: st,
		IDs:     idclient.New(cfg.IDServiceURL, nil),
		Events:  events.NewPublisher(rabbitCH, cfg.LookupQueue),
		Logger:  log,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("Error shutting down", "err", err)
		}
	}()

	log.Info("Starting API Service", "addr", cfg.APIAddr)
	if err := app.Listen(cfg.APIAddr); err != nil {
		fatal("API Service failed", err)
	}
}
