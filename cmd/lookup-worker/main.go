package main

// The lookup-worker folds lookup events from RabbitMQ into per-shiny
// counters in postgres.

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rabbitmq/amqp091-go"

	"github.com/MagnunAVF/shinyid/internal/config"
	"github.com/MagnunAVF/shinyid/internal/events"
	applog "github.com/MagnunAVF/shinyid/internal/logger"
	"github.com/MagnunAVF/shinyid/internal/store"
)

func main() {
	config.LoadDotEnv()
	log := applog.InitFromEnv("lookup-worker")

	if err := run(log); err != nil {
		log.Error("Lookup worker stopped", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err := cfg.RequireDB(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBURL, cfg.GormLogLevel)
	if err != nil {
		return err
	}
	st := store.New(db, nil, 0)
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	rabbitConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		return err
	}
	defer rabbitConn.Close()
	rabbitCH, err := rabbitConn.Channel()
	if err != nil {
		return err
	}
	defer rabbitCH.Close()

	q, err := events.DeclareQueue(rabbitCH, cfg.LookupQueue)
	if err != nil {
		return err
	}

	w := events.NewWorker(st, cfg.BatchSize, cfg.FlushInterval, log)
	msgs, err := w.Consume(rabbitCH, q.Name)
	if err != nil {
		return err
	}

	log.Info("Lookup worker started", "queue", q.Name, "batch_size", cfg.BatchSize, "flush_interval", cfg.FlushInterval)
	return w.Run(ctx, msgs)
}
