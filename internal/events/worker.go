package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/MagnunAVF/shinyid/internal"
	"github.com/MagnunAVF/shinyid/pkg/shiny"
)

// Sink receives flushed batches.
type Sink interface {
	ApplyLookups(ctx context.Context, tallies map[string]internal.LookupTally) error
}

// Worker batches lookup deliveries and hands them to a Sink. A batch is
// acked only after the sink accepted it and nacked with requeue otherwise.
type Worker struct {
	sink      Sink
	batchSize int
	interval  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewWorker(sink Sink, batchSize int, interval time.Duration, log *slog.Logger) *Worker {
	return &Worker{
		sink:      sink,
		batchSize: batchSize,
		interval:  interval,
		log:       log,
		now:       time.Now,
	}
}

// Consume starts a manual-ack consumer on queue with prefetch set to the
// batch size.
func (w *Worker) Consume(ch *amqp091.Channel, queue string) (<-chan amqp091.Delivery, error) {
	if err := ch.Qos(w.batchSize, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("register consumer: %w", err)
	}
	return msgs, nil
}

// Run processes msgs until ctx is cancelled or msgs is closed. Pending
// events are flushed before it returns.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp091.Delivery) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var b batch
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx), &b)
			return nil

		case d, ok := <-msgs:
			if !ok {
				w.flush(ctx, &b)
				return errors.New("delivery channel closed")
			}
			ev, err := w.decode(d.Body)
			if err != nil {
				w.log.Error("rejecting lookup event", "err", err)
				if err := d.Reject(false); err != nil {
					w.log.Error("reject failed", "err", err)
				}
				continue
			}
			b.add(ev, d)
			if len(b.deliveries) >= w.batchSize {
				w.flush(ctx, &b)
				ticker.Reset(w.interval)
			}

		case <-ticker.C:
			if len(b.deliveries) > 0 {
				w.log.Info("timer flush", "count", len(b.deliveries))
				w.flush(ctx, &b)
			}
		}
	}
}

func (w *Worker) decode(body []byte) (internal.LookupEvent, error) {
	var ev internal.LookupEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("decode lookup event: %w", err)
	}
	if ev.Shiny == "" {
		return ev, fmt.Errorf("lookup event without shiny: %w", shiny.ErrInvalidInput)
	}
	if _, err := shiny.Decode(ev.Shiny); err != nil {
		return ev, fmt.Errorf("lookup event: %w", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = w.now().UTC()
	}
	return ev, nil
}

func (w *Worker) flush(ctx context.Context, b *batch) {
	if len(b.deliveries) == 0 {
		return
	}
	defer b.reset()

	if err := w.sink.ApplyLookups(ctx, b.tallies); err != nil {
		w.log.Error("batch failed, requeueing", "count", len(b.deliveries), "err", err)
		for _, d := range b.deliveries {
			if err := d.Nack(false, true); err != nil {
				w.log.Error("nack failed", "tag", d.DeliveryTag, "err", err)
			}
		}
		return
	}

	for _, d := range b.deliveries {
		if err := d.Ack(false); err != nil {
			w.log.Error("ack failed", "tag", d.DeliveryTag, "err", err)
		}
	}
	w.log.Info("batch applied", "events", len(b.deliveries), "shinies", len(b.tallies))
}

type batch struct {
	tallies    map[string]internal.LookupTally
	deliveries []amqp091.Delivery
}

func (b *batch) add(ev internal.LookupEvent, d amqp091.Delivery) {
	if b.tallies == nil {
		b.tallies = make(map[string]internal.LookupTally)
	}
	t := b.tallies[ev.Shiny]
	t.Count++
	if ev.Timestamp.After(t.Last) {
		t.Last = ev.Timestamp
	}
	b.tallies[ev.Shiny] = t
	b.deliveries = append(b.deliveries, d)
}

func (b *batch) reset() {
	b.tallies = nil
	b.deliveries = nil
}
