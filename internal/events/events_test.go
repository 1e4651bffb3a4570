package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MagnunAVF/shinyid/internal"
)

type ackLog struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	rejected []uint64
}

func (a *ackLog) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackLog) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.nacked = append(a.nacked, tag)
	}
	return nil
}

func (a *ackLog) Reject(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejected = append(a.rejected, tag)
	return nil
}

type sinkFunc func(ctx context.Context, tallies map[string]internal.LookupTally) error

func (f sinkFunc) ApplyLookups(ctx context.Context, tallies map[string]internal.LookupTally) error {
	return f(ctx, tallies)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func delivery(t *testing.T, acks *ackLog, tag uint64, v any) amqp091.Delivery {
	t.Helper()
	var body []byte
	switch b := v.(type) {
	case string:
		body = []byte(b)
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	return amqp091.Delivery{Acknowledger: acks, DeliveryTag: tag, Body: body}
}

func TestWorkerFlushesFullBatch(t *testing.T) {
	acks := &ackLog{}
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	got := make(chan map[string]internal.LookupTally, 1)
	sink := sinkFunc(func(_ context.Context, tallies map[string]internal.LookupTally) error {
		got <- tallies
		return nil
	})

	w := NewWorker(sink, 3, time.Hour, quietLogger())
	msgs := make(chan amqp091.Delivery, 3)
	msgs <- delivery(t, acks, 1, internal.LookupEvent{Shiny: "H0", Timestamp: t0})
	msgs <- delivery(t, acks, 2, internal.LookupEvent{Shiny: "CSf", Timestamp: t0})
	msgs <- delivery(t, acks, 3, internal.LookupEvent{Shiny: "H0", Timestamp: t0.Add(time.Minute)})
	close(msgs)

	err := w.Run(context.Background(), msgs)
	require.Error(t, err)

	tallies := <-got
	assert.Equal(t, internal.LookupTally{Count: 2, Last: t0.Add(time.Minute)}, tallies["H0"])
	assert.Equal(t, internal.LookupTally{Count: 1, Last: t0}, tallies["CSf"])
	assert.Equal(t, []uint64{1, 2, 3}, acks.acked)
	assert.Empty(t, acks.nacked)
}

func TestWorkerRejectsBadEvents(t *testing.T) {
	acks := &ackLog{}
	var calls int
	sink := sinkFunc(func(_ context.Context, tallies map[string]internal.LookupTally) error {
		calls++
		assert.Equal(t, int64(1), tallies["B"].Count)
		assert.False(t, tallies["B"].Last.IsZero(), "missing timestamp is filled in")
		return nil
	})

	w := NewWorker(sink, 10, time.Hour, quietLogger())
	msgs := make(chan amqp091.Delivery, 5)
	msgs <- delivery(t, acks, 1, "not json")
	msgs <- delivery(t, acks, 2, internal.LookupEvent{Shiny: "!@#$%"})
	msgs <- delivery(t, acks, 3, internal.LookupEvent{Shiny: ""})
	msgs <- delivery(t, acks, 4, internal.LookupEvent{Shiny: "Q__________"})
	msgs <- delivery(t, acks, 5, internal.LookupEvent{Shiny: "B"})
	close(msgs)

	_ = w.Run(context.Background(), msgs)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []uint64{1, 2, 3, 4}, acks.rejected)
	assert.Equal(t, []uint64{5}, acks.acked)
}

func TestWorkerRequeuesOnSinkFailure(t *testing.T) {
	acks := &ackLog{}
	sink := sinkFunc(func(context.Context, map[string]internal.LookupTally) error {
		return errors.New("db down")
	})

	w := NewWorker(sink, 2, time.Hour, quietLogger())
	msgs := make(chan amqp091.Delivery, 2)
	msgs <- delivery(t, acks, 7, internal.LookupEvent{Shiny: "H0"})
	msgs <- delivery(t, acks, 8, internal.LookupEvent{Shiny: "H0"})
	close(msgs)

	_ = w.Run(context.Background(), msgs)

	assert.Empty(t, acks.acked)
	assert.Equal(t, []uint64{7, 8}, acks.nacked)
}

func TestWorkerTimerFlushAndShutdown(t *testing.T) {
	acks := &ackLog{}
	flushed := make(chan int, 2)
	sink := sinkFunc(func(_ context.Context, tallies map[string]internal.LookupTally) error {
		flushed <- int(tallies["H0"].Count)
		return nil
	})

	w := NewWorker(sink, 100, 20*time.Millisecond, quietLogger())
	msgs := make(chan amqp091.Delivery)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, msgs) }()

	msgs <- delivery(t, acks, 1, internal.LookupEvent{Shiny: "H0"})
	select {
	case n := <-flushed:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("timer flush did not happen")
	}

	msgs <- delivery(t, acks, 2, internal.LookupEvent{Shiny: "H0"})
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, <-flushed)
	acks.mu.Lock()
	defer acks.mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, acks.acked)
}

type recordingChannel struct {
	key string
	msg amqp091.Publishing
	err error
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	c.key = key
	c.msg = msg
	return c.err
}

func TestPublisher(t *testing.T) {
	ch := &recordingChannel{}
	p := NewPublisher(ch, "shiny.lookups")
	ev := internal.LookupEvent{Shiny: "H0", Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), UserAgent: "curl"}

	require.NoError(t, p.PublishLookup(context.Background(), ev))
	assert.Equal(t, "shiny.lookups", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)

	var back internal.LookupEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &back))
	assert.Equal(t, ev, back)

	ch.err = errors.New("closed")
	require.Error(t, p.PublishLookup(context.Background(), ev))
}
