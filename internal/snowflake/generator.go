// Package snowflake mints unique, roughly time-ordered 64-bit ids.
// https://en.wikipedia.org/wiki/Snowflake_ID
//
// Layout, most significant first: milliseconds since Epoch, 10 bits of node
// id, 12 bits of sequence.
package snowflake

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MagnunAVF/shinyid/pkg/shiny"
)

const (
	nodeBits = 10
	seqBits  = 12

	MaxNodeID = 1<<nodeBits - 1
	maxSeq    = 1<<seqBits - 1
)

// Epoch is 2024-01-01T00:00:00Z in unix milliseconds.
const Epoch int64 = 1704067200000

var ErrNodeID = errors.New("node id out of range")

type Generator struct {
	mu     sync.Mutex
	nodeID uint64
	lastMs int64
	seq    uint64
	now    func() int64
	sleep  func(time.Duration)
}

type Option func(*Generator)

// WithClock replaces the unix-millisecond clock and the sleep used while
// waiting for it to advance.
func WithClock(now func() int64, sleep func(time.Duration)) Option {
	return func(g *Generator) {
		g.now = now
		g.sleep = sleep
	}
}

func NewGenerator(nodeID int64, opts ...Option) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrNodeID, nodeID, MaxNodeID)
	}

	g := &Generator{
		nodeID: uint64(nodeID),
		now:    func() int64 { return time.Now().UnixMilli() },
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NextID returns the next id. Ids from one generator strictly increase.
func (g *Generator) NextID() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < Epoch {
		return 0, fmt.Errorf("clock at %d is before epoch %d", ms, Epoch)
	}
	if ms < g.lastMs {
		// Clock went backwards.
		ms = g.waitAfter(g.lastMs - 1)
	}
	if ms == g.lastMs {
		g.seq = (g.seq + 1) & maxSeq
		if g.seq == 0 {
			ms = g.waitAfter(g.lastMs)
		}
	} else {
		g.seq = 0
	}
	g.lastMs = ms

	return uint64(ms-Epoch)<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq, nil
}

// Next is NextID as a shiny.ID.
func (g *Generator) Next() (shiny.ID, error) {
	id, err := g.NextID()
	if err != nil {
		return 0, err
	}
	return shiny.ID(id), nil
}

func (g *Generator) waitAfter(ms int64) int64 {
	cur := g.now()
	for cur <= ms {
		g.sleep(time.Millisecond)
		cur = g.now()
	}
	return cur
}

// Parts splits an id into its timestamp, node id and sequence.
func Parts(id uint64) (ts time.Time, nodeID, seq uint64) {
	ms := int64(id>>(nodeBits+seqBits)) + Epoch
	return time.UnixMilli(ms).UTC(), (id>>seqBits)&MaxNodeID, id&maxSeq
}
