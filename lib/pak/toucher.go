// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gatehouse-project/gatehouse/lib/clock"
)

// DefaultTouchInterval is the flush cadence when ToucherConfig leaves
// Interval zero.
const DefaultTouchInterval = 5 * time.Second

// touchBufferSize is the capacity of the mark channel. A full buffer
// drops marks rather than blocking verification.
const touchBufferSize = 256

// TouchStore is the slice of Store the toucher needs.
type TouchStore interface {
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// ToucherConfig configures a Toucher.
type ToucherConfig struct {
	// Store receives the flushed last-used updates. Required.
	Store TouchStore

	// Interval is the flush cadence. Zero means
	// DefaultTouchInterval.
	Interval time.Duration

	// Clock drives the flush ticker. Nil means the real clock.
	Clock clock.Clock

	// Logger records flush failures. Required.
	Logger *slog.Logger
}

type touchMark struct {
	keyID  string
	usedAt time.Time
}

// Toucher records last-used timestamps off the verification critical
// path. Marks are queued without blocking, coalesced per key (latest
// wins), and flushed to the store on a ticker. Everything is best
// effort: a full queue drops the mark and a failed flush is logged and
// swallowed. Losing a last-used update is acceptable; slowing down or
// failing a verification is not.
type Toucher struct {
	store    TouchStore
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	marks     chan touchMark
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewToucher validates the config and starts the background goroutine.
func NewToucher(config ToucherConfig) (*Toucher, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("pak: toucher config Store is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("pak: toucher config Logger is required")
	}
	interval := config.Interval
	if interval == 0 {
		interval = DefaultTouchInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("pak: toucher interval must be positive")
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	t := &Toucher{
		store:    config.Store,
		interval: interval,
		clock:    clk,
		logger:   config.Logger,
		marks:    make(chan touchMark, touchBufferSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()
	return t, nil
}

// Record queues a last-used mark. Never blocks: when the buffer is
// full the mark is dropped.
func (t *Toucher) Record(keyID string, usedAt time.Time) {
	select {
	case t.marks <- touchMark{keyID: keyID, usedAt: usedAt}:
	default:
	}
}

// Close flushes pending marks and stops the goroutine. Record calls
// after Close are dropped once the buffer fills. Idempotent.
func (t *Toucher) Close() {
	t.closeOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Toucher) run() {
	defer close(t.done)

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case mark := <-t.marks:
			coalesce(pending, mark)
		case <-ticker.C:
			t.flush(pending)
			clear(pending)
		case <-t.stop:
			// Drain whatever is already buffered, then flush once.
			for {
				select {
				case mark := <-t.marks:
					coalesce(pending, mark)
				default:
					t.flush(pending)
					return
				}
			}
		}
	}
}

// coalesce keeps the latest mark per key.
func coalesce(pending map[string]time.Time, mark touchMark) {
	if existing, ok := pending[mark.keyID]; ok && existing.After(mark.usedAt) {
		return
	}
	pending[mark.keyID] = mark.usedAt
}

func (t *Toucher) flush(pending map[string]time.Time) {
	for keyID, usedAt := range pending {
		if err := t.store.TouchLastUsed(context.Background(), keyID, usedAt); err != nil {
			t.logger.Warn("last-used touch failed", "key_id", keyID, "error", err)
		}
	}
}
