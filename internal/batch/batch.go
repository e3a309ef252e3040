package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pdatrace/internal/engine"
)

const (
	// DefaultConcurrency is the default number of analyses run at once.
	DefaultConcurrency = 8
)

// ErrTooManyItems is returned by Run when the input exceeds the
// configured maximum.
var ErrTooManyItems = errors.New("too many batch items")

// Analyzer analyzes one request. *engine.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, in engine.RequestInput) (*engine.PdaMatch, error)
}

// Item is the outcome of one batch entry.
type Item struct {
	Index   int                 `json:"index"`
	Input   engine.RequestInput `json:"input"`
	Match   *engine.PdaMatch    `json:"match,omitempty"`
	Err     error               `json:"-"`
	Elapsed time.Duration       `json:"elapsed_ns"`
}

// Result holds every item, in input order, and their aggregate stats.
type Result struct {
	Items []Item `json:"items"`
	Stats Stats  `json:"stats"`
}

// Orchestrator fans a list of requests out over a bounded number of
// goroutines.
//
// Thread-safety: an Orchestrator is immutable after New and Run may be
// called concurrently.
type Orchestrator struct {
	analyzer    Analyzer
	concurrency int
	maxItems    int
	clock       clock.Clock
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency bounds how many analyses run at once. Values below 1
// are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMaxItems rejects batches larger than n. 0 means unlimited.
func WithMaxItems(n int) Option {
	return func(o *Orchestrator) {
		o.maxItems = n
	}
}

// WithClock sets the clock used to time items.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithLogger sets the logger for per-item failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an Orchestrator over a.
func New(a Analyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer:    a,
		concurrency: DefaultConcurrency,
		clock:       clock.NewDefaultClock(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Concurrency returns the configured fan-out bound.
func (o *Orchestrator) Concurrency() int {
	return o.concurrency
}

// Run analyzes every input and returns the items in input order.
//
// A failing item records its error and never aborts the others. If ctx
// is cancelled, items that had not started get ctx's error and Run
// returns ctx.Err() together with the partial result.
func (o *Orchestrator) Run(ctx context.Context, inputs []engine.RequestInput) (*Result, error) {
	if o.maxItems > 0 && len(inputs) > o.maxItems {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(inputs), o.maxItems)
	}

	items := make([]Item, len(inputs))
	for i, in := range inputs {
		items[i] = Item{Index: i, Input: in}
	}

	var eg errgroup.Group
	eg.SetLimit(o.concurrency)

	for i := range items {
		item := &items[i]
		if err := ctx.Err(); err != nil {
			item.Err = err
			continue
		}

		// Each goroutine writes only its own item.
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				item.Err = err
				return nil
			}

			start := o.clock.Now()
			item.Match, item.Err = o.analyzer.Analyze(ctx, item.Input)
			item.Elapsed = o.clock.Now().Sub(start)

			if item.Err != nil {
				o.logger.Debug("batch item failed",
					"index", item.Index, "address", item.Input.Address, "error", item.Err)
			}
			return nil
		})
	}

	// Items never return an error to the group.
	_ = eg.Wait()

	res := &Result{Items: items, Stats: ComputeStats(items)}
	o.logger.Info("batch finished",
		"total", res.Stats.Total,
		"derived", res.Stats.Succeeded,
		"failed", res.Stats.Failed)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
