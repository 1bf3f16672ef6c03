package doppler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wifisense/csi-radar/internal/telemetry"
)

// DefaultInterval is the analysis tick period.
const DefaultInterval = time.Second

// ResultStore holds the latest analysis result per device. A tick replaces
// a device's result wholesale; published results are never mutated, so
// readers may hold them across ticks.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewResultStore creates an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*Result)}
}

// Set publishes a device's result, replacing any previous one.
func (rs *ResultStore) Set(deviceID string, r *Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results[deviceID] = r
}

// Get returns a device's latest result, or nil if none has been published.
func (rs *ResultStore) Get(deviceID string) *Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.results[deviceID]
}

// Results returns the latest result for every device. The map is a copy;
// the results it points to are immutable.
func (rs *ResultStore) Results() map[string]*Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make(map[string]*Result, len(rs.results))
	for id, r := range rs.results {
		out[id] = r
	}
	return out
}

// Analyzer periodically snapshots the telemetry store and recomputes each
// roster device's motion analysis. It is pull-based: ticks fire on a fixed
// period regardless of data arrival, so bursty or idle sources cost
// nothing extra. A failure on one device leaves its previous result in
// place and never aborts the tick for the others.
type Analyzer struct {
	store   *telemetry.Store
	results *ResultStore
	roster  []string
	tick    time.Duration
	logger  *slog.Logger
}

// WithInterval sets the tick period.
func WithInterval(d time.Duration) func(*Analyzer) {
	return func(a *Analyzer) {
		if d > 0 {
			a.tick = d
		}
	}
}

// WithLogger sets the logger for the analyzer.
func WithLogger(logger *slog.Logger) func(*Analyzer) {
	return func(a *Analyzer) {
		a.logger = logger.With(slog.String("component", "analyzer"))
	}
}

// NewAnalyzer creates an Analyzer scoring the roster devices from store
// snapshots.
func NewAnalyzer(store *telemetry.Store, roster []string, options ...func(*Analyzer)) *Analyzer {
	a := Analyzer{
		store:   store,
		results: NewResultStore(),
		roster:  roster,
		tick:    DefaultInterval,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Results returns the store the analyzer publishes into.
func (a *Analyzer) Results() *ResultStore {
	return a.results
}

// Run ticks until the context is cancelled.
func (a *Analyzer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.analyzeOnce(time.Now())
		}
	}
}

// analyzeOnce runs one tick over the roster.
func (a *Analyzer) analyzeOnce(at time.Time) {
	snapshot := a.store.Devices()

	for _, id := range a.roster {
		dev, ok := snapshot[id]
		if !ok {
			continue // not seen yet
		}

		result, err := Analyze(dev.CSI, at)
		if err != nil {
			a.logger.Warn(fmt.Sprintf("skipping device: %s", err.Error()), slog.String("device", id))
			continue
		}

		a.results.Set(id, result)
		a.logger.Debug("published analysis",
			slog.String("device", id),
			slog.Int("subcarriers", len(result.Subcarriers)),
			slog.Float64("motionScore", result.MotionScore))
	}
}
