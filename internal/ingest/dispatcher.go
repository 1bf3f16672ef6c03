package ingest

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/wifisense/csi-radar/internal/telemetry"
)

// DefaultWaitInterval bounds how long the dispatcher blocks waiting for the
// next record before re-checking cancellation.
const DefaultWaitInterval = 500 * time.Millisecond

// Dispatcher is the single consumer of the inbound channel. It resolves
// each record's device identity and applies it to the store. After the
// first dequeue it greedily drains everything already queued before
// blocking again, which keeps end-to-end latency bounded without spinning.
type Dispatcher struct {
	store  *telemetry.Store
	wait   time.Duration
	allow  map[string]struct{} // nil means accept all devices
	logger *slog.Logger
}

// WithWaitInterval sets the bounded channel wait.
func WithWaitInterval(d time.Duration) func(*Dispatcher) {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.wait = d
		}
	}
}

// WithAllowList restricts dispatch to the listed device ids. Records for
// other devices are dropped with a warning. An empty list disables the
// restriction.
func WithAllowList(ids []string) func(*Dispatcher) {
	return func(dp *Dispatcher) {
		if len(ids) == 0 {
			return
		}
		dp.allow = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			dp.allow[id] = struct{}{}
		}
	}
}

// WithDispatcherLogger sets the logger for the dispatcher.
func WithDispatcherLogger(logger *slog.Logger) func(*Dispatcher) {
	return func(dp *Dispatcher) {
		dp.logger = logger.With(slog.String("component", "dispatcher"))
	}
}

// NewDispatcher creates a Dispatcher writing into store.
func NewDispatcher(store *telemetry.Store, options ...func(*Dispatcher)) *Dispatcher {
	dp := Dispatcher{
		store:  store,
		wait:   DefaultWaitInterval,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&dp)
	}

	return &dp
}

// Run drains the inbound channel until the context is cancelled or the
// channel closes.
func (dp *Dispatcher) Run(ctx context.Context, in <-chan Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-time.After(dp.wait):
			// Nothing arrived this interval; re-check cancellation.

		case env, ok := <-in:
			if !ok {
				return nil
			}
			dp.dispatch(env)

			// Drain whatever is already queued without blocking.
		drain:
			for {
				select {
				case env, ok := <-in:
					if !ok {
						return nil
					}
					dp.dispatch(env)
				default:
					break drain
				}
			}
		}
	}
}

func (dp *Dispatcher) dispatch(env Envelope) {
	id := resolveDeviceID(env)
	if id == "" {
		dp.logger.Warn("dropping record with no resolvable device identity")
		return
	}
	if dp.allow != nil {
		if _, ok := dp.allow[id]; !ok {
			dp.logger.Warn("dropping record from device not on allow list", slog.String("device", id))
			return
		}
	}
	dp.store.Update(id, env.Record)
}

// resolveDeviceID picks the record's device identity: explicit DeviceID
// first, then MAC, then the source the record arrived on.
func resolveDeviceID(env Envelope) string {
	switch {
	case env.Record == nil:
		return ""
	case env.Record.DeviceID != nil && *env.Record.DeviceID != "":
		return *env.Record.DeviceID
	case env.Record.MAC != nil && *env.Record.MAC != "":
		return *env.Record.MAC
	default:
		return env.Source
	}
}
