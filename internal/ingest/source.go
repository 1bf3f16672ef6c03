package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/wifisense/csi-radar/internal/framing"
	"github.com/wifisense/csi-radar/internal/telemetry"
)

// Envelope is a decoded record tagged with the source it arrived on. The
// source name is the identity fallback for records that carry neither a
// DeviceID nor a MAC.
type Envelope struct {
	Source string
	Record *telemetry.Record
}

// Source binds one Transport to one frame decoder and pushes decoded
// records into the shared inbound channel. Decode faults are logged and
// counted; only a transport error ends the source, and it ends only this
// one.
type Source struct {
	name      string
	transport Transport
	decoder   *framing.Decoder
	logger    *slog.Logger

	running atomic.Bool

	// Stream counters, touched only by the Run goroutine.
	records   uint64
	failures  uint64
	overflows uint64
	bytes     uint64
}

// WithLogger sets the logger for the source.
func WithLogger(logger *slog.Logger) func(*Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", s.name))
	}
}

// WithMaxBufferLen sets the frame decoder's record buffer cap.
func WithMaxBufferLen(n int) func(*Source) {
	return func(s *Source) {
		s.decoder = framing.NewDecoder(framing.WithMaxBufferLen(n))
	}
}

// NewSource creates a Source reading from the given transport.
func NewSource(name string, transport Transport, options ...func(*Source)) *Source {
	s := Source{
		name:      name,
		transport: transport,
		decoder:   framing.NewDecoder(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return s.name
}

// Close releases the transport of a source that never ran. Run closes the
// transport itself on exit.
func (s *Source) Close() error {
	return s.transport.Close()
}

// Run reads from the transport until the context is cancelled or the
// transport fails, sending decoded records to out. The transport's bounded
// read wait caps how long cancellation can go unobserved. The transport is
// closed on exit.
func (s *Source) Run(ctx context.Context, out chan<- Envelope) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("source is already running")
	}
	defer s.running.Store(false)
	defer s.transport.Close()

	s.logger.Info("starting record collection")
	defer s.logStats()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		chunk, err := s.transport.ReadChunk()
		if err != nil {
			s.logger.Error(fmt.Sprintf("transport failed: %s", err.Error()))
			return fmt.Errorf("reading from transport %s: %w", s.name, err)
		}
		if len(chunk) == 0 {
			continue // read wait elapsed with no data
		}
		s.bytes += uint64(len(chunk))

		for _, res := range s.decoder.Feed(chunk) {
			switch {
			case res.Record != nil:
				s.records++
				select {
				case out <- Envelope{Source: s.name, Record: res.Record}:
				case <-ctx.Done():
					return nil
				}

			case errors.Is(res.Err, framing.ErrBufferOverflow):
				s.overflows++
				s.logger.Warn("record buffer overflow, discarding")

			default:
				s.failures++
				s.logger.Warn(fmt.Sprintf("discarding malformed record: %s", res.Err.Error()))
			}
		}
	}
}

func (s *Source) logStats() {
	s.logger.Info("record collection stopped",
		slog.Uint64("records", s.records),
		slog.Uint64("failures", s.failures),
		slog.Uint64("overflows", s.overflows),
		slog.String("read", humanize.Bytes(s.bytes)))
}
