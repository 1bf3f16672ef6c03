// Package ingest moves raw device bytes into the telemetry store: one Source
// per transport frames and decodes the stream, a single Dispatcher drains
// the shared inbound channel and routes records by device identity.
package ingest

// Transport is one endpoint delivering raw bytes from a sensing device.
//
// ReadChunk returns whatever bytes arrived within the transport's bounded
// read wait; an empty chunk with a nil error means the wait elapsed with
// nothing to read, which lets the owning Source observe cancellation. A
// non-nil error is persistent and terminates only that Source.
type Transport interface {
	ReadChunk() ([]byte, error)
	Close() error
}
