// Package framing extracts structured records from a noisy serial byte
// stream. Records are JSON objects; the framer tracks brace depth to find
// object boundaries, tolerating arbitrary garbage between records, partial
// delivery, and truncated or corrupted frames. Recovery is always by
// discarding the current buffer and waiting for the next opening brace.
package framing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wifisense/csi-radar/internal/telemetry"
)

// DefaultMaxBufferLen caps how many bytes a single record may accumulate
// before the framer gives up on it. Guards against a closing brace that
// never arrives.
const DefaultMaxBufferLen = 16000

var (
	// ErrBufferOverflow is reported when a record exceeds the buffer cap and
	// is discarded.
	ErrBufferOverflow = errors.New("record exceeded maximum buffer length")

	// ErrStrayClose is reported when a closing brace arrives with no record
	// open. The framer resynchronises on the next opening brace.
	ErrStrayClose = errors.New("unbalanced closing brace")
)

// Result is one outcome of feeding bytes to a Decoder: a decoded record, or
// the error that made the framer discard its buffer.
type Result struct {
	Record *telemetry.Record
	Err    error
}

// Decoder is a stateful per-source framer. Not safe for concurrent use; each
// ingestion source owns its own instance.
//
// Brace depth is tracked byte-wise, so braces inside JSON string values are
// not protocol-legal. Device firmware never emits them.
type Decoder struct {
	maxBufferLen int
	depth        int
	buf          []byte
}

// WithMaxBufferLen sets the record buffer cap.
func WithMaxBufferLen(n int) func(*Decoder) {
	return func(d *Decoder) {
		if n > 0 {
			d.maxBufferLen = n
		}
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(options ...func(*Decoder)) *Decoder {
	d := Decoder{maxBufferLen: DefaultMaxBufferLen}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Feed consumes the next chunk of raw bytes and returns the records and
// framing faults completed by it, in stream order. Chunks may split a record
// at any byte boundary.
func (d *Decoder) Feed(chunk []byte) []Result {
	var results []Result

	for _, b := range chunk {
		switch b {
		case '{':
			if d.depth == 0 {
				// New record: drop any depth-0 noise accumulated so far.
				d.buf = d.buf[:0]
			}
			d.depth++
			if d.push(b) {
				results = append(results, Result{Err: ErrBufferOverflow})
			}

		case '}':
			if d.depth == 0 {
				d.buf = d.buf[:0]
				results = append(results, Result{Err: ErrStrayClose})
				continue
			}
			if d.push(b) {
				results = append(results, Result{Err: ErrBufferOverflow})
				continue
			}
			d.depth--
			if d.depth == 0 {
				results = append(results, d.decode())
				d.buf = d.buf[:0]
			}

		default:
			if d.depth > 0 {
				if d.push(b) {
					results = append(results, Result{Err: ErrBufferOverflow})
				}
			}
			// Bytes at depth 0 are inter-record noise.
		}
	}

	return results
}

// push appends a byte to the record buffer, reporting true if the buffer cap
// was exceeded and the framer reset.
func (d *Decoder) push(b byte) bool {
	d.buf = append(d.buf, b)
	if len(d.buf) > d.maxBufferLen {
		d.buf = d.buf[:0]
		d.depth = 0
		return true
	}
	return false
}

// decode parses the completed buffer as a record.
func (d *Decoder) decode() Result {
	rec := new(telemetry.Record)
	if err := json.Unmarshal(d.buf, rec); err != nil {
		return Result{Err: fmt.Errorf("decoding record: %w", err)}
	}
	return Result{Record: rec}
}
