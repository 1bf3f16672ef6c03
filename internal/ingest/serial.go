package ingest

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the sensing firmware's serial console speed.
	DefaultBaudRate = 115200

	serialReadTimeout = time.Second
	serialReadBuffer  = 4096
)

// SerialTransport reads raw bytes from a serial port with a bounded
// per-read timeout.
type SerialTransport struct {
	port serial.Port
	buf  []byte
}

// OpenSerial opens the named serial port in 8N1 mode at the given baud rate
// (DefaultBaudRate when zero).
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
	}
	if err = port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("setting read timeout on %s: %w", portName, err)
	}

	return &SerialTransport{port: port, buf: make([]byte, serialReadBuffer)}, nil
}

// ReadChunk returns the bytes available within the read timeout. A timeout
// with no data yields an empty chunk and a nil error.
func (t *SerialTransport) ReadChunk() ([]byte, error) {
	n, err := t.port.Read(t.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	chunk := make([]byte, n)
	copy(chunk, t.buf[:n])
	return chunk, nil
}

// Close closes the underlying port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}
