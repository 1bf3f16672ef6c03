package telemetry

import (
	"io"
	"log/slog"
	"sync"
)

const (
	// DefaultCSICapacity is the number of CSI frames retained per device.
	DefaultCSICapacity = 300

	// DefaultSyncHistorySize bounds the master sync history; slaves can only
	// align against sync counts still inside this window.
	DefaultSyncHistorySize = 1024

	// DefaultDriftThreshold is the offset jump, in microseconds, above which
	// a clock drift warning is logged.
	DefaultDriftThreshold = 1_000_000
)

// CSIFrame is one CSI burst as retained in a device's history.
type CSIFrame struct {
	Timestamp  *int64    `json:"timestamp,omitempty"` // Master-aligned microseconds, nil when the burst carried none
	Amplitudes []float64 `json:"amplitudes"`          // Per-subcarrier amplitudes
}

// DeviceState is the accumulated state of one sensing device. Scalar fields
// are last-write-wins; CSI is a bounded FIFO history.
type DeviceState struct {
	RSSI              *int       `json:"RSSI"`
	IPAddress         string     `json:"IPAddress,omitempty"`
	Gateway           string     `json:"Gateway,omitempty"`
	Netmask           string     `json:"Netmask,omitempty"`
	FreeHeap          *int64     `json:"FreeHeap,omitempty"`
	FreeInternalHeap  *int64     `json:"FreeInternalHeap,omitempty"`
	SyncCount         *int64     `json:"SyncCount,omitempty"`
	LastSyncTimestamp *int64     `json:"LastSyncTimestamp,omitempty"` // Device-local, pre-correction
	ClockOffset       int64      `json:"ClockOffset"`                 // Microseconds added to incoming timestamps
	CSI               []CSIFrame `json:"CSI,omitempty"`
}

// Store is the shared device-state table. All ingested records flow through
// Update; readers take point-in-time deep copies via Devices. A single lock
// serialises both: write rates are well under 1 kHz aggregate, so contention
// is not a concern.
//
// The store also owns clock alignment. The master device periodically
// broadcasts a monotonically increasing sync counter together with its local
// timestamp; slaves echo the same counter with theirs. Matching counters
// identify the same physical instant, so a slave's offset to the master
// clock is a plain timestamp subtraction.
type Store struct {
	masterID string

	csiCapacity     int
	syncHistorySize int
	driftThreshold  int64
	logger          *slog.Logger

	mu          sync.Mutex
	devices     map[string]*DeviceState
	syncHistory map[int64]int64 // sync count -> master timestamp
	syncOrder   []int64         // arrival order of sync counts, for eviction
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) func(*Store) {
	return func(s *Store) {
		s.logger = logger.With(slog.String("component", "store"))
	}
}

// WithCSICapacity sets the per-device CSI history capacity.
func WithCSICapacity(n int) func(*Store) {
	return func(s *Store) {
		if n > 0 {
			s.csiCapacity = n
		}
	}
}

// WithSyncHistorySize sets the master sync history window size.
func WithSyncHistorySize(n int) func(*Store) {
	return func(s *Store) {
		if n > 0 {
			s.syncHistorySize = n
		}
	}
}

// WithDriftThreshold sets the clock drift warning threshold in microseconds.
func WithDriftThreshold(us int64) func(*Store) {
	return func(s *Store) {
		if us > 0 {
			s.driftThreshold = us
		}
	}
}

// NewStore creates a Store. masterID names the device whose clock is the
// reference; its own offset is always zero.
func NewStore(masterID string, options ...func(*Store)) *Store {
	s := Store{
		masterID:        masterID,
		csiCapacity:     DefaultCSICapacity,
		syncHistorySize: DefaultSyncHistorySize,
		driftThreshold:  DefaultDriftThreshold,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		devices:         make(map[string]*DeviceState),
		syncHistory:     make(map[int64]int64),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// MasterID returns the configured master device identifier.
func (s *Store) MasterID() string {
	return s.masterID
}

// Update applies a record to the named device's state. The device entry is
// created on first sight. Steps, in order: sync handling, timestamp
// correction, scalar merge, CSI append. Missing fields are skipped, never an
// error.
func (s *Store) Update(deviceID string, rec *Record) {
	if rec == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		dev = &DeviceState{CSI: make([]CSIFrame, 0, s.csiCapacity)}
		s.devices[deviceID] = dev
	}

	// Sync beacons carry both a counter and a timestamp. The master's go
	// into the sync history; a slave's are matched against it to derive the
	// slave's clock offset.
	if rec.SyncCount != nil && rec.Timestamp != nil {
		count, ts := *rec.SyncCount, *rec.Timestamp
		dev.SyncCount = &count
		dev.LastSyncTimestamp = &ts

		if deviceID == s.masterID {
			s.recordMasterSync(count, ts)
		} else if masterTS, ok := s.syncHistory[count]; ok {
			offset := masterTS - ts
			if delta := offset - dev.ClockOffset; delta > s.driftThreshold || delta < -s.driftThreshold {
				s.logger.Warn("device clock offset jumped",
					slog.String("device", deviceID),
					slog.Int64("offset", offset),
					slog.Int64("delta", delta))
			}
			dev.ClockOffset = offset
		}
		// No matching master sync count yet: keep the previous offset.
	}

	var corrected *int64
	if rec.Timestamp != nil {
		ts := *rec.Timestamp + dev.ClockOffset
		corrected = &ts
	}

	if rec.RSSI != nil {
		v := *rec.RSSI
		dev.RSSI = &v
	}
	if rec.IPAddress != nil {
		dev.IPAddress = *rec.IPAddress
	}
	if rec.Gateway != nil {
		dev.Gateway = *rec.Gateway
	}
	if rec.Netmask != nil {
		dev.Netmask = *rec.Netmask
	}
	if rec.FreeHeap != nil {
		v := *rec.FreeHeap
		dev.FreeHeap = &v
	}
	if rec.FreeInternalHeap != nil {
		v := *rec.FreeInternalHeap
		dev.FreeInternalHeap = &v
	}

	if rec.CSI != nil {
		amplitudes := make([]float64, len(rec.CSI))
		copy(amplitudes, rec.CSI)
		frame := CSIFrame{Timestamp: corrected, Amplitudes: amplitudes}

		if len(dev.CSI) >= s.csiCapacity {
			copy(dev.CSI, dev.CSI[1:])
			dev.CSI[len(dev.CSI)-1] = frame
		} else {
			dev.CSI = append(dev.CSI, frame)
		}
	}
}

// recordMasterSync stores a master sync observation, evicting the oldest
// entry once the window is full. Caller holds s.mu.
func (s *Store) recordMasterSync(count, ts int64) {
	if _, exists := s.syncHistory[count]; !exists {
		s.syncOrder = append(s.syncOrder, count)
		if len(s.syncOrder) > s.syncHistorySize {
			delete(s.syncHistory, s.syncOrder[0])
			s.syncOrder = s.syncOrder[1:]
		}
	}
	s.syncHistory[count] = ts
}

// Devices returns a deep, point-in-time copy of every device's state. The
// returned value shares nothing with the live table, so callers may hold or
// mutate it while ingestion continues.
func (s *Store) Devices() map[string]*DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*DeviceState, len(s.devices))
	for id, dev := range s.devices {
		snapshot[id] = dev.clone()
	}
	return snapshot
}

func (d *DeviceState) clone() *DeviceState {
	c := DeviceState{
		IPAddress:   d.IPAddress,
		Gateway:     d.Gateway,
		Netmask:     d.Netmask,
		ClockOffset: d.ClockOffset,
	}
	c.RSSI = cloneScalar(d.RSSI)
	c.FreeHeap = cloneScalar(d.FreeHeap)
	c.FreeInternalHeap = cloneScalar(d.FreeInternalHeap)
	c.SyncCount = cloneScalar(d.SyncCount)
	c.LastSyncTimestamp = cloneScalar(d.LastSyncTimestamp)

	if d.CSI != nil {
		c.CSI = make([]CSIFrame, len(d.CSI))
		for i, frame := range d.CSI {
			amplitudes := make([]float64, len(frame.Amplitudes))
			copy(amplitudes, frame.Amplitudes)
			c.CSI[i] = CSIFrame{Timestamp: cloneScalar(frame.Timestamp), Amplitudes: amplitudes}
		}
	}
	return &c
}

func cloneScalar[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
