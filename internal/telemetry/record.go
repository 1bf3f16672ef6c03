package telemetry

// Record is a single decoded report from a sensing device. The firmware
// multiplexes several report shapes over one serial link (CSI bursts, sync
// beacons, network info, heap stats), so every field is optional: absent
// fields are simply not applied to the device state. Field names match the
// firmware's JSON output verbatim; unknown fields are ignored.
type Record struct {
	DeviceID         *string   `json:"DeviceID,omitempty"`         // Stable identifier assigned by firmware config
	MAC              *string   `json:"MAC,omitempty"`              // WiFi MAC address, identity fallback
	Timestamp        *int64    `json:"Timestamp,omitempty"`        // Device-local clock in microseconds
	SyncCount        *int64    `json:"SyncCount,omitempty"`        // Monotonic sync beacon counter
	RSSI             *int      `json:"RSSI,omitempty"`             // Received signal strength in dBm
	CSI              []float64 `json:"CSI,omitempty"`              // Per-subcarrier channel amplitudes
	IPAddress        *string   `json:"IPAddress,omitempty"`        // Current IP address
	Gateway          *string   `json:"Gateway,omitempty"`          // Gateway address
	Netmask          *string   `json:"Netmask,omitempty"`          // Network mask
	FreeHeap         *int64    `json:"FreeHeap,omitempty"`         // Free heap in bytes
	FreeInternalHeap *int64    `json:"FreeInternalHeap,omitempty"` // Free internal (non-PSRAM) heap in bytes
}
