package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wifisense/csi-radar/internal/framing"
	"github.com/wifisense/csi-radar/internal/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write configuration: %v", err)
	}
	return path
}

const minimalConfig = `
master: "24:6f:28:aa:bb:01"
ports:
  - name: node-a
    port: /dev/ttyUSB0
    enabled: true
`

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %q", config.Settings.LogLevel)
	}
	if config.Store.CSICapacity != telemetry.DefaultCSICapacity {
		t.Errorf("Expected default CSI capacity %d, got %d", telemetry.DefaultCSICapacity, config.Store.CSICapacity)
	}
	if config.Store.SyncHistorySize != telemetry.DefaultSyncHistorySize {
		t.Errorf("Expected default sync history size %d, got %d", telemetry.DefaultSyncHistorySize, config.Store.SyncHistorySize)
	}
	if config.Store.DriftThresholdUs != telemetry.DefaultDriftThreshold {
		t.Errorf("Expected default drift threshold %d, got %d", telemetry.DefaultDriftThreshold, config.Store.DriftThresholdUs)
	}
	if config.Decoder.MaxBufferLen != framing.DefaultMaxBufferLen {
		t.Errorf("Expected default decoder buffer %d, got %d", framing.DefaultMaxBufferLen, config.Decoder.MaxBufferLen)
	}
	if config.Ports[0].BaudRate == 0 {
		t.Error("Expected a default baud rate on enabled port")
	}
	if got := config.AnalysisInterval(); got != time.Second {
		t.Errorf("Expected default analysis interval 1s, got %v", got)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing master",
			body: `
ports:
  - name: node-a
    port: /dev/ttyUSB0
    enabled: true
`,
			wantErr: "no master device",
		},
		{
			name: "no enabled ports",
			body: `
master: "24:6f:28:aa:bb:01"
ports:
  - name: node-a
    port: /dev/ttyUSB0
    enabled: false
`,
			wantErr: "no ports enabled",
		},
		{
			name: "port without path",
			body: `
master: "24:6f:28:aa:bb:01"
ports:
  - name: node-a
    enabled: true
`,
			wantErr: "no serial port path",
		},
		{
			name: "port without name",
			body: `
master: "24:6f:28:aa:bb:01"
ports:
  - port: /dev/ttyUSB0
    enabled: true
`,
			wantErr: "no source name",
		},
		{
			name: "bad log level",
			body: minimalConfig + `
settings:
  logLevel: chatty
`,
			wantErr: "invalid log level",
		},
		{
			name: "roster device without id",
			body: minimalConfig + `
analysis:
  devices:
    - x: 1.0
      y: 2.0
`,
			wantErr: "no id",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("Expected configuration to be rejected")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfig_Full(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
settings:
  logLevel: debug
  listen: 127.0.0.1:8080
master: "24:6f:28:aa:bb:01"
ports:
  - name: node-a
    port: /dev/ttyUSB0
    baudRate: 921600
    enabled: true
  - name: node-b
    port: /dev/ttyUSB1
    enabled: false
store:
  csiCapacity: 50
decoder:
  maxBufferLen: 4096
analysis:
  interval: 0.5
  devices:
    - id: "24:6f:28:aa:bb:01"
      x: 0.0
      y: 0.0
    - id: "24:6f:28:aa:bb:02"
      x: 3.5
      y: 1.2
allowDevices:
  - "24:6f:28:aa:bb:01"
  - "24:6f:28:aa:bb:02"
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.LogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", config.LogLevel())
	}
	if config.Ports[0].BaudRate != 921600 {
		t.Errorf("Expected configured baud rate, got %d", config.Ports[0].BaudRate)
	}
	if config.Store.CSICapacity != 50 {
		t.Errorf("Expected CSI capacity 50, got %d", config.Store.CSICapacity)
	}
	if got := config.AnalysisInterval(); got != 500*time.Millisecond {
		t.Errorf("Expected 500ms interval, got %v", got)
	}

	roster := config.Roster()
	if len(roster) != 2 || roster[0] != "24:6f:28:aa:bb:01" || roster[1] != "24:6f:28:aa:bb:02" {
		t.Errorf("Unexpected roster: %v", roster)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected an error for a missing configuration file")
	}
}
