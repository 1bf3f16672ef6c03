package doppler

import (
	"testing"
	"time"

	"github.com/wifisense/csi-radar/internal/telemetry"
)

const testDeviceID = "24:6f:28:aa:bb:01"

// pushFrames feeds CSI records into the store, timestamped stepUs apart.
func pushFrames(t *testing.T, store *telemetry.Store, deviceID string, stepUs int64, rows ...[]float64) {
	t.Helper()
	for i, row := range rows {
		ts := int64(i) * stepUs
		store.Update(deviceID, &telemetry.Record{Timestamp: &ts, CSI: row})
	}
}

func TestAnalyzer_PublishesRosterResults(t *testing.T) {
	store := telemetry.NewStore(testDeviceID)
	pushFrames(t, store, testDeviceID, 100_000,
		[]float64{1.0, 2.0},
		[]float64{1.2, 2.2},
		[]float64{0.9, 1.9},
	)

	analyzer := NewAnalyzer(store, []string{testDeviceID})
	analyzer.analyzeOnce(time.Now())

	result := analyzer.Results().Get(testDeviceID)
	if result == nil {
		t.Fatal("Expected a published result for the roster device")
	}
	if len(result.Subcarriers) != 2 {
		t.Errorf("Expected 2 subcarriers, got %d", len(result.Subcarriers))
	}
}

func TestAnalyzer_SkipsUnseenDevice(t *testing.T) {
	store := telemetry.NewStore(testDeviceID)

	analyzer := NewAnalyzer(store, []string{"24:6f:28:aa:bb:02"})
	analyzer.analyzeOnce(time.Now())

	if got := analyzer.Results().Get("24:6f:28:aa:bb:02"); got != nil {
		t.Errorf("Expected no result for an unseen device, got %+v", got)
	}
}

func TestAnalyzer_RetainsPriorResultOnFailure(t *testing.T) {
	store := telemetry.NewStore(testDeviceID, telemetry.WithCSICapacity(2))
	pushFrames(t, store, testDeviceID, 100_000,
		[]float64{1.0, 2.0},
		[]float64{1.2, 2.2},
	)

	analyzer := NewAnalyzer(store, []string{testDeviceID})
	first := time.Now()
	analyzer.analyzeOnce(first)

	prior := analyzer.Results().Get(testDeviceID)
	if prior == nil {
		t.Fatal("Expected a result from the first tick")
	}

	// Zero-only frames evict the history; the next tick fails the
	// zero-exclusion filter and must keep the first result in place.
	ts := int64(200_000)
	store.Update(testDeviceID, &telemetry.Record{Timestamp: &ts, CSI: []float64{0, 0}})
	ts2 := int64(300_000)
	store.Update(testDeviceID, &telemetry.Record{Timestamp: &ts2, CSI: []float64{0, 0}})
	analyzer.analyzeOnce(first.Add(time.Second))

	got := analyzer.Results().Get(testDeviceID)
	if got != prior {
		t.Error("A failed tick must leave the previous result in place")
	}
}

func TestResultStore_ResultsIsACopy(t *testing.T) {
	rs := NewResultStore()
	rs.Set("a", &Result{MotionScore: 1})
	rs.Set("b", &Result{MotionScore: 2})

	snapshot := rs.Results()
	if len(snapshot) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(snapshot))
	}

	delete(snapshot, "a")
	if rs.Get("a") == nil {
		t.Error("Mutating the returned map must not affect the store")
	}
}

func TestResultStore_SetReplaces(t *testing.T) {
	rs := NewResultStore()
	rs.Set("a", &Result{MotionScore: 1})
	rs.Set("a", &Result{MotionScore: 2})

	if got := rs.Get("a").MotionScore; got != 2 {
		t.Errorf("Expected the latest result, got score %v", got)
	}
}
