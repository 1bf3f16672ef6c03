package doppler

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wifisense/csi-radar/internal/telemetry"
)

func i64(v int64) *int64 { return &v }

// frameSeries builds one frame per row, timestamped stepUs apart.
func frameSeries(stepUs int64, rows ...[]float64) []telemetry.CSIFrame {
	frames := make([]telemetry.CSIFrame, len(rows))
	for i, row := range rows {
		frames[i] = telemetry.CSIFrame{
			Timestamp:  i64(int64(i) * stepUs),
			Amplitudes: row,
		}
	}
	return frames
}

func TestAnalyze_NotEnoughFrames(t *testing.T) {
	for _, frames := range [][]telemetry.CSIFrame{
		nil,
		frameSeries(1000, []float64{1, 2}),
	} {
		if _, err := Analyze(frames, time.Now()); !errors.Is(err, ErrNotEnoughFrames) {
			t.Errorf("Expected ErrNotEnoughFrames for %d frames, got %v", len(frames), err)
		}
	}
}

func TestAnalyze_SamplingRate(t *testing.T) {
	// Frames one second apart give a 1 Hz series.
	frames := frameSeries(1_000_000,
		[]float64{1.0, 2.0},
		[]float64{1.1, 2.1},
		[]float64{0.9, 1.9},
		[]float64{1.0, 2.0},
	)

	result, err := Analyze(frames, time.Now())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if math.Abs(result.SamplingRate-1.0) > 1e-9 {
		t.Errorf("Expected sampling rate 1 Hz, got %v", result.SamplingRate)
	}
}

func TestAnalyze_InvalidSamplingRate(t *testing.T) {
	testCases := []struct {
		name   string
		frames []telemetry.CSIFrame
	}{
		{
			name: "no timestamps",
			frames: []telemetry.CSIFrame{
				{Amplitudes: []float64{1, 2}},
				{Amplitudes: []float64{3, 4}},
			},
		},
		{
			name: "single timestamp",
			frames: []telemetry.CSIFrame{
				{Timestamp: i64(1000), Amplitudes: []float64{1, 2}},
				{Amplitudes: []float64{3, 4}},
			},
		},
		{
			name:   "identical timestamps",
			frames: frameSeries(0, []float64{1, 2}, []float64{3, 4}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Analyze(tc.frames, time.Now()); !errors.Is(err, ErrInvalidSamplingRate) {
				t.Errorf("Expected ErrInvalidSamplingRate, got %v", err)
			}
		})
	}
}

func TestAnalyze_ZeroExclusion(t *testing.T) {
	// Subcarrier 0 reports in two frames only; subcarrier 1 in one frame
	// and is skipped; subcarrier 2 never reports.
	frames := frameSeries(100_000,
		[]float64{0, 0, 0},
		[]float64{3.2, 1.5, 0},
		[]float64{0, 0, 0},
		[]float64{4.1, 0, 0},
	)

	result, err := Analyze(frames, time.Now())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result.Subcarriers) != 1 {
		t.Fatalf("Expected 1 valid subcarrier, got %d", len(result.Subcarriers))
	}
	sub, ok := result.Subcarriers[0]
	if !ok {
		t.Fatal("Expected subcarrier 0 in the result")
	}
	// Two retained samples make a single zero-padded segment pair.
	if len(sub.Times) == 0 {
		t.Error("Expected a non-empty spectrogram for subcarrier 0")
	}
	if result.MotionScore != sub.MotionScore {
		t.Errorf("Aggregate score %v should equal the sole subcarrier score %v", result.MotionScore, sub.MotionScore)
	}
}

func TestAnalyze_NoValidSubcarriers(t *testing.T) {
	frames := frameSeries(100_000,
		[]float64{0, 0},
		[]float64{0, 0},
		[]float64{0, 0},
	)

	if _, err := Analyze(frames, time.Now()); !errors.Is(err, ErrNoValidSubcarriers) {
		t.Errorf("Expected ErrNoValidSubcarriers, got %v", err)
	}
}

func TestAnalyze_AggregateScore(t *testing.T) {
	frames := frameSeries(100_000,
		[]float64{1.0, 5.0},
		[]float64{1.2, 5.5},
		[]float64{0.9, 4.8},
		[]float64{1.1, 5.2},
	)

	at := time.Now()
	result, err := Analyze(frames, at)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !result.Timestamp.Equal(at) {
		t.Errorf("Expected result timestamp %v, got %v", at, result.Timestamp)
	}
	if len(result.Subcarriers) != 2 {
		t.Fatalf("Expected 2 subcarriers, got %d", len(result.Subcarriers))
	}

	var sum float64
	for _, sub := range result.Subcarriers {
		sum += sub.MotionScore
	}
	want := sum / 2
	if math.Abs(result.MotionScore-want) > 1e-9 {
		t.Errorf("Expected aggregate score %v, got %v", want, result.MotionScore)
	}
}

func TestAnalyze_WidthBoundedByShortestFrame(t *testing.T) {
	frames := frameSeries(100_000,
		[]float64{1.0, 2.0, 3.0},
		[]float64{1.1, 2.1},
		[]float64{0.9, 1.9, 2.9},
	)

	result, err := Analyze(frames, time.Now())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if _, ok := result.Subcarriers[2]; ok {
		t.Error("Subcarrier 2 is missing from one frame and must not be scored")
	}
	if len(result.Subcarriers) != 2 {
		t.Errorf("Expected 2 subcarriers, got %d", len(result.Subcarriers))
	}
}
