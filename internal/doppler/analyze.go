package doppler

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wifisense/csi-radar/internal/telemetry"
)

var (
	// ErrNotEnoughFrames is returned when a device has fewer than two
	// buffered CSI frames.
	ErrNotEnoughFrames = errors.New("not enough CSI frames")

	// ErrInvalidSamplingRate is returned when the frame timestamps yield no
	// usable interval or a non-positive mean interval.
	ErrInvalidSamplingRate = errors.New("invalid CSI frame timestamps")

	// ErrNoValidSubcarriers is returned when every subcarrier fails the
	// zero-exclusion filter. The device's previous result stays in place.
	ErrNoValidSubcarriers = errors.New("no subcarrier carries enough non-zero samples")
)

// SubcarrierResult is the spectrogram and motion score for one subcarrier.
type SubcarrierResult struct {
	Spectrogram
	MotionScore float64 `json:"motionScore"`
}

// Result is one device's analysis output for a single tick. Results are
// immutable after publication; a later tick replaces the whole value.
type Result struct {
	Timestamp    time.Time                 `json:"timestamp"`    // When the analysis ran
	SamplingRate float64                   `json:"samplingRate"` // Estimated CSI frames per second
	Subcarriers  map[int]*SubcarrierResult `json:"subcarriers"`
	MotionScore  float64                   `json:"motionScore"` // Mean of valid subcarrier scores
}

// Analyze computes spectrograms and motion scores from a device's CSI
// history. Frames are in arrival order. A zero amplitude means the firmware
// did not report that subcarrier in that frame, so zeros are excluded
// before the transform; subcarriers left with fewer than two samples are
// skipped.
func Analyze(frames []telemetry.CSIFrame, at time.Time) (*Result, error) {
	if len(frames) < 2 {
		return nil, ErrNotEnoughFrames
	}

	rate, err := samplingRate(frames)
	if err != nil {
		return nil, err
	}

	// Subcarrier indices are only meaningful where every frame reports
	// them; bound by the shortest frame.
	width := len(frames[0].Amplitudes)
	for _, frame := range frames[1:] {
		width = min(width, len(frame.Amplitudes))
	}

	subcarriers := make(map[int]*SubcarrierResult)
	var scoreSum float64

	for sc := 0; sc < width; sc++ {
		var samples []float64
		for _, frame := range frames {
			if v := frame.Amplitudes[sc]; v != 0 {
				samples = append(samples, v)
			}
		}
		if len(samples) < 2 {
			continue
		}

		spec, err := ComputeSpectrogram(samples, rate)
		if err != nil {
			continue
		}

		score := stat.Mean(spec.PowerDB[len(spec.PowerDB)-1], nil)
		subcarriers[sc] = &SubcarrierResult{Spectrogram: *spec, MotionScore: score}
		scoreSum += score
	}

	if len(subcarriers) == 0 {
		return nil, ErrNoValidSubcarriers
	}

	return &Result{
		Timestamp:    at,
		SamplingRate: rate,
		Subcarriers:  subcarriers,
		MotionScore:  scoreSum / float64(len(subcarriers)),
	}, nil
}

// samplingRate estimates frames per second as the reciprocal of the mean
// interval between consecutive timestamped frames.
func samplingRate(frames []telemetry.CSIFrame) (float64, error) {
	var deltas []float64
	var prev *int64
	for _, frame := range frames {
		if frame.Timestamp == nil {
			continue
		}
		if prev != nil {
			deltas = append(deltas, float64(*frame.Timestamp-*prev)/1e6)
		}
		prev = frame.Timestamp
	}

	if len(deltas) == 0 {
		return 0, ErrInvalidSamplingRate
	}
	mean := stat.Mean(deltas, nil)
	if mean <= 0 {
		return 0, ErrInvalidSamplingRate
	}
	return 1 / mean, nil
}
