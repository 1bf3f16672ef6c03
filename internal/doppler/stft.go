// Package doppler derives motion indicators from buffered CSI history.
// Movement near a device perturbs per-subcarrier channel amplitudes; a
// short-time Fourier transform over each subcarrier's amplitude series
// exposes that perturbation as low-frequency spectral energy, and the mean
// log-power of the most recent segment serves as a motion score.
package doppler

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	maxSegmentLen = 64
	maxOverlap    = 32

	// logPowerFloor keeps the dB conversion finite for zero-magnitude bins.
	logPowerFloor = 1e-6
)

// ErrShortSeries is returned when an amplitude series has fewer than two
// samples.
var ErrShortSeries = errors.New("amplitude series too short for analysis")

// Spectrogram is the windowed spectral decomposition of one subcarrier's
// amplitude series. PowerDB is segment-major: PowerDB[i][j] is the
// log-power of frequency bin j in the segment centred at Times[i], so
// PowerDB[len(PowerDB)-1] is the most recent spectral column.
type Spectrogram struct {
	Frequencies []float64   `json:"frequencies"` // Hz per bin
	Times       []float64   `json:"times"`       // Seconds from the start of the series
	PowerDB     [][]float64 `json:"powerDB"`
}

// ComputeSpectrogram runs a Hann-windowed STFT over samples taken at
// samplingRate Hz. Segment length is min(len(samples), 64) with overlap
// min(segment/2, 32); the tail segment is zero-padded. Magnitudes are
// converted to 20*log10(|z| + 1e-6).
func ComputeSpectrogram(samples []float64, samplingRate float64) (*Spectrogram, error) {
	if len(samples) < 2 {
		return nil, ErrShortSeries
	}

	nperseg := min(len(samples), maxSegmentLen)
	noverlap := min(nperseg/2, maxOverlap)
	hop := nperseg - noverlap

	fft := fourier.NewFFT(nperseg)
	bins := nperseg/2 + 1

	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = fft.Freq(i) * samplingRate
	}

	var times []float64
	var power [][]float64

	segment := make([]float64, nperseg)
	coeffs := make([]complex128, bins)

	for start := 0; start < len(samples); start += hop {
		n := copy(segment, samples[start:])
		for i := n; i < nperseg; i++ {
			segment[i] = 0
		}
		window.Hann(segment)
		fft.Coefficients(coeffs, segment)

		column := make([]float64, bins)
		for i, c := range coeffs {
			column[i] = 20 * math.Log10(cmplx.Abs(c)+logPowerFloor)
		}

		power = append(power, column)
		times = append(times, (float64(start)+float64(nperseg)/2)/samplingRate)
	}

	return &Spectrogram{Frequencies: freqs, Times: times, PowerDB: power}, nil
}
