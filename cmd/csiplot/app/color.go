package app

import (
	"image/color"
	"math"
)

const (
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	JungleTheme    ColorTheme = "jungle"
	ThermalTheme   ColorTheme = "thermal"
	MarineTheme    ColorTheme = "marine"

	colorMapSize = 256
)

type ColorTheme string

// noDataColor marks cells whose subcarrier was not reported in that frame.
var noDataColor = color.Black

// AmplitudeMapper maps CSI amplitudes onto a pre-computed color gradient
// over a fixed amplitude range.
type AmplitudeMapper struct {
	colorMap     []color.Color
	minAmplitude float64
	perIndex     float64
}

// NewAmplitudeMapper builds a mapper for the [minAmplitude, maxAmplitude]
// range using the given theme.
func NewAmplitudeMapper(theme ColorTheme, minAmplitude, maxAmplitude float64) *AmplitudeMapper {
	if maxAmplitude <= minAmplitude {
		maxAmplitude = minAmplitude + 1
	}

	themeFn := getColorTheme(theme)
	m := AmplitudeMapper{
		colorMap:     make([]color.Color, colorMapSize),
		minAmplitude: minAmplitude,
		perIndex:     (maxAmplitude - minAmplitude) / float64(colorMapSize-1),
	}
	for i := range m.colorMap {
		m.colorMap[i] = themeFn(float64(i) / float64(colorMapSize-1))
	}
	return &m
}

// Color returns the gradient color for an amplitude. Zero means "not
// reported" and renders as the no-data color.
func (m *AmplitudeMapper) Color(amplitude float64) color.Color {
	if amplitude == 0 {
		return noDataColor
	}

	index := int((amplitude - m.minAmplitude) / m.perIndex)
	if index < 0 {
		return m.colorMap[0]
	}
	if index >= len(m.colorMap) {
		return m.colorMap[len(m.colorMap)-1]
	}
	return m.colorMap[index]
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
func (hsv HSV) RGB() color.Color {
	h := hsv.H
	s := hsv.S
	v := hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

// getColorTheme returns a normalized-value [0,1] to color function.
func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme: // Blue -> Red
		return func(v float64) color.Color {
			return HSV{H: 240 - (v * 240), S: 0.9 + (v * 0.1), V: math.Pow(v, 0.7)}.RGB()
		}

	case GrayscaleTheme: // Black -> White
		return func(v float64) color.Color {
			g := uint8(math.Pow(v, 0.7) * 255)
			return color.RGBA{R: g, G: g, B: g, A: 0xff}
		}

	case JungleTheme: // Dark Green -> Yellow
		return func(v float64) color.Color {
			return HSV{H: 120 - (v * 60), S: 1.0, V: 0.3 + (math.Pow(v, 0.6) * 0.7)}.RGB()
		}

	case MarineTheme: // Deep Blue -> Cyan -> White
		return func(v float64) color.Color {
			return HSV{H: 240 - (v * 60), S: 1.0 - (v * 0.8), V: 0.3 + (math.Pow(v, 0.6) * 0.7)}.RGB()
		}

	default: // Thermal: Black -> Red -> Yellow -> White
		return func(v float64) color.Color {
			switch {
			case v < 0.33:
				return color.RGBA{R: uint8(v * 3 * 255), A: 0xff}
			case v < 0.66:
				return color.RGBA{R: 255, G: uint8((v - 0.33) * 3 * 255), A: 0xff}
			default:
				return color.RGBA{R: 255, G: 255, B: uint8((v - 0.66) * 3 * 255), A: 0xff}
			}
		}
	}
}
