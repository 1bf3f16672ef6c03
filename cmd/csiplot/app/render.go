package app

import (
	"image"
	"image/draw"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wifisense/csi-radar/internal/telemetry"
)

// Default border sizes in pixels, used when annotations are enabled
const (
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 110
	defaultRightBorder  = 40
)

// BorderConfig defines the sizes of white space around the heatmap
type BorderConfig struct {
	Top    int // Space for the subcarrier scale
	Left   int // Space for the time scale
	Bottom int // Space for the information block
	Right  int // Right padding
}

// HeatmapData is everything the renderer and annotator need about the
// device being plotted.
type HeatmapData struct {
	DeviceID     string
	Frames       []telemetry.CSIFrame // arrival order, oldest first
	Subcarriers  int                  // widest frame
	CaptureBytes int64
	SamplingRate float64  // frames per second, 0 when unknown
	MotionScore  *float64 // nil when analysis was skipped
}

// NewHeatmapData prepares the plot input for one device's CSI history.
func NewHeatmapData(deviceID string, frames []telemetry.CSIFrame) *HeatmapData {
	data := HeatmapData{DeviceID: deviceID, Frames: frames}
	for _, frame := range frames {
		data.Subcarriers = max(data.Subcarriers, len(frame.Amplitudes))
	}
	return &data
}

// AmplitudeBounds returns the 5th and 95th percentile of all reported
// (non-zero) amplitudes, clamping the gradient so outliers don't flatten
// the picture.
func (d *HeatmapData) AmplitudeBounds() (minAmp, maxAmp float64) {
	var values []float64
	for _, frame := range d.Frames {
		for _, v := range frame.Amplitudes {
			if v != 0 {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return 0, 1
	}

	sort.Float64s(values)
	return stat.Quantile(0.05, stat.Empirical, values, nil),
		stat.Quantile(0.95, stat.Empirical, values, nil)
}

// HeatmapRenderer draws a device's CSI history as a frames-by-subcarriers
// heatmap, oldest frame at the top.
type HeatmapRenderer struct {
	theme   ColorTheme
	scale   int
	borders BorderConfig
}

// NewHeatmapRenderer creates a renderer. When annotated is set the image
// gets white borders sized for the scales and info block.
func NewHeatmapRenderer(theme ColorTheme, scale int, annotated bool) *HeatmapRenderer {
	r := HeatmapRenderer{theme: theme, scale: scale}
	if annotated {
		r.borders = BorderConfig{
			Top:    defaultTopBorder,
			Left:   defaultLeftBorder,
			Bottom: defaultBottomBorder,
			Right:  defaultRightBorder,
		}
	}
	return &r
}

// PlotArea returns the rectangle the heatmap cells occupy inside the image.
func (r *HeatmapRenderer) PlotArea(data *HeatmapData) image.Rectangle {
	return image.Rect(
		r.borders.Left,
		r.borders.Top,
		r.borders.Left+data.Subcarriers*r.scale,
		r.borders.Top+len(data.Frames)*r.scale,
	)
}

// Render produces the heatmap image.
func (r *HeatmapRenderer) Render(data *HeatmapData) *image.RGBA {
	plot := r.PlotArea(data)
	img := image.NewRGBA(image.Rect(0, 0, plot.Max.X+r.borders.Right, plot.Max.Y+r.borders.Bottom))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	minAmp, maxAmp := data.AmplitudeBounds()
	mapper := NewAmplitudeMapper(r.theme, minAmp, maxAmp)

	for row, frame := range data.Frames {
		for col := 0; col < data.Subcarriers; col++ {
			var amplitude float64
			if col < len(frame.Amplitudes) {
				amplitude = frame.Amplitudes[col]
			}
			cell := image.Rect(
				plot.Min.X+col*r.scale,
				plot.Min.Y+row*r.scale,
				plot.Min.X+(col+1)*r.scale,
				plot.Min.Y+(row+1)*r.scale,
			)
			draw.Draw(img, cell, image.NewUniform(mapper.Color(amplitude)), image.Point{}, draw.Src)
		}
	}

	return img
}
