package app

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
)

const (
	dpi      float64 = 72
	fontSize float64 = 12
)

// Annotator draws subcarrier and time scales plus a capture info block onto
// a rendered heatmap.
type Annotator struct {
	context  *freetype.Context
	renderer *HeatmapRenderer
}

// NewAnnotator loads a TTF font from disk and prepares a drawing context.
func NewAnnotator(fontFile string, renderer *HeatmapRenderer) (*Annotator, error) {
	fontBytes, err := os.ReadFile(fontFile)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}
	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetSrc(image.Black)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context, renderer: renderer}, nil
}

// Annotate draws all annotations onto the image.
func (a *Annotator) Annotate(img *image.RGBA, data *HeatmapData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *HeatmapData) error
	}{
		{"drawing subcarrier scale", a.drawSubcarrierScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info", a.drawInfo},
	}
	for _, op := range ops {
		if err := op.fn(img, data); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *Annotator) drawSubcarrierScale(img *image.RGBA, data *HeatmapData) error {
	plot := a.renderer.PlotArea(data)

	step := 8
	for step < data.Subcarriers && plot.Dx()/(data.Subcarriers/step+1) < 40 {
		step *= 2
	}

	for sc := 0; sc < data.Subcarriers; sc += step {
		x := plot.Min.X + sc*a.renderer.scale

		// guideline above the column
		for y := plot.Min.Y - 8; y < plot.Min.Y; y++ {
			img.Set(x, y, image.Black)
		}

		pt := freetype.Pt(x+2, plot.Min.Y-10)
		if _, err := a.context.DrawString(fmt.Sprintf("%d", sc), pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawTimeScale(img *image.RGBA, data *HeatmapData) error {
	plot := a.renderer.PlotArea(data)

	step := len(data.Frames) / 10
	if step == 0 {
		step = 1
	}

	for row := 0; row < len(data.Frames); row += step {
		y := plot.Min.Y + row*a.renderer.scale

		// guideline towards the row
		for x := plot.Min.X - 8; x < plot.Min.X; x++ {
			img.Set(x, y, image.Black)
		}

		label := fmt.Sprintf("#%d", row)
		if ts := data.Frames[row].Timestamp; ts != nil {
			label = time.UnixMicro(*ts).Format("15:04:05.000")
		}

		pt := freetype.Pt(3, y+int(fontSize))
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawInfo(img *image.RGBA, data *HeatmapData) error {
	lines := []string{
		"Device: " + data.DeviceID,
		fmt.Sprintf("Frames: %d x %d subcarriers", len(data.Frames), data.Subcarriers),
		"Capture: " + humanize.Bytes(uint64(data.CaptureBytes)),
	}
	if data.SamplingRate > 0 {
		fract, suffix := humanize.ComputeSI(data.SamplingRate)
		lines = append(lines, fmt.Sprintf("Sampling rate: %0.2f %sHz", fract, suffix))
	}
	if data.MotionScore != nil {
		lines = append(lines, fmt.Sprintf("Motion score: %0.2f dB", *data.MotionScore))
	}

	top := img.Bounds().Max.Y - a.renderer.borders.Bottom + 15
	for i, line := range lines {
		pt := freetype.Pt(a.renderer.borders.Left, top+i*(int(fontSize)+6))
		if _, err := a.context.DrawString(line, pt); err != nil {
			return err
		}
	}

	return nil
}
