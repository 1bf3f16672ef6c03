package app

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wifisense/csi-radar/internal/doppler"
	"github.com/wifisense/csi-radar/internal/framing"
	"github.com/wifisense/csi-radar/internal/telemetry"
)

const replayChunkSize = 4096

// Run replays a raw serial capture through the frame decoder and telemetry
// store, runs one motion analysis pass, and renders the chosen device's CSI
// history as a heatmap image.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	raw, err := os.ReadFile(config.InputFile)
	if err != nil {
		return fmt.Errorf("reading capture: %w", err)
	}

	store := telemetry.NewStore(config.MasterID, telemetry.WithLogger(logger))
	replay(raw, filepath.Base(config.InputFile), store, logger)

	devices := store.Devices()
	if len(devices) == 0 {
		return errors.New("capture contains no decodable records")
	}

	deviceID, frames, err := pickDevice(devices, config.DeviceID)
	if err != nil {
		return err
	}

	logger.Info("replayed capture",
		slog.Int("devices", len(devices)),
		slog.String("device", deviceID),
		slog.Int("frames", len(frames)))

	data := NewHeatmapData(deviceID, frames)
	data.CaptureBytes = int64(len(raw))

	// Analysis enriches the info block but a capture too short to analyse
	// still renders.
	if result, err := doppler.Analyze(frames, time.Now()); err != nil {
		logger.Warn(fmt.Sprintf("motion analysis skipped: %s", err.Error()))
	} else {
		data.SamplingRate = result.SamplingRate
		data.MotionScore = &result.MotionScore
	}

	renderer := NewHeatmapRenderer(config.Theme, config.Scale, config.FontFile != "")
	img := renderer.Render(data)

	if config.FontFile != "" {
		annotator, err := NewAnnotator(config.FontFile, renderer)
		if err != nil {
			return fmt.Errorf("creating annotator: %w", err)
		}
		if err = annotator.Annotate(img, data); err != nil {
			return fmt.Errorf("annotating heatmap: %w", err)
		}
	}

	logger.Info("rendering heatmap",
		slog.String("destination", config.OutputFile),
		slog.String("format", string(config.Format)),
		slog.String("theme", string(config.Theme)),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImageJPEG:
		return jpeg.Encode(out, img, &jpeg.Options{Quality: 98})
	default:
		return png.Encode(out, img)
	}
}

// replay feeds the capture through a frame decoder in transport-sized
// chunks and applies each record to the store, resolving identity the same
// way the live dispatcher does, with the capture name as the fallback.
func replay(raw []byte, sourceName string, store *telemetry.Store, logger *slog.Logger) {
	decoder := framing.NewDecoder()

	for start := 0; start < len(raw); start += replayChunkSize {
		chunk := raw[start:min(start+replayChunkSize, len(raw))]

		for _, res := range decoder.Feed(chunk) {
			if res.Err != nil {
				logger.Debug(fmt.Sprintf("discarded frame: %s", res.Err.Error()))
				continue
			}

			id := sourceName
			switch {
			case res.Record.DeviceID != nil && *res.Record.DeviceID != "":
				id = *res.Record.DeviceID
			case res.Record.MAC != nil && *res.Record.MAC != "":
				id = *res.Record.MAC
			}
			store.Update(id, res.Record)
		}
	}
}

// pickDevice selects the requested device, or the one with the longest CSI
// history when none was requested.
func pickDevice(devices map[string]*telemetry.DeviceState, requested string) (string, []telemetry.CSIFrame, error) {
	if requested != "" {
		dev, ok := devices[requested]
		if !ok {
			return "", nil, fmt.Errorf("device %s not found in capture", requested)
		}
		return requested, dev.CSI, nil
	}

	var bestID string
	var best *telemetry.DeviceState
	for id, dev := range devices {
		if best == nil || len(dev.CSI) > len(best.CSI) || (len(dev.CSI) == len(best.CSI) && id < bestID) {
			bestID, best = id, dev
		}
	}
	if best == nil || len(best.CSI) == 0 {
		return "", nil, errors.New("capture contains no CSI frames")
	}
	return bestID, best.CSI, nil
}
