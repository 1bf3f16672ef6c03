package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wifisense/csi-radar/internal/doppler"
	"github.com/wifisense/csi-radar/internal/ingest"
	"github.com/wifisense/csi-radar/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Run wires the collection pipeline and blocks until the context is
// cancelled: one ingestion source per enabled port, a single dispatcher, the
// periodic motion analyzer, and optionally the HTTP status API. All tasks
// are joined before Run returns.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store := telemetry.NewStore(config.Master,
		telemetry.WithLogger(logger),
		telemetry.WithCSICapacity(config.Store.CSICapacity),
		telemetry.WithSyncHistorySize(config.Store.SyncHistorySize),
		telemetry.WithDriftThreshold(config.Store.DriftThresholdUs))

	sources, err := createSources(config, logger)
	if err != nil {
		return fmt.Errorf("failed to create sources: %w", err)
	}

	dispatcher := ingest.NewDispatcher(store,
		ingest.WithDispatcherLogger(logger),
		ingest.WithAllowList(config.AllowDevices))

	analyzer := doppler.NewAnalyzer(store, config.Roster(),
		doppler.WithInterval(config.AnalysisInterval()),
		doppler.WithLogger(logger))

	inbound := make(chan ingest.Envelope, len(sources)*8)

	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(1)
		go func(source *ingest.Source) {
			defer wg.Done()
			// A transport failure ends only this source; the rest of the
			// pipeline keeps running on whatever still streams.
			if err := source.Run(ctx, inbound); err != nil {
				logger.Error(err.Error(), slog.String("source", source.Name()))
			}
		}(source)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx, inbound); err != nil {
			logger.Error(err.Error())
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := analyzer.Run(ctx); err != nil {
			logger.Error(err.Error())
		}
	}()

	var server *http.Server
	if config.Settings.Listen != "" {
		server = newStatusServer(config.Settings.Listen, store, analyzer.Results())
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("status API listening", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(fmt.Sprintf("status API failed: %s", err.Error()))
			}
		}()
	}

	<-ctx.Done()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn(fmt.Sprintf("status API shutdown: %s", err.Error()))
		}
		cancel()
	}

	wg.Wait()
	logger.Info("collection stopped")
	return nil
}

func createSources(config *Config, logger *slog.Logger) ([]*ingest.Source, error) {
	var sources []*ingest.Source
	for _, portConfig := range config.Ports {
		if !portConfig.Enabled {
			continue
		}

		transport, err := ingest.OpenSerial(portConfig.Port, portConfig.BaudRate)
		if err != nil {
			for _, source := range sources {
				source.Close()
			}
			return nil, err
		}

		sources = append(sources, ingest.NewSource(portConfig.Name, transport,
			ingest.WithLogger(logger),
			ingest.WithMaxBufferLen(config.Decoder.MaxBufferLen)))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no ports enabled in configuration")
	}
	return sources, nil
}
