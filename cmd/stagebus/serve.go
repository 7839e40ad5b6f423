package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stagebus/stagebus/internal/config"
	"github.com/stagebus/stagebus/internal/fleetbus"
	"github.com/stagebus/stagebus/internal/graphics/overlay"
	"github.com/stagebus/stagebus/internal/graphics/reveal"
	"github.com/stagebus/stagebus/internal/httpapi"
	"github.com/stagebus/stagebus/internal/ingest"
	"github.com/stagebus/stagebus/internal/logging"
	"github.com/stagebus/stagebus/internal/mediaserver"
	"github.com/stagebus/stagebus/internal/mixer"
	"github.com/stagebus/stagebus/internal/mode"
	"github.com/stagebus/stagebus/internal/pipeline"
	"github.com/stagebus/stagebus/internal/procsup"
	"github.com/stagebus/stagebus/internal/recording"
	"github.com/stagebus/stagebus/internal/scene"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the stagebus core",
		Long:  "Run the ingest, recording, mixing and distribution core as a long-lived process.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// serve wires every subsystem manager and blocks serving the control
// plane until ctx is canceled (SIGINT/SIGTERM), then shuts down in
// reverse dependency order.
func serve(parentCtx context.Context) error {
	logging.Setup()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("loading server config: %w", err)
	}

	doc, err := config.LoadDocument(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config document %s: %w", cfg.ConfigPath, err)
	}

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform := pipeline.Platform{
		HardwareEncoder: cfg.Platform.HardwareEncoder,
		HardwareDecoder: cfg.Platform.HardwareDecoder,
	}

	gateway := mediaserver.New(mediaserver.Config{
		Host:      cfg.MediaServer.Host,
		RTSPPort:  cfg.MediaServer.RTSPPort,
		WHEPPort:  cfg.MediaServer.WHEPPort,
		AdminPort: cfg.MediaServer.AdminPort,
	}, logging.Component("mediaserver"))

	bus, err := fleetbus.New(fleetbus.Config{
		Enabled: cfg.NATS.Enabled,
		URL:     cfg.NATS.URL,
		Embed:   cfg.NATS.Embed,
	}, logging.Component("fleetbus"))
	if err != nil {
		return fmt.Errorf("starting fleet bus: %w", err)
	}
	defer bus.Close()

	ingestMgr, err := ingest.New(doc.EnabledCameras(), gateway, platform, logging.Component("ingest"))
	if err != nil {
		return fmt.Errorf("constructing ingest manager: %w", err)
	}

	recordingMgr := recording.New(recording.Config{
		RecordingsRoot:        doc.Recording.RecordingsRoot,
		SessionsDir:           doc.Recording.SessionsDir,
		Fragmented:            doc.Recording.Fragmented,
		FragmentDurationMs:    doc.Recording.FragmentDurationMs,
		MinDiskSpaceBytes:     doc.Recording.MinDiskSpaceBytes,
		WarningDiskSpaceBytes: doc.Recording.WarningDiskSpaceBytes,
	}, ingestMgr, logging.Component("recording"))
	recordingGate := newExternalTriggerRecording(recordingMgr, doc.ExternalCameras, logging.Component("recording"))

	revealMgr := reveal.New(reveal.Config{
		Width:           doc.Reveal.Width,
		Height:          doc.Reveal.Height,
		Framerate:       doc.Reveal.Framerate,
		BitrateKbps:     doc.Reveal.BitrateKbps,
		MediaServerPath: "reveal",
	}, platform, cfg.ChromeLauncherURL, logging.Component("reveal"))

	sceneStore, err := scene.New(doc.Mixer.ScenesDir, logging.Component("scene"))
	if err != nil {
		return fmt.Errorf("loading scenes from %s: %w", doc.Mixer.ScenesDir, err)
	}
	watchStop := make(chan struct{})
	if err := sceneStore.Watch(watchStop); err != nil {
		log.Warn().Err(err).Msg("scene directory watch disabled, falling back to load-once")
	}
	defer close(watchStop)

	overlayMgr := overlay.New(doc.Mixer.OutputWidth, doc.Mixer.OutputHeight)

	mixerMgr := mixer.New(doc.Mixer, platform, ingestMgr, revealMgr, sceneStore, overlayMgr, logging.Component("mixer"))

	procSup := procsup.New(logging.Component("procsup"))

	defaultMode := mode.ModeRecorder
	if doc.ModeManager.DefaultMode == string(mode.ModeVDOPublisher) {
		defaultMode = mode.ModeVDOPublisher
	}
	modeMgr := mode.New(doc.ModeManager.StateFile, defaultMode, doc.Cameras, ingestMgr, procSup, bus, logging.Component("mode"))

	if err := modeMgr.Start(ctx); err != nil {
		return fmt.Errorf("starting %s mode: %w", modeMgr.GetMode(), err)
	}

	server := httpapi.New(httpapi.Deps{
		Ingest:    ingestMgr,
		Cameras:   doc.EnabledCameras(),
		Recording: recordingGate,
		Mixer:     mixerMgr,
		Scenes:    sceneStore,
		Reveal:    revealMgr,
		Overlay:   overlayMgr,
		Mode:      modeMgr,
		Gateway:   gateway,
	}, logging.Component("httpapi"))

	log.Info().Str("addr", cfg.HTTPAddr).Msg("stagebus listening")
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	procSup.StopAll()
	mixerMgr.Stop()
	revealMgr.StopAll()
	if err := ingestMgr.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("ingest scheduler shutdown failed")
	}

	return nil
}
