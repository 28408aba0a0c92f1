// main package for the narration-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/clipforge/narration-service/internal/cache"
	"github.com/clipforge/narration-service/internal/config"
	"github.com/clipforge/narration-service/internal/objectstore"
	"github.com/clipforge/narration-service/internal/provider"
	"github.com/clipforge/narration-service/internal/synth"
	"github.com/clipforge/narration-service/internal/worker"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "narration-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	orchestrator, err := buildOrchestrator(cfg, log)
	if err != nil {
		return err
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.MediaObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	natsWorker, err := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.NarrationRequestedSubject,
		store,
		orchestrator,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.System(
		"Narration service initialized. Listening for jobs on subject: %s",
		cfg.NATS.NarrationRequestedSubject,
	)

	runErr := natsWorker.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("worker exited with error: %w", runErr)
	}

	return nil
}

func buildOrchestrator(cfg *config.Config, log *logger.Logger) (*synth.Orchestrator, error) {
	audioCache, err := cache.New(cfg.Paths.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	providers := provider.NewChain(provider.ChainConfig{
		GatewayURL:        cfg.TTS.SpeechGatewayURL,
		PrimaryVoice:      cfg.TTS.PrimaryVoice,
		ElevenLabsAPIURL:  cfg.ElevenLabs.APIURL,
		ElevenLabsAPIKey:  cfg.ElevenLabs.APIKey(),
		ElevenLabsVoiceID: cfg.ElevenLabs.VoiceID,
		ElevenLabsModelID: cfg.ElevenLabs.ModelID,
		GTTSEndpoint:      cfg.GTTS.Endpoint,
		GTTSLanguage:      cfg.GTTS.Language,
		OfflineCommand:    cfg.Offline.Command,
		OfflineVoice:      cfg.Offline.Voice,
		Timeout:           cfg.TTS.Timeout(),
	})

	gate := synth.NewGate(cfg.TTS.MinRequestInterval())

	orchestrator, err := synth.New(providers, gate, audioCache, log, synth.Options{
		MaxAttempts:    cfg.TTS.MaxAttempts,
		BackoffBase:    cfg.TTS.BackoffBase(),
		BackoffMax:     cfg.TTS.BackoffMax(),
		JitterMax:      synth.DefaultJitterMax,
		AttemptTimeout: cfg.TTS.Timeout(),
		OutputDir:      cfg.Paths.OutputDir,
		Sleep:          nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return orchestrator, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
