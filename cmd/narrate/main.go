package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"

	"github.com/clipforge/narration-service/internal/cache"
	"github.com/clipforge/narration-service/internal/config"
	"github.com/clipforge/narration-service/internal/provider"
	"github.com/clipforge/narration-service/internal/synth"
)

// Flag names and descriptions.
const (
	flagText    = "text"
	flagOutput  = "output"
	flagVoice   = "voice"
	flagHealth  = "health"
	flagVerbose = "verbose"

	flagTextDesc    = "Text to convert to narration audio"
	flagOutputDesc  = "Output file path (.mp3)"
	flagVoiceDesc   = "Requested voice for the primary provider"
	flagHealthDesc  = "Check speech gateway health and exit"
	flagVerboseDesc = "Enable verbose logging"
)

const (
	logFileNameDefault = "narrate.log"
	logFileNameVerbose = "narrate-verbose.log"

	healthCheckTimeout = 10 * time.Second
)

var errTextRequired = errors.New("--text must be provided")

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text    string
	output  string
	voice   string
	health  bool
	verbose bool
}

func main() {
	err := run()
	if err != nil {
		// The file logger might not be initialized yet, so use the standard
		// log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	bootstrapLog, err := logger.New(os.TempDir(), logFileNameDefault)
	if err != nil {
		return fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logFileName := logFileNameDefault
	if flags.verbose {
		logFileName = logFileNameVerbose
	}

	fileLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = fileLog.Close() }()

	if flags.health {
		return handleHealthCheck(cfg)
	}

	if flags.text == "" {
		flag.Usage()

		return errTextRequired
	}

	return synthesize(cfg, fileLog, flags)
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flag.Parse()

	return flags
}

func handleHealthCheck(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	edge := provider.NewEdge(cfg.TTS.SpeechGatewayURL, cfg.TTS.PrimaryVoice, healthCheckTimeout)

	err := edge.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("Speech gateway is not healthy: %v\n", err)

		return err
	}

	fmt.Println("Speech gateway is healthy")

	return nil
}

func synthesize(cfg *config.Config, fileLog *logger.Logger, flags appFlags) error {
	audioCache, err := cache.New(cfg.Paths.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
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

	orchestrator, err := synth.New(
		providers,
		synth.NewGate(cfg.TTS.MinRequestInterval()),
		audioCache,
		fileLog,
		synth.Options{
			MaxAttempts:    cfg.TTS.MaxAttempts,
			BackoffBase:    cfg.TTS.BackoffBase(),
			BackoffMax:     cfg.TTS.BackoffMax(),
			JitterMax:      synth.DefaultJitterMax,
			AttemptTimeout: cfg.TTS.Timeout(),
			OutputDir:      cfg.Paths.OutputDir,
			Sleep:          nil,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	result := orchestrator.Synthesize(context.Background(), synth.Request{
		Text:       flags.text,
		OutputPath: flags.output,
		Voice:      flags.voice,
	})

	if !result.Success {
		return fmt.Errorf(
			"synthesis failed (%s): %s (attempted: %v)",
			result.ErrorKind,
			result.Message,
			result.AttemptedProviders,
		)
	}

	fmt.Printf("Generated: %s\n", result.AudioPath)

	return nil
}
