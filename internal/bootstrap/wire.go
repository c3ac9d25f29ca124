package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"dictum/internal/audio"
	"dictum/internal/config"
	"dictum/internal/logging"
	"dictum/internal/ports"
	"dictum/internal/providers/deepgram"
	"dictum/internal/rules"
	"dictum/internal/sentence"
	"dictum/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.DictationController
	Config     config.Config
	Log        zerolog.Logger
	// Close releases the log file.
	Close func() error
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	log, closeLog, err := logging.New(logging.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		return Services{}, fmt.Errorf("init logging: %w", err)
	}

	rulesEngine, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		_ = closeLog()
		return Services{}, err
	}

	audioCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}
	recognizer := deepgram.NewRecognizer(
		deepgram.Config{
			APIKey:          cfg.Deepgram.APIKey,
			APIBaseURL:      cfg.Deepgram.APIBaseURL,
			Model:           cfg.Deepgram.Model,
			SmartFormat:     cfg.Deepgram.SmartFormat,
			Audio:           audioCfg,
			ChunkSize:       cfg.Audio.ChunkSize,
			MaxCycle:        cfg.Recognition.MaxCycle,
			NoSpeechTimeout: cfg.Recognition.NoSpeechTimeout,
		},
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, log.With().Str("component", "audio").Logger()),
		log.With().Str("component", "deepgram").Logger(),
	)

	lexicon := sentence.English
	lexicon.ShortThreshold = cfg.Heuristics.QuestionThreshold

	controller := usecase.NewDictationController(
		recognizer,
		rulesEngine,
		clipboard,
		eventSink,
		usecase.Config{
			Recognizer: ports.RecognizerConfig{
				Continuous:     cfg.Recognition.Continuous,
				InterimResults: cfg.Recognition.InterimResults,
				Locale:         cfg.Recognition.Locale,
			},
			Lexicon:    lexicon,
			CopyOnStop: cfg.Output.CopyOnStop,
		},
		log.With().Str("component", "dictation").Logger(),
	)

	log.Info().
		Str("config", cfg.Source).
		Str("locale", cfg.Recognition.Locale).
		Int("rules", rulesEngine.Len()).
		Bool("recognizer_available", recognizer.Available()).
		Msg("services_ready")

	return Services{Controller: controller, Config: cfg, Log: log, Close: closeLog}, nil
}
