package ports

import (
	"context"
	"io"

	"dictum/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// RecognizerConfig mirrors the knobs a speech recognition capability exposes.
type RecognizerConfig struct {
	Continuous     bool
	InterimResults bool
	Locale         string
}

// EventHandler receives recognizer events in delivery order.
type EventHandler func(event domain.RecognitionEvent)

// Recognizer is the external speech recognition capability. Start and Stop
// are requests: they return synchronously and every outcome is reported
// through the handler (Started, ResultBatch, Error, Ended).
type Recognizer interface {
	Available() bool
	SetHandler(handler EventHandler)
	Start(cfg RecognizerConfig) error
	Stop() error
}

// RulesEngine rewrites finalized transcript segments.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits dictation state to the UI.
type EventSink interface {
	DictationStateChanged(status domain.Status)
	DisplayText(text string)
	DictationFinished(text string)
	SessionError(code domain.ErrorCode, detail string)
}
