package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"dictum/internal/bootstrap"
	"dictum/internal/config"
	"dictum/internal/domain"
	"dictum/internal/logging"
	"dictum/internal/usecase"
)

const (
	eventState = "dictum:state"
	eventText  = "dictum:text"
	eventFinal = "dictum:final"
	eventError = "dictum:error"
)

// App is the Wails application root. It owns the dictation controller and
// relays its events to the frontend.
type App struct {
	ctx context.Context

	controller *usecase.DictationController
	cfg        config.Config
	log        zerolog.Logger
	closeLog   func() error
	bootErr    error
}

func NewApp() *App {
	return &App{log: zerolog.Nop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.log = services.Log
	a.closeLog = services.Close
	a.DictationStateChanged(a.controller.Status())
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		if err := a.controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
			a.log.Warn().Err(err).Msg("abort_on_shutdown_failed")
		}
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// StartDictation begins continuous dictation. seed is the text already in
// the field; dictated text is appended to it.
func (a *App) StartDictation(seed string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx, seed); err != nil {
		// Recognition failures are reported by the controller itself.
		if errors.Is(err, usecase.ErrRecognizerUnavailable) {
			a.SessionError(domain.ErrorCodeUnavailable, err.Error())
		}
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopDictation ends the session and returns the text shown at that moment.
func (a *App) StopDictation() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.controller.Stop(a.ctx)
}

// AbortDictation discards the session and restores the seed text.
func (a *App) AbortDictation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Abort(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// GetStatus returns the current dictation lifecycle snapshot.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		return domain.Status{State: domain.StateIdle}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"locale":           a.cfg.Recognition.Locale,
		"continuous":       fmt.Sprintf("%t", a.cfg.Recognition.Continuous),
		"rulesFile":        a.cfg.Rules.Path,
		"configFile":       a.cfg.Source,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"logFile":          logging.Path(a.cfg.Log.Dir),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// DictationStateChanged emits lifecycle updates to the frontend.
func (a *App) DictationStateChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]any{
		"state":     string(status.State),
		"listening": status.Listening,
		"restarts":  status.Restarts,
		"message":   stateMessage(status.State),
	})
}

// DisplayText emits the text the field should show right now.
func (a *App) DisplayText(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventText, map[string]string{"text": text})
}

// DictationFinished emits the text a finished session left in the field.
func (a *App) DictationFinished(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFinal, map[string]string{"text": text})
}

// SessionError emits user-visible failures to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func stateMessage(state domain.LifecycleState) string {
	switch state {
	case domain.StateIdle:
		return "Ready"
	case domain.StateListening:
		return "Listening"
	case domain.StateRestartingAfterEnd:
		return "Listening"
	case domain.StateStoppedByUser:
		return "Dictation stopped"
	case domain.StateStoppedByFatal:
		return "Dictation stopped after an error"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeUnavailable:
		return "Speech recognition is not available"
	case domain.ErrorCodeRecognition:
		return "Speech recognition error"
	case domain.ErrorCodeRestart:
		return "Speech recognition could not restart"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
