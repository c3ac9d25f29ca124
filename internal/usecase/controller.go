package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"dictum/internal/domain"
	"dictum/internal/ports"
	"dictum/internal/sentence"
)

var (
	ErrNoActiveSession       = errors.New("no active dictation session")
	ErrSessionActive         = errors.New("a dictation session is already active")
	ErrRecognizerUnavailable = errors.New("speech recognition is not available")
)

// Config controls continuous dictation behavior.
type Config struct {
	Recognizer ports.RecognizerConfig
	Lexicon    sentence.Lexicon
	CopyOnStop bool
}

// DictationController keeps one dictation session alive across recognizer
// cycles until the user stops it or a fatal error ends it. Recognizer
// events go through Dispatch and are reduced one at a time.
type DictationController struct {
	recognizer ports.Recognizer
	rules      ports.RulesEngine
	events     ports.EventSink
	finalizer  transcriptFinalizer
	cfg        Config
	log        zerolog.Logger

	mu      sync.Mutex
	state   domain.LifecycleState
	current *dictationSession
	nextID  int
	// running is set from an accepted recognizer Start until the matching
	// Ended, whichever session it belonged to.
	running bool

	queueMu  sync.Mutex
	queue    []domain.RecognitionEvent
	draining bool
}

func NewDictationController(
	recognizer ports.Recognizer,
	rules ports.RulesEngine,
	clipboard ports.Clipboard,
	events ports.EventSink,
	cfg Config,
	log zerolog.Logger,
) *DictationController {
	if len(cfg.Lexicon.Openers) == 0 && len(cfg.Lexicon.Closers) == 0 && len(cfg.Lexicon.Copulas) == 0 {
		threshold := cfg.Lexicon.ShortThreshold
		cfg.Lexicon = sentence.English
		if threshold > 0 {
			cfg.Lexicon.ShortThreshold = threshold
		}
	}

	c := &DictationController{
		recognizer: recognizer,
		rules:      rules,
		events:     events,
		finalizer:  newTranscriptFinalizer(clipboard, events, cfg.CopyOnStop, log),
		cfg:        cfg,
		log:        log,
		state:      domain.StateIdle,
	}
	if recognizer != nil {
		recognizer.SetHandler(c.Dispatch)
	}
	return c
}

// Start begins a dictation session seeded with the field's current text.
func (c *DictationController) Start(ctx context.Context, seed string) error {
	if c.recognizer == nil || !c.recognizer.Available() {
		return ErrRecognizerUnavailable
	}

	c.mu.Lock()
	if c.state.Active() || c.running {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.nextID++
	session := &dictationSession{
		id:             c.nextID,
		ctx:            ctx,
		seed:           seed,
		shouldContinue: true,
		awaitingStart:  true,
	}
	c.current = session
	c.running = true
	c.transitionLocked(domain.StateListening)
	c.mu.Unlock()

	c.log.Info().Int("session", session.id).Str("locale", c.cfg.Recognizer.Locale).Msg("dictation_start")
	c.publishStatus()

	if err := c.recognizer.Start(c.cfg.Recognizer); err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		c.fail(session, domain.ErrorCodeRecognition, err.Error())
		return fmt.Errorf("start recognition: %w", err)
	}
	return nil
}

// Stop ends the session on behalf of the user. The returned text is the
// display text at this moment, in-flight interim text included. The
// listening flag drops once the recognizer reports its end.
func (c *DictationController) Stop(ctx context.Context) (domain.StopResult, error) {
	c.mu.Lock()
	session := c.current
	if session == nil || !c.state.Active() {
		c.mu.Unlock()
		return domain.StopResult{}, ErrNoActiveSession
	}
	session.shouldContinue = false
	session.finished = true
	text := session.display()
	c.transitionLocked(domain.StateStoppedByUser)
	c.mu.Unlock()

	c.log.Info().Int("session", session.id).Int("restarts", session.restarts).Msg("dictation_stop")
	c.publishStatus()

	if err := c.recognizer.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("recognizer_stop_failed")
	}

	return c.finalizer.Finalize(ctx, text), nil
}

// Abort discards the session and restores the text the field had before
// dictation started.
func (c *DictationController) Abort() error {
	c.mu.Lock()
	session := c.current
	if session == nil || !c.state.Active() {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	session.shouldContinue = false
	session.finished = true
	c.current = nil
	c.transitionLocked(domain.StateIdle)
	c.mu.Unlock()

	if err := c.recognizer.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("recognizer_stop_failed")
	}
	c.log.Info().Int("session", session.id).Msg("dictation_aborted")
	c.events.DisplayText(session.seed)
	c.publishStatus()
	return nil
}

// Status returns the current lifecycle snapshot.
func (c *DictationController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{State: c.state, Listening: c.listeningLocked()}
	if c.current != nil {
		status.Text = c.current.display()
		status.Restarts = c.current.restarts
	}
	return status
}

// Dispatch feeds one recognizer event into the reducer. Events are handled
// strictly in arrival order; an event dispatched while another is being
// handled, including from inside a recognizer call made by the reducer,
// is queued behind it.
func (c *DictationController) Dispatch(event domain.RecognitionEvent) {
	c.queueMu.Lock()
	c.queue = append(c.queue, event)
	if c.draining {
		c.queueMu.Unlock()
		return
	}
	c.draining = true
	c.queueMu.Unlock()

	for {
		c.queueMu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.queueMu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.queueMu.Unlock()

		c.reduce(next)
	}
}

func (c *DictationController) reduce(event domain.RecognitionEvent) {
	switch event.Kind {
	case domain.EventStarted:
		c.onStarted()
	case domain.EventResultBatch:
		c.onResults(event.Results)
	case domain.EventError:
		c.onError(event.Code, event.Detail)
	case domain.EventEnded:
		c.onEnded()
	default:
		c.log.Warn().Str("kind", string(event.Kind)).Msg("unknown_recognition_event")
	}
}

func (c *DictationController) onStarted() {
	c.mu.Lock()
	session := c.current
	if session == nil || session.finished {
		c.mu.Unlock()
		return
	}
	session.awaitingStart = false
	session.cycles++
	if session.assembler == nil {
		session.assembler = c.newAssembler(session)
	}
	if c.state == domain.StateRestartingAfterEnd {
		c.transitionLocked(domain.StateListening)
	}
	cycle := session.cycles
	c.mu.Unlock()

	c.log.Debug().Int("session", session.id).Int("cycle", cycle).Msg("recognizer_started")
}

func (c *DictationController) onResults(results []domain.RecognitionResult) {
	c.mu.Lock()
	session := c.current
	if session == nil || session.finished || !c.state.Active() {
		c.mu.Unlock()
		return
	}
	if session.assembler == nil {
		session.assembler = c.newAssembler(session)
	}
	display := session.assembler.Apply(results)
	c.mu.Unlock()

	c.events.DisplayText(display)
}

func (c *DictationController) onError(code domain.RecognitionErrorCode, detail string) {
	if domain.ClassifyRecognitionError(code) == domain.ErrorClassTransient {
		c.log.Debug().Str("code", string(code)).Str("detail", detail).Msg("transient_recognition_error")
		return
	}

	c.mu.Lock()
	session := c.current
	c.mu.Unlock()
	if session == nil {
		return
	}

	c.log.Error().Str("code", string(code)).Str("detail", detail).Msg("fatal_recognition_error")
	message := string(code)
	if detail != "" {
		message += ": " + detail
	}
	c.fail(session, domain.ErrorCodeRecognition, message)
}

func (c *DictationController) onEnded() {
	c.mu.Lock()
	session := c.current
	if session != nil && c.state == domain.StateListening && session.shouldContinue && session.awaitingStart {
		c.mu.Unlock()
		c.log.Warn().Int("session", session.id).Msg("duplicate_end_ignored")
		return
	}

	wasRunning := c.running
	c.running = false
	if session == nil || c.state != domain.StateListening || !session.shouldContinue {
		c.mu.Unlock()
		c.log.Debug().Msg("recognizer_ended")
		if wasRunning {
			c.publishStatus()
		}
		return
	}

	c.transitionLocked(domain.StateRestartingAfterEnd)
	c.running = true
	session.awaitingStart = true
	session.restarts++
	if session.assembler != nil {
		session.assembler.Rebase()
	}
	display := session.display()
	restarts := session.restarts
	c.mu.Unlock()

	c.log.Info().Int("session", session.id).Int("restarts", restarts).Msg("recognizer_restart")
	c.events.DisplayText(display)
	c.publishStatus()

	if err := c.recognizer.Start(c.cfg.Recognizer); err != nil {
		c.log.Error().Err(err).Int("session", session.id).Msg("recognizer_restart_failed")
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		c.fail(session, domain.ErrorCodeRestart, err.Error())
		return
	}

	c.mu.Lock()
	stoppedMeanwhile := !session.shouldContinue
	if c.current == session && c.state == domain.StateRestartingAfterEnd {
		c.transitionLocked(domain.StateListening)
	}
	c.mu.Unlock()

	if stoppedMeanwhile {
		// The user stopped while the restart request was in flight.
		_ = c.recognizer.Stop()
	}
	c.publishStatus()
}

// fail ends session with a fatal error. The assembled text stays intact.
func (c *DictationController) fail(session *dictationSession, code domain.ErrorCode, detail string) {
	c.mu.Lock()
	if c.current != session {
		c.mu.Unlock()
		return
	}
	if session.finished {
		// Already stopped by the user. Ended still follows and settles the
		// listening flag.
		c.mu.Unlock()
		return
	}
	session.shouldContinue = false
	session.finished = true
	confirmed := session.cycles > 0
	text := session.display()
	c.transitionLocked(domain.StateStoppedByFatal)
	c.mu.Unlock()

	if err := c.recognizer.Stop(); err != nil {
		c.log.Debug().Err(err).Msg("recognizer_stop_after_failure")
	}
	c.events.SessionError(code, detail)
	c.publishStatus()

	if !confirmed {
		// The recognizer never started, so nothing was dictated.
		return
	}
	ctx := session.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	c.finalizer.Finalize(ctx, text)
}

func (c *DictationController) newAssembler(session *dictationSession) *transcriptAssembler {
	log := c.log.With().Int("session", session.id).Logger()
	return newTranscriptAssembler(session.seed, c.cfg.Lexicon, c.rules, log)
}

func (c *DictationController) transitionLocked(next domain.LifecycleState) {
	if c.state == next {
		return
	}
	c.log.Debug().Str("from", string(c.state)).Str("to", string(next)).Msg("state_transition")
	c.state = next
}

func (c *DictationController) listeningLocked() bool {
	if c.state.Active() {
		return true
	}
	return c.state == domain.StateStoppedByUser && c.running
}

func (c *DictationController) publishStatus() {
	c.events.DictationStateChanged(c.Status())
}
