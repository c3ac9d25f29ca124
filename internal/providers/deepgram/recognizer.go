package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dictum/internal/domain"
	"dictum/internal/ports"
)

var (
	ErrNotConfigured  = errors.New("DEEPGRAM_API_KEY is not configured")
	ErrAlreadyStarted = errors.New("recognition already started")
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"

	// closeGrace bounds how long a stopping cycle waits for the provider to
	// flush its last results and close the socket.
	closeGrace = 3 * time.Second
)

// Config controls the Deepgram websocket recognizer.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool

	Audio     ports.AudioConfig
	ChunkSize int

	// MaxCycle ends a recognition cycle the way a browser engine ends a
	// long continuous session. NoSpeechTimeout reports no-speech and ends
	// the cycle when nothing is transcribed for that long; zero disables it.
	MaxCycle        time.Duration
	NoSpeechTimeout time.Duration
}

// Recognizer is a ports.Recognizer backed by Deepgram's streaming listen
// API and a microphone capture. Each Start opens one cycle: capture, socket,
// Started, result batches, then Ended. All events of a cycle are delivered
// from a single goroutine.
type Recognizer struct {
	cfg     Config
	capture ports.AudioCapture
	dialer  *websocket.Dialer
	log     zerolog.Logger

	mu      sync.Mutex
	handler ports.EventHandler
	active  *cycle
	nextID  int
}

func NewRecognizer(cfg Config, capture ports.AudioCapture, log zerolog.Logger) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Recognizer{
		cfg:     cfg,
		capture: capture,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log,
	}
}

func (r *Recognizer) Available() bool {
	return strings.TrimSpace(r.cfg.APIKey) != "" && r.capture != nil
}

func (r *Recognizer) SetHandler(handler ports.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Start opens a new cycle and returns immediately.
func (r *Recognizer) Start(cfg ports.RecognizerConfig) error {
	if !r.Available() {
		return ErrNotConfigured
	}
	listenURL, err := buildListenURL(r.cfg, cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.nextID++
	c := &cycle{
		id:        r.nextID,
		url:       listenURL,
		stop:      make(chan struct{}),
		finalOnly: !cfg.Continuous,
	}
	r.active = c
	r.mu.Unlock()

	go r.run(c)
	return nil
}

// Stop asks the running cycle to flush pending audio and end. It is a no-op
// without a running cycle.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	c := r.active
	r.mu.Unlock()
	if c != nil {
		c.requestStop()
	}
	return nil
}

type cycle struct {
	id  int
	url string
	// finalOnly ends the cycle after the first final result, as a
	// non-continuous engine does.
	finalOnly bool

	stop     chan struct{}
	stopOnce sync.Once
}

func (c *cycle) requestStop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (r *Recognizer) run(c *cycle) {
	log := r.log.With().Int("cycle", c.id).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer r.finish(c)

	audio, err := r.capture.Start(ctx, r.cfg.Audio)
	if err != nil {
		log.Error().Err(err).Msg("audio_capture_failed")
		r.emit(domain.RecognitionError(domain.RecognitionAudioCapture, err.Error()))
		return
	}
	defer func() {
		if err := audio.Stop(); err != nil {
			log.Debug().Err(err).Msg("audio_stop_failed")
		}
	}()

	conn, err := r.dial(ctx, c)
	if err != nil {
		if c.stopRequested() {
			return
		}
		log.Error().Err(err).Msg("deepgram_dial_failed")
		r.emit(dialError(err))
		return
	}
	defer conn.Close()

	if c.stopRequested() {
		return
	}
	r.emit(domain.Started())
	log.Debug().Msg("deepgram_cycle_started")

	pumpErr := make(chan pumpFailure, 1)
	go pumpAudio(audio, conn, r.cfg.ChunkSize, pumpErr)

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go readFrames(ctx, conn, frames, readErr)

	s := cycleState{recognizer: r, cycle: c, audio: audio, log: log, stopC: c.stop}
	s.armTimers(r.cfg.MaxCycle, r.cfg.NoSpeechTimeout)
	defer s.stopTimers()

	for {
		select {
		case payload := <-frames:
			s.handleFrame(payload)
		case err := <-readErr:
			if !s.stopping && !isNormalClose(err) {
				log.Warn().Err(err).Msg("deepgram_read_failed")
				r.emit(domain.RecognitionError(domain.RecognitionNetwork, err.Error()))
			}
			return
		case failure := <-pumpErr:
			if !s.stopping {
				log.Warn().Err(failure.err).Str("code", string(failure.code)).Msg("audio_pump_failed")
				r.emit(domain.RecognitionError(failure.code, failure.err.Error()))
				s.beginStop()
			}
		case <-s.stopC:
			s.beginStop()
		case <-s.maxCycleC():
			log.Debug().Msg("max_cycle_reached")
			s.beginStop()
		case <-s.noSpeechC():
			r.emit(domain.RecognitionError(domain.RecognitionNoSpeech, ""))
			s.beginStop()
		case <-s.grace:
			log.Debug().Msg("close_grace_expired")
			return
		}
	}
}

// finish clears the running cycle before reporting Ended, so a handler may
// start the next cycle from inside the Ended callback.
func (r *Recognizer) finish(c *cycle) {
	r.mu.Lock()
	if r.active == c {
		r.active = nil
	}
	r.mu.Unlock()
	r.emit(domain.Ended())
}

func (r *Recognizer) dial(ctx context.Context, c *cycle) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-dialCtx.Done():
		}
	}()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, resp, err := r.dialer.DialContext(dialCtx, c.url, headers)
	if err != nil {
		if resp != nil {
			return nil, &handshakeError{status: resp.StatusCode, err: err}
		}
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	return conn, nil
}

func (r *Recognizer) emit(event domain.RecognitionEvent) {
	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

func (c *cycle) stopRequested() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

type handshakeError struct {
	status int
	err    error
}

func (e *handshakeError) Error() string {
	return fmt.Sprintf("deepgram handshake failed with status %d: %v", e.status, e.err)
}

func (e *handshakeError) Unwrap() error { return e.err }

func dialError(err error) domain.RecognitionEvent {
	var hs *handshakeError
	if errors.As(err, &hs) && (hs.status == http.StatusUnauthorized || hs.status == http.StatusForbidden) {
		return domain.RecognitionError(domain.RecognitionNotAllowed, err.Error())
	}
	return domain.RecognitionError(domain.RecognitionNetwork, err.Error())
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func readFrames(ctx context.Context, conn *websocket.Conn, frames chan<- []byte, readErr chan<- error) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- payload:
		case <-ctx.Done():
			return
		}
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

type alternative struct {
	Transcript string `json:"transcript"`
}

func parseResponse(payload []byte) (deepgramResponse, bool) {
	var response deepgramResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return deepgramResponse{}, false
	}
	return response, true
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
}

func providerError(response deepgramResponse) string {
	for _, message := range []string{response.Description, response.Message} {
		if trimmed := strings.TrimSpace(message); trimmed != "" {
			return trimmed
		}
	}
	return "deepgram returned an unknown error"
}

func buildListenURL(providerCfg Config, recognizerCfg ports.RecognizerConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	sampleRate := providerCfg.Audio.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := providerCfg.Audio.Channels
	if channels <= 0 {
		channels = 1
	}
	model := providerCfg.Model
	if model == "" {
		model = defaultModel
	}

	query := listenURL.Query()
	query.Set("model", model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	query.Set("channels", fmt.Sprintf("%d", channels))
	query.Set("interim_results", fmt.Sprintf("%t", recognizerCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if locale := strings.TrimSpace(recognizerCfg.Locale); locale != "" {
		query.Set("language", locale)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
