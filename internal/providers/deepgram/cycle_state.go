package deepgram

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dictum/internal/domain"
	"dictum/internal/ports"
)

// cycleState is owned by the run goroutine of one cycle. It keeps the
// growing result list the way a browser engine does: every final so far,
// followed by the current interim hypothesis.
type cycleState struct {
	recognizer *Recognizer
	cycle      *cycle
	audio      ports.AudioSession
	log        zerolog.Logger

	finals  []string
	interim string

	stopping bool
	stopC    <-chan struct{}
	grace    <-chan time.Time

	maxCycle      *time.Timer
	noSpeech      *time.Timer
	noSpeechAfter time.Duration
}

func (s *cycleState) armTimers(maxCycle time.Duration, noSpeech time.Duration) {
	if maxCycle > 0 {
		s.maxCycle = time.NewTimer(maxCycle)
	}
	if noSpeech > 0 {
		s.noSpeechAfter = noSpeech
		s.noSpeech = time.NewTimer(noSpeech)
	}
}

func (s *cycleState) stopTimers() {
	if s.maxCycle != nil {
		s.maxCycle.Stop()
	}
	if s.noSpeech != nil {
		s.noSpeech.Stop()
	}
}

func (s *cycleState) maxCycleC() <-chan time.Time {
	if s.maxCycle == nil || s.stopping {
		return nil
	}
	return s.maxCycle.C
}

func (s *cycleState) noSpeechC() <-chan time.Time {
	if s.noSpeech == nil || s.stopping {
		return nil
	}
	return s.noSpeech.C
}

func (s *cycleState) heardSpeech() {
	if s.noSpeech == nil {
		return
	}
	if !s.noSpeech.Stop() {
		select {
		case <-s.noSpeech.C:
		default:
		}
	}
	s.noSpeech.Reset(s.noSpeechAfter)
}

// beginStop stops capture. The pump then sends CloseStream and the provider
// flushes its last results before closing the socket.
func (s *cycleState) beginStop() {
	if s.stopping {
		return
	}
	s.stopping = true
	s.stopC = nil
	if err := s.audio.Stop(); err != nil {
		s.log.Debug().Err(err).Msg("audio_stop_failed")
	}
	s.grace = time.After(closeGrace)
}

func (s *cycleState) handleFrame(payload []byte) {
	response, ok := parseResponse(payload)
	if !ok {
		s.log.Debug().Int("bytes", len(payload)).Msg("deepgram_frame_unparsed")
		return
	}

	if strings.EqualFold(response.Type, "Error") {
		message := providerError(response)
		s.log.Error().Str("message", message).Msg("deepgram_error_frame")
		s.recognizer.emit(domain.RecognitionError(domain.RecognitionServiceError, message))
		s.beginStop()
		return
	}
	if response.Type != "" && !strings.EqualFold(response.Type, "Results") {
		return
	}

	transcript := extractTranscript(response)
	final := response.IsFinal || response.SpeechFinal
	if transcript == "" {
		if final && s.interim != "" {
			s.interim = ""
			s.emitBatch()
		}
		return
	}

	s.heardSpeech()
	if final {
		s.finals = append(s.finals, transcript)
		s.interim = ""
	} else {
		s.interim = transcript
	}
	s.emitBatch()

	if final && s.cycle.finalOnly {
		s.beginStop()
	}
}

func (s *cycleState) emitBatch() {
	s.recognizer.emit(domain.ResultBatch(s.results()...))
}

func (s *cycleState) results() []domain.RecognitionResult {
	results := make([]domain.RecognitionResult, 0, len(s.finals)+1)
	for _, text := range s.finals {
		results = append(results, domain.RecognitionResult{Transcript: text, IsFinal: true})
	}
	if s.interim != "" {
		results = append(results, domain.RecognitionResult{Transcript: s.interim})
	}
	return results
}
