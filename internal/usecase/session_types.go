package usecase

import "context"

// dictationSession is the state of one user-facing dictation, from Start
// to Stop or a fatal error. It may span many recognizer cycles.
type dictationSession struct {
	id   int
	ctx  context.Context
	seed string

	// assembler is created when the recognizer confirms its first start.
	assembler *transcriptAssembler

	// shouldContinue is true until the user stops or a fatal error ends the session.
	shouldContinue bool
	// awaitingStart is set while a start request has not been confirmed.
	awaitingStart bool
	finished      bool

	cycles   int
	restarts int
}

func (s *dictationSession) display() string {
	if s.assembler == nil {
		return s.seed
	}
	return s.assembler.Display()
}
