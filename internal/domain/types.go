package domain

// LifecycleState models the continuous dictation lifecycle.
type LifecycleState string

const (
	StateIdle               LifecycleState = "idle"
	StateListening          LifecycleState = "listening"
	StateRestartingAfterEnd LifecycleState = "restarting_after_end"
	StateStoppedByUser      LifecycleState = "stopped_by_user"
	StateStoppedByFatal     LifecycleState = "stopped_by_fatal_error"
)

// Active reports whether a dictation session occupies the controller.
func (s LifecycleState) Active() bool {
	return s == StateListening || s == StateRestartingAfterEnd
}

// ErrorCode identifies errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeUnavailable ErrorCode = "unavailable"
	ErrorCodeRecognition ErrorCode = "recognition"
	ErrorCodeRestart     ErrorCode = "restart"
	ErrorCodeClipboard   ErrorCode = "clipboard"
)

// RecognitionErrorCode is the code reported by the recognition capability.
type RecognitionErrorCode string

const (
	RecognitionNoSpeech     RecognitionErrorCode = "no-speech"
	RecognitionAborted      RecognitionErrorCode = "aborted"
	RecognitionLocaleWarmup RecognitionErrorCode = "locale-warmup"
	RecognitionAudioCapture RecognitionErrorCode = "audio-capture"
	RecognitionNetwork      RecognitionErrorCode = "network"
	RecognitionNotAllowed   RecognitionErrorCode = "not-allowed"
	RecognitionServiceError RecognitionErrorCode = "service-error"
)

// ErrorClass splits recognition errors into recoverable and session-ending.
type ErrorClass int

const (
	ErrorClassFatal ErrorClass = iota
	ErrorClassTransient
)

// ClassifyRecognitionError maps a capability error code to its class.
// Unknown codes are fatal.
func ClassifyRecognitionError(code RecognitionErrorCode) ErrorClass {
	switch code {
	case RecognitionNoSpeech, RecognitionAborted, RecognitionLocaleWarmup:
		return ErrorClassTransient
	default:
		return ErrorClassFatal
	}
}

// RecognitionResult is one alternative transcript in a result batch.
type RecognitionResult struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// RecognitionEventKind tags a RecognitionEvent.
type RecognitionEventKind string

const (
	EventStarted     RecognitionEventKind = "started"
	EventResultBatch RecognitionEventKind = "result"
	EventError       RecognitionEventKind = "error"
	EventEnded       RecognitionEventKind = "ended"
)

// RecognitionEvent is everything a recognizer can emit. Only the fields
// matching Kind are populated.
type RecognitionEvent struct {
	Kind    RecognitionEventKind
	Results []RecognitionResult
	Code    RecognitionErrorCode
	Detail  string
}

func Started() RecognitionEvent { return RecognitionEvent{Kind: EventStarted} }

func Ended() RecognitionEvent { return RecognitionEvent{Kind: EventEnded} }

func ResultBatch(results ...RecognitionResult) RecognitionEvent {
	return RecognitionEvent{Kind: EventResultBatch, Results: results}
}

func RecognitionError(code RecognitionErrorCode, detail string) RecognitionEvent {
	return RecognitionEvent{Kind: EventError, Code: code, Detail: detail}
}

// Status summarizes the controller for the UI.
type Status struct {
	State     LifecycleState `json:"state"`
	Listening bool           `json:"listening"`
	Text      string         `json:"text"`
	Restarts  int            `json:"restarts"`
}

// StopResult is returned when the user stops dictation.
type StopResult struct {
	Text   string `json:"text"`
	Copied bool   `json:"copied"`
}
