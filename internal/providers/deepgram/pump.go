package deepgram

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gorilla/websocket"

	"dictum/internal/domain"
	"dictum/internal/ports"
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

type pumpFailure struct {
	code domain.RecognitionErrorCode
	err  error
}

// pumpAudio copies captured PCM into the socket until capture ends, then
// asks the provider to flush and close. It is the only writer on conn.
func pumpAudio(audio ports.AudioSession, conn *websocket.Conn, chunkSize int, failures chan<- pumpFailure) {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); sendErr != nil {
				failures <- pumpFailure{code: domain.RecognitionNetwork, err: fmt.Errorf("failed to stream audio: %w", sendErr)}
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				failures <- pumpFailure{code: domain.RecognitionAudioCapture, err: fmt.Errorf("audio capture error: %w", err)}
				return
			}
			break
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		failures <- pumpFailure{code: domain.RecognitionNetwork, err: fmt.Errorf("failed to close stream: %w", err)}
	}
}
