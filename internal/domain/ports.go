// Package domain holds the ports shared between the relay's layers: where
// microcontroller lines come from and where utterances go.
package domain

import "context"

// LineSource yields decoded text lines from the microcontroller transport.
// Implementations can wrap a serial port, a replay file, or a test script.
type LineSource interface {
	// HasLine reports whether ReadLine can return without waiting. A pending
	// transport error also counts, so the next ReadLine surfaces it.
	HasLine() bool
	// ReadLine returns the next line. Undecodable bytes are replaced with
	// U+FFFD rather than failing the line.
	ReadLine() (string, error)
}

// SpeechSink accepts utterances to be spoken. Speak is fire-and-forget from
// the caller's point of view: implementations decide whether utterances are
// queued, spoken serially, or overlapped.
type SpeechSink interface {
	Speak(ctx context.Context, utterance string) error
}
