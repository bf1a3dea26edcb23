// Package speech provides the relay's speech sinks: a queued Mouth in front of
// a cloud or local voice, and a log-only sink for dry runs.
package speech

import (
	"context"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Compile-time interface check.
var _ domain.SpeechSink = (*LogSink)(nil)

// LogSink speaks nothing. Used when speech is disabled.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink that only logs utterances.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

// Speak logs text at info level.
func (n *LogSink) Speak(ctx context.Context, text string) error {
	n.log.Info("speech disabled, would say %q", text)
	return nil
}
