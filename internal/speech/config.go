package speech

import "time"

// Default cloud voice. Full list:
// https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "en-US-AvaNeural"

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default format.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// SpeechRequest is a queued item waiting to be spoken.
type SpeechRequest struct {
	Text     string
	QueuedAt time.Time
}
