package speech

import (
	"context"
	"fmt"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Compile-time interface checks.
var (
	_ Voice      = (*CloudVoice)(nil)
	_ Prefetcher = (*CloudVoice)(nil)
)

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioSink plays WAV audio, blocking until playback ends.
type AudioSink interface {
	Play(ctx context.Context, wav []byte) error
}

// CloudVoice speaks through a network synthesizer, caching the audio so a
// repeated prompt is played straight from the cache.
type CloudVoice struct {
	name  string
	tts   Synthesizer
	out   AudioSink
	cache *AudioCache
	log   *logger.Logger
}

// NewCloudVoice combines a synthesizer, an audio output, and a cache.
func NewCloudVoice(name string, tts Synthesizer, out AudioSink, cache *AudioCache, log *logger.Logger) *CloudVoice {
	return &CloudVoice{name: name, tts: tts, out: out, cache: cache, log: log}
}

// Name identifies the voice in logs.
func (v *CloudVoice) Name() string { return v.name }

// Say synthesizes (or loads) the audio for text and plays it.
func (v *CloudVoice) Say(ctx context.Context, text string) error {
	audio, err := v.audio(ctx, text)
	if err != nil {
		return err
	}
	if err := v.out.Play(ctx, audio); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

// Prefetch synthesizes text into the cache unless it is already there.
func (v *CloudVoice) Prefetch(ctx context.Context, text string) error {
	if text == "" || v.cache.Has(text) {
		return nil
	}
	audio, err := v.tts.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	v.cache.Put(text, audio)
	v.log.Debug("prefetch: cached %d bytes for %q", len(audio), truncate(text, 40))
	return nil
}

func (v *CloudVoice) audio(ctx context.Context, text string) ([]byte, error) {
	if audio, ok := v.cache.Get(text); ok {
		return audio, nil
	}
	audio, err := v.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	v.cache.Put(text, audio)
	return audio, nil
}
