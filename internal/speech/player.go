package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Player plays WAV/PCM audio through the system output via oto. Only one
// oto context may exist per process, so create a single Player.
type Player struct {
	ctx *oto.Context
	log *logger.Logger

	mu     sync.Mutex
	active *oto.Player
}

// NewPlayer initializes the system audio context. Returns an error if the
// audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play plays WAV audio and blocks until it finishes, Stop is called, or ctx
// is done.
func (p *Player) Play(ctx context.Context, wavData []byte) error {
	pcm, err := extractPCM(wavData)
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active = nil
		p.mu.Unlock()
	}()

	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			player.Close()
			return ctx.Err()
		case <-tick.C:
		}
	}
	return player.Close()
}

// Stop interrupts the currently playing audio, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: interrupted")
	}
}

// extractPCM strips the RIFF header and returns the raw PCM "data" chunk.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	for pos := 12; pos+8 <= len(wav); {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8

		if id == "data" {
			return wav[start:min(start+size, len(wav))], nil
		}

		pos = start + size
		if size%2 != 0 {
			pos++ // chunks are word-aligned
		}
	}
	return nil, errors.New("data chunk not found in WAV")
}
