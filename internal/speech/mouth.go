package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Compile-time interface check.
var _ domain.SpeechSink = (*Mouth)(nil)

// Voice speaks one utterance and blocks until it has been heard (or ctx is
// done). Implementations need not be safe for concurrent use; the Mouth
// calls them from a single goroutine.
type Voice interface {
	Say(ctx context.Context, text string) error
	Name() string
}

// Prefetcher is implemented by voices that can prepare audio ahead of time.
type Prefetcher interface {
	Prefetch(ctx context.Context, text string) error
}

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithQueueSize caps the number of pending utterances. Speak returns
// domain.ErrQueueFull beyond it. Zero means unbounded.
func WithQueueSize(n int) MouthOption {
	return func(m *Mouth) {
		m.maxQueue = n
	}
}

// Mouth is the relay's speech sink. It serializes all speech through a single
// worker: Speak only enqueues, and utterances are voiced one at a time in
// arrival order.
type Mouth struct {
	voice Voice
	log   *logger.Logger

	mu       sync.Mutex
	queue    []SpeechRequest
	notify   chan struct{}
	idle     chan struct{} // closed while nothing is queued or speaking
	speaking bool
	maxQueue int
	spoken   int
}

// NewMouth creates a speech queue in front of voice.
func NewMouth(voice Voice, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		voice:    voice,
		log:      log,
		notify:   make(chan struct{}, 1),
		idle:     make(chan struct{}),
		maxQueue: 32,
	}
	close(m.idle)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Speak queues text and returns immediately.
func (m *Mouth) Speak(ctx context.Context, text string) error {
	m.mu.Lock()
	if m.maxQueue > 0 && len(m.queue) >= m.maxQueue {
		m.mu.Unlock()
		return fmt.Errorf("%w (%d pending)", domain.ErrQueueFull, m.maxQueue)
	}
	if len(m.queue) == 0 && !m.speaking {
		m.idle = make(chan struct{})
	}
	m.queue = append(m.queue, SpeechRequest{Text: text, QueuedAt: time.Now()})
	qLen := len(m.queue)
	m.mu.Unlock()

	m.log.Debug("mouth: queued (queue_len=%d): %s", qLen, truncate(text, 60))

	select {
	case m.notify <- struct{}{}:
	default: // already signaled
	}
	return nil
}

// IsSpeaking returns true while the voice is producing audio.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// QueueLen returns the number of pending utterances.
func (m *Mouth) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Spoken returns how many utterances the voice has finished.
func (m *Mouth) Spoken() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spoken
}

// Start begins the speech worker goroutine. Non-blocking.
func (m *Mouth) Start(ctx context.Context) {
	go m.processLoop(ctx)
	m.log.Info("mouth started (voice=%s)", m.voice.Name())
}

// Wait blocks until the queue is empty and nothing is being spoken, or ctx
// is done. Used at shutdown so the last utterance is not cut off.
func (m *Mouth) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Prefetch asks the voice to prepare audio for texts in the background. It
// is a no-op for voices that cannot prefetch.
func (m *Mouth) Prefetch(ctx context.Context, texts ...string) {
	p, ok := m.voice.(Prefetcher)
	if !ok {
		return
	}
	go func() {
		for _, text := range texts {
			if ctx.Err() != nil {
				return
			}
			if err := p.Prefetch(ctx, text); err != nil {
				m.log.Warn("prefetch: %q: %v", truncate(text, 40), err)
			}
		}
	}()
}

func (m *Mouth) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("mouth stopped")
			return
		case <-m.notify:
			m.drain(ctx)
		}
	}
}

// drain speaks queued items in order until the queue is empty.
func (m *Mouth) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		item := m.queue[0]
		m.queue = m.queue[1:]
		m.speaking = true
		m.mu.Unlock()

		m.log.Debug("mouth: speaking (waited=%s): %s", time.Since(item.QueuedAt).Round(time.Millisecond), truncate(item.Text, 60))
		if err := m.voice.Say(ctx, item.Text); err != nil {
			m.log.Error("mouth: %s failed on %q: %v", m.voice.Name(), truncate(item.Text, 60), err)
		}

		m.mu.Lock()
		m.speaking = false
		m.spoken++
		if len(m.queue) == 0 {
			close(m.idle)
		}
		m.mu.Unlock()
	}
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
