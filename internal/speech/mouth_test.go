package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// recordingVoice captures what it is asked to say. When gate is non-nil each
// Say waits for a value on it.
type recordingVoice struct {
	mu     sync.Mutex
	said   []string
	gate   chan struct{}
	fail   map[string]bool
	active int
	peak   int
}

func (v *recordingVoice) Name() string { return "recording" }

func (v *recordingVoice) Say(ctx context.Context, text string) error {
	v.mu.Lock()
	v.active++
	if v.active > v.peak {
		v.peak = v.active
	}
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.active--
		v.mu.Unlock()
	}()

	if v.gate != nil {
		select {
		case <-v.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail[text] {
		return errors.New("voice failed")
	}
	v.said = append(v.said, text)
	return nil
}

func (v *recordingVoice) utterances() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.said...)
}

func TestMouthSpeaksInOrder(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	voice := &recordingVoice{}
	m := NewMouth(voice, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	want := []string{"System ready.", "A", "Missed", "Correct"}
	for _, text := range want {
		if err := m.Speak(ctx, text); err != nil {
			t.Fatalf("Speak(%q): %v", text, err)
		}
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := m.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	got := voice.utterances()
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("utterance %d: got %q, want %q", i, got[i], want[i])
		}
	}
	voice.mu.Lock()
	peak := voice.peak
	voice.mu.Unlock()
	if peak != 1 {
		t.Errorf("voice called concurrently (peak %d)", peak)
	}
	if m.Spoken() != len(want) {
		t.Errorf("Spoken() = %d, want %d", m.Spoken(), len(want))
	}
}

func TestMouthSpeakDoesNotBlock(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	voice := &recordingVoice{gate: make(chan struct{})}
	m := NewMouth(voice, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	done := make(chan struct{})
	go func() {
		for _, text := range []string{"one", "two", "three"} {
			m.Speak(ctx, text)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Speak blocked while the voice was busy")
	}

	for i := 0; i < 3; i++ {
		voice.gate <- struct{}{}
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := m.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := voice.utterances(); len(got) != 3 {
		t.Fatalf("got %q", got)
	}
}

func TestMouthQueueFull(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	m := NewMouth(&recordingVoice{}, log, WithQueueSize(2))
	ctx := context.Background()

	// Not started: nothing drains the queue.
	if err := m.Speak(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Speak(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if err := m.Speak(ctx, "c"); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if m.QueueLen() != 2 {
		t.Errorf("QueueLen() = %d, want 2", m.QueueLen())
	}
}

func TestMouthVoiceFailureContinues(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	voice := &recordingVoice{fail: map[string]bool{"bad": true}}
	m := NewMouth(voice, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.Speak(ctx, "bad")
	m.Speak(ctx, "good")

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := m.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := voice.utterances(); len(got) != 1 || got[0] != "good" {
		t.Fatalf("got %q", got)
	}
}

func TestMouthWaitIdle(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	m := NewMouth(&recordingVoice{}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait on idle mouth: %v", err)
	}
	if m.IsSpeaking() {
		t.Error("idle mouth reports speaking")
	}
}

type prefetchVoice struct {
	recordingVoice
	mu      sync.Mutex
	fetched []string
}

func (v *prefetchVoice) Prefetch(_ context.Context, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fetched = append(v.fetched, text)
	return nil
}

func (v *prefetchVoice) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.fetched)
}

func TestMouthPrefetch(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	voice := &prefetchVoice{}
	m := NewMouth(voice, log)

	m.Prefetch(context.Background(), "A", "B", "Correct")

	deadline := time.Now().Add(time.Second)
	for voice.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("prefetched %d of 3", voice.count())
		}
		time.Sleep(time.Millisecond)
	}

	// Voices without prefetch support are ignored.
	NewMouth(&recordingVoice{}, log).Prefetch(context.Background(), "x")
}
