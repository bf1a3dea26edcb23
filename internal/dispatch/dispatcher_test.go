package dispatch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/classify"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// scriptedSource replays a fixed list of lines, then reports err.
type scriptedSource struct {
	mu    sync.Mutex
	lines []string
	err   error
	polls int
	// idlePolls is how many HasLine calls report false before lines appear.
	idlePolls int
}

func (s *scriptedSource) HasLine() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.polls <= s.idlePolls {
		return false
	}
	return len(s.lines) > 0 || s.err != nil
}

func (s *scriptedSource) ReadLine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return "", s.err
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// collectingSink captures utterances for assertions.
type collectingSink struct {
	mu     sync.Mutex
	said   []string
	reject map[string]bool
}

func (s *collectingSink) Speak(_ context.Context, utterance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject[utterance] {
		return domain.ErrQueueFull
	}
	s.said = append(s.said, utterance)
	return nil
}

func (s *collectingSink) utterances() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.said...)
}

type recordingEcho struct {
	received []string
	spoken   []string
}

func (e *recordingEcho) Received(line string)    { e.received = append(e.received, line) }
func (e *recordingEcho) Spoken(utterance string) { e.spoken = append(e.spoken, utterance) }

func newDispatcher(src domain.LineSource, sink domain.SpeechSink, opts ...Option) *Dispatcher {
	log := logger.New(logger.LevelOff, nil)
	opts = append([]Option{WithPollInterval(time.Millisecond)}, opts...)
	return New(src, sink, classify.NewClassifier(), log, opts...)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunSpeaksInArrivalOrder(t *testing.T) {
	src := &scriptedSource{
		lines: []string{
			"Q1/8: 7 - 3 = 4",
			"",
			"Q2/8: 10 - 4 = 5",
			"   ",
			"Calibrating sensor",
			"Q3/8: 9 + 2 = 11",
			"Press Button A now",
			"MISSED",
		},
		err: domain.ErrSourceClosed,
	}
	sink := &collectingSink{}
	d := newDispatcher(src, sink)

	err := d.Run(context.Background())
	if !errors.Is(err, domain.ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}

	want := []string{
		"Seven minus three equals four",
		"Ten minus four equals five",
		"9 + 2 = 11",
		"A",
		"Missed",
	}
	if got := sink.utterances(); !equal(got, want) {
		t.Fatalf("utterances = %q, want %q", got, want)
	}

	stats := d.Stats()
	if stats.Read != 6 || stats.Spoken != 5 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRunPreamble(t *testing.T) {
	src := &scriptedSource{lines: []string{"CORRECT!"}, err: domain.ErrSourceClosed}
	sink := &collectingSink{}
	d := newDispatcher(src, sink, WithPreamble("System ready.", "Press any button"))

	_ = d.Run(context.Background())

	want := []string{"System ready.", "Press any button", "Correct"}
	if got := sink.utterances(); !equal(got, want) {
		t.Fatalf("utterances = %q, want %q", got, want)
	}
	if d.Stats().Spoken != 1 {
		t.Errorf("preamble counted as spoken line: %+v", d.Stats())
	}
}

func TestRunWaitsForLines(t *testing.T) {
	src := &scriptedSource{
		lines:     []string{"TIMEOUT"},
		err:       domain.ErrSourceClosed,
		idlePolls: 5,
	}
	sink := &collectingSink{}
	d := newDispatcher(src, sink)

	if err := d.Run(context.Background()); !errors.Is(err, domain.ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
	if got := sink.utterances(); !equal(got, []string{"Time out"}) {
		t.Fatalf("utterances = %q", got)
	}
	if src.polls <= 5 {
		t.Errorf("expected idle polls before the line arrived, got %d", src.polls)
	}
}

func TestRunCancellation(t *testing.T) {
	src := &scriptedSource{idlePolls: 1 << 30}
	sink := &collectingSink{}
	d := newDispatcher(src, sink, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if len(sink.utterances()) != 0 {
		t.Errorf("expected no utterances, got %q", sink.utterances())
	}
}

func TestRunCancelledBeforePreamble(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &collectingSink{}
	d := newDispatcher(&scriptedSource{}, sink, WithPreamble("hello"))
	if err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sink.utterances()) != 0 {
		t.Errorf("spoke after cancellation: %q", sink.utterances())
	}
}

func TestSinkFailureDoesNotStopLoop(t *testing.T) {
	src := &scriptedSource{
		lines: []string{"LOW RISK", "HIGH RISK"},
		err:   domain.ErrSourceClosed,
	}
	sink := &collectingSink{reject: map[string]bool{"Low risk detected.": true}}
	d := newDispatcher(src, sink)

	if err := d.Run(context.Background()); !errors.Is(err, domain.ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
	if got := sink.utterances(); !equal(got, []string{"High risk detected."}) {
		t.Fatalf("utterances = %q", got)
	}
	if stats := d.Stats(); stats.Failed != 1 || stats.Spoken != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		line     string
		wantSaid bool
	}{
		{"Q1/8: 7 - 3 = 4", true},
		{"Press Button B", true},
		{"REACTION TEST STARTING", true},
		{"", false},
		{" \t", false},
		{"boot ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sink := &collectingSink{}
			d := newDispatcher(&scriptedSource{}, sink)

			if got := d.Handle(context.Background(), tt.line); got != tt.wantSaid {
				t.Fatalf("Handle(%q) = %v, want %v", tt.line, got, tt.wantSaid)
			}
			n := len(sink.utterances())
			if tt.wantSaid && n != 1 {
				t.Errorf("expected exactly one utterance, got %d", n)
			}
			if !tt.wantSaid && n != 0 {
				t.Errorf("expected no utterance, got %d", n)
			}
		})
	}
}

func TestEcho(t *testing.T) {
	src := &scriptedSource{
		lines: []string{"  MISSED  ", "", "noise"},
		err:   domain.ErrSourceClosed,
	}
	echo := &recordingEcho{}
	d := newDispatcher(src, &collectingSink{}, WithEcho(echo))

	_ = d.Run(context.Background())

	if !equal(echo.received, []string{"MISSED", "noise"}) {
		t.Errorf("received = %q", echo.received)
	}
	if !equal(echo.spoken, []string{"Missed"}) {
		t.Errorf("spoken = %q", echo.spoken)
	}
}

func TestEchoSkipsRejectedUtterance(t *testing.T) {
	src := &scriptedSource{
		lines: []string{"MISSED", "TIMEOUT"},
		err:   domain.ErrSourceClosed,
	}
	sink := &collectingSink{reject: map[string]bool{"Missed": true}}
	echo := &recordingEcho{}
	d := newDispatcher(src, sink, WithEcho(echo))

	_ = d.Run(context.Background())

	if !equal(echo.spoken, []string{"Time out"}) {
		t.Errorf("spoken = %q, want only the accepted utterance", echo.spoken)
	}
	if got := d.Stats().Failed; got != 1 {
		t.Errorf("Failed = %d, want 1", got)
	}
}

func TestRawLineEchoedOnce(t *testing.T) {
	tests := []struct {
		name    string
		console bool
		wantLog bool
	}{
		{"log only", false, true},
		{"console attached", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(logger.LevelNormal, &buf)
			src := &scriptedSource{lines: []string{"MISSED"}, err: domain.ErrSourceClosed}
			echo := &recordingEcho{}

			opts := []Option{WithPollInterval(time.Millisecond)}
			if tt.console {
				opts = append(opts, WithEcho(echo))
			}
			_ = New(src, &collectingSink{}, classify.NewClassifier(), log, opts...).Run(context.Background())

			if got := strings.Contains(buf.String(), "[MCU] MISSED"); got != tt.wantLog {
				t.Errorf("line in log = %v, want %v (log: %q)", got, tt.wantLog, buf.String())
			}
			if tt.console && !equal(echo.received, []string{"MISSED"}) {
				t.Errorf("console received = %q", echo.received)
			}
		})
	}
}
