// Package dispatch runs the polling loop that turns microcontroller lines
// into speech.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/classify"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// DefaultPollInterval is the wait between polls when no line is available.
const DefaultPollInterval = 10 * time.Millisecond

// Echoer receives operator-facing copies of what the dispatcher sees and says.
type Echoer interface {
	Received(line string)
	Spoken(utterance string)
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithPollInterval sets how long Run waits when the source has no line.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithPreamble sets utterances spoken once before polling starts.
func WithPreamble(lines ...string) Option {
	return func(d *Dispatcher) {
		d.preamble = append([]string(nil), lines...)
	}
}

// WithEcho mirrors received lines and spoken utterances to e.
func WithEcho(e Echoer) Option {
	return func(d *Dispatcher) {
		d.echo = e
	}
}

// Stats counts what the dispatcher has processed.
type Stats struct {
	Read    int64 // non-empty lines read
	Spoken  int64 // lines that produced an utterance
	Skipped int64 // non-empty lines with no utterance
	Failed  int64 // utterances the sink rejected
}

// Dispatcher pulls lines from a LineSource, classifies them, and speaks at
// most one utterance per line. It depends only on interfaces.
type Dispatcher struct {
	source       domain.LineSource
	sink         domain.SpeechSink
	classifier   *classify.Classifier
	log          *logger.Logger
	pollInterval time.Duration
	preamble     []string
	echo         Echoer

	read, spoken, skipped, failed atomic.Int64
}

// New creates a dispatcher with the given dependencies and options.
func New(source domain.LineSource, sink domain.SpeechSink, classifier *classify.Classifier, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:       source,
		sink:         sink,
		classifier:   classifier,
		log:          log,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run speaks the preamble and then polls until ctx is cancelled or the
// source fails. Cancellation returns ctx.Err(); a source failure is
// returned wrapped and is never retried here.
func (d *Dispatcher) Run(ctx context.Context) error {
	for _, line := range d.preamble {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.say(ctx, line)
	}

	d.log.Info("dispatcher polling (interval=%s)", d.pollInterval)

	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			d.log.Info("dispatcher stopped: %v", err)
			return err
		}

		if !d.source.HasLine() {
			timer.Reset(d.pollInterval)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			continue
		}

		line, err := d.source.ReadLine()
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}
		d.Handle(ctx, line)
	}
}

// Handle classifies one line and speaks its utterance, if any. It reports
// whether an utterance was submitted.
func (d *Dispatcher) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	d.received(line)
	res, ok := d.classifier.Classify(line)
	if !ok {
		d.skipped.Add(1)
		return false
	}
	d.log.Debug("line %q -> rule %s", line, res.Rule)
	if !d.say(ctx, res.Utterance) {
		d.failed.Add(1)
		return false
	}
	d.spoken.Add(1)
	return true
}

// Stats returns a snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Read:    d.read.Load(),
		Spoken:  d.spoken.Load(),
		Skipped: d.skipped.Load(),
		Failed:  d.failed.Load(),
	}
}

// received echoes a raw line once: on the console when one is attached,
// otherwise through the log.
func (d *Dispatcher) received(line string) {
	d.read.Add(1)
	if d.echo == nil {
		d.log.Echo(line)
		return
	}
	d.log.Debug("mcu: %s", line)
	d.echo.Received(line)
}

func (d *Dispatcher) say(ctx context.Context, utterance string) bool {
	if err := d.sink.Speak(ctx, utterance); err != nil {
		d.log.Error("speech sink rejected %q: %v", utterance, err)
		return false
	}
	if d.echo != nil {
		d.echo.Spoken(utterance)
	}
	return true
}
