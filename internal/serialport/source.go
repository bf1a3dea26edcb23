// Package serialport provides LineSource implementations: a serial link to
// the screening microcontroller and a generic byte-stream reader used for
// transcript replay.
package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Compile-time interface check.
var _ domain.LineSource = (*ReaderSource)(nil)

const (
	defaultBuffer  = 64
	maxLineLength  = 4096
	readChunkBytes = 256
)

// SourceOption configures a ReaderSource.
type SourceOption func(*ReaderSource)

// WithLineDelay paces delivery: the reader waits d after each line. Used to
// replay a captured transcript at roughly the speed it was recorded.
func WithLineDelay(d time.Duration) SourceOption {
	return func(s *ReaderSource) {
		s.lineDelay = d
	}
}

// WithBuffer sets how many decoded lines may wait for the dispatcher before
// the reader stops pulling bytes.
func WithBuffer(n int) SourceOption {
	return func(s *ReaderSource) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

// ReaderSource turns a byte stream into decoded lines. A background goroutine
// reads and splits on '\n'; HasLine never blocks.
//
// Readers may return (0, nil) on a read timeout, as serial ports do; that is
// treated as "nothing yet", not as end of stream.
type ReaderSource struct {
	r         io.Reader
	log       *logger.Logger
	lineDelay time.Duration
	bufSize   int

	lines chan string
	done  chan struct{}

	mu   sync.Mutex
	err  error
	stop chan struct{}
	once sync.Once
}

// NewReaderSource starts reading r in the background.
func NewReaderSource(r io.Reader, log *logger.Logger, opts ...SourceOption) *ReaderSource {
	s := &ReaderSource{
		r:       r,
		log:     log,
		bufSize: defaultBuffer,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lines = make(chan string, s.bufSize)
	go s.readLoop()
	return s
}

// HasLine reports whether ReadLine will return immediately.
func (s *ReaderSource) HasLine() bool {
	if len(s.lines) > 0 {
		return true
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ReadLine returns the next decoded line, waiting if none is buffered. Once
// the stream has ended and every buffered line is consumed it returns the
// terminal error, wrapping domain.ErrSourceClosed.
func (s *ReaderSource) ReadLine() (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	case <-s.done:
	}
	// Lines are queued before done closes; drain them first.
	select {
	case line := <-s.lines:
		return line, nil
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return "", s.err
}

// Close stops the reader and closes the underlying stream when it is an
// io.Closer. Buffered lines remain readable.
func (s *ReaderSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		if c, ok := s.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

func (s *ReaderSource) readLoop() {
	var (
		pending []byte
		chunk   = make([]byte, readChunkBytes)
	)

	for {
		n, err := s.r.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				if !s.emit(pending[:i]) {
					s.finish(domain.ErrSourceClosed)
					return
				}
				pending = pending[i+1:]
			}
			if len(pending) > maxLineLength {
				s.log.Warn("serial: %d bytes without newline, flushing", len(pending))
				if !s.emit(pending) {
					s.finish(domain.ErrSourceClosed)
					return
				}
				pending = nil
			}
		}

		if err != nil {
			if len(pending) > 0 {
				s.emit(pending)
			}
			s.finish(s.terminal(err))
			return
		}

		if s.stopped() {
			s.finish(domain.ErrSourceClosed)
			return
		}
	}
}

// emit decodes raw and queues it. It reports false if the source was closed
// while waiting for buffer space.
func (s *ReaderSource) emit(raw []byte) bool {
	line := Decode(raw)
	if line == "" {
		return true
	}
	select {
	case s.lines <- line:
	case <-s.stop:
		return false
	}
	if s.lineDelay > 0 {
		select {
		case <-time.After(s.lineDelay):
		case <-s.stop:
			return false
		}
	}
	return true
}

func (s *ReaderSource) terminal(err error) error {
	if !s.stopped() && !errors.Is(err, io.EOF) {
		s.log.Error("serial: read failed: %v", err)
	}
	return fmt.Errorf("%w: %w", domain.ErrSourceClosed, err)
}

func (s *ReaderSource) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *ReaderSource) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Decode turns one raw line into text: a trailing '\r' is dropped,
// undecodable bytes become U+FFFD, and surrounding whitespace is trimmed.
func Decode(raw []byte) string {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD"))
}
