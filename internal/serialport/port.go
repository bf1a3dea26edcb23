package serialport

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Defaults matching the screening firmware.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = time.Second
	// The board resets when the port opens; its first lines arrive after
	// the bootloader hands over.
	DefaultSettleDelay = 2 * time.Second
)

// Config describes the serial link to the microcontroller.
type Config struct {
	Port        string // device name, e.g. COM3 or /dev/ttyACM0; empty = first detected
	BaudRate    int
	ReadTimeout time.Duration
	SettleDelay time.Duration
}

// Ports lists the serial devices present on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

// Open connects to the microcontroller and returns a line source reading from
// it. It blocks for the settle delay so the board can finish resetting.
func Open(ctx context.Context, cfg Config, log *logger.Logger, opts ...SourceOption) (*ReaderSource, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	name := cfg.Port
	if name == "" {
		ports, err := Ports()
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, domain.ErrNoPort
		}
		name = ports[0]
		log.Info("serial: no port configured, using %s", name)
	}

	log.Info("serial: connecting to %s at %d baud", name, cfg.BaudRate)
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("setting read timeout on %s: %w", name, err)
	}

	if cfg.SettleDelay > 0 {
		select {
		case <-time.After(cfg.SettleDelay):
		case <-ctx.Done():
			port.Close()
			return nil, ctx.Err()
		}
	}

	log.Info("serial: connected to %s", name)
	return NewReaderSource(port, log, opts...), nil
}

// OpenReplay returns a line source that replays a captured transcript file,
// one line every delay.
func OpenReplay(path string, delay time.Duration, log *logger.Logger, opts ...SourceOption) (*ReaderSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	log.Info("replaying %s (line delay %s)", path, delay)
	return NewReaderSource(f, log, append([]SourceOption{WithLineDelay(delay)}, opts...)...), nil
}
