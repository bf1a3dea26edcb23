// Package config loads relay settings from the environment (optionally seeded
// from a .env file). Command-line flags override what is loaded here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
)

// Speech backends.
const (
	BackendAuto    = "auto"    // azure when credentials are set, else command
	BackendAzure   = "azure"   // Azure neural TTS through the audio device
	BackendCommand = "command" // the platform's own TTS program
	BackendNone    = "none"    // log utterances only
)

// Config holds every tunable of the relay.
type Config struct {
	Port         string        `env:"RELAY_PORT"`
	BaudRate     int           `env:"RELAY_BAUD" envDefault:"9600"`
	ReadTimeout  time.Duration `env:"RELAY_READ_TIMEOUT" envDefault:"1s"`
	SettleDelay  time.Duration `env:"RELAY_SETTLE_DELAY" envDefault:"2s"`
	PollInterval time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"10ms"`
	LineBuffer   int           `env:"RELAY_LINE_BUFFER" envDefault:"64"`

	Backend   string `env:"RELAY_BACKEND" envDefault:"auto"`
	Voice     string `env:"RELAY_VOICE"`
	Rate      int    `env:"RELAY_RATE" envDefault:"3"`
	QueueSize int    `env:"RELAY_QUEUE_SIZE" envDefault:"32"`
	CacheDir  string `env:"RELAY_CACHE_DIR" envDefault:".relay-cache"`

	AzureKey    string `env:"AZURE_SPEECH_KEY"`
	AzureRegion string `env:"AZURE_SPEECH_REGION"`

	// Extra spoken-arithmetic overrides, e.g.
	// RELAY_OVERRIDES="8 - 5 = 3|Eight minus five equals three;9 - 6 = 3|Nine minus six equals three"
	Overrides map[string]string `env:"RELAY_OVERRIDES" envSeparator:";" envKeyValSeparator:"|"`
}

// Load reads the given .env files (or ./.env if none are named and it
// exists) into the process environment, then parses Config from it.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		// A missing default .env is normal; a missing named file is not.
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading env file: %w", err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a relay.
func (c Config) Validate() error {
	var errs []error
	if c.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("baud rate must be positive, got %d", c.BaudRate))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("read timeout must be positive, got %s", c.ReadTimeout))
	}
	if c.LineBuffer <= 0 {
		errs = append(errs, fmt.Errorf("line buffer must be positive, got %d", c.LineBuffer))
	}
	if err := domain.ValidateRate(c.Rate); err != nil {
		errs = append(errs, err)
	}
	switch c.Backend {
	case BackendAuto, BackendCommand, BackendNone:
	case BackendAzure:
		if !c.HasAzure() {
			errs = append(errs, errors.New("azure backend needs AZURE_SPEECH_KEY and AZURE_SPEECH_REGION"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown speech backend %q", c.Backend))
	}
	return errors.Join(errs...)
}

// HasAzure reports whether Azure credentials are present.
func (c Config) HasAzure() bool {
	return c.AzureKey != "" && c.AzureRegion != ""
}
