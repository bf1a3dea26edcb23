// ScreenRelay speaks the delirium screening device's serial output aloud.
//
// Usage:
//
//	screenrelay [-port COM3] [-baud 9600] [-backend auto|azure|command|none] [-verbose]
//	screenrelay -replay session.txt
//	screenrelay -list-ports
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/classify"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/config"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/dispatch"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/display"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/serialport"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/speech"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile := os.Getenv("RELAY_ENV_FILE")
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	flag.StringVar(&cfg.Port, "port", cfg.Port, "serial port of the screening device (empty = first detected)")
	flag.IntVar(&cfg.BaudRate, "baud", cfg.BaudRate, "serial baud rate")
	flag.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "wait between polls when no line is available")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "speech backend: auto, azure, command, or none")
	flag.StringVar(&cfg.Voice, "voice", cfg.Voice, "voice name (or installed-voice index on Windows)")
	flag.IntVar(&cfg.Rate, "rate", cfg.Rate, fmt.Sprintf("speech rate, %d to %d", domain.MinRate, domain.MaxRate))
	flag.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory for cached cloud audio (empty = memory only)")
	replay := flag.String("replay", "", "replay a captured transcript file instead of reading the serial port")
	replayDelay := flag.Duration("replay-delay", 1500*time.Millisecond, "pause between replayed lines")
	listPorts := flag.Bool("list-ports", false, "list serial ports and exit")
	noPreamble := flag.Bool("no-preamble", false, "skip the spoken introduction")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (default stderr)")
	flag.Parse()

	if *listPorts {
		return printPorts()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		return 2
	}

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "" {
		f, err := logger.OpenFile(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v (falling back to stderr)\n", err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Third-party libraries log through the standard logger; keep them in
	// the same stream.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)
	console := display.NewConsole(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, subtitle, err := openSource(ctx, cfg, *replay, *replayDelay, log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		console.Alert("cannot open line source: %v", err)
		log.Error("line source: %v", err)
		return 1
	}
	defer source.Close()

	sink, mouth, err := buildSink(ctx, cfg, log)
	if err != nil {
		console.Alert("cannot start speech: %v", err)
		log.Error("speech sink: %v", err)
		return 1
	}

	classifier := classify.NewClassifier(
		classify.WithOverrides(cfg.Overrides),
		classify.WithLogger(log),
	)

	opts := []dispatch.Option{
		dispatch.WithPollInterval(cfg.PollInterval),
		dispatch.WithEcho(console),
	}
	if !*noPreamble {
		opts = append(opts, dispatch.WithPreamble(classify.Preamble()...))
	}
	if mouth != nil {
		mouth.Prefetch(ctx, append(classify.Preamble(), classifier.Phrases()...)...)
	}

	console.Banner(subtitle)
	d := dispatch.New(source, sink, classifier, log, opts...)
	runErr := d.Run(ctx)

	stats := d.Stats()
	log.Info("lines read=%d spoken=%d skipped=%d failed=%d", stats.Read, stats.Spoken, stats.Skipped, stats.Failed)

	switch {
	case errors.Is(runErr, context.Canceled):
		console.Notice("stopped")
		return 0
	case *replay != "" && errors.Is(runErr, io.EOF):
		// Let the last utterances finish before exiting.
		if mouth != nil {
			waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			mouth.Wait(waitCtx)
		}
		console.Notice("replay finished")
		return 0
	default:
		console.Alert("connection lost: %v", runErr)
		log.Error("dispatcher: %v", runErr)
		return 1
	}
}

// closableSource is a line source that owns an OS handle.
type closableSource interface {
	domain.LineSource
	Close() error
}

func openSource(ctx context.Context, cfg config.Config, replay string, delay time.Duration, log *logger.Logger) (closableSource, string, error) {
	if replay != "" {
		src, err := serialport.OpenReplay(replay, delay, log, serialport.WithBuffer(cfg.LineBuffer))
		return src, "replaying " + replay, err
	}
	src, err := serialport.Open(ctx, serialport.Config{
		Port:        cfg.Port,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		SettleDelay: cfg.SettleDelay,
	}, log, serialport.WithBuffer(cfg.LineBuffer))
	port := cfg.Port
	if port == "" {
		port = "auto"
	}
	return src, fmt.Sprintf("port %s @ %d baud", port, cfg.BaudRate), err
}

// buildSink picks the speech backend. Mouth is nil for the log-only sink.
func buildSink(ctx context.Context, cfg config.Config, log *logger.Logger) (domain.SpeechSink, *speech.Mouth, error) {
	if cfg.Backend == config.BackendNone {
		return speech.NewLogSink(log), nil, nil
	}

	voice, err := buildVoice(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	mouth := speech.NewMouth(voice, log, speech.WithQueueSize(cfg.QueueSize))
	mouth.Start(ctx)
	return mouth, mouth, nil
}

func buildVoice(cfg config.Config, log *logger.Logger) (speech.Voice, error) {
	useAzure := cfg.Backend == config.BackendAzure || (cfg.Backend == config.BackendAuto && cfg.HasAzure())

	if useAzure {
		voice, err := azureVoice(cfg, log)
		if err == nil {
			return voice, nil
		}
		if cfg.Backend == config.BackendAzure {
			return nil, err
		}
		log.Warn("azure speech unavailable, falling back to local voice: %v", err)
	}

	voice, err := speech.NewCommandVoice(speech.CommandConfig{Voice: cfg.Voice, Rate: cfg.Rate}, log)
	if err != nil {
		return nil, err
	}
	log.Info("TTS enabled (%s, rate=%d)", voice.Name(), cfg.Rate)
	return voice, nil
}

func azureVoice(cfg config.Config, log *logger.Logger) (speech.Voice, error) {
	client := speech.NewAzureClient(cfg.AzureKey, cfg.AzureRegion, log,
		speech.WithVoice(cfg.Voice),
		speech.WithRate(cfg.Rate),
	)
	player, err := speech.NewPlayer(log)
	if err != nil {
		return nil, fmt.Errorf("%w: audio player: %w", domain.ErrBackendUnavailable, err)
	}
	cache := speech.NewAudioCache(client.CacheKey(), cfg.CacheDir, log)
	log.Info("TTS enabled (azure voice=%s, region=%s, rate=%d)", client.Voice(), cfg.AzureRegion, cfg.Rate)
	return speech.NewCloudVoice("azure:"+client.Voice(), client, player, cache, log), nil
}

func printPorts() int {
	ports, err := serialport.Ports()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return 0
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return 0
}
