package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/domain"
	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Compile-time interface check.
var _ Voice = (*CommandVoice)(nil)

// CommandConfig selects the local voice. Voice is an engine-specific name or,
// on Windows, the index of an installed voice ("1" picks the second one).
type CommandConfig struct {
	Voice string
	Rate  int
}

// CommandVoice speaks through the platform's own TTS program: espeak-ng or
// espeak on Linux, say on macOS, and System.Speech via PowerShell on Windows.
// Each utterance runs one process and Say returns when it exits.
type CommandVoice struct {
	bin   string
	args  func(text string) []string
	stdin bool // text goes to stdin instead of argv
	log   *logger.Logger
}

// NewCommandVoice finds a TTS program for the current platform. It returns
// domain.ErrBackendUnavailable when none is installed.
func NewCommandVoice(cfg CommandConfig, log *logger.Logger) (*CommandVoice, error) {
	return newCommandVoice(runtime.GOOS, exec.LookPath, cfg, log)
}

func newCommandVoice(goos string, lookPath func(string) (string, error), cfg CommandConfig, log *logger.Logger) (*CommandVoice, error) {
	if err := domain.ValidateRate(cfg.Rate); err != nil {
		return nil, err
	}

	var candidates []string
	switch goos {
	case "windows":
		candidates = []string{"powershell", "pwsh"}
	case "darwin":
		candidates = []string{"say"}
	default:
		candidates = []string{"espeak-ng", "espeak"}
	}

	for _, name := range candidates {
		bin, err := lookPath(name)
		if err != nil {
			continue
		}
		v := &CommandVoice{bin: bin, log: log}
		switch goos {
		case "windows":
			script := sapiScript(cfg)
			v.args = func(string) []string {
				return []string{"-NoProfile", "-NonInteractive", "-Command", script}
			}
			v.stdin = true
		case "darwin":
			v.args = func(text string) []string {
				return withVoice([]string{"-r", strconv.Itoa(wordsPerMinute(cfg.Rate))}, "-v", cfg.Voice, text)
			}
		default:
			v.args = func(text string) []string {
				return withVoice([]string{"-s", strconv.Itoa(wordsPerMinute(cfg.Rate))}, "-v", cfg.Voice, text)
			}
		}
		log.Debug("command voice: using %s", bin)
		return v, nil
	}
	return nil, fmt.Errorf("%w: none of %s found in PATH", domain.ErrBackendUnavailable, strings.Join(candidates, ", "))
}

// Name identifies the voice in logs.
func (v *CommandVoice) Name() string { return "command:" + v.bin }

// Say runs the TTS program for text and waits for it to finish.
func (v *CommandVoice) Say(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, v.bin, v.args(text)...)
	if v.stdin {
		cmd.Stdin = strings.NewReader(text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", v.bin, err, msg)
		}
		return fmt.Errorf("%s: %w", v.bin, err)
	}
	return nil
}

// wordsPerMinute maps a rate in [domain.MinRate, domain.MaxRate] onto espeak/say's scale,
// centred on their default of 175 wpm.
func wordsPerMinute(rate int) int {
	return 175 + rate*15
}

func withVoice(args []string, flag, voice, text string) []string {
	if voice != "" {
		args = append(args, flag, voice)
	}
	// "--" keeps a line such as "-5 + 2 = -3" from being parsed as a flag.
	return append(args, "--", text)
}

// sapiScript builds the PowerShell program that reads stdin and speaks it.
// SAPI's rate scale is already -10..10.
func sapiScript(cfg CommandConfig) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	fmt.Fprintf(&b, "$s.Rate = %d; ", cfg.Rate)
	if cfg.Voice != "" {
		if idx, err := strconv.Atoi(cfg.Voice); err == nil {
			fmt.Fprintf(&b, "$v = $s.GetInstalledVoices(); if ($v.Count -gt %d) { $s.SelectVoice($v[%d].VoiceInfo.Name) }; ", idx, idx)
		} else {
			fmt.Fprintf(&b, "$s.SelectVoice('%s'); ", strings.ReplaceAll(cfg.Voice, "'", "''"))
		}
	}
	b.WriteString("$s.Speak([Console]::In.ReadToEnd())")
	return b.String()
}
