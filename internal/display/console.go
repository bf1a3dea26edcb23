// Package display renders the operator console: a startup banner and a
// styled, timestamped echo of every microcontroller line and every utterance.
package display

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	// BannerStyle is the muted slate used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	// Raw microcontroller output, dimmed so speech stands out.
	lineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	speakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))
)

// Console writes operator-facing output. Safe for concurrent use.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole creates a console writing to out. If out is nil, os.Stdout is
// used.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out, now: time.Now}
}

// Received echoes a raw line from the microcontroller.
func (c *Console) Received(line string) {
	c.print(lineStyle.Render("mcu  ") + lineStyle.Render(line))
}

// Spoken echoes an utterance handed to the speech sink.
func (c *Console) Spoken(utterance string) {
	c.print(speakStyle.Render("say  ") + speakStyle.Render(utterance))
}

// Notice prints an informational status line.
func (c *Console) Notice(format string, args ...any) {
	c.print(noticeStyle.Render(fmt.Sprintf(format, args...)))
}

// Alert prints an error the operator has to act on.
func (c *Console) Alert(format string, args ...any) {
	c.print(alertStyle.Render(fmt.Sprintf(format, args...)))
}

// Banner prints the startup banner.
func (c *Console) Banner(subtitle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, RenderBanner(subtitle))
}

func (c *Console) print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", timeStyle.Render(c.now().Format("15:04:05")), s)
}
