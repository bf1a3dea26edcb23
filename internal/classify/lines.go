// lines.go centralises every fixed spoken string. Keep
// lines short; the person being screened hears them mid-test.

package classify

// ── Preamble ─────────────────────────────────────────────────────

// Preamble is spoken once when the relay comes up, before any line from the
// microcontroller is processed.
func Preamble() []string {
	return []string{
		"System ready. Starting test.",
		"Choose button A if you are below 40, button B if you are 40 or above.",
		"Press any button to start",
	}
}

// ── Reaction prompts ─────────────────────────────────────────────

const (
	LineButtonA = "A"
	LineButtonB = "B"
	LineMissed  = "Missed"
)

// ── Feedback ─────────────────────────────────────────────────────

const (
	LineCorrect       = "Correct"
	LineTimeout       = "Time out"
	LineIncorrect     = "Incorrect"
	LineReactionStart = "Starting reaction test."
)

// ── Results ──────────────────────────────────────────────────────

const (
	LineLowRisk      = "Low risk detected."
	LineModerateRisk = "Moderate risk detected."
	LineHighRisk     = "High risk detected."
)
