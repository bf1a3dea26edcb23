// Package classify maps raw microcontroller status lines to spoken utterances.
package classify

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/Zarar3/Hospital-Induced-Delirium-Screening-Device/internal/logger"
)

// Rule is one entry of the ordered rule table. Match decides whether the rule
// owns the line; Utter builds the utterance and may decline by returning false.
type Rule struct {
	Name  string
	Match func(line string) bool
	Utter func(line string) (string, bool)
}

// Result is the outcome of classifying a single line.
type Result struct {
	Rule      string
	Utterance string
}

// Option configures the Classifier.
type Option func(*Classifier)

// WithOverrides adds or replaces entries in the spoken-arithmetic override
// table. Keys are matched exactly against the extracted question text.
func WithOverrides(overrides map[string]string) Option {
	return func(c *Classifier) {
		for k, v := range overrides {
			c.overrides[k] = v
		}
	}
}

// WithLogger attaches a logger for debug tracing of rule matches.
func WithLogger(log *logger.Logger) Option {
	return func(c *Classifier) {
		c.log = log
	}
}

// Classifier evaluates lines against a fixed, priority-ordered rule table.
// The table and override map are read-only after construction, so a
// Classifier is safe to share.
type Classifier struct {
	rules     []Rule
	overrides map[string]string
	log       *logger.Logger
}

// DefaultOverrides returns the built-in override table: expressions whose
// minus sign is easily misread by speech engines.
func DefaultOverrides() map[string]string {
	return map[string]string{
		"7 - 3 = 4":  "Seven minus three equals four",
		"10 - 4 = 5": "Ten minus four equals five",
	}
}

// NewClassifier builds the default rule table.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		overrides: DefaultOverrides(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rules = []Rule{
		{Name: "question", Match: isQuestion, Utter: c.question},
		contains("button-a", "Press Button A", LineButtonA),
		contains("button-b", "Press Button B", LineButtonB),
		contains("missed", "MISSED", LineMissed),
		contains("correct", "CORRECT!", LineCorrect),
		contains("timeout", "TIMEOUT", LineTimeout),
		contains("incorrect", "INCORRECT", LineIncorrect),
		contains("reaction-start", "REACTION TEST STARTING", LineReactionStart),
		contains("risk-low", "LOW RISK", LineLowRisk),
		contains("risk-moderate", "MODERATE RISK", LineModerateRisk),
		contains("risk-high", "HIGH RISK", LineHighRisk),
	}
	return c
}

// Rules returns a copy of the rule table in priority order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the utterance for line, if any. Empty, unmatched, and
// malformed lines all return false; none of them is an error.
func (c *Classifier) Classify(line string) (Result, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Result{}, false
	}

	for _, rule := range c.rules {
		if !rule.Match(trimmed) {
			continue
		}
		text, ok := rule.Utter(trimmed)
		if !ok {
			c.debug("rule %s matched but produced no utterance: %q", rule.Name, trimmed)
			return Result{}, false
		}
		c.debug("rule %s matched: %q -> %q", rule.Name, trimmed, text)
		return Result{Rule: rule.Name, Utterance: text}, true
	}
	return Result{}, false
}

// Phrases returns every utterance the table can produce without depending
// on line content: the fixed rule utterances and the override values.
func (c *Classifier) Phrases() []string {
	out := []string{
		LineButtonA, LineButtonB, LineMissed,
		LineCorrect, LineTimeout, LineIncorrect,
		LineReactionStart,
		LineLowRisk, LineModerateRisk, LineHighRisk,
	}
	for _, k := range slices.Sorted(maps.Keys(c.overrides)) {
		out = append(out, c.overrides[k])
	}
	return out
}

// question extracts the text after the first ':' and applies overrides.
func (c *Classifier) question(line string) (string, bool) {
	_, text, found := strings.Cut(line, ":")
	if !found {
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if spoken, ok := c.overrides[text]; ok {
		return spoken, true
	}
	// "7 - 3 = 4?" reads the same as "7 - 3 = 4".
	if bare := strings.TrimSpace(strings.TrimSuffix(text, "?")); bare != text {
		if spoken, ok := c.overrides[bare]; ok {
			return spoken, true
		}
	}
	return text, true
}

func (c *Classifier) debug(format string, args ...any) {
	if c.log != nil {
		c.log.Debug(format, args...)
	}
}

// enumerated matches the "Q<i>/<n>:" header of a numbered question.
var enumerated = regexp.MustCompile(`^Q\d+\s*/\s*\d+\s*:`)

// isQuestion reports whether line is one question of an enumerated set.
func isQuestion(line string) bool {
	if !strings.HasPrefix(line, "Q") || !strings.Contains(line, "/") {
		return false
	}
	return strings.Contains(line, "?") || enumerated.MatchString(line)
}

func contains(name, marker, utterance string) Rule {
	return Rule{
		Name:  name,
		Match: func(line string) bool { return strings.Contains(line, marker) },
		Utter: fixed(utterance),
	}
}

func fixed(utterance string) func(string) (string, bool) {
	return func(string) (string, bool) { return utterance, true }
}
