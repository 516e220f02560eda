// Package scanner implements the prompt-injection scanner (C10): a
// pattern-based classifier over user-sourced text feeding the task
// supervisor.
package scanner

import (
	"regexp"
	"strings"
)

// maxInputLength truncates scan input before pattern matching.
const maxInputLength = 100_000

// Severity is the closed set of pattern severities.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityWeight maps a severity to its confidence-formula weight.
var severityWeight = map[Severity]float64{
	SeverityLow:      0.1,
	SeverityMedium:   0.3,
	SeverityHigh:     0.6,
	SeverityCritical: 1.0,
}

// Family is the closed set of pattern families scan() checks.
type Family string

const (
	FamilyJailbreak            Family = "jailbreak"
	FamilyRoleOverride         Family = "role_override"
	FamilyInstructionLeak      Family = "instruction_leak"
	FamilyDelimiterAttack      Family = "delimiter_attack"
	FamilyEncodingBypass       Family = "encoding_bypass"
	FamilyContextManipulation  Family = "context_manipulation"
)

// Match is one pattern hit.
type Match struct {
	Family   Family   `json:"family"`
	Severity Severity `json:"severity"`
	Excerpt  string   `json:"excerpt"`
}

// Result is scan()'s return shape.
type Result struct {
	Detected   bool     `json:"detected"`
	Confidence float64  `json:"confidence"`
	Patterns   []Match  `json:"patterns"`
	Sanitized  string   `json:"sanitized,omitempty"`
}

// Config tunes detection sensitivity.
type Config struct {
	// Threshold is the confidence at or above which Detected is set; default 0.3.
	Threshold float64
	// Strict lowers the effective threshold to "any pattern matched".
	Strict bool
}

// DefaultConfig returns the spec's default thresholds.
func DefaultConfig() Config {
	return Config{Threshold: 0.3}
}

// Scanner classifies free text for prompt-injection patterns.
type Scanner struct {
	cfg Config
}

// New builds a Scanner.
func New(cfg Config) *Scanner {
	if cfg.Threshold == 0 && !cfg.Strict {
		cfg.Threshold = DefaultConfig().Threshold
	}
	return &Scanner{cfg: cfg}
}

func truncate(text string) string {
	if len(text) <= maxInputLength {
		return text
	}
	return text[:maxInputLength]
}

// Scan runs every pattern family against text and returns the aggregate
// classification.
func (s *Scanner) Scan(text string) Result {
	text = truncate(text)

	var matches []Match
	for _, p := range allPatterns {
		if loc := p.re.FindStringIndex(text); loc != nil {
			excerpt := text[loc[0]:loc[1]]
			if len(excerpt) > 80 {
				excerpt = excerpt[:80]
			}
			matches = append(matches, Match{Family: p.family, Severity: p.severity, Excerpt: excerpt})
		}
	}

	confidence := 0.0
	for _, m := range matches {
		confidence += severityWeight[m.Severity]
	}
	if confidence > 1 {
		confidence = 1
	}

	detected := confidence >= s.cfg.Threshold
	if s.cfg.Strict {
		detected = len(matches) > 0
	}

	result := Result{Detected: detected, Confidence: confidence, Patterns: matches}
	if detected {
		result.Sanitized = s.Sanitize(text)
	}
	return result
}

// QuickCheck is a boolean-only fast path over Scan, for callers that only
// need a detected/not-detected verdict.
func (s *Scanner) QuickCheck(text string) bool {
	return s.Scan(text).Detected
}

// delimiterTokens are stripped outright during sanitization.
var delimiterTokens = []string{"</system>", "<system>", "[INST]", "[/INST]"}

var adminBlockRe = regexp.MustCompile(`(?i)\[\[\s*\.*\s*admin\s*\.*\s*\]\]`)
var roleMarkerRe = regexp.MustCompile(`(?im)^\s*(system|assistant|user)\s*:\s*`)

// roleOverridePhrases are replaced with [FILTERED] during sanitization.
var roleOverridePhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?prior\s+instructions?`),
	regexp.MustCompile(`(?i)forget\s+everything`),
}

// Sanitize deterministically strips known delimiter tokens and replaces
// role-override phrases with [FILTERED].
func (s *Scanner) Sanitize(text string) string {
	out := text
	for _, tok := range delimiterTokens {
		out = strings.ReplaceAll(out, tok, "")
	}
	out = adminBlockRe.ReplaceAllString(out, "")
	out = roleMarkerRe.ReplaceAllString(out, "")
	for _, re := range roleOverridePhrases {
		out = re.ReplaceAllString(out, "[FILTERED]")
	}
	return out
}
