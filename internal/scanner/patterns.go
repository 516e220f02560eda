package scanner

import "regexp"

// pattern is one compiled detector within a family, ordered by severity
// within the overall table (highest severities first is not required here —
// unlike C7's bash rules, every family pattern is checked independently and
// contributes its own weight rather than short-circuiting on first match).
type pattern struct {
	family   Family
	severity Severity
	re       *regexp.Regexp
}

// allPatterns is the fixed table scan() walks. New patterns are additive;
// none of these should ever be removed without a corresponding test vector
// regression, since the external protocol (spec.md §6) treats them as part
// of the contract.
var allPatterns = []pattern{
	// jailbreak
	{FamilyJailbreak, SeverityCritical, regexp.MustCompile(`(?i)\bDAN\s+mode\b`)},
	{FamilyJailbreak, SeverityCritical, regexp.MustCompile(`(?i)do\s+anything\s+now`)},
	{FamilyJailbreak, SeverityHigh, regexp.MustCompile(`(?i)jailbreak(ed|ing)?\s+(this|the)\s+(model|ai|assistant)`)},
	{FamilyJailbreak, SeverityHigh, regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?(developer|unrestricted|unfiltered)\s+mode`)},
	{FamilyJailbreak, SeverityMedium, regexp.MustCompile(`(?i)pretend\s+(that\s+)?you\s+have\s+no\s+(restrictions|guidelines|rules)`)},

	// role_override
	{FamilyRoleOverride, SeverityHigh, regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions?`)},
	{FamilyRoleOverride, SeverityHigh, regexp.MustCompile(`(?i)disregard\s+(all\s+)?prior\s+instructions?`)},
	{FamilyRoleOverride, SeverityMedium, regexp.MustCompile(`(?i)forget\s+everything`)},
	{FamilyRoleOverride, SeverityMedium, regexp.MustCompile(`(?i)you\s+are\s+no\s+longer\s+(an?\s+)?assistant`)},
	{FamilyRoleOverride, SeverityLow, regexp.MustCompile(`(?i)act\s+as\s+if\s+you\s+(have|had)\s+no\s+rules`)},

	// instruction_leak
	{FamilyInstructionLeak, SeverityHigh, regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?prompt`)},
	{FamilyInstructionLeak, SeverityHigh, regexp.MustCompile(`(?i)repeat\s+(your|the)\s+(instructions|system\s+prompt)\s+(verbatim|exactly)`)},
	{FamilyInstructionLeak, SeverityMedium, regexp.MustCompile(`(?i)what\s+(are|were)\s+your\s+(initial\s+)?instructions`)},
	{FamilyInstructionLeak, SeverityMedium, regexp.MustCompile(`(?i)print\s+(your|the)\s+system\s+prompt`)},
	{FamilyInstructionLeak, SeverityMedium, regexp.MustCompile(`(?i)dump\s+(your|the)\s+system\s+prompt`)},

	// delimiter_attack
	{FamilyDelimiterAttack, SeverityHigh, regexp.MustCompile(`</system>`)},
	{FamilyDelimiterAttack, SeverityHigh, regexp.MustCompile(`\[INST\]`)},
	{FamilyDelimiterAttack, SeverityMedium, regexp.MustCompile(`(?i)\[\[\s*\.*\s*admin\s*\.*\s*\]\]`)},
	{FamilyDelimiterAttack, SeverityMedium, regexp.MustCompile(`(?im)^\s*(system|assistant)\s*:\s*\S`)},

	// encoding_bypass
	{FamilyEncodingBypass, SeverityMedium, regexp.MustCompile(`(?i)base64\s*:?\s*[A-Za-z0-9+/]{40,}={0,2}`)},
	{FamilyEncodingBypass, SeverityMedium, regexp.MustCompile(`(?:\\u00[0-9a-fA-F]{2}){6,}`)},
	{FamilyEncodingBypass, SeverityLow, regexp.MustCompile(`(?:%[0-9a-fA-F]{2}){6,}`)},

	// context_manipulation
	{FamilyContextManipulation, SeverityHigh, regexp.MustCompile(`(?i)end\s+of\s+(user\s+)?(input|message|prompt).{0,20}new\s+instructions?`)},
	{FamilyContextManipulation, SeverityMedium, regexp.MustCompile(`(?i)the\s+(above|previous)\s+(was|is)\s+(a\s+)?test`)},
	{FamilyContextManipulation, SeverityLow, regexp.MustCompile(`(?i)this\s+is\s+(a\s+)?hypothetical\s+scenario`)},
}
