/*
Package scanner implements the prompt-injection scanner: a pattern-based
classifier run over user-sourced text before it reaches the task
supervisor's reasoning loop.

# Detection

Input is truncated to 100,000 characters, then matched against six fixed
pattern families: jailbreak, role_override, instruction_leak,
delimiter_attack, encoding_bypass, and context_manipulation. Every matching
pattern contributes its severity weight (low 0.1, medium 0.3, high 0.6,
critical 1.0) to a confidence score capped at 1. Detected is true once
confidence crosses Config.Threshold (default 0.3); Config.Strict instead
flags any single match regardless of confidence.

# Sanitization

Sanitize is deterministic: known delimiter tokens and role markers are
stripped outright, and role-override phrases are replaced with [FILTERED].
It never depends on which patterns matched, so the same input always
sanitizes to the same output.
*/
package scanner
