package security

import "regexp"

// injectionPatterns match phrasings associated with prompt-injection
// attempts: instruction override, role spoofing, delimiter smuggling, and
// directives to reveal system instructions.
var injectionPatterns = []*regexp.Regexp{
	// Instruction override
	regexp.MustCompile(`(?i)ignore\s+(previous|all|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)disregard\s+(previous|all|above)\s+(instructions?|prompts?)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|previous)`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*prompt:`),

	// Role spoofing
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`),
	regexp.MustCompile(`(?i)act\s+as\s+(if|though)`),
	regexp.MustCompile(`(?i)roleplay\s+as`),

	// Delimiter smuggling
	regexp.MustCompile("```\\s*system"),
	regexp.MustCompile(`<\s*system\s*>`),
	regexp.MustCompile(`\[\s*SYSTEM\s*\]`),
	regexp.MustCompile(`###\s*SYSTEM`),

	// Jailbreak phrasings
	regexp.MustCompile(`(?i)dan\s*mode`),
	regexp.MustCompile(`(?i)developer\s*mode`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)bypass\s+(safety|security|filter)`),

	// Reveal-instructions directives
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(prompt|instructions?|system)`),
	regexp.MustCompile(`(?i)show\s+me\s+(your|the)\s+(prompt|instructions?)`),
	regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(instructions?|rules?|prompt)`),
}

// sensitivePatterns match content that looks like credentials or personal
// identifiers. Matches flag the message but never block it on their own.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|access[_-]?token)\s*[:=]\s*['"]?[\w\-]+`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9\-]+`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*['"]?[^\s'"]+`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----`),
	regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`),
}

// suspiciousRunes are invisible or direction-control characters used in
// encoding attacks. They are stripped unconditionally.
var suspiciousRunes = map[rune]bool{
	'\u200b': true, // zero-width space
	'\u200c': true, // zero-width non-joiner
	'\u200d': true, // zero-width joiner
	'\u2060': true, // word joiner
	'\ufeff': true, // byte order mark
	'\u00ad': true, // soft hyphen
	'\u202a': true, // left-to-right embedding
	'\u202b': true, // right-to-left embedding
	'\u202d': true, // left-to-right override
	'\u202e': true, // right-to-left override
	'\u2066': true, // left-to-right isolate
	'\u2067': true, // right-to-left isolate
	'\u2069': true, // pop directional isolate
}
