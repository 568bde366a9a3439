package server

import (
	"regexp"
	"strings"
)

// CrisisDetector flags text containing self-harm or crisis language. It is
// an interface so the pattern list can be swapped for a real classifier
// without touching the report pipeline.
type CrisisDetector interface {
	Flags(text string) bool
}

// Pattern groups: direct ideation, self-harm, passive ideation. Matching is
// recall-biased.
var (
	directCrisisPatterns = []string{
		`suicid(e|al)`,
		`\bkill myself\b`,
		`\bend my life\b`,
		`\btake my life\b`,
		`\bi want to die\b`,
		`\bi wish i was dead\b`,
		`\bbetter off dead\b`,
		`\bcan't go on\b`,
	}
	selfHarmPatterns = []string{
		`\bself[-\s]?harm\b`,
		`\bcut myself\b`,
		`\bcutting\b`,
		`\bhurt myself\b`,
		`\bi (?:want|need) to hurt myself\b`,
		`\bi feel like hurting myself\b`,
	}
	passiveIdeationPatterns = []string{
		`\bno reason to live\b`,
		`\bi don't want to live\b`,
		`\bcan't live anymore\b`,
		`\bi'm done with life\b`,
	}
)

type patternCrisisDetector struct {
	patterns []*regexp.Regexp
}

func NewCrisisDetector() CrisisDetector {
	raw := make([]string, 0, len(directCrisisPatterns)+len(selfHarmPatterns)+len(passiveIdeationPatterns))
	raw = append(raw, directCrisisPatterns...)
	raw = append(raw, selfHarmPatterns...)
	raw = append(raw, passiveIdeationPatterns...)

	compiled := make([]*regexp.Regexp, 0, len(raw))
	for _, pattern := range raw {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return &patternCrisisDetector{patterns: compiled}
}

func (d *patternCrisisDetector) Flags(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, pattern := range d.patterns {
		if pattern.MatchString(lowered) {
			return true
		}
	}
	return false
}

var symbolRunPattern = regexp.MustCompile(`[0-9!@#$%^&*()_\-+=<>?{}\[\]|~]{3,}`)

// isGibberish reports whether text is unlikely to carry meaningful
// natural-language content. Runs before any provider call.
func isGibberish(text string) bool {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(words) == 0 {
		return true
	}

	suspicious := 0
	for _, word := range words {
		if isSuspiciousWord(word) {
			suspicious++
		}
	}
	return float64(suspicious)/float64(len(words)) > 0.4
}

func isSuspiciousWord(word string) bool {
	runes := []rune(word)

	nonLetters := 0
	asciiLettersOnly := true
	for _, r := range runes {
		if r < 'a' || r > 'z' {
			nonLetters++
			asciiLettersOnly = false
		}
	}
	if float64(nonLetters)/float64(len(runes)) > 0.4 {
		return true
	}
	if symbolRunPattern.MatchString(word) {
		return true
	}
	if hasRepeatedRun(runes, 6) {
		return true
	}
	if len(runes) > 3 && !strings.ContainsAny(word, "aeiouy") {
		return true
	}
	if !asciiLettersOnly && len(runes) > 2 {
		return true
	}
	return false
}

// hasRepeatedRun replaces the backreference pattern (.)\1{5,}, which RE2
// does not support.
func hasRepeatedRun(runes []rune, minRun int) bool {
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
