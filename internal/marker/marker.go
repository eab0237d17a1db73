// Package marker extracts structured inline markers from free-form agent
// output: [LEARNING] blocks carrying distilled facts and [STATUS: ...]
// markers driving consensus detection. Parsing is kept separate from the
// state transitions in internal/session so the automaton can be tested
// without text-extraction edge cases.
package marker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// StatusKind enumerates the recognized [STATUS: ...] marker types.
type StatusKind string

const (
	Agree    StatusKind = "AGREE"
	Disagree StatusKind = "DISAGREE"
	Partial  StatusKind = "PARTIAL"
	Proposal StatusKind = "PROPOSAL"
	NeedInfo StatusKind = "NEED_INFO"
)

// Learning is a single extracted [LEARNING] block.
type Learning struct {
	Category string
	Content  string
}

// StatusMarker is a parsed [STATUS: ...] marker. Reason carries the value of
// an optional reason="..." attribute and may be empty.
type StatusMarker struct {
	Kind   StatusKind
	Reason string
}

// minLearningRunes is the shortest extracted content accepted as a learning;
// anything under 11 runes is treated as noise.
const minLearningRunes = 11

var (
	learningPattern = regexp.MustCompile(
		`(?is)\[LEARNING\s+category=["']([^"']+)["']\]\s*\n?(.*?)\n?\s*\[/LEARNING\]`)
	statusPattern = regexp.MustCompile(
		`(?i)\[STATUS:\s*(AGREE|DISAGREE|PARTIAL|PROPOSAL|NEED_INFO)(?:\s+[^\]]*)?\]`)
	reasonPattern         = regexp.MustCompile(`reason=["']([^"']*)["']`)
	trailingStatusPattern = regexp.MustCompile(`(?i)\n?\s*\[STATUS:\s*[^\]]*\]\s*$`)
)

// ExtractLearnings returns all well-formed learning blocks found in text.
// Categories are lowercased, content is trimmed, and trivially short content
// is discarded. Blocks may span multiple lines and may use either quote
// style for the category attribute.
func ExtractLearnings(text string) []Learning {
	matches := learningPattern.FindAllStringSubmatch(text, -1)
	var learnings []Learning
	for _, m := range matches {
		content := strings.TrimSpace(m[2])
		if utf8.RuneCountInString(content) < minLearningRunes {
			continue
		}
		learnings = append(learnings, Learning{
			Category: strings.ToLower(m[1]),
			Content:  content,
		})
	}
	return learnings
}

// StripLearningBlocks removes all learning blocks from text, returning the
// remaining text trimmed.
func StripLearningBlocks(text string) string {
	return strings.TrimSpace(learningPattern.ReplaceAllString(text, ""))
}

// ParseStatus finds the first status marker in text. The second return value
// is false if no marker is present.
func ParseStatus(text string) (StatusMarker, bool) {
	m := statusPattern.FindStringSubmatch(text)
	if m == nil {
		return StatusMarker{}, false
	}
	marker := StatusMarker{Kind: StatusKind(strings.ToUpper(m[1]))}
	if rm := reasonPattern.FindStringSubmatch(m[0]); rm != nil {
		marker.Reason = rm[1]
	}
	return marker, true
}

// StripStatusLine removes a trailing [STATUS: ...] marker from text for
// clean display. Text without a trailing marker is returned unchanged aside
// from trimming.
func StripStatusLine(text string) string {
	return strings.TrimSpace(trailingStatusPattern.ReplaceAllString(text, ""))
}
