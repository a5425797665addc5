package gate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Heuristic admits posts unless they trip a deny keyword or fall below
// the minimum length.
type Heuristic struct {
	denyKeywords []string
	minLength    int
}

// NewHeuristic creates a heuristic gate. Keywords match case-insensitively.
func NewHeuristic(denyKeywords []string, minLength int) *Heuristic {
	lowered := make([]string, 0, len(denyKeywords))
	for _, kw := range denyKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Heuristic{denyKeywords: lowered, minLength: minLength}
}

func (h *Heuristic) Check(text string) Verdict {
	if h.minLength > 0 && utf8.RuneCountInString(strings.TrimSpace(text)) < h.minLength {
		return Verdict{Admit: false, Reason: fmt.Sprintf("shorter than %d characters", h.minLength)}
	}

	lowered := strings.ToLower(text)
	for _, kw := range h.denyKeywords {
		if strings.Contains(lowered, kw) {
			return Verdict{Admit: false, Reason: fmt.Sprintf("deny keyword %q", kw)}
		}
	}

	return Verdict{Admit: true}
}
