package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	rangePattern   = regexp.MustCompile(`(?i)range\s*:\s*(\d+)\s*(?:-|–|to)\s*(\d+)`)
	looseRange     = regexp.MustCompile(`(\d+)\s*(?:-|–|to)\s*(\d+)`)
	reasonPattern  = regexp.MustCompile(`(?i)reason\s*:\s*(.+)`)
	ErrParseFailed = errors.New("parse_failed")
)

// ParseSuggestion extracts "RANGE: a-b" and "REASON: ..." from model output. It falls back to
// the first "a-b" pair anywhere in the text; the bounds are swapped if reversed.
func ParseSuggestion(text string) (*Suggestion, error) {
	m := rangePattern.FindStringSubmatch(text)
	if m == nil {
		m = looseRange.FindStringSubmatch(text)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: no range found", ErrParseFailed)
	}
	lo, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	hi, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	reason := ""
	if r := reasonPattern.FindStringSubmatch(text); len(r) >= 2 {
		reason = strings.TrimSpace(r[1])
	}
	return &Suggestion{Min: lo, Max: hi, Reasoning: reason}, nil
}
