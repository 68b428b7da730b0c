package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/critlabs/crit/internal/eventlog"
)

// parseSelection parses a selection string of the form "N" (single
// 1-based line) or "A-B" (an inclusive range, A <= B), per spec.md
// §4.H step 2 of add_comment_to_review.
func parseSelection(raw string) (eventlog.Selection, error) {
	if idx := strings.IndexByte(raw, '-'); idx > 0 {
		aStr, bStr := raw[:idx], raw[idx+1:]
		a, errA := strconv.Atoi(aStr)
		b, errB := strconv.Atoi(bStr)
		if errA != nil || errB != nil {
			return eventlog.Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, raw)
		}
		if a < 1 || b < a {
			return eventlog.Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, raw)
		}
		rng := [2]int{a, b}
		return eventlog.Selection{Range: &rng}, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return eventlog.Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, raw)
	}
	return eventlog.Selection{Line: &n}, nil
}
