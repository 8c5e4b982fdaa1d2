package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/designator"
)

// blockCorrections detects the known terminal-block misreading where the
// recognizer drops the first digit of a block name (XT2 read for XT12). Over
// the set of observed block names, a name whose digits are the digits of a
// longer observed name minus exactly one leading digit is rewritten to the
// longer name. Two matching longer names make the correction ambiguous: no
// rewrite, one warning.
func blockCorrections(pool []domain.WireRecord) (map[string]string, []string) {
	observed := make(map[string]struct{})
	collect := func(label string) {
		if b, ok := designator.BlockName(label); ok {
			observed[b] = struct{}{}
		}
	}
	for _, w := range pool {
		collect(w.From)
		collect(w.To)
		collect(w.TerminalA)
		collect(w.TerminalB)
	}

	names := make([]string, 0, len(observed))
	for b := range observed {
		names = append(names, b)
	}
	sort.Strings(names)

	rewrites := make(map[string]string)
	var warnings []string
	for _, short := range names {
		shortDigits := designator.BlockDigits(short)
		shortLetters := strings.TrimSuffix(short, shortDigits)

		var candidates []string
		for _, long := range names {
			if long == short {
				continue
			}
			longDigits := designator.BlockDigits(long)
			if !strings.HasPrefix(long, shortLetters) || strings.TrimSuffix(long, longDigits) != shortLetters {
				continue
			}
			if len(longDigits) == len(shortDigits)+1 && strings.HasSuffix(longDigits, shortDigits) {
				candidates = append(candidates, long)
			}
		}
		switch len(candidates) {
		case 0:
		case 1:
			rewrites[short] = candidates[0]
			warnings = append(warnings, fmt.Sprintf("terminal block %q corrected to %q (missing leading digit)", short, candidates[0]))
		default:
			warnings = append(warnings, fmt.Sprintf("terminal block %q has multiple truncation candidates %v, left unchanged", short, candidates))
		}
	}
	return rewrites, warnings
}

// rewriteBlock applies a block rewrite to one label, preserving any pin
// suffix and polarity marker.
func rewriteBlock(label string, rewrites map[string]string) string {
	if label == "" {
		return label
	}
	block, ok := designator.BlockName(label)
	if !ok {
		return label
	}
	target, hit := rewrites[block]
	if !hit {
		return label
	}
	return strings.Replace(label, block, target, 1)
}
