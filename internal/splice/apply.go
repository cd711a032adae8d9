package splice

import (
	"fmt"
	"sort"
	"strings"
)

// splitKeepEOL splits s into lines that keep their '\n'. The last element
// has no terminator and is omitted when empty.
func splitKeepEOL(s string) []string {
	var lines []string
	for s != "" {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:nl+1])
		s = s[nl+1:]
	}
	return lines
}

// ApplyDiffs replays replacement diffs over the old document. Diffs are
// applied in ascending StartLine order; because StartLine is expressed in
// new-document coordinates, every earlier diff has already shifted the lines
// a later one refers to.
func ApplyDiffs(doc string, diffs []ReplacementDiff) (string, error) {
	sorted := make([]ReplacementDiff, len(diffs))
	copy(sorted, diffs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartLine < sorted[j].StartLine
	})

	lines := splitKeepEOL(doc)
	for _, d := range sorted {
		startIdx := d.StartLine
		endIdx := d.StartLine + d.LineCount
		if startIdx < 0 || startIdx > len(lines) {
			return "", fmt.Errorf("start_line %d out of range (document has %d lines)", d.StartLine, len(lines))
		}
		if d.LineCount < 0 || endIdx > len(lines) {
			return "", fmt.Errorf("line_count %d out of range at line %d", d.LineCount, d.StartLine)
		}

		var result []string
		result = append(result, lines[:startIdx]...)
		result = append(result, splitKeepEOL(d.Text)...)
		result = append(result, lines[endIdx:]...)
		lines = result
	}
	return strings.Join(lines, ""), nil
}
