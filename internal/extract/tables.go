package extract

import "strings"

// ParseDelimited parses a pipe- or tab-delimited text block, as produced
// by table regions in free text, into a header row and body rows. The
// first line is the header; markdown separator lines (only dashes, colons
// and pipes) are dropped. Returns ok=false when the block has fewer than
// two usable lines.
func ParseDelimited(text string) (headers []string, rows [][]string, ok bool) {
	var lines [][]string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		cells := splitCells(trimmed)
		if len(cells) < 2 {
			continue
		}
		lines = append(lines, cells)
	}
	if len(lines) < 2 {
		return nil, nil, false
	}

	headers = lines[0]
	rows = make([][]string, 0, len(lines)-1)
	for _, cells := range lines[1:] {
		rows = append(rows, padRow(cells, len(headers)))
	}
	return headers, rows, true
}

func splitCells(line string) []string {
	var raw []string
	if strings.Count(line, "|") >= 2 {
		raw = strings.Split(strings.Trim(line, "|"), "|")
	} else if strings.Contains(line, "\t") {
		raw = strings.Split(line, "\t")
	} else {
		return nil
	}

	cells := make([]string, 0, len(raw))
	for _, c := range raw {
		cells = append(cells, strings.TrimSpace(c))
	}
	return cells
}

// isSeparatorLine reports whether a line is a markdown header separator
// such as "|---|---|".
func isSeparatorLine(line string) bool {
	seen := false
	for _, r := range line {
		switch r {
		case '-', ':', '|', ' ':
			if r == '-' {
				seen = true
			}
		default:
			return false
		}
	}
	return seen
}
