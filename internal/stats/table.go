package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// textTable lays out the plain-text lesson, chapter and character tables
// printed by `frametype progress`. Columns listed in right are right aligned.
type textTable struct {
	headers []string
	rows    [][]string
	right   map[int]bool
}

// columnWidths returns the widest cell per column, headers included. Short
// rows count as having empty trailing cells.
func (t textTable) columnWidths() []int {
	var widths []int
	measure := func(cells []string) {
		for i, cell := range cells {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], displayWidth(cell))
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

// lines renders the header (when present) followed by every row.
func (t textTable) lines() []string {
	widths := t.columnWidths()
	if len(widths) == 0 {
		return nil
	}
	out := make([]string, 0, len(t.rows)+1)
	if len(t.headers) > 0 {
		out = append(out, t.line(t.headers, widths))
	}
	for _, row := range t.rows {
		out = append(out, t.line(row, widths))
	}
	return out
}

func (t textTable) line(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = padCell(cell, w, t.right[i])
	}
	return strings.TrimRight(strings.Join(parts, " "), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	gap := width - displayWidth(value)
	if gap <= 0 {
		return value
	}
	if rightAlign {
		return strings.Repeat(" ", gap) + value
	}
	return value + strings.Repeat(" ", gap)
}

// displayWidth counts terminal cells, so wide frame glyphs line up.
func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}
