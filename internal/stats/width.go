package stats

import (
	"os"

	"golang.org/x/term"
)

const (
	terminalWidthBackup = 80
	minSparkWidth       = 10
	// trendLabelWidth fits "Lesson NN"; the value column takes six more cells.
	trendLabelWidth = 9
	trendValueWidth = 6
)

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// SparkWidthFor computes how many sparkline cells fit in a trend line.
func SparkWidthFor(totalWidth int) int {
	width := totalWidth - trendLabelWidth - trendValueWidth - 1
	if width < minSparkWidth {
		return minSparkWidth
	}
	return width
}
