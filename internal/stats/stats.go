// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/frametype/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Resample squeezes values into at most width buckets by averaging.
func Resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		lo := i * len(values) / width
		hi := (i + 1) * len(values) / width
		if hi <= lo {
			hi = lo + 1
		}
		var sum float64
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints a summary of runs.
func RenderSummary(w io.Writer, runs []model.RunAggregate) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	var totalWPM, totalCPM, totalAcc float64
	bestWPM := 0
	for _, r := range runs {
		totalWPM += float64(r.Result.WPM)
		totalCPM += float64(r.Result.CPM)
		totalAcc += float64(r.Result.AccuracyPct)
		if r.Result.WPM > bestWPM {
			bestWPM = r.Result.WPM
		}
	}
	count := float64(len(runs))
	lines := []string{
		"Summary",
		fmt.Sprintf("Runs: %d", len(runs)),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %d", bestWPM),
		fmt.Sprintf("Avg CPM: %.2f", totalCPM/count),
		fmt.Sprintf("Avg Accuracy: %.2f%%", totalAcc/count),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrends prints one WPM sparkline per lesson from its quiz runs, oldest
// first. totalWidth bounds each line; zero uses the terminal width.
func RenderTrends(w io.Writer, runs []model.RunAggregate, window, totalWidth int) error {
	byLesson := map[int][]float64{}
	for _, r := range runs {
		if r.Kind != model.RunQuiz {
			continue
		}
		byLesson[r.LessonID] = append(byLesson[r.LessonID], float64(r.Result.WPM))
	}
	if len(byLesson) == 0 {
		return nil
	}
	ids := make([]int, 0, len(byLesson))
	for id := range byLesson {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if totalWidth <= 0 {
		totalWidth = TerminalWidth()
	}
	width := SparkWidthFor(totalWidth)
	if _, err := fmt.Fprintln(w, "Quiz WPM Trend"); err != nil {
		return err
	}
	for _, id := range ids {
		values := MovingAverage(byLesson[id], window)
		last := values[len(values)-1]
		line := fmt.Sprintf("%s %s %5.1f", padCell(fmt.Sprintf("Lesson %d", id), trendLabelWidth, false), Sparkline(Resample(values, width)), last)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// CharRows returns per-character rows, weakest first. A positive limit keeps
// only the most practiced characters.
func CharRows(aggs []model.CharAggregate, limit int) ([]string, [][]string) {
	if limit > 0 && limit < len(aggs) {
		keep := MostPracticed(aggs, limit)
		filtered := make([]model.CharAggregate, 0, limit)
		for _, agg := range aggs {
			if _, ok := keep[agg.Char]; ok {
				filtered = append(filtered, agg)
			}
		}
		aggs = filtered
	}
	type row struct {
		char      string
		acc       float64
		latency   float64
		correct   int
		incorrect int
	}
	rows := make([]row, 0, len(aggs))
	for _, agg := range aggs {
		charLabel := agg.Char
		if charLabel == " " {
			charLabel = "<space>"
		}
		lat := 0.0
		if agg.LatencyCount > 0 {
			lat = float64(agg.LatencySumMs) / float64(agg.LatencyCount)
		}
		rows = append(rows, row{
			char:      charLabel,
			acc:       accuracy(agg),
			latency:   lat,
			correct:   agg.Correct,
			incorrect: agg.Incorrect,
		})
	}
	// Sort by lowest accuracy.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].acc == rows[j].acc {
			return rows[i].char < rows[j].char
		}
		return rows[i].acc < rows[j].acc
	})

	headers := []string{"Char", "Accuracy", "Avg Latency (ms)", "Correct", "Incorrect"}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{
			r.char,
			fmt.Sprintf("%.2f%%", r.acc*100),
			fmt.Sprintf("%.1f", r.latency),
			fmt.Sprintf("%d", r.correct),
			fmt.Sprintf("%d", r.incorrect),
		})
	}
	return headers, tableRows
}

// RenderCharTable prints the rows of CharRows under title.
func RenderCharTable(w io.Writer, title string, aggs []model.CharAggregate, limit int) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No character stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	headers, rows := CharRows(aggs, limit)
	return writeTable(w, headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true})
}

// AggregatesFromProgress turns the drill attempt counters of p into character
// aggregates.
func AggregatesFromProgress(p model.UserProgress) []model.CharAggregate {
	out := make([]model.CharAggregate, 0, len(p.TotalAttempts))
	for ch, total := range p.TotalAttempts {
		correct := p.CorrectAttempts[ch]
		out = append(out, model.CharAggregate{Char: ch, Correct: correct, Incorrect: total - correct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range (textTable{headers: headers, rows: rows, right: rightAlign}).lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
