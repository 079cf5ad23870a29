// Package export writes a user's progress to an Excel workbook.
package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/progress"
)

// Sheet names.
const (
	SheetLessons    = "Lessons"
	SheetCharacters = "Characters"
	SheetChapters   = "Chapters"
	SheetBadges     = "Badges"
)

// Data is everything written to the workbook.
type Data struct {
	UserID     string
	Curriculum *curriculum.Curriculum
	Progress   model.UserProgress
	Learn      model.LearnProgress
}

// Write renders d as an .xlsx workbook to w.
func Write(w io.Writer, d Data) error {
	f, err := build(d)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveAs renders d as an .xlsx workbook at path.
func SaveAs(path string, d Data) error {
	f, err := build(d)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func build(d Data) (*excelize.File, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetLessons, lessonRows(d)},
		{SheetCharacters, characterRows(d.Progress)},
		{SheetChapters, chapterRows(d)},
		{SheetBadges, badgeRows(d.Progress)},
	}
	for i, sheet := range sheets {
		if i == 0 {
			f.SetSheetName(f.GetSheetName(0), sheet.name)
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", sheet.name, err)
		}
		if err := writeRows(f, sheet.name, sheet.rows, header); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 {
		if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
		last, err := excelize.ColumnNumberToName(len(rows[0]))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
			return fmt.Errorf("failed to size %s columns: %w", sheet, err)
		}
	}
	return nil
}

func lessonRows(d Data) [][]interface{} {
	rows := [][]interface{}{{"Lesson", "Name", "Passed", "Attempts", "Accuracy", "CPM", "WPM", "Best Accuracy", "Best CPM", "Best WPM"}}
	for _, l := range d.Curriculum.Lessons {
		score, ok := d.Progress.LessonScores[l.ID]
		if !ok {
			rows = append(rows, []interface{}{l.ID, l.Name, false, 0})
			continue
		}
		row := []interface{}{l.ID, l.Name, score.Passed, score.Attempts, score.Accuracy, score.CPM, score.WPM}
		if score.Best != nil {
			row = append(row, score.Best.Accuracy, score.Best.CPM, score.Best.WPM)
		}
		rows = append(rows, row)
	}
	return rows
}

func characterRows(p model.UserProgress) [][]interface{} {
	rows := [][]interface{}{{"Character", "Attempts", "Correct", "Accuracy"}}
	chars := make([]string, 0, len(p.TotalAttempts))
	for ch := range p.TotalAttempts {
		chars = append(chars, ch)
	}
	sort.Strings(chars)
	for _, ch := range chars {
		rows = append(rows, []interface{}{ch, p.TotalAttempts[ch], p.CorrectAttempts[ch], p.Accuracy[ch]})
	}
	return rows
}

func chapterRows(d Data) [][]interface{} {
	rows := [][]interface{}{{"Chapter", "Title", "Stage", "Flashcards Viewed", "Completed", "Completed At"}}
	for _, ch := range d.Curriculum.Chapters {
		if !ch.HasExercises() {
			continue
		}
		ex, ok := d.Learn.Exercises[ch.ID]
		if !ok {
			rows = append(rows, []interface{}{ch.ID, ch.Title, "", "0/" + strconv.Itoa(len(ch.Flashcards)), false})
			continue
		}
		completedAt := ""
		if ex.CompletedAt != nil {
			completedAt = ex.CompletedAt.UTC().Format("2006-01-02 15:04")
		}
		rows = append(rows, []interface{}{
			ch.ID,
			ch.Title,
			string(ex.CurrentStage),
			fmt.Sprintf("%d/%d", len(ex.FlashcardsViewed), len(ch.Flashcards)),
			d.Learn.CompletedChapters.Has(ch.ID),
			completedAt,
		})
	}
	return rows
}

func badgeRows(p model.UserProgress) [][]interface{} {
	rows := [][]interface{}{{"Badge", "Title", "Description", "Earned"}}
	for _, b := range progress.Badges {
		rows = append(rows, []interface{}{b.ID, b.Title, b.Description, p.Badges.Has(b.ID)})
	}
	return rows
}
