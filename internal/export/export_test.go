package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/progress"
)

func testData(t *testing.T) Data {
	t.Helper()
	cur, err := curriculum.Default()
	if err != nil {
		t.Fatalf("curriculum: %v", err)
	}
	p := model.NewUserProgress()
	first := cur.Lessons[0].ID
	p.LessonScores[first] = model.LessonScore{
		LessonID: first,
		Accuracy: 97,
		CPM:      120,
		WPM:      24,
		Passed:   true,
		Attempts: 2,
		Best:     &model.Score{Accuracy: 98, CPM: 110, WPM: 22},
	}
	p.TotalAttempts["a"] = 10
	p.CorrectAttempts["a"] = 9
	p.Accuracy["a"] = 90
	p.Badges[progress.BadgeSteady] = struct{}{}

	l := model.NewLearnProgress()
	for _, ch := range cur.Chapters {
		if !ch.HasExercises() {
			continue
		}
		ex := model.NewExerciseProgress(ch.ID)
		done := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
		ex.CurrentStage = model.StageComplete
		ex.CompletedAt = &done
		l.Exercises[ch.ID] = ex
		l.CompletedChapters[ch.ID] = struct{}{}
		break
	}
	return Data{UserID: "ada", Curriculum: cur, Progress: p, Learn: l}
}

func readBack(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteSheets(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testData(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f := readBack(t, &buf)

	want := []string{SheetLessons, SheetCharacters, SheetChapters, SheetBadges}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sheets = %v, want %v", got, want)
		}
	}
}

func TestWriteLessonRows(t *testing.T) {
	d := testData(t)
	var buf bytes.Buffer
	if err := Write(&buf, d); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rows, err := readBack(t, &buf).GetRows(SheetLessons)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != len(d.Curriculum.Lessons)+1 {
		t.Fatalf("expected %d rows, got %d", len(d.Curriculum.Lessons)+1, len(rows))
	}
	if rows[0][0] != "Lesson" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[2] != "TRUE" || first[3] != "2" || first[4] != "97" || first[9] != "22" {
		t.Fatalf("unexpected lesson row %v", first)
	}
	if len(rows) > 2 && rows[2][2] != "FALSE" {
		t.Fatalf("unattempted lesson should not be passed: %v", rows[2])
	}
}

func TestWriteCharacterAndBadgeRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testData(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f := readBack(t, &buf)

	chars, err := f.GetRows(SheetCharacters)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(chars) != 2 || chars[1][0] != "a" || chars[1][3] != "90" {
		t.Fatalf("unexpected character rows %v", chars)
	}

	badges, err := f.GetRows(SheetBadges)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(badges) != len(progress.Badges)+1 {
		t.Fatalf("expected %d badge rows, got %d", len(progress.Badges)+1, len(badges))
	}
	for _, row := range badges[1:] {
		earned := row[3] == "TRUE"
		if earned != (row[0] == progress.BadgeSteady) {
			t.Fatalf("unexpected badge row %v", row)
		}
	}
}

func TestWriteChapterRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testData(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rows, err := readBack(t, &buf).GetRows(SheetChapters)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("expected chapter rows, got %v", rows)
	}
	row := rows[1]
	if row[2] != string(model.StageComplete) || row[4] != "TRUE" || row[5] != "2026-03-01 12:30" {
		t.Fatalf("unexpected chapter row %v", row)
	}
}

func TestSaveAs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.xlsx")
	if err := SaveAs(path, testData(t)); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	if f.GetSheetName(f.GetActiveSheetIndex()) != SheetLessons {
		t.Fatalf("active sheet = %s", f.GetSheetName(f.GetActiveSheetIndex()))
	}
}
