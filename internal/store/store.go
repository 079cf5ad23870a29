// Package store handles progress persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/frametype/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a user has no saved aggregate.
var ErrNotFound = errors.New("not found")

// Store wraps SQLite access for progress and run data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; the debounced flush and run inserts share it.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_progress (
			user_id TEXT PRIMARY KEY,
			current_level INTEGER NOT NULL,
			accuracy_threshold INTEGER,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS completed_levels (
			user_id TEXT NOT NULL,
			lesson_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, lesson_id)
		);`,
		`CREATE TABLE IF NOT EXISTS arena_levels (
			user_id TEXT NOT NULL,
			level_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, level_id)
		);`,
		`CREATE TABLE IF NOT EXISTS char_accuracy (
			user_id TEXT NOT NULL,
			char TEXT NOT NULL,
			total INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			PRIMARY KEY (user_id, char)
		);`,
		`CREATE TABLE IF NOT EXISTS lesson_scores (
			user_id TEXT NOT NULL,
			lesson_id INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			cpm INTEGER NOT NULL,
			wpm INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			best_accuracy INTEGER,
			best_cpm INTEGER,
			best_wpm INTEGER,
			PRIMARY KEY (user_id, lesson_id)
		);`,
		`CREATE TABLE IF NOT EXISTS badges (
			user_id TEXT NOT NULL,
			badge TEXT NOT NULL,
			PRIMARY KEY (user_id, badge)
		);`,
		`CREATE TABLE IF NOT EXISTS learn_progress (
			user_id TEXT PRIMARY KEY,
			last_accessed_chapter INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS completed_chapters (
			user_id TEXT NOT NULL,
			chapter_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, chapter_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chapter_progress (
			user_id TEXT NOT NULL,
			chapter_id INTEGER NOT NULL,
			current_stage TEXT NOT NULL,
			flashcards_reviewed INTEGER NOT NULL,
			letter_quiz_done INTEGER NOT NULL,
			word_quiz_done INTEGER NOT NULL,
			translation_quiz_done INTEGER NOT NULL,
			completed_at TEXT,
			PRIMARY KEY (user_id, chapter_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chapter_flashcards (
			user_id TEXT NOT NULL,
			chapter_id INTEGER NOT NULL,
			card_id TEXT NOT NULL,
			PRIMARY KEY (user_id, chapter_id, card_id)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			lesson_id INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			accuracy INTEGER NOT NULL,
			cpm INTEGER NOT NULL,
			wpm INTEGER NOT NULL,
			error_count INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_char_stats (
			run_id TEXT NOT NULL,
			char TEXT NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			latency_sum_ms INTEGER NOT NULL,
			latency_count INTEGER NOT NULL,
			PRIMARY KEY (run_id, char)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_user_ended_at ON runs(user_id, ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_run_char_stats_char ON run_char_stats(char);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if rerr := tx.Rollback(); rerr != nil {
		// Best-effort rollback.
		_ = rerr
	}
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}

// LoadProgress returns the saved aggregate for userID or ErrNotFound.
func (s *Store) LoadProgress(ctx context.Context, userID string) (model.UserProgress, error) {
	p := model.NewUserProgress()
	var threshold sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT current_level, accuracy_threshold FROM user_progress WHERE user_id = ?`, userID,
	).Scan(&p.CurrentLevel, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProgress{}, ErrNotFound
	}
	if err != nil {
		return model.UserProgress{}, err
	}
	if threshold.Valid {
		v := int(threshold.Int64)
		p.Settings.CustomAccuracyThreshold = &v
	}

	if err := s.scanIDs(ctx, `SELECT lesson_id FROM completed_levels WHERE user_id = ?`, userID, p.CompletedLevels); err != nil {
		return model.UserProgress{}, err
	}
	if err := s.scanIDs(ctx, `SELECT level_id FROM arena_levels WHERE user_id = ?`, userID, p.ArenaLevels); err != nil {
		return model.UserProgress{}, err
	}
	if err := s.loadCharAccuracy(ctx, userID, &p); err != nil {
		return model.UserProgress{}, err
	}
	if err := s.loadLessonScores(ctx, userID, &p); err != nil {
		return model.UserProgress{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT badge FROM badges WHERE user_id = ?`, userID)
	if err != nil {
		return model.UserProgress{}, err
	}
	defer closeRows(rows)
	for rows.Next() {
		var badge string
		if err := rows.Scan(&badge); err != nil {
			return model.UserProgress{}, err
		}
		p.Badges[badge] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return model.UserProgress{}, err
	}
	return p, nil
}

func (s *Store) scanIDs(ctx context.Context, query, userID string, into model.IntSet) error {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return err
	}
	defer closeRows(rows)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return err
		}
		into[id] = struct{}{}
	}
	return rows.Err()
}

func (s *Store) loadCharAccuracy(ctx context.Context, userID string, p *model.UserProgress) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT char, total, correct, accuracy FROM char_accuracy WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	defer closeRows(rows)
	for rows.Next() {
		var char string
		var total, correct, accuracy int
		if err := rows.Scan(&char, &total, &correct, &accuracy); err != nil {
			return err
		}
		p.TotalAttempts[char] = total
		p.CorrectAttempts[char] = correct
		p.Accuracy[char] = accuracy
	}
	return rows.Err()
}

func (s *Store) loadLessonScores(ctx context.Context, userID string, p *model.UserProgress) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lesson_id, accuracy, cpm, wpm, passed, attempts, best_accuracy, best_cpm, best_wpm
		 FROM lesson_scores WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	defer closeRows(rows)
	for rows.Next() {
		var ls model.LessonScore
		var bestAcc, bestCPM, bestWPM sql.NullInt64
		if err := rows.Scan(&ls.LessonID, &ls.Accuracy, &ls.CPM, &ls.WPM, &ls.Passed, &ls.Attempts, &bestAcc, &bestCPM, &bestWPM); err != nil {
			return err
		}
		if bestAcc.Valid {
			ls.Best = &model.Score{Accuracy: int(bestAcc.Int64), CPM: int(bestCPM.Int64), WPM: int(bestWPM.Int64)}
		}
		p.LessonScores[ls.LessonID] = ls
	}
	return rows.Err()
}

// SaveProgress replaces the saved aggregate for userID.
func (s *Store) SaveProgress(ctx context.Context, userID string, p model.UserProgress) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	var threshold any
	if p.Settings.CustomAccuracyThreshold != nil {
		threshold = *p.Settings.CustomAccuracyThreshold
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_progress (user_id, current_level, accuracy_threshold, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			current_level = excluded.current_level,
			accuracy_threshold = excluded.accuracy_threshold,
			updated_at = excluded.updated_at`,
		userID, p.CurrentLevel, threshold, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	for _, table := range []string{"completed_levels", "arena_levels", "char_accuracy", "lesson_scores", "badges"} {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, table), userID); err != nil {
			return err
		}
	}
	for _, id := range p.CompletedLevels.Sorted() {
		if _, err = tx.ExecContext(ctx, `INSERT INTO completed_levels (user_id, lesson_id) VALUES (?, ?)`, userID, id); err != nil {
			return err
		}
	}
	for _, id := range p.ArenaLevels.Sorted() {
		if _, err = tx.ExecContext(ctx, `INSERT INTO arena_levels (user_id, level_id) VALUES (?, ?)`, userID, id); err != nil {
			return err
		}
	}
	for char, total := range p.TotalAttempts {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO char_accuracy (user_id, char, total, correct, accuracy) VALUES (?, ?, ?, ?, ?)`,
			userID, char, total, p.CorrectAttempts[char], p.Accuracy[char],
		); err != nil {
			return err
		}
	}
	for _, ls := range p.LessonScores {
		var bestAcc, bestCPM, bestWPM any
		if ls.Best != nil {
			bestAcc, bestCPM, bestWPM = ls.Best.Accuracy, ls.Best.CPM, ls.Best.WPM
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO lesson_scores (user_id, lesson_id, accuracy, cpm, wpm, passed, attempts, best_accuracy, best_cpm, best_wpm)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, ls.LessonID, ls.Accuracy, ls.CPM, ls.WPM, ls.Passed, ls.Attempts, bestAcc, bestCPM, bestWPM,
		); err != nil {
			return err
		}
	}
	for _, badge := range p.Badges.Sorted() {
		if _, err = tx.ExecContext(ctx, `INSERT INTO badges (user_id, badge) VALUES (?, ?)`, userID, badge); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadChapterProgress returns saved chapter progress for userID or ErrNotFound.
func (s *Store) LoadChapterProgress(ctx context.Context, userID string) (model.LearnProgress, error) {
	l := model.NewLearnProgress()
	err := s.db.QueryRowContext(ctx,
		`SELECT last_accessed_chapter FROM learn_progress WHERE user_id = ?`, userID,
	).Scan(&l.LastAccessedChapter)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LearnProgress{}, ErrNotFound
	}
	if err != nil {
		return model.LearnProgress{}, err
	}
	if err := s.scanIDs(ctx, `SELECT chapter_id FROM completed_chapters WHERE user_id = ?`, userID, l.CompletedChapters); err != nil {
		return model.LearnProgress{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chapter_id, current_stage, flashcards_reviewed, letter_quiz_done, word_quiz_done, translation_quiz_done, completed_at
		 FROM chapter_progress WHERE user_id = ?`, userID)
	if err != nil {
		return model.LearnProgress{}, err
	}
	defer closeRows(rows)
	for rows.Next() {
		var ex model.ExerciseProgress
		var stage string
		var completedAt sql.NullString
		if err := rows.Scan(&ex.ChapterID, &stage, &ex.FlashcardsReviewed, &ex.LetterQuizDone, &ex.WordQuizDone, &ex.TranslationQuizDone, &completedAt); err != nil {
			return model.LearnProgress{}, err
		}
		ex.CurrentStage = model.Stage(stage)
		ex.FlashcardsViewed = model.StringSet{}
		if completedAt.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, completedAt.String)
			if err != nil {
				return model.LearnProgress{}, err
			}
			ex.CompletedAt = &parsed
		}
		l.Exercises[ex.ChapterID] = ex
	}
	if err := rows.Err(); err != nil {
		return model.LearnProgress{}, err
	}

	cards, err := s.db.QueryContext(ctx,
		`SELECT chapter_id, card_id FROM chapter_flashcards WHERE user_id = ?`, userID)
	if err != nil {
		return model.LearnProgress{}, err
	}
	defer closeRows(cards)
	for cards.Next() {
		var chapterID int
		var cardID string
		if err := cards.Scan(&chapterID, &cardID); err != nil {
			return model.LearnProgress{}, err
		}
		ex, ok := l.Exercises[chapterID]
		if !ok {
			continue
		}
		ex.FlashcardsViewed[cardID] = struct{}{}
	}
	if err := cards.Err(); err != nil {
		return model.LearnProgress{}, err
	}
	return l, nil
}

// SaveChapterProgress replaces saved chapter progress for userID.
func (s *Store) SaveChapterProgress(ctx context.Context, userID string, l model.LearnProgress) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO learn_progress (user_id, last_accessed_chapter, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			last_accessed_chapter = excluded.last_accessed_chapter,
			updated_at = excluded.updated_at`,
		userID, l.LastAccessedChapter, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	for _, table := range []string{"completed_chapters", "chapter_progress", "chapter_flashcards"} {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, table), userID); err != nil {
			return err
		}
	}
	for _, id := range l.CompletedChapters.Sorted() {
		if _, err = tx.ExecContext(ctx, `INSERT INTO completed_chapters (user_id, chapter_id) VALUES (?, ?)`, userID, id); err != nil {
			return err
		}
	}
	for _, ex := range l.Exercises {
		var completedAt any
		if ex.CompletedAt != nil {
			completedAt = ex.CompletedAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chapter_progress (user_id, chapter_id, current_stage, flashcards_reviewed, letter_quiz_done, word_quiz_done, translation_quiz_done, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, ex.ChapterID, string(ex.CurrentStage), ex.FlashcardsReviewed, ex.LetterQuizDone, ex.WordQuizDone, ex.TranslationQuizDone, completedAt,
		); err != nil {
			return err
		}
		for _, card := range ex.FlashcardsViewed.Sorted() {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO chapter_flashcards (user_id, chapter_id, card_id) VALUES (?, ?, ?)`,
				userID, ex.ChapterID, card,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// DeleteUser removes every aggregate and run stored for userID.
func (s *Store) DeleteUser(ctx context.Context, userID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM run_char_stats WHERE run_id IN (SELECT id FROM runs WHERE user_id = ?)`, userID); err != nil {
		return err
	}
	tables := []string{
		"runs", "user_progress", "completed_levels", "arena_levels", "char_accuracy", "lesson_scores",
		"badges", "learn_progress", "completed_chapters", "chapter_progress", "chapter_flashcards",
	}
	for _, table := range tables {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, table), userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertRun stores a completed run and its per-character stats.
func (s *Store) InsertRun(ctx context.Context, run model.RunRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, user_id, kind, lesson_id, started_at, ended_at, accuracy, cpm, wpm, error_count, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.UserID,
		string(run.Kind),
		run.LessonID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.EndedAt.UTC().Format(time.RFC3339Nano),
		run.Result.AccuracyPct,
		run.Result.CPM,
		run.Result.WPM,
		run.Result.ErrorCount,
		run.Result.ElapsedMs,
	); err != nil {
		return err
	}

	if len(run.Chars) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO run_char_stats (run_id, char, correct, incorrect, latency_sum_ms, latency_count)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, cs := range run.Chars {
			if _, err = stmt.ExecContext(ctx, run.ID, cs.Char, cs.Correct, cs.Incorrect, cs.LatencySumMs, cs.LatencyCount); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetWeakChars aggregates character stats over the user's most recent runs.
func (s *Store) GetWeakChars(ctx context.Context, userID string, window int) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_runs AS (
		SELECT id FROM runs
		WHERE user_id = ?
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT cs.char, SUM(cs.correct) AS correct, SUM(cs.incorrect) AS incorrect,
		SUM(cs.latency_sum_ms) AS latency_sum_ms, SUM(cs.latency_count) AS latency_count
	FROM run_char_stats cs
	JOIN recent_runs r ON r.id = cs.run_id
	GROUP BY cs.char`

	rows, err := s.db.QueryContext(ctx, query, userID, window)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	return scanCharAggregates(rows)
}

// ListRuns returns run aggregates filtered by cfg, oldest first.
func (s *Store) ListRuns(ctx context.Context, cfg model.ReportConfig) ([]model.RunAggregate, error) {
	clauses := []string{"user_id = ?"}
	args := []any{cfg.UserID}
	if cfg.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(cfg.Kind))
	}
	if cfg.LessonID > 0 {
		clauses = append(clauses, "lesson_id = ?")
		args = append(args, cfg.LessonID)
	}
	query := fmt.Sprintf(`SELECT id, kind, lesson_id, ended_at, accuracy, cpm, wpm, error_count, elapsed_ms
		FROM runs
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var runs []model.RunAggregate
	for rows.Next() {
		var agg model.RunAggregate
		var kind, endedAt string
		if err := rows.Scan(&agg.RunID, &kind, &agg.LessonID, &endedAt,
			&agg.Result.AccuracyPct, &agg.Result.CPM, &agg.Result.WPM, &agg.Result.ErrorCount, &agg.Result.ElapsedMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.Kind = model.RunKind(kind)
		agg.EndedAt = parsed
		runs = append(runs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListCharAggregatesForRuns aggregates per-character stats across runs.
func (s *Store) ListCharAggregatesForRuns(ctx context.Context, runIDs []string) ([]model.CharAggregate, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(runIDs))
	args := make([]any, len(runIDs))
	for i, id := range runIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT char, SUM(correct) AS correct, SUM(incorrect) AS incorrect,
		SUM(latency_sum_ms) AS latency_sum_ms, SUM(latency_count) AS latency_count
		FROM run_char_stats
		WHERE run_id IN (%s)
		GROUP BY char`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	return scanCharAggregates(rows)
}

func scanCharAggregates(rows *sql.Rows) ([]model.CharAggregate, error) {
	var result []model.CharAggregate
	for rows.Next() {
		var agg model.CharAggregate
		if err := rows.Scan(&agg.Char, &agg.Correct, &agg.Incorrect, &agg.LatencySumMs, &agg.LatencyCount); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
