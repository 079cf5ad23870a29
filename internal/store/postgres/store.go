package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/store"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS user_progress (
		user_id TEXT PRIMARY KEY,
		current_level INT NOT NULL,
		accuracy_threshold INT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS completed_levels (
		user_id TEXT NOT NULL,
		lesson_id INT NOT NULL,
		PRIMARY KEY (user_id, lesson_id)
	)`,
	`CREATE TABLE IF NOT EXISTS arena_levels (
		user_id TEXT NOT NULL,
		level_id INT NOT NULL,
		PRIMARY KEY (user_id, level_id)
	)`,
	`CREATE TABLE IF NOT EXISTS char_accuracy (
		user_id TEXT NOT NULL,
		char TEXT NOT NULL,
		total INT NOT NULL,
		correct INT NOT NULL,
		accuracy INT NOT NULL,
		PRIMARY KEY (user_id, char)
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_scores (
		user_id TEXT NOT NULL,
		lesson_id INT NOT NULL,
		accuracy INT NOT NULL,
		cpm INT NOT NULL,
		wpm INT NOT NULL,
		passed BOOLEAN NOT NULL,
		attempts INT NOT NULL,
		best_accuracy INT,
		best_cpm INT,
		best_wpm INT,
		PRIMARY KEY (user_id, lesson_id)
	)`,
	`CREATE TABLE IF NOT EXISTS badges (
		user_id TEXT NOT NULL,
		badge TEXT NOT NULL,
		PRIMARY KEY (user_id, badge)
	)`,
	`CREATE TABLE IF NOT EXISTS learn_progress (
		user_id TEXT PRIMARY KEY,
		last_accessed_chapter INT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS completed_chapters (
		user_id TEXT NOT NULL,
		chapter_id INT NOT NULL,
		PRIMARY KEY (user_id, chapter_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chapter_progress (
		user_id TEXT NOT NULL,
		chapter_id INT NOT NULL,
		current_stage TEXT NOT NULL,
		flashcards_reviewed BOOLEAN NOT NULL,
		flashcards_viewed TEXT[] NOT NULL DEFAULT '{}',
		letter_quiz_done BOOLEAN NOT NULL,
		word_quiz_done BOOLEAN NOT NULL,
		translation_quiz_done BOOLEAN NOT NULL,
		completed_at TIMESTAMPTZ,
		PRIMARY KEY (user_id, chapter_id)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		lesson_id INT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		accuracy INT NOT NULL,
		cpm INT NOT NULL,
		wpm INT NOT NULL,
		error_count INT NOT NULL,
		elapsed_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_char_stats (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		char TEXT NOT NULL,
		correct INT NOT NULL,
		incorrect INT NOT NULL,
		latency_sum_ms BIGINT NOT NULL,
		latency_count BIGINT NOT NULL,
		PRIMARY KEY (run_id, char)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_user_ended_at ON runs(user_id, ended_at)`,
}

// Store provides progress persistence on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
	tr   *Transactor
}

// NewStore wraps pool and applies migrations.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool, db: pool, tr: NewTransactor(pool)}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open connects to dsn and returns a migrated store.
func Open(ctx context.Context, dsn string, cfg PoolConfig) (*Store, error) {
	pool, err := NewPool(ctx, dsn, cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// LoadProgress returns the saved aggregate for userID or store.ErrNotFound.
func (s *Store) LoadProgress(ctx context.Context, userID string) (model.UserProgress, error) {
	p := model.NewUserProgress()
	var threshold *int
	err := s.db.QueryRow(ctx,
		`SELECT current_level, accuracy_threshold FROM user_progress WHERE user_id = $1`, userID,
	).Scan(&p.CurrentLevel, &threshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserProgress{}, store.ErrNotFound
		}
		return model.UserProgress{}, fmt.Errorf("get progress: %w", err)
	}
	p.Settings.CustomAccuracyThreshold = threshold

	if err := scanIDs(ctx, s.db, `SELECT lesson_id FROM completed_levels WHERE user_id = $1`, userID, p.CompletedLevels); err != nil {
		return model.UserProgress{}, fmt.Errorf("get completed levels: %w", err)
	}
	if err := scanIDs(ctx, s.db, `SELECT level_id FROM arena_levels WHERE user_id = $1`, userID, p.ArenaLevels); err != nil {
		return model.UserProgress{}, fmt.Errorf("get arena levels: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT char, total, correct, accuracy FROM char_accuracy WHERE user_id = $1`, userID)
	if err != nil {
		return model.UserProgress{}, fmt.Errorf("get char accuracy: %w", err)
	}
	for rows.Next() {
		var char string
		var total, correct, accuracy int
		if err := rows.Scan(&char, &total, &correct, &accuracy); err != nil {
			rows.Close()
			return model.UserProgress{}, fmt.Errorf("scan char accuracy: %w", err)
		}
		p.TotalAttempts[char] = total
		p.CorrectAttempts[char] = correct
		p.Accuracy[char] = accuracy
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.UserProgress{}, err
	}

	rows, err = s.db.Query(ctx,
		`SELECT lesson_id, accuracy, cpm, wpm, passed, attempts, best_accuracy, best_cpm, best_wpm
		 FROM lesson_scores WHERE user_id = $1`, userID)
	if err != nil {
		return model.UserProgress{}, fmt.Errorf("get lesson scores: %w", err)
	}
	for rows.Next() {
		var ls model.LessonScore
		var bestAcc, bestCPM, bestWPM *int
		if err := rows.Scan(&ls.LessonID, &ls.Accuracy, &ls.CPM, &ls.WPM, &ls.Passed, &ls.Attempts, &bestAcc, &bestCPM, &bestWPM); err != nil {
			rows.Close()
			return model.UserProgress{}, fmt.Errorf("scan lesson score: %w", err)
		}
		if bestAcc != nil && bestCPM != nil && bestWPM != nil {
			ls.Best = &model.Score{Accuracy: *bestAcc, CPM: *bestCPM, WPM: *bestWPM}
		}
		p.LessonScores[ls.LessonID] = ls
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.UserProgress{}, err
	}

	rows, err = s.db.Query(ctx, `SELECT badge FROM badges WHERE user_id = $1`, userID)
	if err != nil {
		return model.UserProgress{}, fmt.Errorf("get badges: %w", err)
	}
	badges, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return model.UserProgress{}, fmt.Errorf("scan badges: %w", err)
	}
	p.Badges = model.NewStringSet(badges...)
	return p, nil
}

func scanIDs(ctx context.Context, db DBTX, query, userID string, into model.IntSet) error {
	rows, err := db.Query(ctx, query, userID)
	if err != nil {
		return err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return err
	}
	for _, id := range ids {
		into[int(id)] = struct{}{}
	}
	return nil
}

// SaveProgress replaces the saved aggregate for userID.
func (s *Store) SaveProgress(ctx context.Context, userID string, p model.UserProgress) error {
	return s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_progress (user_id, current_level, accuracy_threshold, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				current_level = EXCLUDED.current_level,
				accuracy_threshold = EXCLUDED.accuracy_threshold,
				updated_at = EXCLUDED.updated_at`,
			userID, p.CurrentLevel, p.Settings.CustomAccuracyThreshold,
		); err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}

		batch := &pgx.Batch{}
		for _, table := range []string{"completed_levels", "arena_levels", "char_accuracy", "lesson_scores", "badges"} {
			batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table), userID)
		}
		for _, id := range p.CompletedLevels.Sorted() {
			batch.Queue(`INSERT INTO completed_levels (user_id, lesson_id) VALUES ($1, $2)`, userID, id)
		}
		for _, id := range p.ArenaLevels.Sorted() {
			batch.Queue(`INSERT INTO arena_levels (user_id, level_id) VALUES ($1, $2)`, userID, id)
		}
		for char, total := range p.TotalAttempts {
			batch.Queue(`INSERT INTO char_accuracy (user_id, char, total, correct, accuracy) VALUES ($1, $2, $3, $4, $5)`,
				userID, char, total, p.CorrectAttempts[char], p.Accuracy[char])
		}
		for _, ls := range p.LessonScores {
			var bestAcc, bestCPM, bestWPM *int
			if ls.Best != nil {
				bestAcc, bestCPM, bestWPM = &ls.Best.Accuracy, &ls.Best.CPM, &ls.Best.WPM
			}
			batch.Queue(`
				INSERT INTO lesson_scores (user_id, lesson_id, accuracy, cpm, wpm, passed, attempts, best_accuracy, best_cpm, best_wpm)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				userID, ls.LessonID, ls.Accuracy, ls.CPM, ls.WPM, ls.Passed, ls.Attempts, bestAcc, bestCPM, bestWPM)
		}
		for _, badge := range p.Badges.Sorted() {
			batch.Queue(`INSERT INTO badges (user_id, badge) VALUES ($1, $2)`, userID, badge)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save progress rows: %w", err)
		}
		return nil
	})
}

// LoadChapterProgress returns saved chapter progress for userID or store.ErrNotFound.
func (s *Store) LoadChapterProgress(ctx context.Context, userID string) (model.LearnProgress, error) {
	l := model.NewLearnProgress()
	err := s.db.QueryRow(ctx,
		`SELECT last_accessed_chapter FROM learn_progress WHERE user_id = $1`, userID,
	).Scan(&l.LastAccessedChapter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LearnProgress{}, store.ErrNotFound
		}
		return model.LearnProgress{}, fmt.Errorf("get learn progress: %w", err)
	}
	if err := scanIDs(ctx, s.db, `SELECT chapter_id FROM completed_chapters WHERE user_id = $1`, userID, l.CompletedChapters); err != nil {
		return model.LearnProgress{}, fmt.Errorf("get completed chapters: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT chapter_id, current_stage, flashcards_reviewed, flashcards_viewed,
		       letter_quiz_done, word_quiz_done, translation_quiz_done, completed_at
		FROM chapter_progress WHERE user_id = $1`, userID)
	if err != nil {
		return model.LearnProgress{}, fmt.Errorf("get chapter progress: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ex model.ExerciseProgress
		var stage string
		var viewed []string
		var completedAt *time.Time
		if err := rows.Scan(&ex.ChapterID, &stage, &ex.FlashcardsReviewed, &viewed,
			&ex.LetterQuizDone, &ex.WordQuizDone, &ex.TranslationQuizDone, &completedAt); err != nil {
			return model.LearnProgress{}, fmt.Errorf("scan chapter progress: %w", err)
		}
		ex.CurrentStage = model.Stage(stage)
		ex.FlashcardsViewed = model.NewStringSet(viewed...)
		if completedAt != nil {
			t := completedAt.UTC()
			ex.CompletedAt = &t
		}
		l.Exercises[ex.ChapterID] = ex
	}
	return l, rows.Err()
}

// SaveChapterProgress replaces saved chapter progress for userID.
func (s *Store) SaveChapterProgress(ctx context.Context, userID string, l model.LearnProgress) error {
	return s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO learn_progress (user_id, last_accessed_chapter, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				last_accessed_chapter = EXCLUDED.last_accessed_chapter,
				updated_at = EXCLUDED.updated_at`,
			userID, l.LastAccessedChapter,
		); err != nil {
			return fmt.Errorf("upsert learn progress: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM completed_chapters WHERE user_id = $1`, userID)
		batch.Queue(`DELETE FROM chapter_progress WHERE user_id = $1`, userID)
		for _, id := range l.CompletedChapters.Sorted() {
			batch.Queue(`INSERT INTO completed_chapters (user_id, chapter_id) VALUES ($1, $2)`, userID, id)
		}
		for _, ex := range l.Exercises {
			batch.Queue(`
				INSERT INTO chapter_progress (user_id, chapter_id, current_stage, flashcards_reviewed, flashcards_viewed,
					letter_quiz_done, word_quiz_done, translation_quiz_done, completed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				userID, ex.ChapterID, string(ex.CurrentStage), ex.FlashcardsReviewed, ex.FlashcardsViewed.Sorted(),
				ex.LetterQuizDone, ex.WordQuizDone, ex.TranslationQuizDone, ex.CompletedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save chapter rows: %w", err)
		}
		return nil
	})
}

// DeleteUser removes every aggregate and run stored for userID.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tables := []string{
			"runs", "user_progress", "completed_levels", "arena_levels", "char_accuracy",
			"lesson_scores", "badges", "learn_progress", "completed_chapters", "chapter_progress",
		}
		for _, table := range tables {
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table), userID); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		return nil
	})
}

// InsertRun stores a completed run and its per-character stats.
func (s *Store) InsertRun(ctx context.Context, run model.RunRecord) error {
	return s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO runs (id, user_id, kind, lesson_id, started_at, ended_at, accuracy, cpm, wpm, error_count, elapsed_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			run.ID, run.UserID, string(run.Kind), run.LessonID, run.StartedAt, run.EndedAt,
			run.Result.AccuracyPct, run.Result.CPM, run.Result.WPM, run.Result.ErrorCount, run.Result.ElapsedMs,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if len(run.Chars) == 0 {
			return nil
		}
		rows := make([][]any, len(run.Chars))
		for i, cs := range run.Chars {
			rows[i] = []any{run.ID, cs.Char, cs.Correct, cs.Incorrect, cs.LatencySumMs, cs.LatencyCount}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"run_char_stats"},
			[]string{"run_id", "char", "correct", "incorrect", "latency_sum_ms", "latency_count"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy run char stats: %w", err)
		}
		return nil
	})
}

// ListRuns returns run aggregates filtered by cfg, oldest first.
func (s *Store) ListRuns(ctx context.Context, cfg model.ReportConfig) ([]model.RunAggregate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, kind, lesson_id, ended_at, accuracy, cpm, wpm, error_count, elapsed_ms
		FROM runs
		WHERE user_id = $1
		  AND ($2::text = '' OR kind = $2::text)
		  AND ($3::int <= 0 OR lesson_id = $3::int)
		ORDER BY ended_at ASC`,
		cfg.UserID, string(cfg.Kind), cfg.LessonID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunAggregate
	for rows.Next() {
		var agg model.RunAggregate
		var kind string
		if err := rows.Scan(&agg.RunID, &kind, &agg.LessonID, &agg.EndedAt,
			&agg.Result.AccuracyPct, &agg.Result.CPM, &agg.Result.WPM, &agg.Result.ErrorCount, &agg.Result.ElapsedMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		agg.Kind = model.RunKind(kind)
		agg.EndedAt = agg.EndedAt.UTC()
		runs = append(runs, agg)
	}
	return runs, rows.Err()
}

// GetWeakChars aggregates character stats over the user's most recent runs.
func (s *Store) GetWeakChars(ctx context.Context, userID string, window int) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		WITH recent_runs AS (
			SELECT id FROM runs
			WHERE user_id = $1
			ORDER BY ended_at DESC
			LIMIT $2
		)
		SELECT cs.char, SUM(cs.correct)::BIGINT, SUM(cs.incorrect)::BIGINT,
			SUM(cs.latency_sum_ms)::BIGINT, SUM(cs.latency_count)::BIGINT
		FROM run_char_stats cs
		JOIN recent_runs r ON r.id = cs.run_id
		GROUP BY cs.char
		ORDER BY cs.char`, userID, window)
	if err != nil {
		return nil, fmt.Errorf("get weak chars: %w", err)
	}
	return collectCharAggregates(rows)
}

// ListCharAggregatesForRuns aggregates per-character stats across runs.
func (s *Store) ListCharAggregatesForRuns(ctx context.Context, runIDs []string) ([]model.CharAggregate, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT char, SUM(correct)::BIGINT, SUM(incorrect)::BIGINT,
			SUM(latency_sum_ms)::BIGINT, SUM(latency_count)::BIGINT
		FROM run_char_stats
		WHERE run_id = ANY($1::text[])
		GROUP BY char
		ORDER BY char`, runIDs)
	if err != nil {
		return nil, fmt.Errorf("list char aggregates: %w", err)
	}
	return collectCharAggregates(rows)
}

func collectCharAggregates(rows pgx.Rows) ([]model.CharAggregate, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CharAggregate, error) {
		var agg model.CharAggregate
		var correct, incorrect int64
		err := row.Scan(&agg.Char, &correct, &incorrect, &agg.LatencySumMs, &agg.LatencyCount)
		agg.Correct = int(correct)
		agg.Incorrect = int(incorrect)
		return agg, err
	})
}

var _ store.Backend = (*Store)(nil)
