// Package main provides the CLI entrypoint for frametype.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/frametype/internal/config"
	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/export"
	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/stats"
	"github.com/verte-zerg/frametype/internal/tui"
)

const (
	defaultBackend     = backendSQLite
	defaultFlushDelay  = time.Second
	defaultMaxConns    = 4
	defaultLogEnv      = "development"
	defaultWeakTop     = 5
	defaultWeakFactor  = 1.0
	defaultTrendWindow = 5
	defaultReportLast  = 0
	defaultCharLimit   = 20
	defaultExportPath  = "frametype-progress.xlsx"
)

var (
	userID         string
	storeBackend   string
	storePath      string
	storeDSN       string
	storeMaxConns  int
	flushDelay     time.Duration
	logEnv         string
	logPath        string
	curriculumPath string

	lessonQuiz bool

	drillArena      bool
	drillFocusWeak  bool
	drillWeakTop    int
	drillWeakFactor float64

	progressTUI       bool
	progressLast      int
	progressWindow    int
	progressCharLimit int

	settingsThreshold int

	resetAll bool
	resetYes bool

	exportPath string
)

var errNoChapters = errors.New("curriculum has no chapters")

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "frametype [lesson]",
		Short:         "Frame alphabet typing tutor",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runLessonCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&userID, "user", "", "user id progress is stored under (empty: anonymous)")
	flags.StringVar(&storeBackend, "backend", defaultBackend, "progress store: sqlite, postgres or memory")
	flags.StringVar(&storePath, "db", "", "sqlite database path")
	flags.StringVar(&storeDSN, "dsn", "", "postgres connection string (default $"+envDatabaseURL+")")
	flags.IntVar(&storeMaxConns, "max-conns", defaultMaxConns, "postgres pool size")
	flags.DurationVar(&flushDelay, "flush-delay", defaultFlushDelay, "quiet period before progress is saved")
	flags.StringVar(&logEnv, "log-env", defaultLogEnv, "log format: development or production")
	flags.StringVar(&logPath, "log-file", "", "log file path")
	flags.StringVar(&curriculumPath, "curriculum", "", "curriculum TOML file (default: built in)")

	rootCmd.Flags().BoolVar(&lessonQuiz, "quiz", false, "start directly in quiz mode")

	rootCmd.AddCommand(newLearnCmd())
	rootCmd.AddCommand(newDrillCmd())
	rootCmd.AddCommand(newProgressCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runLessonCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	lessonID := app.agg.Progress().CurrentLevel
	if len(args) == 1 {
		if lessonID, err = parseID("lesson", args[0]); err != nil {
			return err
		}
	}
	if _, err := app.cur.Lesson(lessonID); err != nil {
		ids := app.cur.LessonIDs()
		if len(args) == 1 || len(ids) == 0 {
			return err
		}
		lessonID = ids[len(ids)-1]
	}
	m, err := tui.NewLessonModel(ctx, app.sess, lessonID, lessonQuiz)
	if err != nil {
		return err
	}
	return runProgram(m)
}

func newLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn [chapter]",
		Short: "Study a chapter with flashcards and quizzes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLearnCmd,
	}
}

func runLearnCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	chapterID := app.agg.Learn().LastAccessedChapter
	if len(args) == 1 {
		if chapterID, err = parseID("chapter", args[0]); err != nil {
			return err
		}
	}
	if chapterID == 0 {
		chapterID = firstChapterWithExercises(app.cur)
	}
	if chapterID == 0 {
		return errNoChapters
	}
	m, err := tui.NewChapterModel(app.sess, chapterID)
	if err != nil {
		return err
	}
	return runProgram(m)
}

func firstChapterWithExercises(cur *curriculum.Curriculum) int {
	for _, ch := range cur.Chapters {
		if ch.HasExercises() {
			return ch.ID
		}
	}
	if len(cur.Chapters) > 0 {
		return cur.Chapters[0].ID
	}
	return 0
}

func newDrillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drill [level]",
		Short: "Drill single characters, or type level texts in the arena",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDrillCmd,
	}
	cmd.Flags().BoolVar(&drillArena, "arena", false, "type a practice text instead of single characters")
	cmd.Flags().BoolVar(&drillFocusWeak, "focus-weak", false, "bias drills toward weak characters")
	cmd.Flags().IntVar(&drillWeakTop, "weak-top", defaultWeakTop, "number of weak characters to focus on")
	cmd.Flags().Float64Var(&drillWeakFactor, "weak-factor", defaultWeakFactor, "weight factor for weak characters")
	return cmd
}

func runDrillCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	level := app.agg.Progress().CurrentLevel
	if len(args) == 1 {
		if level, err = parseID("level", args[0]); err != nil {
			return err
		}
	}
	if _, err := app.cur.Level(level); err != nil {
		if len(args) == 1 || len(app.cur.Levels) == 0 {
			return err
		}
		level = app.cur.Levels[len(app.cur.Levels)-1].ID
	}
	m, err := tui.NewDrillModel(ctx, app.sess, level, drillArena)
	if err != nil {
		return err
	}
	return runProgram(m)
}

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show lessons, chapters, badges and run history",
		Args:  cobra.NoArgs,
		RunE:  runProgressCmd,
	}
	cmd.Flags().BoolVar(&progressTUI, "tui", false, "browse progress interactively")
	cmd.Flags().IntVar(&progressLast, "last", defaultReportLast, "limit run history to the last N runs")
	cmd.Flags().IntVar(&progressWindow, "window", defaultTrendWindow, "moving average window for trends")
	cmd.Flags().IntVar(&progressCharLimit, "chars", defaultCharLimit, "number of characters in the character table")
	return cmd
}

func runProgressCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	p := app.agg.Progress()
	learn := app.agg.Learn()
	if progressTUI {
		return runProgram(tui.NewProgressModel(app.cur, p, learn))
	}

	out := cmd.OutOrStdout()
	if err := stats.RenderLessons(out, app.cur.Lessons, p); err != nil {
		return err
	}
	if err := stats.RenderChapters(out, app.cur.Chapters, learn); err != nil {
		return err
	}
	if err := stats.RenderBadges(out, p); err != nil {
		return err
	}
	if err := stats.RenderCharTable(out, "Drill Accuracy", stats.AggregatesFromProgress(p), progressCharLimit); err != nil {
		return err
	}

	report, err := stats.BuildReport(ctx, app.store, model.ReportConfig{
		UserID: app.agg.UserID(),
		Last:   progressLast,
		Window: progressWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}
	if err := stats.RenderSummary(out, report.Runs); err != nil {
		return err
	}
	if err := stats.RenderTrends(out, report.Runs, progressWindow, 0); err != nil {
		return err
	}
	weak, err := app.store.GetWeakChars(ctx, app.agg.UserID(), progressWindow)
	if err != nil {
		return fmt.Errorf("failed to load weak chars: %w", err)
	}
	if chars := stats.WeakestChars(weak, defaultWeakTop); len(chars) > 0 {
		if _, err := fmt.Fprintf(out, "\nWeak in recent runs: %s\n", strings.Join(chars, " ")); err != nil {
			return err
		}
	}
	if len(report.CharAggsWindow) > 0 {
		title := fmt.Sprintf("Typing Accuracy (last %d runs)", len(report.WindowRunIDs))
		return stats.RenderCharTable(out, title, report.CharAggsWindow, progressCharLimit)
	}
	return nil
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change quiz settings",
		Args:  cobra.NoArgs,
		RunE:  runSettingsCmd,
	}
	cmd.Flags().IntVar(&settingsThreshold, "threshold", 0, fmt.Sprintf("quiz accuracy gate (%d-%d)", lesson.DefaultAccuracyThreshold, lesson.MaxAccuracyThreshold))
	return cmd
}

func runSettingsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("threshold") {
		if err := validateThreshold(settingsThreshold); err != nil {
			return err
		}
	}
	ctx := context.Background()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	if cmd.Flags().Changed("threshold") {
		if err := app.sess.SetThreshold(settingsThreshold); err != nil {
			return fmt.Errorf("failed to update threshold: %w", err)
		}
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "user: %s\naccuracy threshold: %d%%\nminimum speed: %d CPM\n",
		displayUser(app.agg.UserID()), app.agg.Threshold(), lesson.MinCPMThreshold)
	return err
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset progress to defaults",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
	cmd.Flags().BoolVar(&resetAll, "all", false, "also delete run history")
	cmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
	return cmd
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	if !resetYes {
		return errors.New("refusing to reset without --yes")
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	if resetAll {
		if err := app.store.DeleteUser(ctx, app.agg.UserID()); err != nil {
			return fmt.Errorf("failed to delete history: %w", err)
		}
	}
	app.agg.Reset()
	if err := app.agg.Flush(ctx); err != nil {
		return fmt.Errorf("failed to save reset progress: %w", err)
	}
	logErrln("Progress for", displayUser(app.agg.UserID()), "reset.")
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export progress to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVarP(&exportPath, "out", "o", defaultExportPath, "output .xlsx path")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	path := config.ExpandHome(exportPath)
	if err := export.SaveAs(path, export.Data{
		UserID:     app.agg.UserID(),
		Curriculum: app.cur,
		Progress:   app.agg.Progress(),
		Learn:      app.agg.Learn(),
	}); err != nil {
		return err
	}
	logErrf("Wrote %s\n", path)
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func runProgram(m tea.Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
