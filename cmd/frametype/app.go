package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/frametype/internal/config"
	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/logging"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/progress"
	"github.com/verte-zerg/frametype/internal/session"
	"github.com/verte-zerg/frametype/internal/store"
	"github.com/verte-zerg/frametype/internal/store/postgres"
)

const (
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
	backendMemory   = "memory"

	envDatabaseURL = "FRAMETYPE_DATABASE_URL"

	anonymousUser = "anonymous"
	localUser     = "local"

	closeTimeout = 5 * time.Second
)

// app holds everything a command needs once the store and aggregate are open.
type app struct {
	logger *zap.Logger
	cur    *curriculum.Curriculum
	store  store.Backend
	agg    *progress.Aggregator
	sess   *session.Session
}

// resolveConfig merges the config file under the command-line flags.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "user", &userID, fileCfg.User.ID)
	applyStringConfig(cmd, "backend", &storeBackend, fileCfg.Store.Backend)
	applyStringConfig(cmd, "db", &storePath, fileCfg.Store.Path)
	applyStringConfig(cmd, "dsn", &storeDSN, fileCfg.Store.DSN)
	applyIntConfig(cmd, "max-conns", &storeMaxConns, fileCfg.Store.MaxConns)
	applyDurationConfig(cmd, "flush-delay", &flushDelay, fileCfg.Store.FlushDelay)
	applyStringConfig(cmd, "log-env", &logEnv, fileCfg.Log.Env)
	applyStringConfig(cmd, "log-file", &logPath, fileCfg.Log.Path)
	if cmd.Flags().Lookup("focus-weak") != nil {
		applyBoolConfig(cmd, "focus-weak", &drillFocusWeak, fileCfg.Drill.FocusWeak)
		applyIntConfig(cmd, "weak-top", &drillWeakTop, fileCfg.Drill.WeakTop)
		applyFloatConfig(cmd, "weak-factor", &drillWeakFactor, fileCfg.Drill.WeakFactor)
	}

	cfg := model.Config{
		UserID:         strings.TrimSpace(userID),
		Backend:        strings.ToLower(strings.TrimSpace(storeBackend)),
		StorePath:      config.ExpandHome(storePath),
		DSN:            storeDSN,
		MaxConns:       storeMaxConns,
		FlushDelay:     flushDelay,
		LogEnv:         logEnv,
		LogPath:        config.ExpandHome(logPath),
		CurriculumPath: config.ExpandHome(curriculumPath),
		FocusWeak:      drillFocusWeak,
		WeakTop:        drillWeakTop,
		WeakFactor:     drillWeakFactor,
	}
	if fileCfg.Quiz.AccuracyThreshold != nil {
		cfg.AccuracyThreshold = *fileCfg.Quiz.AccuracyThreshold
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv(envDatabaseURL)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = config.DefaultLogPath()
	}

	// Anonymous progress is kept in memory unless a database file was asked for.
	if cfg.UserID == "" {
		if cfg.Backend == backendSQLite && cfg.StorePath != "" {
			cfg.UserID = localUser
		} else {
			cfg.UserID = anonymousUser
			cfg.Backend = backendMemory
		}
	}
	if cfg.StorePath == "" {
		cfg.StorePath = config.DefaultDBPath()
	}

	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg model.Config) error {
	switch cfg.Backend {
	case backendSQLite, backendMemory:
	case backendPostgres:
		if cfg.DSN == "" {
			return fmt.Errorf("--dsn or $%s is required for the postgres backend", envDatabaseURL)
		}
	default:
		return fmt.Errorf("--backend must be one of %s, %s, %s", backendSQLite, backendPostgres, backendMemory)
	}
	if cfg.MaxConns <= 0 {
		return fmt.Errorf("--max-conns must be > 0")
	}
	if cfg.FlushDelay < 0 {
		return fmt.Errorf("--flush-delay must be >= 0")
	}
	if cfg.AccuracyThreshold != 0 {
		if err := validateThreshold(cfg.AccuracyThreshold); err != nil {
			return fmt.Errorf("config quiz.accuracy-threshold: %w", err)
		}
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if cfg.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	return nil
}

func validateThreshold(v int) error {
	if v < lesson.DefaultAccuracyThreshold || v > lesson.MaxAccuracyThreshold {
		return fmt.Errorf("threshold must be between %d and %d", lesson.DefaultAccuracyThreshold, lesson.MaxAccuracyThreshold)
	}
	return nil
}

// openApp wires logger, curriculum, store, aggregate and session.
func openApp(ctx context.Context, cfg model.Config) (*app, error) {
	logger, err := logging.New(cfg.LogEnv, cfg.LogPath)
	if err != nil {
		return nil, err
	}

	cur, err := loadCurriculum(cfg.CurriculumPath)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	agg, err := progress.Open(ctx, st, cfg.UserID, cur.LessonIDs(), progress.Options{
		FlushDelay: cfg.FlushDelay,
		Logger:     logger.Named("progress"),
	})
	if err != nil {
		closeStore(st)
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	if cfg.AccuracyThreshold != 0 && agg.Threshold() != cfg.AccuracyThreshold {
		v := cfg.AccuracyThreshold
		if _, err := agg.UpdateSettings(model.Settings{CustomAccuracyThreshold: &v}); err != nil {
			logger.Warn("ignoring configured threshold", zap.Int("threshold", v), zap.Error(err))
		}
	}

	sess := session.New(agg, cur, session.Options{
		Logger:     logger.Named("session"),
		Recorder:   st,
		FocusWeak:  cfg.FocusWeak,
		WeakTop:    cfg.WeakTop,
		WeakFactor: cfg.WeakFactor,
	})

	logger.Info("session opened",
		zap.String("user", cfg.UserID),
		zap.String("backend", cfg.Backend),
		zap.Int("current_lesson", agg.Progress().CurrentLevel),
	)
	return &app{logger: logger, cur: cur, store: st, agg: agg, sess: sess}, nil
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := a.sess.Close(ctx); err != nil {
		a.logger.Error("failed to save progress", zap.Error(err))
		logErrf("failed to save progress: %v\n", err)
	}
	closeStore(a.store)
	_ = a.logger.Sync()
}

func loadCurriculum(path string) (*curriculum.Curriculum, error) {
	if path == "" {
		return curriculum.Default()
	}
	cur, err := curriculum.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load curriculum %s: %w", path, err)
	}
	return cur, nil
}

func openStore(ctx context.Context, cfg model.Config) (store.Backend, error) {
	switch cfg.Backend {
	case backendMemory:
		return store.NewMemory(), nil
	case backendPostgres:
		st, err := postgres.Open(ctx, cfg.DSN, postgres.PoolConfig{
			MaxConns:        int32(cfg.MaxConns),
			MaxConnLifetime: time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return st, nil
	default:
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		return st, nil
	}
}

func closeStore(st store.Backend) {
	if err := st.Close(); err != nil {
		logErrf("failed to close db: %v\n", err)
	}
}

func parseID(what, arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", what, arg)
	}
	return id, nil
}

func displayUser(id string) string {
	if id == anonymousUser {
		return id + " (not saved)"
	}
	return id
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}
