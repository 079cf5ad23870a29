package store

import (
	"context"

	"github.com/verte-zerg/frametype/internal/model"
)

// Backend is the contract shared by the SQLite, Postgres, and in-memory stores.
type Backend interface {
	LoadProgress(ctx context.Context, userID string) (model.UserProgress, error)
	SaveProgress(ctx context.Context, userID string, p model.UserProgress) error
	LoadChapterProgress(ctx context.Context, userID string) (model.LearnProgress, error)
	SaveChapterProgress(ctx context.Context, userID string, l model.LearnProgress) error
	DeleteUser(ctx context.Context, userID string) error

	InsertRun(ctx context.Context, run model.RunRecord) error
	ListRuns(ctx context.Context, cfg model.ReportConfig) ([]model.RunAggregate, error)
	GetWeakChars(ctx context.Context, userID string, window int) ([]model.CharAggregate, error)
	ListCharAggregatesForRuns(ctx context.Context, runIDs []string) ([]model.CharAggregate, error)

	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*Memory)(nil)
)
