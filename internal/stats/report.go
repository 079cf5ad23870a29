package stats

import (
	"context"

	"github.com/verte-zerg/frametype/internal/model"
)

// RunSource lists stored runs. store.Backend implements it.
type RunSource interface {
	ListRuns(ctx context.Context, cfg model.ReportConfig) ([]model.RunAggregate, error)
	ListCharAggregatesForRuns(ctx context.Context, runIDs []string) ([]model.CharAggregate, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Runs           []model.RunAggregate
	WindowRunIDs   []string
	CharAggsAll    []model.CharAggregate
	CharAggsWindow []model.CharAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src RunSource, cfg model.ReportConfig) (Report, error) {
	runs, err := src.ListRuns(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(runs) > cfg.Last {
		runs = runs[len(runs)-cfg.Last:]
	}

	allIDs := runIDs(runs)
	windowIDs := lastRunIDs(runs, cfg.Window)
	charAggsAll, err := src.ListCharAggregatesForRuns(ctx, allIDs)
	if err != nil {
		return Report{}, err
	}
	charAggsWindow, err := src.ListCharAggregatesForRuns(ctx, windowIDs)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Runs:           runs,
		WindowRunIDs:   windowIDs,
		CharAggsAll:    charAggsAll,
		CharAggsWindow: charAggsWindow,
	}, nil
}

func runIDs(runs []model.RunAggregate) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	return ids
}

func lastRunIDs(runs []model.RunAggregate, window int) []string {
	if window <= 0 || len(runs) <= window {
		return runIDs(runs)
	}
	return runIDs(runs[len(runs)-window:])
}
