package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/verte-zerg/frametype/internal/store"
	"github.com/verte-zerg/frametype/internal/store/storetest"
)

// Set FRAMETYPE_TEST_DATABASE_URL to a disposable database to run these tests.
const testDSNEnv = "FRAMETYPE_TEST_DATABASE_URL"

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	storetest.Run(t, func(t *testing.T) store.Backend {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := Open(ctx, dsn, PoolConfig{MaxConns: 4, MaxConnLifetime: time.Minute})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		_, err = s.db.Exec(ctx, `TRUNCATE user_progress, completed_levels, arena_levels, char_accuracy,
			lesson_scores, badges, learn_progress, completed_chapters, chapter_progress, runs, run_char_stats`)
		if err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func TestNewPoolRejectsBadDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), "postgres://%zz", PoolConfig{}); err == nil {
		t.Fatalf("expected parse error")
	}
}
