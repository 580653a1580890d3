package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/joestump/joe-marks/internal/logger"
)

type countFunc func(ctx context.Context) (int, error)

func (f countFunc) CountAll(ctx context.Context) (int, error) { return f(ctx) }

func TestRefreshTotals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	bookmarks := countFunc(func(context.Context) (int, error) { return 7, nil })
	users := countFunc(func(context.Context) (int, error) { return 0, errors.New("db down") })
	UsersTotal.Set(3)

	go func() {
		RefreshTotals(ctx, bookmarks, users, time.Hour, logger.NewNop())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(BookmarksTotal) != 7 {
		if time.Now().After(deadline) {
			t.Fatalf("BookmarksTotal = %v, want 7", testutil.ToFloat64(BookmarksTotal))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := testutil.ToFloat64(UsersTotal); got != 3 {
		t.Errorf("UsersTotal = %v, want unchanged 3 after a count error", got)
	}
}
