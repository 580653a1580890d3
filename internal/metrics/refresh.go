package metrics

import (
	"context"
	"time"

	"github.com/joestump/joe-marks/internal/logger"
)

// Counter reports a row count. store.BookmarkStore and store.UserStore both
// satisfy it.
type Counter interface {
	CountAll(ctx context.Context) (int, error)
}

// RefreshTotals sets BookmarksTotal and UsersTotal from the database every
// interval until ctx is done. It refreshes once immediately.
func RefreshTotals(ctx context.Context, bookmarks, users Counter, interval time.Duration, log logger.Logger) {
	refresh := func() {
		if n, err := bookmarks.CountAll(ctx); err == nil {
			BookmarksTotal.Set(float64(n))
		} else if ctx.Err() == nil {
			log.Warn("counting bookmarks", logger.Error(err))
		}
		if n, err := users.CountAll(ctx); err == nil {
			UsersTotal.Set(float64(n))
		} else if ctx.Err() == nil {
			log.Warn("counting users", logger.Error(err))
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
