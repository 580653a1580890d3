package bookmarks

import (
	"context"
	"errors"
	"sync"

	"github.com/joestump/joe-marks/internal/logger"
)

// Bind keeps s initialized for provider's current identity: sign-in
// initializes it, sign-out tears it down. The returned stop func unregisters
// from provider and tears s down.
//
// Signing in again as the current identity is a no-op unless its snapshot
// fetch failed, in which case the store is initialized again.
//
// Identity changes are reconciled one at a time against the provider's
// current identity, so a late callback never resurrects a stale session.
func Bind(ctx context.Context, provider IdentityProvider, s *SyncStore, log logger.Logger) (stop func()) {
	if log == nil {
		log = logger.NewNop()
	}
	var mu sync.Mutex
	reconcile := func() {
		mu.Lock()
		defer mu.Unlock()
		want := provider.CurrentIdentity()
		have := s.Identity()
		switch {
		case want == nil && have == nil:
		case want == nil:
			log.Debug("identity cleared, tearing down", logger.String("owner_id", have.ID))
			s.Teardown()
		case have != nil && have.ID == want.ID && !loadFailed(s.Err()):
		default:
			if err := s.Initialize(ctx, want); err != nil {
				log.Warn("initializing bookmarks", logger.String("owner_id", want.ID), logger.Error(err))
			}
		}
	}

	unsubscribe := provider.OnIdentityChange(func(*Identity) { reconcile() })
	reconcile()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			defer mu.Unlock()
			s.Teardown()
		})
	}
}

func loadFailed(err error) bool {
	var rerr *RequestError
	return errors.As(err, &rerr)
}
