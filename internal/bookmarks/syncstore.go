package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/store"
)

// Options tunes a SyncStore.
type Options struct {
	// ReconnectAttempts bounds how many times a dropped subscription is
	// reopened. Zero disables reconnecting.
	ReconnectAttempts int
	// ReconnectBackoff is the first wait between attempts; it doubles each
	// time and is capped at MaxReconnectBackoff.
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
	Now                 func() time.Time
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		ReconnectAttempts:   5,
		ReconnectBackoff:    500 * time.Millisecond,
		MaxReconnectBackoff: 10 * time.Second,
		Now:                 time.Now,
	}
}

// SyncStore owns the in-memory bookmark list of the signed-in identity.
//
// Items are kept newest first. Events that arrive while a snapshot is being
// fetched are buffered and replayed on top of it. Each subscription is tagged
// with a generation; events from a released one are dropped.
type SyncStore struct {
	backend Backend
	log     logger.Logger
	opts    Options
	chanSeq atomic.Uint64

	// lifecycle serializes Initialize and Teardown.
	lifecycle sync.Mutex
	watchers  sync.WaitGroup

	mu       sync.Mutex
	identity *Identity
	gen      uint64
	items    []Bookmark
	filter   string
	fuzzy    bool
	pending  map[string]struct{}
	deleted  map[string]struct{}
	sub      Subscription
	loading  bool
	backlog  []ChangeEvent
	err      error
	cancel   context.CancelFunc

	changed chan struct{}
}

// NewSyncStore returns an empty store backed by backend.
func NewSyncStore(backend Backend, log logger.Logger, opts Options) *SyncStore {
	def := DefaultOptions()
	if opts.ReconnectBackoff <= 0 {
		opts.ReconnectBackoff = def.ReconnectBackoff
	}
	if opts.MaxReconnectBackoff <= 0 {
		opts.MaxReconnectBackoff = def.MaxReconnectBackoff
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SyncStore{
		backend: backend,
		log:     log,
		opts:    opts,
		pending: make(map[string]struct{}),
		deleted: make(map[string]struct{}),
		changed: make(chan struct{}, 1),
	}
}

// Initialize loads identity's bookmarks and opens its change subscription,
// replacing any previous identity's state. The subscription is opened before
// the snapshot is fetched so no change can fall between the two.
//
// A failed query leaves the list empty and is returned as a *RequestError; a
// failed subscribe is returned as a *SubscriptionError. Both are also
// available from Err. The store stays usable either way.
func (s *SyncStore) Initialize(ctx context.Context, identity *Identity) error {
	if identity == nil || identity.ID == "" {
		return ErrNoIdentity
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.teardown()

	ident := *identity
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.identity = &ident
	s.loading = true
	s.mu.Unlock()

	channel := s.channelName(ident.ID)
	sub, subErr := s.backend.Subscribe(ctx, SubscribeRequest{Channel: channel, OwnerID: ident.ID}, s.handler(gen))
	if subErr != nil {
		subErr = &SubscriptionError{Channel: channel, Err: subErr}
		s.log.Warn("change subscription failed",
			logger.String("channel", channel), logger.Error(subErr))
	}

	snapshot, queryErr := s.backend.Query(ctx, ident.ID)
	if queryErr != nil {
		queryErr = &RequestError{Op: "query", Err: queryErr}
		s.log.Error("initial bookmark fetch failed",
			logger.String("owner_id", ident.ID), logger.Error(queryErr))
	}

	s.mu.Lock()
	if queryErr == nil {
		s.items = s.normalize(snapshot)
		for _, ev := range s.backlog {
			s.applyLocked(ev)
		}
	} else {
		s.items = nil
	}
	s.backlog = nil
	s.loading = false
	s.err = errors.Join(queryErr, subErr)
	if sub != nil {
		wctx, cancel := context.WithCancel(context.Background())
		s.sub = sub
		s.cancel = cancel
		s.watchers.Add(1)
		go s.watch(wctx, gen, sub)
	}
	s.mu.Unlock()

	s.log.Debug("bookmarks initialized",
		logger.String("owner_id", ident.ID),
		logger.Int("count", len(snapshot)))
	s.notify()
	return errors.Join(queryErr, subErr)
}

// Teardown releases the subscription and clears all identity-scoped state.
// It returns once no subscription goroutine of this store is running.
func (s *SyncStore) Teardown() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.teardown()
	s.notify()
}

// teardown must be called with lifecycle held and mu not held: Release may
// wait for a reader that is itself waiting on mu.
func (s *SyncStore) teardown() {
	s.mu.Lock()
	s.gen++
	sub, cancel := s.sub, s.cancel
	s.sub, s.cancel = nil, nil
	s.identity = nil
	s.items = nil
	s.backlog = nil
	s.pending = make(map[string]struct{})
	s.deleted = make(map[string]struct{})
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		if err := sub.Release(); err != nil {
			s.log.Warn("releasing change subscription", logger.Error(err))
		}
	}
	s.watchers.Wait()
}

// OnCreateEvent applies a create notification. It is a no-op when the id is
// already listed or the bookmark belongs to someone else.
func (s *SyncStore) OnCreateEvent(b Bookmark) {
	s.deliver(ChangeEvent{Type: EventCreate, Record: b})
}

// OnDeleteEvent removes id if it is listed.
func (s *SyncStore) OnDeleteEvent(id string) {
	s.deliver(ChangeEvent{Type: EventDelete, Record: Bookmark{ID: id}})
}

func (s *SyncStore) deliver(ev ChangeEvent) {
	s.mu.Lock()
	changed := s.enqueueLocked(ev)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// handler returns the onEvent callback for subscriptions of generation gen.
func (s *SyncStore) handler(gen uint64) func(ChangeEvent) {
	return func(ev ChangeEvent) {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		changed := s.enqueueLocked(ev)
		s.mu.Unlock()
		if changed {
			s.notify()
		}
	}
}

func (s *SyncStore) enqueueLocked(ev ChangeEvent) bool {
	if s.loading {
		s.backlog = append(s.backlog, ev)
		return false
	}
	return s.applyLocked(ev)
}

// flushBacklogLocked ends a load that produced no snapshot, applying the
// buffered events to the current list.
func (s *SyncStore) flushBacklogLocked() bool {
	changed := false
	for _, ev := range s.backlog {
		if s.applyLocked(ev) {
			changed = true
		}
	}
	s.backlog = nil
	s.loading = false
	return changed
}

// applyLocked applies ev and reports whether items changed.
func (s *SyncStore) applyLocked(ev ChangeEvent) bool {
	switch ev.Type {
	case EventCreate:
		return s.insertLocked(ev.Record)
	case EventDelete:
		return s.removeLocked(ev.Record.ID)
	default:
		s.log.Warn("ignoring change event", logger.String("type", string(ev.Type)))
		return false
	}
}

func (s *SyncStore) insertLocked(b Bookmark) bool {
	if s.identity == nil || b.ID == "" {
		return false
	}
	if b.OwnerID != s.identity.ID {
		s.log.Warn("discarding foreign bookmark event",
			logger.String("id", b.ID), logger.String("owner_id", b.OwnerID))
		return false
	}
	if _, gone := s.deleted[b.ID]; gone {
		return false
	}
	if s.indexLocked(b.ID) >= 0 {
		return false
	}
	// Place b before the first item that is not newer, so equal timestamps
	// keep the latest arrival first.
	i := sort.Search(len(s.items), func(i int) bool {
		return !s.items[i].CreatedAt.After(b.CreatedAt)
	})
	s.items = slices.Insert(s.items, i, b)
	return true
}

// removeLocked also records a tombstone, so a create redelivered after the
// delete does not bring the bookmark back. Ids are never reused.
func (s *SyncStore) removeLocked(id string) bool {
	if id == "" {
		return false
	}
	s.deleted[id] = struct{}{}
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

func (s *SyncStore) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(b Bookmark) bool { return b.ID == id })
}

// normalize dedupes a snapshot, drops foreign and deleted rows and orders it
// newest first, keeping the backend's order among equal timestamps.
func (s *SyncStore) normalize(snapshot []Bookmark) []Bookmark {
	out := make([]Bookmark, 0, len(snapshot))
	seen := make(map[string]struct{}, len(snapshot))
	for _, b := range snapshot {
		if b.OwnerID != s.identity.ID {
			continue
		}
		if _, gone := s.deleted[b.ID]; gone {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b Bookmark) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Create validates and inserts a bookmark. The returned record is applied
// through the create-event path, so it is listed exactly once whether the
// response or the notification comes first.
func (s *SyncStore) Create(ctx context.Context, title, url string) (*Bookmark, error) {
	title, url = strings.TrimSpace(title), strings.TrimSpace(url)
	if err := store.ValidateTitle(title); err != nil {
		return nil, &ValidationError{Field: "title", Err: err}
	}
	if err := store.ValidateURL(url); err != nil {
		return nil, &ValidationError{Field: "url", Err: err}
	}

	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return nil, ErrNoIdentity
	}
	owner, gen := s.identity.ID, s.gen
	s.mu.Unlock()

	rec, err := s.backend.Insert(ctx, NewBookmark{OwnerID: owner, Title: title, URL: url})
	if err != nil {
		return nil, &RequestError{Op: "create", Err: err}
	}

	s.mu.Lock()
	changed := s.gen == gen && s.enqueueLocked(ChangeEvent{Type: EventCreate, Record: *rec})
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return rec, nil
}

// Delete removes a listed bookmark. The id is marked pending for the
// duration of the request; on failure the bookmark stays listed.
func (s *SyncStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return ErrNoIdentity
	}
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownBookmark, id)
	}
	if _, busy := s.pending[id]; busy {
		s.mu.Unlock()
		return ErrDeleteInFlight
	}
	s.pending[id] = struct{}{}
	gen := s.gen
	s.mu.Unlock()
	s.notify()

	err := s.backend.Delete(ctx, id)

	s.mu.Lock()
	if s.gen == gen {
		delete(s.pending, id)
		if err == nil {
			s.enqueueLocked(ChangeEvent{Type: EventDelete, Record: Bookmark{ID: id}})
		}
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return &RequestError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

// SetFilter sets the text View filters by.
func (s *SyncStore) SetFilter(text string) {
	s.mu.Lock()
	s.filter = text
	s.mu.Unlock()
	s.notify()
}

// SetFuzzy switches View between substring and fuzzy matching.
func (s *SyncStore) SetFuzzy(on bool) {
	s.mu.Lock()
	s.fuzzy = on
	s.mu.Unlock()
	s.notify()
}

// View returns the items matching the current filter.
func (s *SyncStore) View() []Bookmark {
	s.mu.Lock()
	items := slices.Clone(s.items)
	text, fuzzy := s.filter, s.fuzzy
	s.mu.Unlock()
	if fuzzy {
		return FuzzyFilter(items, text)
	}
	return Filter(items, text)
}

// Items returns a copy of the full list, newest first.
func (s *SyncStore) Items() []Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// IsPending reports whether a delete for id is in flight.
func (s *SyncStore) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// Identity returns the identity the store is initialized for, or nil.
func (s *SyncStore) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	ident := *s.identity
	return &ident
}

// Err returns the last initialization or subscription error, or nil.
func (s *SyncStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Changes is signalled after any state change. Signals coalesce: a reader
// that falls behind sees one pending signal, then re-reads the state.
func (s *SyncStore) Changes() <-chan struct{} { return s.changed }

func (s *SyncStore) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *SyncStore) channelName(ownerID string) string {
	return fmt.Sprintf("bookmarks-%s-%d-%d", ownerID, s.opts.Now().UnixNano(), s.chanSeq.Add(1))
}

// watch waits for sub to end. A release cancels ctx; anything else is a drop
// and triggers a reconnect with a full resync.
func (s *SyncStore) watch(ctx context.Context, gen uint64, sub Subscription) {
	defer s.watchers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
		}
		if ctx.Err() != nil {
			return
		}

		dropErr := sub.Err()
		if dropErr == nil {
			dropErr = errors.New("change stream closed")
		}
		serr := &SubscriptionError{Err: dropErr}
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.sub = nil
		s.err = serr
		s.mu.Unlock()
		s.notify()
		s.log.Warn("change subscription dropped", logger.Error(serr))

		if s.opts.ReconnectAttempts <= 0 {
			return
		}
		next, err := s.resync(ctx, gen)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error("giving up on change subscription",
					logger.Int("attempts", s.opts.ReconnectAttempts), logger.Error(err))
			}
			return
		}
		sub = next
	}
}

// resync reopens the subscription on a fresh channel and refetches the
// snapshot, retrying with exponential backoff.
func (s *SyncStore) resync(ctx context.Context, gen uint64) (Subscription, error) {
	b := retry.NewExponential(s.opts.ReconnectBackoff)
	b = retry.WithCappedDuration(s.opts.MaxReconnectBackoff, b)
	b = retry.WithMaxRetries(uint64(s.opts.ReconnectAttempts-1), b)

	var result Subscription
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		s.mu.Lock()
		if s.gen != gen || s.identity == nil {
			s.mu.Unlock()
			return context.Canceled
		}
		owner := s.identity.ID
		s.mu.Unlock()

		// Until a stream is open, acknowledged mutations apply straight to
		// the last known list.
		channel := s.channelName(owner)
		sub, err := s.backend.Subscribe(ctx, SubscribeRequest{Channel: channel, OwnerID: owner}, s.handler(gen))
		if err != nil {
			s.log.Warn("resubscribe failed",
				logger.String("channel", channel), logger.Int("attempt", attempt), logger.Error(err))
			return retry.RetryableError(&SubscriptionError{Channel: channel, Err: err})
		}

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			_ = sub.Release()
			return context.Canceled
		}
		s.loading = true
		s.backlog = nil
		s.mu.Unlock()

		snapshot, err := s.backend.Query(ctx, owner)
		if err != nil {
			_ = sub.Release()
			s.mu.Lock()
			changed := s.gen == gen && s.flushBacklogLocked()
			s.mu.Unlock()
			if changed {
				s.notify()
			}
			s.log.Warn("resync query failed", logger.Int("attempt", attempt), logger.Error(err))
			return retry.RetryableError(&RequestError{Op: "query", Err: err})
		}

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			_ = sub.Release()
			return context.Canceled
		}
		s.items = s.normalize(snapshot)
		for _, ev := range s.backlog {
			s.applyLocked(ev)
		}
		s.backlog = nil
		s.loading = false
		s.sub = sub
		s.err = nil
		s.mu.Unlock()
		s.notify()

		s.log.Info("change subscription restored",
			logger.String("channel", channel), logger.Int("attempt", attempt))
		result = sub
		return nil
	})
	if err != nil {
		// Keep the last known list and apply whatever was buffered.
		s.mu.Lock()
		if s.gen == gen {
			s.flushBacklogLocked()
			var serr *SubscriptionError
			if !errors.As(err, &serr) {
				serr = &SubscriptionError{Err: err}
			}
			s.err = serr
		}
		s.mu.Unlock()
		s.notify()
		return nil, err
	}
	return result, nil
}
