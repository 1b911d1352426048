package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"localdir/internal/adapters/observability"
	"localdir/internal/domain"
)

var ErrSessionClosed = errors.New("session is not mounted")

const DefaultDebounce = 300 * time.Millisecond

// Snapshot is the renderable state of a session: the last good result list
// plus indicators. Err is set while the most recent search failed.
type Snapshot struct {
	Filter     domain.SearchFilter `json:"filter"`
	Origin     *domain.Coords      `json:"origin,omitempty"`
	Items      []Result            `json:"items"`
	Notices    []Notice            `json:"notices,omitempty"`
	Loading    bool                `json:"loading"`
	Live       bool                `json:"live"`
	Err        string              `json:"error,omitempty"`
	Generation uint64              `json:"generation"`
}

type SessionOption func(*Session)

func WithDebounce(d time.Duration) SessionOption { return func(s *Session) { s.debounce = d } }

func WithClock(now func() time.Time) SessionOption { return func(s *Session) { s.now = now } }

// Session is one search view: it owns a result list, keeps it in sync with
// the listings change feed while mounted, and guarantees that only the most
// recently issued search is ever shown.
type Session struct {
	search   *SearchService
	live     *LiveChannel
	debounce time.Duration
	now      func() time.Time
	changes  chan struct{}

	// lifeMu serializes Mount and Unmount; mu is never held across LiveChannel calls.
	lifeMu sync.Mutex

	mu       sync.Mutex
	mounted  bool
	ctx      context.Context
	cancel   context.CancelFunc
	gen      uint64
	inflight context.CancelFunc
	lastKey  string
	issuedAt time.Time
	searched bool
	// pending holds events seen while a search is in flight; they are replayed
	// onto its results before they are committed.
	pending []domain.ChangeEvent

	filter  domain.SearchFilter
	origin  *domain.Coords
	items   []Result
	notices []Notice
	loading bool
	isLive  bool
	err     error
}

func NewSession(search *SearchService, feed domain.ChangeFeed, opts ...SessionOption) *Session {
	s := &Session{
		search:   search,
		live:     NewLiveChannel(feed),
		debounce: DefaultDebounce,
		now:      time.Now,
		changes:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Changes signals (coalesced) that Snapshot has moved on.
func (s *Session) Changes() <-chan struct{} { return s.changes }

// Mount activates the session and subscribes to listing changes. A failed
// subscription is not fatal: results stay static and a notice is recorded.
func (s *Session) Mount(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mounted = true
	s.mu.Unlock()
	observability.LiveSessions.Inc()

	err := s.live.Subscribe(ctx, domain.Scope{Table: domain.TableListings}, s.apply)

	s.mu.Lock()
	s.isLive = err == nil
	if err != nil {
		log.Warn().Err(err).Msg("live updates unavailable, results will be static")
		s.notices = append(s.notices, Notice{Code: NoticeSubscriptionFailed, Message: "live updates are unavailable"})
	}
	s.mu.Unlock()
	s.signal()
	return nil
}

// Unmount cancels any in-flight search and tears down the live channel.
// Later results and events are dropped.
func (s *Session) Unmount() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	s.isLive = false
	s.pending = nil
	s.cancel()
	s.mu.Unlock()

	s.live.Unsubscribe()
	observability.LiveSessions.Dec()
}

// Search issues a new search. Re-issuing the filter that is already in flight,
// or was issued within the debounce window, does nothing. A search that is
// overtaken by a newer one is discarded when it returns.
func (s *Session) Search(ctx context.Context, f domain.SearchFilter, pre ...Notice) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	key := f.Key()
	if key == s.lastKey && (s.loading || s.now().Sub(s.issuedAt) < s.debounce) {
		s.mu.Unlock()
		return nil
	}
	if s.inflight != nil {
		s.inflight()
	}
	s.gen++
	gen := s.gen
	reqCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	s.inflight = cancel
	s.lastKey, s.issuedAt = key, s.now()
	s.loading = true
	s.pending = nil
	s.mu.Unlock()
	s.signal()

	out, err := s.search.Search(reqCtx, f)
	stop()
	cancel()

	s.mu.Lock()
	if gen != s.gen || !s.mounted {
		s.mu.Unlock()
		log.Debug().Uint64("generation", gen).Msg("discarding stale search response")
		return nil
	}
	s.inflight = nil
	s.loading = false
	pending := s.pending
	s.pending = nil
	if err != nil {
		s.err = err
		s.notices = append(append([]Notice(nil), pre...), Notice{Code: NoticeQueryFailed, Message: "search failed; showing previous results"})
		if !s.isLive {
			s.notices = append(s.notices, Notice{Code: NoticeSubscriptionFailed, Message: "live updates are unavailable"})
		}
		// let the same filter be retried immediately
		s.lastKey = ""
		s.mu.Unlock()
		s.signal()
		return err
	}
	s.searched = true
	s.err = nil
	s.filter = out.Filter
	s.origin = out.Origin
	s.items = out.Results
	for _, ev := range pending {
		s.reconcileLocked(ev)
	}
	s.notices = append(append([]Notice(nil), pre...), out.Notices...)
	if !s.isLive {
		s.notices = append(s.notices, Notice{Code: NoticeSubscriptionFailed, Message: "live updates are unavailable"})
	}
	s.mu.Unlock()
	s.signal()
	return nil
}

// apply reconciles one change event into the committed result list and
// queues it for the search in flight, if any.
func (s *Session) apply(ev domain.ChangeEvent) {
	s.mu.Lock()
	if !s.mounted || ev.Table != domain.TableListings {
		s.mu.Unlock()
		return
	}
	if s.loading {
		s.pending = append(s.pending, ev)
	}
	action := "ignored"
	if s.searched {
		action = s.reconcileLocked(ev)
	}
	s.mu.Unlock()

	observability.ObserveLive(string(ev.Table), string(ev.Kind), action)
	if action != "ignored" {
		s.signal()
	}
}

// reconcileLocked applies ev to s.items under the current filter and keeps
// the list within the filter's limit. It reports what happened to the list.
func (s *Session) reconcileLocked(ev domain.ChangeEvent) string {
	compare := resultCompare(EffectiveSort(s.filter.Sort, s.origin != nil))
	if ev.Kind == domain.ChangeDelete {
		before := len(s.items)
		s.items = Reconcile(s.items, ev.Kind, ev.ID, nil, resultID, nil, compare)
		if len(s.items) < before {
			return "removed"
		}
		return "ignored"
	}
	if ev.Listing == nil {
		return "ignored"
	}
	r, placed := placeResult(*ev.Listing, s.origin, ClampRadius(s.filter.RadiusMiles))
	if !placed {
		r = Result{Listing: *ev.Listing}
	}
	filter := s.filter
	keep := func(x Result) bool { return placed && filter.Matches(x.Listing) }
	was := containsID(s.items, ev.Listing.ID)
	s.items = Reconcile(s.items, ev.Kind, ev.Listing.ID, &r, resultID, keep, compare)
	if lim := filter.Limit; lim > 0 && len(s.items) > lim {
		s.items = s.items[:lim]
	}
	switch now := containsID(s.items, ev.Listing.ID); {
	case now && !was:
		return "inserted"
	case was && !now:
		return "removed"
	case now:
		return "replaced"
	}
	return "ignored"
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Filter:     s.filter,
		Origin:     s.origin,
		Items:      append([]Result(nil), s.items...),
		Notices:    append([]Notice(nil), s.notices...),
		Loading:    s.loading,
		Live:       s.isLive,
		Generation: s.gen,
	}
	if s.err != nil {
		snap.Err = s.err.Error()
	}
	if snap.Items == nil {
		snap.Items = []Result{}
	}
	return snap
}

func (s *Session) LiveState() ChannelState { return s.live.State() }

func (s *Session) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func containsID(items []Result, id int64) bool {
	for _, it := range items {
		if it.Listing.ID == id {
			return true
		}
	}
	return false
}
