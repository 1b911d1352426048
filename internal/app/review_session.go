package app

import (
	"cmp"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"localdir/internal/adapters/observability"
	"localdir/internal/domain"
)

const reviewSessionLimit = 100

type ReviewSnapshot struct {
	ListingID int64           `json:"listing_id"`
	Items     []domain.Review `json:"items"`
	Live      bool            `json:"live"`
	Err       string          `json:"error,omitempty"`
	Notices   []Notice        `json:"notices,omitempty"`
}

// ReviewSession keeps the approved reviews of one listing in sync with the
// reviews change feed. Switching listings re-scopes the subscription.
type ReviewSession struct {
	repo    domain.ReviewRepository
	live    *LiveChannel
	changes chan struct{}

	mu        sync.Mutex
	mounted   bool
	gen       uint64
	listingID int64
	loading   bool
	pending   []domain.ChangeEvent
	items     []domain.Review
	isLive    bool
	err       error
	notices   []Notice
}

func NewReviewSession(repo domain.ReviewRepository, feed domain.ChangeFeed) *ReviewSession {
	return &ReviewSession{repo: repo, live: NewLiveChannel(feed), changes: make(chan struct{}, 1)}
}

func (s *ReviewSession) Changes() <-chan struct{} { return s.changes }

// Load shows the reviews of listingID. It subscribes before reading and
// replays the events that arrive during the read onto the page it commits,
// so no change between the two is lost.
func (s *ReviewSession) Load(ctx context.Context, listingID int64) error {
	s.mu.Lock()
	s.mounted = true
	s.gen++
	gen := s.gen
	scopeChanged := s.listingID != listingID
	s.listingID = listingID
	s.loading = true
	s.pending = nil
	if scopeChanged {
		s.items = nil
	}
	s.mu.Unlock()

	subErr := s.live.Subscribe(ctx, domain.Scope{Table: domain.TableReviews, ListingID: listingID}, s.apply)
	if subErr != nil {
		log.Warn().Err(subErr).Int64("listing_id", listingID).Msg("review live updates unavailable")
	}

	page, err := s.repo.ListReviews(ctx, listingID, domain.PageQuery{Limit: reviewSessionLimit, Sort: "-created_at", Status: domain.ReviewApproved})

	s.mu.Lock()
	defer s.signal()
	defer s.mu.Unlock()
	if gen != s.gen || !s.mounted {
		return nil
	}
	s.loading = false
	pending := s.pending
	s.pending = nil
	s.isLive = subErr == nil
	s.notices = nil
	if subErr != nil {
		s.notices = append(s.notices, Notice{Code: NoticeSubscriptionFailed, Message: "live updates are unavailable"})
	}
	if err != nil {
		s.err = fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
		s.notices = append(s.notices, Notice{Code: NoticeQueryFailed, Message: "could not load reviews; showing previous results"})
		return s.err
	}
	s.err = nil
	s.items = page.Items
	for _, ev := range pending {
		s.reconcileLocked(ev)
	}
	return nil
}

func (s *ReviewSession) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	s.isLive = false
	s.loading = false
	s.pending = nil
	s.mu.Unlock()
	s.live.Unsubscribe()
}

func (s *ReviewSession) apply(ev domain.ChangeEvent) {
	s.mu.Lock()
	if !s.mounted || ev.Table != domain.TableReviews {
		s.mu.Unlock()
		return
	}
	if s.loading {
		s.pending = append(s.pending, ev)
	}
	changed := s.reconcileLocked(ev)
	s.mu.Unlock()

	observability.ObserveLive(string(ev.Table), string(ev.Kind), "applied")
	if changed {
		s.signal()
	}
}

func (s *ReviewSession) reconcileLocked(ev domain.ChangeEvent) bool {
	listingID := s.listingID
	before := len(s.items)
	keep := func(r domain.Review) bool {
		return r.ListingID == listingID && r.Status == domain.ReviewApproved
	}
	s.items = Reconcile(s.items, ev.Kind, ev.ID, ev.Review, reviewID, keep, newestFirst)
	return len(s.items) != before || (ev.Review != nil && ev.Kind != domain.ChangeDelete && keep(*ev.Review))
}

func (s *ReviewSession) Snapshot() ReviewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := ReviewSnapshot{
		ListingID: s.listingID,
		Items:     append([]domain.Review{}, s.items...),
		Live:      s.isLive,
		Notices:   append([]Notice(nil), s.notices...),
	}
	if s.err != nil {
		snap.Err = s.err.Error()
	}
	return snap
}

func (s *ReviewSession) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func reviewID(r domain.Review) int64 { return r.ID }

func newestFirst(a, b domain.Review) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}
