// Package memfeed is an in-process domain.ChangeFeed for single-instance
// deployments. Events never leave the process.
package memfeed

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"localdir/internal/domain"
)

const buffer = 64

type Feed struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func New() *Feed { return &Feed{subs: map[*subscription]struct{}{}} }

// Publish fans ev out to every matching subscriber. A subscriber whose
// buffer is full misses the event.
func (f *Feed) Publish(_ context.Context, ev domain.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		if !s.scope.Includes(ev) {
			continue
		}
		select {
		case s.out <- ev:
		default:
			log.Warn().Str("table", string(ev.Table)).Int64("id", ev.ID).Msg("slow subscriber, dropping change event")
		}
	}
	return nil
}

func (f *Feed) Subscribe(ctx context.Context, scope domain.Scope) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &subscription{feed: f, scope: scope, out: make(chan domain.ChangeEvent, buffer)}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s, nil
}

// Subscribers reports the number of open subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type subscription struct {
	feed  *Feed
	scope domain.Scope
	out   chan domain.ChangeEvent
	once  sync.Once
}

func (s *subscription) Events() <-chan domain.ChangeEvent { return s.out }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.out)
		s.feed.mu.Unlock()
	})
	return nil
}
