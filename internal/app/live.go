package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"localdir/internal/domain"
)

type ChannelState string

const (
	Subscribed   ChannelState = "subscribed"
	Unsubscribed ChannelState = "unsubscribed"
)

// LiveChannel owns at most one change-feed subscription. Subscribing with a
// new scope tears the previous one down first, so events of an old scope are
// never delivered after the switch.
//
// Handlers run on the channel's delivery goroutine. Callers must not hold a
// lock the handler needs while calling Subscribe or Unsubscribe.
type LiveChannel struct {
	feed domain.ChangeFeed

	mu     sync.Mutex
	scope  domain.Scope
	sub    domain.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLiveChannel(feed domain.ChangeFeed) *LiveChannel {
	return &LiveChannel{feed: feed}
}

func (c *LiveChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return Unsubscribed
	}
	return Subscribed
}

func (c *LiveChannel) Scope() domain.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Subscribe starts delivering events of scope to handle. Re-subscribing to the
// current scope is a no-op.
func (c *LiveChannel) Subscribe(ctx context.Context, scope domain.Scope, handle func(domain.ChangeEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil && c.scope == scope {
		return nil
	}
	c.teardownLocked()

	if c.feed == nil {
		return fmt.Errorf("%w: no change feed configured", domain.ErrSubscriptionFailed)
	}
	sub, err := c.feed.Subscribe(ctx, scope)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.scope, c.sub, c.cancel, c.done = scope, sub, cancel, done

	go deliver(runCtx, sub, scope, handle, done)
	log.Debug().Str("table", string(scope.Table)).Int64("listing_id", scope.ListingID).Msg("live channel subscribed")
	return nil
}

// Unsubscribe tears the subscription down. After it returns the handler is
// not called again. Safe to call repeatedly.
func (c *LiveChannel) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *LiveChannel) teardownLocked() {
	if c.sub == nil {
		return
	}
	c.cancel()
	if err := c.sub.Close(); err != nil {
		log.Warn().Err(err).Str("table", string(c.scope.Table)).Msg("closing subscription failed")
	}
	<-c.done
	log.Debug().Str("table", string(c.scope.Table)).Int64("listing_id", c.scope.ListingID).Msg("live channel unsubscribed")
	c.sub, c.cancel, c.done = nil, nil, nil
	c.scope = domain.Scope{}
}

func deliver(ctx context.Context, sub domain.Subscription, scope domain.Scope, handle func(domain.ChangeEvent), done chan<- struct{}) {
	defer close(done)
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if scope.Includes(ev) {
				handle(ev)
			}
		}
	}
}
