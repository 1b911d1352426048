package redisad

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"localdir/internal/domain"
)

const channelPrefix = "changes:"

// Feed is a domain.ChangeFeed over Redis Pub/Sub, one channel per table.
// Reconnects are handled by go-redis; events published while disconnected are lost.
type Feed struct{ c *redis.Client }

func NewFeed(c *redis.Client) *Feed { return &Feed{c: c} }

func channel(t domain.Table) string { return channelPrefix + string(t) }

func (f *Feed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.c.Publish(ctx, channel(ev.Table), b).Err()
}

// Subscribe returns once the server has confirmed the subscription.
func (f *Feed) Subscribe(ctx context.Context, scope domain.Scope) (domain.Subscription, error) {
	ps := f.c.Subscribe(ctx, channel(scope.Table))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	s := &subscription{
		ps:   ps,
		out:  make(chan domain.ChangeEvent, 64),
		done: make(chan struct{}),
	}
	go s.run(scope)
	return s, nil
}

type subscription struct {
	ps   *redis.PubSub
	out  chan domain.ChangeEvent
	done chan struct{}
	once sync.Once
}

func (s *subscription) Events() <-chan domain.ChangeEvent { return s.out }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) run(scope domain.Scope) {
	defer close(s.out)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed change event")
				continue
			}
			if !scope.Includes(ev) {
				continue
			}
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}
