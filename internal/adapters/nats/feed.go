package natsad

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"localdir/internal/domain"
)

const subjectPrefix = "changes."

func subject(t domain.Table) string { return subjectPrefix + string(t) }

// Feed is a domain.ChangeFeed over core NATS subjects, one per table.
type Feed struct{ nc *nats.Conn }

// Connect dials url with reconnect logging wired to the global logger.
func Connect(url, name string) (*Feed, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("nats async error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats at %s: %w", url, err)
	}
	return &Feed{nc: nc}, nil
}

func NewFeed(nc *nats.Conn) *Feed { return &Feed{nc: nc} }

func (f *Feed) Close() { f.nc.Close() }

func (f *Feed) Publish(_ context.Context, ev domain.ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return f.nc.Publish(subject(ev.Table), b)
}

// Subscribe registers interest and flushes so the server has seen it
// before returning.
func (f *Feed) Subscribe(ctx context.Context, scope domain.Scope) (domain.Subscription, error) {
	msgs := make(chan *nats.Msg, 64)
	ns, err := f.nc.ChanSubscribe(subject(scope.Table), msgs)
	if err != nil {
		return nil, err
	}
	if err := f.nc.FlushWithContext(ctx); err != nil {
		_ = ns.Unsubscribe()
		return nil, err
	}
	s := &subscription{
		ns:   ns,
		out:  make(chan domain.ChangeEvent, 64),
		done: make(chan struct{}),
	}
	go s.run(scope, msgs)
	return s, nil
}

type subscription struct {
	ns   *nats.Subscription
	out  chan domain.ChangeEvent
	done chan struct{}
	once sync.Once
}

func (s *subscription) Events() <-chan domain.ChangeEvent { return s.out }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ns.Unsubscribe()
		close(s.done)
	})
	return err
}

func (s *subscription) run(scope domain.Scope, msgs <-chan *nats.Msg) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case m := <-msgs:
			var ev domain.ChangeEvent
			if err := json.Unmarshal(m.Data, &ev); err != nil {
				log.Warn().Err(err).Str("subject", m.Subject).Msg("dropping malformed change event")
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
