package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"localdir/internal/app"
)

const keepAliveEvery = 15 * time.Second

// sse writes server-sent events and flushes after each one.
type sse struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func startSSE(w http.ResponseWriter) *sse {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	s := &sse{w: w, rc: http.NewResponseController(w)}
	_ = s.rc.Flush()
	return s
}

func (s *sse) event(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, b); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sse) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// pump sends a snapshot every time changes fires until the client leaves.
func pump(ctx context.Context, s *sse, changes <-chan struct{}, snapshot func() any) {
	t := time.NewTicker(keepAliveEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if err := s.event("snapshot", snapshot()); err != nil {
				return
			}
		case <-t.C:
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}

// searchStream runs one search session for the lifetime of the request and
// streams its snapshots: the loading state, the results, then every live
// change that touches them.
func (h *Handlers) searchStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	f, notices := app.NormalizeFilter(ctx, rawFilterFromQuery(q), locatorFromQuery(q))

	debounce := h.Debounce
	if debounce <= 0 {
		debounce = app.DefaultDebounce
	}
	sess := app.NewSession(h.Search, h.Feed, app.WithDebounce(debounce))
	if err := sess.Mount(ctx); err != nil {
		writeError(w, err)
		return
	}
	defer sess.Unmount()

	s := startSSE(w)
	go func() {
		if err := sess.Search(ctx, f, notices...); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("stream search failed")
		}
	}()
	pump(ctx, s, sess.Changes(), func() any { return sess.Snapshot() })
}

func (h *Handlers) reviewStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.Q.GetListing(ctx, id); err != nil {
		writeError(w, err)
		return
	}

	sess := app.NewReviewSession(h.Reviews, h.Feed)
	defer sess.Unmount()

	s := startSSE(w)
	if err := sess.Load(ctx, id); err != nil {
		log.Warn().Err(err).Int64("listing_id", id).Msg("initial review load failed")
	}
	pump(ctx, s, sess.Changes(), func() any { return sess.Snapshot() })
}
