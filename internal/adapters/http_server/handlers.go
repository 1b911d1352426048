package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"localdir/internal/adapters/identity"
	"localdir/internal/app"
	"localdir/internal/domain"
)

const maxJSONBody = 1 << 20

type Handlers struct {
	Search    *app.SearchService
	Q         *app.QueryService
	Community *app.CommunityService
	Admin     *app.AdminService
	Reviews   domain.ReviewRepository
	Feed      domain.ChangeFeed
	Debounce  time.Duration
}

type problem struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors []domain.FieldError `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.timeout))

			r.Get("/search", h.search)
			r.Get("/listings/{id}", h.getListing)
			r.Get("/listings/{id}/reviews", h.listReviews)
			r.With(RequireUser).Post("/listings/{id}/reviews", h.submitReview)
			r.Post("/reports", h.submitReport)
			r.Get("/categories", h.listCategories)
			r.Get("/tags", h.listTags)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				h.mountAdmin(r)
			})
		})

		// long-lived; must stay outside the timeout group
		r.Get("/search/stream", h.searchStream)
		r.Get("/listings/{id}/reviews/stream", h.reviewStream)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Invalid Request", Status: http.StatusBadRequest, Detail: "validation failed", Errors: ve.Fields})
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "resource not found")
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "not allowed")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrQueryFailed):
		log.Error().Err(err).Msg("listing query failed")
		writeProblem(w, http.StatusServiceUnavailable, "Search Unavailable", "results could not be loaded, try again")
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "request took too long")
	default:
		log.Error().Err(err).Msg("unhandled request error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v with a weak ETag and answers 304 when the client has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if etag != "" {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

/********** search **********/

// rawFilterFromQuery reads search input. Amenities may repeat or be comma separated.
func rawFilterFromQuery(q url.Values) app.RawFilter {
	var amen []string
	for _, v := range q["amenities"] {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				amen = append(amen, a)
			}
		}
	}
	useLoc, _ := strconv.ParseBool(q.Get("use_current_location"))
	return app.RawFilter{
		Query:              q.Get("q"),
		Category:           q.Get("category"),
		Location:           q.Get("location"),
		UseCurrentLocation: useLoc,
		Radius:             q.Get("radius"),
		PriceMin:           q.Get("price_min"),
		PriceMax:           q.Get("price_max"),
		MinRating:          q.Get("min_rating"),
		Amenities:          amen,
		Sort:               q.Get("sort"),
		Limit:              q.Get("limit"),
	}
}

// requestLocator serves the device position the client obtained itself and
// passed as lat/lng. geo_error (or missing coordinates) reads as denied.
type requestLocator struct {
	coords *domain.Coords
}

func locatorFromQuery(q url.Values) requestLocator {
	if q.Get("geo_error") != "" {
		return requestLocator{}
	}
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	c := domain.Coords{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !c.Valid() {
		return requestLocator{}
	}
	return requestLocator{coords: &c}
}

func (l requestLocator) CurrentPosition(context.Context) (domain.Coords, error) {
	if l.coords == nil {
		return domain.Coords{}, domain.ErrGeolocationDenied
	}
	return *l.coords, nil
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, notices := app.NormalizeFilter(r.Context(), rawFilterFromQuery(q), locatorFromQuery(q))
	out, err := h.Search.Search(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out.Notices = append(notices, out.Notices...)
	writeCached(w, r, out)
}

/********** listings & reviews **********/

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.Q.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, l)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	page := domain.PageQuery{Limit: limit, Sort: "-created_at"}
	if c := r.URL.Query().Get("cursor"); c != "" {
		page.Cursor = &c
	}

	if _, err := h.Q.GetListing(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Q.ListReviews(r.Context(), id, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

type reviewBody struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body reviewBody
	if !decodeJSON(w, r, &body) {
		return
	}
	p := identity.FromContext(r.Context())
	rv, err := h.Community.SubmitReview(r.Context(), p.UserID, id, body.Rating, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

type reportBody struct {
	TargetType string `json:"target_type"`
	TargetID   int64  `json:"target_id"`
	Reason     string `json:"reason"`
}

func (h *Handlers) submitReport(w http.ResponseWriter, r *http.Request) {
	var body reportBody
	if !decodeJSON(w, r, &body) {
		return
	}
	var reporter *int64
	if p := identity.FromContext(r.Context()); p.Authenticated() {
		reporter = &p.UserID
	}
	rp, err := h.Community.SubmitReport(r.Context(), reporter, body.TargetType, body.TargetID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rp)
}

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, map[string]any{"items": out})
}

func (h *Handlers) listTags(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, map[string]any{"items": out})
}
