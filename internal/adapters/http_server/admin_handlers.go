package httpserver

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"localdir/internal/domain"
)

const maxImageBytes = 10 << 20

func (h *Handlers) mountAdmin(r chi.Router) {
	r.Post("/listings", h.adminCreateListing)
	r.Put("/listings/{id}", h.adminUpdateListing)
	r.Patch("/listings/{id}/status", h.adminSetListingStatus)
	r.Delete("/listings/{id}", h.adminDeleteListing)
	r.Post("/listings/{id}/images", h.adminUploadImage)

	r.Patch("/reviews/{id}", h.adminModerateReview)

	r.Post("/categories", h.adminSaveCategory)
	r.Put("/categories/{id}", h.adminSaveCategory)
	r.Delete("/categories/{id}", h.adminDeleteCategory)
	r.Post("/tags", h.adminSaveTag)
	r.Put("/tags/{id}", h.adminSaveTag)
	r.Delete("/tags/{id}", h.adminDeleteTag)

	r.Get("/reports", h.adminListReports)
	r.Patch("/reports/{id}", h.adminSetReportStatus)

	r.Get("/users", h.adminListUsers)
	r.Patch("/users/{id}", h.adminSetUserStatus)

	r.Get("/stats", h.adminStats)
}

type statusBody struct {
	Status string `json:"status"`
}

/********** listings **********/

func (h *Handlers) adminCreateListing(w http.ResponseWriter, r *http.Request) {
	var in domain.ListingInput
	if !decodeJSON(w, r, &in) {
		return
	}
	l, err := h.Admin.CreateListing(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handlers) adminUpdateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in domain.ListingInput
	if !decodeJSON(w, r, &in) {
		return
	}
	l, err := h.Admin.UpdateListing(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) adminSetListingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body statusBody
	if !decodeJSON(w, r, &body) {
		return
	}
	l, err := h.Admin.SetListingStatus(r.Context(), id, domain.ListingStatus(body.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) adminDeleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Admin.DeleteListing(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminUploadImage takes a multipart "file" field.
func (h *Handlers) adminUploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "expected multipart form with a file field")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "file field is required")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "could not read file")
		return
	}
	if len(data) > maxImageBytes {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Too Large", "images are limited to 10MB")
		return
	}
	l, err := h.Admin.AttachImage(r.Context(), id, hdr.Filename, hdr.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

/********** reviews **********/

func (h *Handlers) adminModerateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body statusBody
	if !decodeJSON(w, r, &body) {
		return
	}
	rv, err := h.Admin.ModerateReview(r.Context(), id, domain.ReviewStatus(body.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

/********** categories & tags **********/

// optionalID reads {id} for PUT routes; POST routes have none.
func optionalID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if chi.URLParam(r, "id") == "" {
		return 0, true
	}
	return pathID(w, r)
}

func (h *Handlers) adminSaveCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := optionalID(w, r)
	if !ok {
		return
	}
	var c domain.Category
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = id
	out, err := h.Admin.SaveCategory(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (h *Handlers) adminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Admin.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminSaveTag(w http.ResponseWriter, r *http.Request) {
	id, ok := optionalID(w, r)
	if !ok {
		return
	}
	var t domain.Tag
	if !decodeJSON(w, r, &t) {
		return
	}
	t.ID = id
	out, err := h.Admin.SaveTag(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (h *Handlers) adminDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Admin.DeleteTag(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/********** reports, users, stats **********/

func (h *Handlers) adminListReports(w http.ResponseWriter, r *http.Request) {
	out, err := h.Admin.ListReports(r.Context(), domain.ReportStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) adminSetReportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body statusBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.Admin.SetReportStatus(r.Context(), id, domain.ReportStatus(body.Status)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.Admin.ListUsers(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) adminSetUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body statusBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.Admin.SetUserStatus(r.Context(), id, body.Status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Admin.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
