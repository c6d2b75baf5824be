package bookmark

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/bookmarker/internal/auth"
	"github.com/sundayezeilo/bookmarker/internal/errx"
	"github.com/sundayezeilo/bookmarker/internal/httpx"
	"github.com/sundayezeilo/bookmarker/internal/paging"
)

// HTTPBookmarkRequest represents the JSON request body for create and update.
type HTTPBookmarkRequest struct {
	URL  string `json:"url"`
	Body string `json:"body"`
}

// BookmarkResponse represents a bookmark in JSON responses.
type BookmarkResponse struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	ShortURL  string `json:"short_url"`
	Body      string `json:"body"`
	Visits    int64  `json:"visits"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ListResponse is one page of bookmarks.
type ListResponse struct {
	Metadata paging.Meta        `json:"metadata"`
	Data     []BookmarkResponse `json:"data"`
}

type StatResponse struct {
	URL      string `json:"url"`
	ShortURL string `json:"short_url"`
	Body     string `json:"body"`
	Visits   int64  `json:"visits"`
}

// Recorder receives bookmark events for metrics.
type Recorder interface {
	BookmarkCreated()
	Redirect(found bool)
}

type nopRecorder struct{}

func (nopRecorder) BookmarkCreated() {}
func (nopRecorder) Redirect(bool)    {}

// Handler provides HTTP handlers for bookmarks and short-code redirects.
type Handler struct {
	service        Service
	logger         *slog.Logger
	metrics        Recorder
	defaultPerPage int
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service        Service
	Logger         *slog.Logger
	Metrics        Recorder
	DefaultPerPage int // page size when ?per_page is absent (default: 5)
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var rec Recorder = nopRecorder{}
	if cfg.Metrics != nil {
		rec = cfg.Metrics
	}

	perPage := cfg.DefaultPerPage
	if perPage <= 0 {
		perPage = 5
	}

	return &Handler{
		service:        cfg.Service,
		logger:         logger,
		metrics:        rec,
		defaultPerPage: perPage,
	}
}

// Create handles POST requests that save a new bookmark.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	owner, err := ownerFrom(ctx)
	if err != nil {
		httpx.Fail(ctx, w, logger, "unauthenticated request", err)
		return
	}

	req, err := decodeBookmarkRequest(r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "invalid bookmark request", err)
		return
	}

	b, err := h.service.Create(ctx, owner, Input{URL: req.URL, Body: req.Body})
	if err != nil {
		httpx.Fail(ctx, w, logger, "failed to create bookmark", err)
		return
	}
	h.metrics.BookmarkCreated()

	logger.InfoContext(ctx, "bookmark created",
		"bookmark_id", b.ID,
		"short_url", b.ShortURL,
	)

	httpx.WriteJSON(w, http.StatusOK, toResponse(b))
}

// List handles GET requests for the caller's bookmarks, one page at a time.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	owner, err := ownerFrom(ctx)
	if err != nil {
		httpx.Fail(ctx, w, logger, "unauthenticated request", err)
		return
	}

	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		httpx.Fail(ctx, w, logger, "invalid pagination", err)
		return
	}
	perPage, err := httpx.QueryInt(r, "per_page", h.defaultPerPage)
	if err != nil {
		httpx.Fail(ctx, w, logger, "invalid pagination", err)
		return
	}

	result, err := h.service.List(ctx, owner, paging.Params{Page: page, PerPage: perPage})
	if err != nil {
		httpx.Fail(ctx, w, logger, "failed to list bookmarks", err)
		return
	}

	data := make([]BookmarkResponse, 0, len(result.Items))
	for _, b := range result.Items {
		data = append(data, toResponse(b))
	}

	httpx.WriteJSON(w, http.StatusOK, ListResponse{Metadata: result.Meta, Data: data})
}

// Get handles GET requests for a single bookmark.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	owner, id, err := ownerAndID(r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "bookmark lookup rejected", err)
		return
	}

	b, err := h.service.Get(ctx, owner, id)
	if err != nil {
		httpx.Fail(ctx, w, logger, "failed to get bookmark", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponse(b))
}

// Update handles PATCH requests. Both url and body are replaced.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	owner, id, err := ownerAndID(r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "bookmark update rejected", err)
		return
	}

	req, err := decodeBookmarkRequest(r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "invalid bookmark request", err)
		return
	}

	b, err := h.service.Update(ctx, owner, id, Input{URL: req.URL, Body: req.Body})
	if err != nil {
		httpx.Fail(ctx, w, logger, "failed to update bookmark", err)
		return
	}

	logger.InfoContext(ctx, "bookmark updated", "bookmark_id", b.ID)

	httpx.WriteJSON(w, http.StatusOK, toResponse(b))
}

// Delete handles DELETE requests.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	owner, id, err := ownerAndID(r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "bookmark delete rejected", err)
		return
	}

	if err := h.service.Delete(ctx, owner, id); err != nil {
		httpx.Fail(ctx, w, logger, "failed to delete bookmark", err)
		return
	}

	logger.InfoContext(ctx, "bookmark deleted", "bookmark_id", id)

	httpx.NoContent(w)
}

// Stats handles GET requests for visit counts of all the caller's bookmarks.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	owner, err := ownerFrom(ctx)
	if err != nil {
		httpx.Fail(ctx, w, logger, "unauthenticated request", err)
		return
	}

	stats, err := h.service.Stats(ctx, owner)
	if err != nil {
		httpx.Fail(ctx, w, logger, "failed to load stats", err)
		return
	}

	resp := make([]StatResponse, 0, len(stats))
	for _, s := range stats {
		resp = append(resp, StatResponse{URL: s.URL, ShortURL: s.ShortURL, Body: s.Body, Visits: s.Visits})
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Redirect handles GET requests for a short code, counting the visit and
// redirecting to the stored URL.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	code := r.PathValue("short_url")

	target, err := h.service.Resolve(ctx, code)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			h.metrics.Redirect(false)
		}
		httpx.Fail(ctx, w, logger, "failed to resolve short url", err)
		return
	}
	h.metrics.Redirect(true)

	logger.InfoContext(ctx, "short url resolved",
		"short_url", code,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, target, http.StatusFound)
}

func decodeBookmarkRequest(r *http.Request) (HTTPBookmarkRequest, error) {
	req, err := httpx.DecodeJSON[HTTPBookmarkRequest](r)
	if err != nil {
		return HTTPBookmarkRequest{}, err
	}
	if err := validateBookmarkRequest(req); err != nil {
		return HTTPBookmarkRequest{}, err
	}
	return req, nil
}

// validateBookmarkRequest rejects a missing url. A missing body means empty text.
func validateBookmarkRequest(req HTTPBookmarkRequest) error {
	const op = "bookmark.validateBookmarkRequest"

	if req.URL == "" {
		return errx.M(op, errx.Invalid, "url is required")
	}
	return nil
}

func ownerFrom(ctx context.Context) (uuid.UUID, error) {
	id, ok := auth.UserIDFrom(ctx)
	if !ok {
		return uuid.Nil, errx.M("bookmark.ownerFrom", errx.Unauthorized, "authentication required")
	}
	return id, nil
}

// ownerAndID reads the caller and the {id} path value. Ids that cannot name a
// bookmark are reported as not found.
func ownerAndID(r *http.Request) (uuid.UUID, int64, error) {
	owner, err := ownerFrom(r.Context())
	if err != nil {
		return uuid.Nil, 0, err
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return uuid.Nil, 0, errx.M("bookmark.ownerAndID", errx.NotFound, MsgNotFound)
	}
	return owner, id, nil
}

func toResponse(b Bookmark) BookmarkResponse {
	return BookmarkResponse{
		ID:        b.ID,
		URL:       b.URL,
		ShortURL:  b.ShortURL,
		Body:      b.Body,
		Visits:    b.Visits,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
