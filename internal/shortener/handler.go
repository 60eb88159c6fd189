package shortener

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/httpx"
)

const maxRecentClicks = 100

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL        string     `json:"url"`
	CustomCode string     `json:"custom_code,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse is the JSON view of a link.
type LinkResponse struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	ShortURL       string     `json:"short_url"`
	TargetURL      string     `json:"target_url"`
	OwnerID        string     `json:"owner_id,omitempty"`
	ClickCount     int64      `json:"click_count"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// ClickResponse is the JSON view of a click event.
type ClickResponse struct {
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
}

// StatsResponse is a link with its most recent clicks.
type StatsResponse struct {
	Link         LinkResponse    `json:"link"`
	RecentClicks []ClickResponse `json:"recent_clicks"`
}

// ListLinksResponse is one page of an owner's links.
type ListLinksResponse struct {
	Links    []LinkResponse `json:"links"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	clicks  ClickRecorder
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Clicks  ClickRecorder // nil disables click tracking
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

type nopRecorder struct{}

func (nopRecorder) Record(ClickInput) bool { return false }

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clicks := cfg.Clicks
	if clicks == nil {
		clicks = nopRecorder{}
	}

	return &Handler{
		service: cfg.Service,
		clicks:  clicks,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// CreateLink handles POST /api/links. It answers 201 for a new link and 200
// when an existing live link for the same target and owner is returned.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if err := validateCreateRequest(req); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"error", err.Error(),
			"custom_code", req.CustomCode,
		)
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	link, created, err := h.service.Create(ctx, CreateLinkRequest{
		TargetURL:  req.URL,
		CustomCode: req.CustomCode,
		ExpiresAt:  req.ExpiresAt,
		OwnerID:    ownerFrom(r),
	})
	if err != nil {
		h.handleCreateError(ctx, logger, w, err)
		return
	}

	status := http.StatusCreated
	if created {
		logger.InfoContext(ctx, "link created",
			"link_id", link.ID.String(),
			"code", link.Code,
			"custom_code", req.CustomCode != "",
		)
	} else {
		status = http.StatusOK
		logger.InfoContext(ctx, "existing link returned",
			"link_id", link.ID.String(),
			"code", link.Code,
		)
	}

	httpx.WriteJSON(w, status, h.toLinkResponse(link))
}

// ResolveLink handles GET /{code}: it redirects to the target and hands the
// click to the tracker without waiting for it.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.PathValue("code")
	if code == "" || len(code) > MaxCodeLength {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "short link doesn't exist", nil)
		return
	}

	target, found, err := h.service.Lookup(ctx, code)
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err, "resolve link")
		return
	}
	if !found {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "short link doesn't exist", nil)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)

	h.clicks.Record(ClickInput{
		Code:      code,
		IPAddress: httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
}

// GetLink handles GET /api/links/{code}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := h.service.Get(ctx, r.PathValue("code"))
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err, "get link")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toLinkResponse(link))
}

// LinkStats handles GET /api/links/{code}/stats?recent=N.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recent, err := httpx.QueryInt(r, "recent", DefaultRecentClicks)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	recent = min(recent, maxRecentClicks)

	stats, err := h.service.Stats(ctx, r.PathValue("code"), recent)
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err, "load stats")
		return
	}

	resp := StatsResponse{
		Link:         h.toLinkResponse(stats.Link),
		RecentClicks: make([]ClickResponse, 0, len(stats.RecentClicks)),
	}
	for _, c := range stats.RecentClicks {
		resp.RecentClicks = append(resp.RecentClicks, ClickResponse{
			ClickedAt: c.ClickedAt,
			IPAddress: c.IPAddress,
			UserAgent: c.UserAgent,
			Referer:   c.Referer,
			Country:   c.Country,
			City:      c.City,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// DeactivateLink handles DELETE /api/links/{code}. The caller must own the link.
func (h *Handler) DeactivateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	code := r.PathValue("code")

	if _, err := h.service.Deactivate(ctx, code, ownerFrom(r)); err != nil {
		h.handleError(ctx, logger, w, err, "deactivate link")
		return
	}

	logger.InfoContext(ctx, "link deactivated", "code", code)
	w.WriteHeader(http.StatusNoContent)
}

// ListLinks handles GET /api/links?page=&page_size= for the calling owner.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	pageSize, err := httpx.QueryInt(r, "page_size", DefaultPageSize)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	page = max(page, 1)
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	links, total, err := h.service.ListByOwner(ctx, ownerFrom(r), page, pageSize)
	if err != nil {
		h.handleError(ctx, h.requestLogger(r), w, err, "list links")
		return
	}

	resp := ListLinksResponse{
		Links:    make([]LinkResponse, 0, len(links)),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
	for _, l := range links {
		resp.Links = append(resp.Links, h.toLinkResponse(l))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// handleCreateError handles errors from the Create service method.
func (h *Handler) handleCreateError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Conflict:
		logger.WarnContext(ctx, "code conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This code is already taken",
			map[string]string{
				"hint": "Try a different custom code or let us generate one for you",
			})

	case errx.Invalid:
		logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteKindError(w, err, "")

	case errx.Exhausted:
		logger.ErrorContext(ctx, "code space exhausted", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "generation_exhausted",
			"Unable to allocate a short code. Please try again later.", nil)

	case errx.Unavailable:
		logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create short link at this time. Please try again.", nil)

	default:
		logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short link at this time. Please try again.", nil)
	}
}

// handleError logs err at a level matching its kind and writes the mapped response.
func (h *Handler) handleError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, action string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound:
		logger.DebugContext(ctx, action+": not found", logAttrs...)
	case errx.Invalid, errx.Unauthorized, errx.Forbidden:
		logger.WarnContext(ctx, action+": rejected", logAttrs...)
	default:
		logger.ErrorContext(ctx, action+": failed", logAttrs...)
	}

	httpx.WriteKindError(w, err, "Unable to "+action+" at this time")
}

func (h *Handler) toLinkResponse(l Link) LinkResponse {
	return LinkResponse{
		ID:             l.ID.String(),
		Code:           l.Code,
		ShortURL:       h.baseURL + "/" + l.Code,
		TargetURL:      l.TargetURL,
		OwnerID:        l.OwnerID,
		ClickCount:     l.ClickCount,
		IsActive:       l.IsActive,
		CreatedAt:      l.CreatedAt,
		ExpiresAt:      l.ExpiresAt,
		LastAccessedAt: l.LastAccessedAt,
	}
}

func ownerFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(httpx.OwnerIDHeader))
}

// validateCreateRequest validates the HTTPCreateLinkRequest.
func validateCreateRequest(req HTTPCreateLinkRequest) error {
	if strings.TrimSpace(req.URL) == "" {
		return errors.New("url is required")
	}
	return nil
}
