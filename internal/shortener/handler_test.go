package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/httpx"
)

/***************
 * Helpers
 ***************/

type mockService struct {
	createFunc      func(ctx context.Context, req CreateLinkRequest) (Link, bool, error)
	lookupFunc      func(ctx context.Context, code string) (string, bool, error)
	getFunc         func(ctx context.Context, code string) (Link, error)
	statsFunc       func(ctx context.Context, code string, recent int) (LinkStats, error)
	deactivateFunc  func(ctx context.Context, code, ownerID string) (Link, error)
	listByOwnerFunc func(ctx context.Context, ownerID string, page, pageSize int) ([]Link, int64, error)
}

func (m *mockService) Create(ctx context.Context, req CreateLinkRequest) (Link, bool, error) {
	return m.createFunc(ctx, req)
}

func (m *mockService) Lookup(ctx context.Context, code string) (string, bool, error) {
	return m.lookupFunc(ctx, code)
}

func (m *mockService) Get(ctx context.Context, code string) (Link, error) {
	return m.getFunc(ctx, code)
}

func (m *mockService) Stats(ctx context.Context, code string, recent int) (LinkStats, error) {
	return m.statsFunc(ctx, code, recent)
}

func (m *mockService) Deactivate(ctx context.Context, code, ownerID string) (Link, error) {
	return m.deactivateFunc(ctx, code, ownerID)
}

func (m *mockService) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]Link, int64, error) {
	return m.listByOwnerFunc(ctx, ownerID, page, pageSize)
}

type mockRecorder struct {
	mu     sync.Mutex
	inputs []ClickInput
}

func (m *mockRecorder) Record(in ClickInput) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	return true
}

func sampleLink() Link {
	return Link{
		ID:         uuid.MustParse("0197a1b2-0000-7000-8000-000000000001"),
		Code:       "abc123",
		TargetURL:  "https://example.com/page",
		OwnerID:    "user-1",
		ClickCount: 3,
		IsActive:   true,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

// serve routes req through a mux so path values resolve as in production.
func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/links", h.CreateLink)
	mux.HandleFunc("GET /api/links", h.ListLinks)
	mux.HandleFunc("GET /api/links/{code}", h.GetLink)
	mux.HandleFunc("GET /api/links/{code}/stats", h.LinkStats)
	mux.HandleFunc("DELETE /api/links/{code}", h.DeactivateLink)
	mux.HandleFunc("GET /{code}", h.ResolveLink)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func newTestHandler(svc Service, rec ClickRecorder) *Handler {
	return NewHandler(HandlerConfig{
		Service: svc,
		Clicks:  rec,
		Logger:  discardLogger(),
		BaseURL: "https://sho.rt/",
	})
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return v
}

/***************
 * CreateLink Tests
 ***************/

func TestHandlerCreateLink(t *testing.T) {
	t.Run("new link returns 201", func(t *testing.T) {
		var got CreateLinkRequest
		svc := &mockService{
			createFunc: func(_ context.Context, req CreateLinkRequest) (Link, bool, error) {
				got = req
				return sampleLink(), true, nil
			},
		}
		h := newTestHandler(svc, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/links",
			strings.NewReader(`{"url":"https://example.com/page","custom_code":"abc123","expires_at":"2025-07-01T00:00:00Z"}`))
		req.Header.Set(httpx.OwnerIDHeader, " user-1 ")
		rr := serve(h, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
		}
		if got.TargetURL != "https://example.com/page" || got.CustomCode != "abc123" || got.OwnerID != "user-1" {
			t.Errorf("service request = %+v", got)
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("ExpiresAt = %v", got.ExpiresAt)
		}

		resp := decodeBody[LinkResponse](t, rr)
		if resp.ShortURL != "https://sho.rt/abc123" {
			t.Errorf("short_url = %q", resp.ShortURL)
		}
		if resp.Code != "abc123" || resp.ClickCount != 3 || !resp.IsActive {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("existing link returns 200", func(t *testing.T) {
		svc := &mockService{
			createFunc: func(context.Context, CreateLinkRequest) (Link, bool, error) {
				return sampleLink(), false, nil
			},
		}
		rr := serve(newTestHandler(svc, nil),
			httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":"https://example.com/page"}`)))

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rr.Code)
		}
	})

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "missing url",
			body:       `{"url":"  "}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_failed",
		},
		{
			name:       "invalid",
			body:       `{"url":"ftp://x"}`,
			err:        errx.E("shortener.service.Create", errx.Invalid, errors.New("url scheme must be http or https")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "conflict",
			body:       `{"url":"https://example.com","custom_code":"taken"}`,
			err:        errx.E("shortener.service.Create", errx.Conflict, errors.New("code taken")),
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
		},
		{
			name:       "exhausted",
			body:       `{"url":"https://example.com"}`,
			err:        errx.E("shortener.service.Create", errx.Exhausted, errors.New("gave up")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "generation_exhausted",
		},
		{
			name:       "unavailable",
			body:       `{"url":"https://example.com"}`,
			err:        errx.E("shortener.service.Create", errx.Unavailable, errors.New("db down")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "unavailable",
		},
		{
			name:       "unexpected",
			body:       `{"url":"https://example.com"}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				createFunc: func(context.Context, CreateLinkRequest) (Link, bool, error) {
					return Link{}, false, tt.err
				},
			}
			rr := serve(newTestHandler(svc, nil),
				httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(tt.body)))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			resp := decodeBody[httpx.ErrorResponse](t, rr)
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
			if strings.Contains(resp.Message, "db down") || strings.Contains(resp.Message, "boom") {
				t.Errorf("message leaks cause: %q", resp.Message)
			}
		})
	}
}

/***************
 * ResolveLink Tests
 ***************/

func TestHandlerResolveLink(t *testing.T) {
	t.Run("redirects and records click", func(t *testing.T) {
		svc := &mockService{
			lookupFunc: func(_ context.Context, code string) (string, bool, error) {
				if code != "abc123" {
					t.Errorf("lookup code = %q", code)
				}
				return "https://example.com/page", true, nil
			},
		}
		rec := &mockRecorder{}
		req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Referer", "https://ref.example.com")

		rr := serve(newTestHandler(svc, rec), req)

		if rr.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "https://example.com/page" {
			t.Errorf("Location = %q", loc)
		}
		if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
			t.Errorf("Cache-Control = %q", cc)
		}
		want := ClickInput{Code: "abc123", IPAddress: "203.0.113.7", UserAgent: "test-agent", Referer: "https://ref.example.com"}
		if len(rec.inputs) != 1 || rec.inputs[0] != want {
			t.Errorf("recorded = %+v, want [%+v]", rec.inputs, want)
		}
	})

	t.Run("not found records nothing", func(t *testing.T) {
		svc := &mockService{
			lookupFunc: func(context.Context, string) (string, bool, error) { return "", false, nil },
		}
		rec := &mockRecorder{}
		rr := serve(newTestHandler(svc, rec), httptest.NewRequest(http.MethodGet, "/gone42", nil))

		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
		if len(rec.inputs) != 0 {
			t.Errorf("recorded %d clicks for a miss", len(rec.inputs))
		}
	})

	t.Run("over-long code skips lookup", func(t *testing.T) {
		svc := &mockService{
			lookupFunc: func(context.Context, string) (string, bool, error) {
				t.Error("lookup called for over-long code")
				return "", false, nil
			},
		}
		rr := serve(newTestHandler(svc, nil),
			httptest.NewRequest(http.MethodGet, "/"+strings.Repeat("a", MaxCodeLength+1), nil))

		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("lookup failure", func(t *testing.T) {
		svc := &mockService{
			lookupFunc: func(context.Context, string) (string, bool, error) {
				return "", false, errx.E("shortener.service.Lookup", errx.Unavailable, errors.New("db down"))
			},
		}
		rr := serve(newTestHandler(svc, nil), httptest.NewRequest(http.MethodGet, "/abc123", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rr.Code)
		}
	})

	t.Run("nil recorder is tolerated", func(t *testing.T) {
		svc := &mockService{
			lookupFunc: func(context.Context, string) (string, bool, error) { return "https://example.com", true, nil },
		}
		rr := serve(newTestHandler(svc, nil), httptest.NewRequest(http.MethodGet, "/abc123", nil))

		if rr.Code != http.StatusFound {
			t.Errorf("status = %d, want 302", rr.Code)
		}
	})
}

/***************
 * Read Endpoint Tests
 ***************/

func TestHandlerGetLink(t *testing.T) {
	svc := &mockService{
		getFunc: func(_ context.Context, code string) (Link, error) {
			if code == "abc123" {
				return sampleLink(), nil
			}
			return Link{}, errx.E("shortener.service.Get", errx.NotFound, errors.New("link not found"))
		},
	}
	h := newTestHandler(svc, nil)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/links/abc123", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if resp := decodeBody[LinkResponse](t, rr); resp.TargetURL != "https://example.com/page" || resp.OwnerID != "user-1" {
		t.Errorf("response = %+v", resp)
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/links/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHandlerLinkStats(t *testing.T) {
	clickedAt := testNow.Add(-time.Minute)

	tests := []struct {
		name       string
		query      string
		wantRecent int
		wantStatus int
	}{
		{name: "default", query: "", wantRecent: DefaultRecentClicks, wantStatus: http.StatusOK},
		{name: "explicit", query: "?recent=5", wantRecent: 5, wantStatus: http.StatusOK},
		{name: "clamped", query: "?recent=1000", wantRecent: maxRecentClicks, wantStatus: http.StatusOK},
		{name: "malformed", query: "?recent=many", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRecent := -1
			svc := &mockService{
				statsFunc: func(_ context.Context, code string, recent int) (LinkStats, error) {
					gotRecent = recent
					return LinkStats{
						Link:         sampleLink(),
						RecentClicks: []ClickEvent{{Code: code, ClickedAt: clickedAt, Country: "NG", City: "Lagos"}},
					}, nil
				},
			}
			rr := serve(newTestHandler(svc, nil),
				httptest.NewRequest(http.MethodGet, "/api/links/abc123/stats"+tt.query, nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if gotRecent != tt.wantRecent {
				t.Errorf("recent = %d, want %d", gotRecent, tt.wantRecent)
			}
			resp := decodeBody[StatsResponse](t, rr)
			if resp.Link.Code != "abc123" || len(resp.RecentClicks) != 1 {
				t.Fatalf("response = %+v", resp)
			}
			if c := resp.RecentClicks[0]; !c.ClickedAt.Equal(clickedAt) || c.Country != "NG" || c.City != "Lagos" {
				t.Errorf("click = %+v", c)
			}
		})
	}
}

/***************
 * DeactivateLink Tests
 ***************/

func TestHandlerDeactivateLink(t *testing.T) {
	tests := []struct {
		name       string
		owner      string
		err        error
		wantStatus int
	}{
		{name: "owner", owner: "user-1", wantStatus: http.StatusNoContent},
		{
			name:       "no owner",
			err:        errx.E("shortener.service.Deactivate", errx.Unauthorized, errors.New("owner id required")),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "other owner",
			owner:      "user-2",
			err:        errx.E("shortener.service.Deactivate", errx.Forbidden, errors.New("not the link owner")),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing",
			owner:      "user-1",
			err:        errx.E("shortener.service.Deactivate", errx.NotFound, errors.New("link not found")),
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner string
			svc := &mockService{
				deactivateFunc: func(_ context.Context, _, ownerID string) (Link, error) {
					gotOwner = ownerID
					return Link{}, tt.err
				},
			}
			req := httptest.NewRequest(http.MethodDelete, "/api/links/abc123", nil)
			if tt.owner != "" {
				req.Header.Set(httpx.OwnerIDHeader, tt.owner)
			}
			rr := serve(newTestHandler(svc, nil), req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotOwner != tt.owner {
				t.Errorf("owner = %q, want %q", gotOwner, tt.owner)
			}
			if tt.wantStatus == http.StatusNoContent && rr.Body.Len() != 0 {
				t.Errorf("expected empty body, got %q", rr.Body.String())
			}
		})
	}
}

/***************
 * ListLinks Tests
 ***************/

func TestHandlerListLinks(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
		wantStatus   int
	}{
		{name: "defaults", query: "", wantPage: 1, wantPageSize: DefaultPageSize, wantStatus: http.StatusOK},
		{name: "explicit", query: "?page=3&page_size=5", wantPage: 3, wantPageSize: 5, wantStatus: http.StatusOK},
		{name: "page zero", query: "?page=0", wantPage: 1, wantPageSize: DefaultPageSize, wantStatus: http.StatusOK},
		{name: "clamped", query: "?page_size=500", wantPage: 1, wantPageSize: MaxPageSize, wantStatus: http.StatusOK},
		{name: "negative", query: "?page=-2", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner string
			var gotPage, gotSize int
			svc := &mockService{
				listByOwnerFunc: func(_ context.Context, ownerID string, page, pageSize int) ([]Link, int64, error) {
					gotOwner, gotPage, gotSize = ownerID, page, pageSize
					return []Link{sampleLink()}, 41, nil
				},
			}
			req := httptest.NewRequest(http.MethodGet, "/api/links"+tt.query, nil)
			req.Header.Set(httpx.OwnerIDHeader, "user-1")
			rr := serve(newTestHandler(svc, nil), req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if gotOwner != "user-1" || gotPage != tt.wantPage || gotSize != tt.wantPageSize {
				t.Errorf("service got (%q, %d, %d)", gotOwner, gotPage, gotSize)
			}
			resp := decodeBody[ListLinksResponse](t, rr)
			if resp.Total != 41 || resp.Page != tt.wantPage || resp.PageSize != tt.wantPageSize || len(resp.Links) != 1 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}
