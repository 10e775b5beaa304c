package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookgateway/internal/book"
	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/platform"
	"bookgateway/internal/platform/zlibrary"
	"bookgateway/lib/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const searchPage = `<html><body>
<z-bookcard href="/book/1/dune" year="1965"><div slot="title">Dune</div><div slot="author">Frank Herbert</div></z-bookcard>
<z-bookcard href="/book/2/messiah" year="1969"><div slot="title">Dune Messiah</div><div slot="author">Frank Herbert</div></z-bookcard>
<z-bookcard href="/book/3/children" year="1976"><div slot="title">Children of Dune</div><div slot="author">Frank Herbert</div></z-bookcard>
<z-bookcard href="/book/4/untitled" year="1981"><div slot="author">Frank Herbert</div></z-bookcard>
</body></html>`

func newUpstream(t *testing.T) *testutil.Upstream {
	t.Helper()
	return testutil.NewUpstream(t, map[string]testutil.Page{
		"/s/dune":          testutil.HTML(searchPage),
		"/s/9780441013593": testutil.HTML(searchPage),
		"/s/broken":        {Status: http.StatusInternalServerError},
		"/book/1":          {Headers: map[string]string{"Content-Type": "text/html"}, Body: "<html>Dune</html>"},
	})
}

func newTestGateway(t *testing.T, u *testutil.Upstream) http.Handler {
	t.Helper()
	rec := &telemetry.Recorder{}
	registry := platform.NewRegistry()
	registry.Register(zlibrary.ID, func() (platform.Adapter, error) {
		return zlibrary.New(platform.Options{
			BaseUrl:    u.URL,
			Timeout:    5 * time.Second,
			MaxRetries: 2,
			RetryDelay: time.Millisecond,
		}, rec)
	})
	return New(registry, time.Minute, rec).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w.Code, decoded
}

func TestHealth(t *testing.T) {
	h := newTestGateway(t, newUpstream(t))
	status, body := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"status": "healthy"}, body)
}

func TestPlatformSearch(t *testing.T) {
	u := newUpstream(t)
	h := newTestGateway(t, u)

	status, body := do(t, h, http.MethodGet, "/ZLIBRARY/s/dune", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(3), body["total"])
	require.Len(t, body["books"], 3)
	require.Equal(t, map[string]any{
		"id":        "zlibrary",
		"name":      "Z-Library",
		"available": true,
		"total":     float64(3),
	}, body["platform_status"])

	first := body["books"].([]any)[0].(map[string]any)
	require.Equal(t, "Dune", first["title"])
	require.Equal(t, u.URL+"/book/1/dune", first["book_url"])
	require.Equal(t, "Z-Library", first["source"])
}

func TestPlatformSearchErrors(t *testing.T) {
	h := newTestGateway(t, newUpstream(t))

	status, body := do(t, h, http.MethodGet, "/libgen/s/dune", "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Platform libgen is not supported", body["error"])

	status, body = do(t, h, http.MethodGet, "/zlibrary/s/broken", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Search failed on Z-Library: upstream responded 500 Internal Server Error", body["error"])
}

func TestPlatformDetail(t *testing.T) {
	h := newTestGateway(t, newUpstream(t))

	status, body := do(t, h, http.MethodGet, "/zlibrary/book/1", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "<html>Dune</html>", body["content"])
	require.Equal(t, float64(200), body["status"])
	require.Equal(t, "text/html", body["headers"].(map[string]any)["Content-Type"])

	status, body = do(t, h, http.MethodGet, "/zlibrary/book/missing", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Book missing not found on Z-Library", body["error"])
}

func TestApiSearchPaginates(t *testing.T) {
	u := newUpstream(t)
	h := newTestGateway(t, u)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"keywords":"dune","page":2,"per_page":1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var page book.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))

	expected := book.Page{
		Results: []book.Record{{
			Title:        "Dune Messiah",
			Author:       "Frank Herbert",
			Year:         "1969",
			Publisher:    "Unknown",
			Language:     "Unknown",
			Pages:        "Unknown",
			Quality:      "0.0",
			Rating:       "0.0",
			SourceURL:    u.URL + "/book/2/messiah",
			PlatformID:   "zlibrary",
			PlatformName: "Z-Library",
		}},
		Total:      3,
		Page:       2,
		PerPage:    1,
		TotalPages: 3,
	}
	require.Empty(t, cmp.Diff(expected, page))
}

func TestApiSearchDefaultsAndKeyword(t *testing.T) {
	u := newUpstream(t)
	h := newTestGateway(t, u)

	status, body := do(t, h, http.MethodPost, "/api/search", `{"keywords":" 978-0-441-01359-3 , ignored"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), body["page"])
	require.Equal(t, float64(10), body["per_page"])
	require.Equal(t, float64(1), body["total_pages"])
	require.Len(t, body["results"], 3)
	require.Equal(t, []string{"/s/9780441013593"}, u.Requested())

	status, body = do(t, h, http.MethodPost, "/api/search", `{"keywords":"dune","page":9}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []any{}, body["results"])
	require.Equal(t, float64(3), body["total"])
}

func TestApiSearchBadRequests(t *testing.T) {
	h := newTestGateway(t, newUpstream(t))

	table := []struct {
		name  string
		body  string
		error string
	}{
		{name: "missing keywords", body: `{"page":1}`, error: "No keywords provided"},
		{name: "blank keywords", body: `{"keywords":"   "}`, error: "No keywords provided"},
		{name: "blank first token", body: `{"keywords":" , dune"}`, error: "Invalid keyword"},
		{name: "zero page", body: `{"keywords":"dune","page":0}`, error: "page must be >= 1, got 0"},
		{name: "negative per_page", body: `{"keywords":"dune","per_page":-2}`, error: "per_page must be >= 1, got -2"},
		{name: "not json", body: `keywords=dune`, error: "Invalid request body"},
		{name: "wrong type", body: `{"keywords":42}`, error: "Invalid request body"},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			status, body := do(t, h, http.MethodPost, "/api/search", test.body)
			require.Equal(t, http.StatusBadRequest, status)
			require.Equal(t, test.error, body["error"])
		})
	}
}

type funcAdapter struct {
	search func(ctx context.Context) (book.SearchResult, error)
}

func (funcAdapter) ID() string   { return "func" }
func (funcAdapter) Name() string { return "Func" }

func (f funcAdapter) Search(ctx context.Context, _ string) (book.SearchResult, error) {
	return f.search(ctx)
}

func (funcAdapter) Detail(context.Context, string) (book.Detail, error) {
	return book.Detail{}, fmt.Errorf("connection reset by peer")
}

func newFuncGateway(timeout time.Duration, search func(ctx context.Context) (book.SearchResult, error)) (http.Handler, *telemetry.Recorder) {
	rec := &telemetry.Recorder{}
	registry := platform.NewRegistry()
	registry.Register("func", func() (platform.Adapter, error) {
		return funcAdapter{search: search}, nil
	})
	return New(registry, timeout, rec).Handler(), rec
}

func TestRequestTimeoutReachesAdapter(t *testing.T) {
	h, _ := newFuncGateway(20*time.Millisecond, func(ctx context.Context) (book.SearchResult, error) {
		<-ctx.Done()
		return book.SearchResult{}, book.SearchError{Platform: "Func", Message: "request timed out", Err: ctx.Err()}
	})

	status, body := do(t, h, http.MethodGet, "/func/s/dune", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Search failed on Func: request timed out", body["error"])
}

func TestUnknownErrorsAreHidden(t *testing.T) {
	h, rec := newFuncGateway(time.Minute, nil)

	status, body := do(t, h, http.MethodGet, "/func/book/1", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Internal server error", body["error"])
	require.Len(t, rec.Reports(telemetry.KindWarning), 1)
}

func TestPanicRecovery(t *testing.T) {
	h, rec := newFuncGateway(time.Minute, func(context.Context) (book.SearchResult, error) {
		panic("extractor exploded")
	})

	status, body := do(t, h, http.MethodGet, "/func/s/dune", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Internal server error", body["error"])
	require.Len(t, rec.Reports(telemetry.KindBroken), 1)
}

func TestCORS(t *testing.T) {
	h := newTestGateway(t, newUpstream(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestGateway(t, newUpstream(t))
	do(t, h, http.MethodGet, "/api/health", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `bookgateway_http_requests_total{method="GET",path="/api/health",status="200"}`)
}
