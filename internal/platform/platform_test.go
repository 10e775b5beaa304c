package platform

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bookgateway/internal/book"
	"bookgateway/internal/cache"
	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/extract"

	"github.com/stretchr/testify/require"
)

var testProfile = Profile{
	ID:         "test",
	Name:       "Test Library",
	SearchPath: "/s/%s",
	DetailPath: "/book/%s",
	Schemas: []extract.Schema{{
		Card:  "li.book",
		Title: extract.Field{Selector: "span.title"},
		Href:  extract.Field{Selector: "a", Attr: "href"},
	}},
}

const testPage = `<ul>
	<li class="book"><span class="title">One</span><a href="/book/1">open</a></li>
	<li class="book"><span class="title">Two</span><a href="/book/2">open</a></li>
	<li class="book"><span class="title">Three</span><a href="/book/3">open</a></li>
	<li class="book"><a href="/book/4">no title</a></li>
</ul>`

func newTestAdapter(t *testing.T, handler http.HandlerFunc, configure ...func(*Options)) (*ScrapeAdapter, *telemetry.Recorder) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	opts := Options{
		BaseUrl:    ts.URL,
		Timeout:    time.Second * 5,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}
	for _, c := range configure {
		c(&opts)
	}

	rec := &telemetry.Recorder{}
	adapter, err := NewScrapeAdapter(testProfile, opts, rec)
	require.NoError(t, err)
	return adapter, rec
}

func TestSearchExtractsRecords(t *testing.T) {
	var gotPath, gotUserAgent string
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotUserAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, testPage)
	})

	result, err := adapter.Search(context.Background(), "war and peace")
	require.NoError(t, err)

	require.Equal(t, "/s/war%20and%20peace", gotPath)
	require.Equal(t, DefaultHeaders["User-Agent"], gotUserAgent)

	require.Equal(t, 3, result.Total)
	require.Equal(t, book.PlatformStatus{ID: "test", Name: "Test Library", Available: true, Total: 3}, result.PlatformStatus)
	titles := []string{}
	for _, r := range result.Records {
		titles = append(titles, r.Title)
		require.Equal(t, "test", r.PlatformID)
		require.Equal(t, "Test Library", r.PlatformName)
	}
	require.Equal(t, []string{"One", "Two", "Three"}, titles)
}

func TestSearchEmptyPage(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	})

	result, err := adapter.Search(context.Background(), "dune")
	require.NoError(t, err)
	require.NotNil(t, result.Records)
	require.Empty(t, result.Records)
	require.False(t, result.PlatformStatus.Available)
}

func TestSearchRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	adapter, rec := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, testPage)
	})

	result, err := adapter.Search(context.Background(), "dune")
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	require.Equal(t, int32(3), hits.Load())

	retries := 0
	for _, r := range rec.Reports(telemetry.KindWarning) {
		if r.ID == "test: "+report_adapter_retry {
			retries++
		}
	}
	require.Equal(t, 2, retries)
}

func TestSearchFailsAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := adapter.Search(context.Background(), "dune")
	require.Error(t, err)
	require.Equal(t, int32(3), hits.Load())

	var searchErr book.SearchError
	require.ErrorAs(t, err, &searchErr)
	require.Equal(t, "Test Library", searchErr.Platform)
	require.Equal(t, "Search failed on Test Library: upstream responded 500 Internal Server Error", err.Error())
	require.Equal(t, http.StatusInternalServerError, book.StatusCode(err))
}

func TestSearchTimeout(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, testPage)
	}, func(o *Options) {
		o.Timeout = 20 * time.Millisecond
		o.MaxRetries = 1
	})

	_, err := adapter.Search(context.Background(), "dune")
	require.EqualError(t, err, "Search failed on Test Library: request timed out")
}

func TestSearchCancelled(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, testPage)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Search(ctx, "dune")
	require.ErrorIs(t, err, context.Canceled)
	var searchErr book.SearchError
	require.ErrorAs(t, err, &searchErr)
	require.Equal(t, "request cancelled", searchErr.Message)
}

func TestSearchUsesCache(t *testing.T) {
	var hits atomic.Int32
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, testPage)
	}, func(o *Options) {
		o.SearchCache = cache.New[book.SearchResult]("test_search", 8, time.Hour)
	})

	for range 3 {
		result, err := adapter.Search(context.Background(), "dune")
		require.NoError(t, err)
		require.Equal(t, 3, result.Total)
	}
	require.Equal(t, int32(1), hits.Load())

	_, err := adapter.Search(context.Background(), "emma")
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestDetail(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/book/42", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html>book 42</html>")
	})

	detail, err := adapter.Detail(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, detail.Status)
	require.Equal(t, "<html>book 42</html>", detail.Content)
	require.Equal(t, "text/html; charset=utf-8", detail.Headers["Content-Type"])
}

func TestDetailNotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := adapter.Detail(context.Background(), "999")
	require.Equal(t, int32(1), hits.Load())

	var notFound book.BookNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "Book 999 not found on Test Library", err.Error())
	require.Equal(t, http.StatusNotFound, book.StatusCode(err))
}

func TestDetailNotFoundIsNotCached(t *testing.T) {
	var hits atomic.Int32
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "published")
	}, func(o *Options) {
		o.DetailCache = cache.New[book.Detail]("test_detail", 8, time.Hour)
	})

	_, err := adapter.Detail(context.Background(), "7")
	require.True(t, errors.As(err, &book.BookNotFoundError{}))

	detail, err := adapter.Detail(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "published", detail.Content)
}

func TestDetailServerErrorIsRetried(t *testing.T) {
	var hits atomic.Int32
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := adapter.Detail(context.Background(), "1")
	require.Equal(t, int32(3), hits.Load())
	require.Equal(t, http.StatusInternalServerError, book.StatusCode(err))
}

func TestNewScrapeAdapterRejectsRelativeBaseUrl(t *testing.T) {
	_, err := NewScrapeAdapter(testProfile, Options{BaseUrl: "z-library.sk"}, &telemetry.Recorder{})
	require.Error(t, err)
}

func TestCloudflareBypassClientStillServes(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, testPage)
	}, func(o *Options) {
		o.CloudflareBypass = true
	})

	result, err := adapter.Search(context.Background(), "dune")
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
}

func TestRequestPathsAreSentAsBuilt(t *testing.T) {
	cases := []struct {
		name   string
		cached bool
	}{
		{name: "without cache"},
		{name: "with cache", cached: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var mutex sync.Mutex
			var paths []string
			adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				mutex.Lock()
				paths = append(paths, r.URL.EscapedPath())
				mutex.Unlock()
				fmt.Fprint(w, testPage)
			}, func(o *Options) {
				if tc.cached {
					o.SearchCache = cache.New[book.SearchResult]("test_search", 8, time.Hour)
					o.DetailCache = cache.New[book.Detail]("test_detail", 8, time.Hour)
				}
			})

			for _, id := range []string{"1", "a/b", "x?y"} {
				_, err := adapter.Detail(context.Background(), id)
				require.NoError(t, err)
			}
			for _, keyword := range []string{"dune", "a/b", "100%"} {
				_, err := adapter.Search(context.Background(), keyword)
				require.NoError(t, err)
			}

			mutex.Lock()
			defer mutex.Unlock()
			require.Equal(t, []string{
				"/book/1",
				"/book/a%2Fb",
				"/book/x%3Fy",
				"/s/dune",
				"/s/a%2Fb",
				"/s/100%25",
			}, paths)
		})
	}
}

func TestOnlySearchSkipsCertificateVerification(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, testPage)
	}))
	t.Cleanup(ts.Close)

	adapter, err := NewScrapeAdapter(testProfile, Options{
		BaseUrl:    ts.URL,
		Timeout:    time.Second * 5,
		MaxRetries: 1,
	}, &telemetry.Recorder{})
	require.NoError(t, err)

	result, err := adapter.Search(context.Background(), "dune")
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)

	_, err = adapter.Detail(context.Background(), "1")
	var searchErr book.SearchError
	require.ErrorAs(t, err, &searchErr)
	var unknownAuthority x509.UnknownAuthorityError
	require.ErrorAs(t, err, &unknownAuthority)
}

type memoryDump struct {
	mutex sync.Mutex
	files map[string]string
}

func (m *memoryDump) Write(id, contents string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.files == nil {
		m.files = map[string]string{}
	}
	m.files[id] = contents
}

func TestDumpOutputRecordsExchanges(t *testing.T) {
	out := &memoryDump{}
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, testPage)
	}, func(o *Options) {
		o.DumpOutput = out
	})

	result, err := adapter.Search(context.Background(), "dune")
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	_, err = adapter.Detail(context.Background(), "1")
	require.NoError(t, err)

	out.mutex.Lock()
	defer out.mutex.Unlock()
	require.Contains(t, out.files["test-search-1.http"], "GET "+adapter.baseUrl.String()+"/s/dune")
	require.Contains(t, out.files["test-search-1.http"], "---- RESPONSE ----")
	require.Contains(t, out.files["test-detail-1.http"], "/book/1")
}
