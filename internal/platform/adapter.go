// Package platform adapts book platforms behind a common interface and keeps
// the registry the gateway resolves them from.
package platform

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookgateway/internal/book"
	"bookgateway/internal/cache"
	"bookgateway/internal/components/assert"
	"bookgateway/internal/components/metrics"
	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/extract"
	"bookgateway/internal/retry"
	"bookgateway/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bookgateway/internal/platform")

const (
	report_adapter_search = "adapter.search"
	report_adapter_detail = "adapter.detail"
	report_adapter_retry  = "adapter.retry"
)

const (
	opSearch = "search"
	opDetail = "detail"

	outcomeOk       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Adapter searches one book platform.
type Adapter interface {
	ID() string
	Name() string
	// Search returns the books the platform lists for keyword. Pages the
	// adapter cannot read give an empty result, not an error.
	Search(ctx context.Context, keyword string) (book.SearchResult, error)
	// Detail returns the platform's page for the book id as is.
	Detail(ctx context.Context, id string) (book.Detail, error)
}

// Profile is the static description of an HTML platform.
type Profile struct {
	ID   string
	Name string
	// SearchPath and DetailPath are fmt templates taking the path escaped
	// keyword or book id.
	SearchPath string
	DetailPath string
	Schemas    []extract.Schema
}

// DefaultHeaders are sent with every upstream request unless overridden.
var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

type Options struct {
	BaseUrl    string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	CloudflareBypass bool
	// DumpOutput receives every raw HTTP exchange when not nil.
	DumpOutput restyutil.Output

	// Caches are optional, nil disables caching.
	SearchCache *cache.Cache[book.SearchResult]
	DetailCache *cache.Cache[book.Detail]
}

// ScrapeAdapter is an Adapter for platforms that serve their search results as
// HTML pages.
type ScrapeAdapter struct {
	profile      Profile
	baseUrl      *url.URL
	searchClient *resty.Client
	detailClient *resty.Client
	extractor    extract.Extractor
	maxRetries   int
	retryDelay   time.Duration
	searchCache  *cache.Cache[book.SearchResult]
	detailCache  *cache.Cache[book.Detail]
	tel          telemetry.API
}

func NewScrapeAdapter(profile Profile, opts Options, tel telemetry.API) (*ScrapeAdapter, error) {
	assert.NotEmptyStr(profile.ID, "profile.ID")
	assert.NotEmptyStr(profile.SearchPath, "profile.SearchPath")
	assert.NotEmptyStr(profile.DetailPath, "profile.DetailPath")
	assert.NotNil(tel, "tel")

	tel = telemetry.NewScopedAPI(profile.ID, tel)

	baseUrl, err := url.Parse(strings.TrimRight(opts.BaseUrl, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}

	a := &ScrapeAdapter{
		profile:     profile,
		baseUrl:     baseUrl,
		extractor:   extract.NewExtractor(profile.ID, profile.Name, tel, profile.Schemas...),
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
		searchCache: opts.SearchCache,
		detailCache: opts.DetailCache,
		tel:         tel,
	}
	// the search endpoint has been seen serving broken certificate chains
	// while the book pages do not
	a.searchClient = a.newClient(opts, opSearch, true)
	a.detailClient = a.newClient(opts, opDetail, false)
	return a, nil
}

func (a *ScrapeAdapter) newClient(opts Options, op string, insecure bool) *resty.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	var roundTripper http.RoundTripper = transport
	if opts.CloudflareBypass {
		roundTripper = cloudflarebp.AddCloudFlareByPass(transport)
	}
	if insecure {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	client := resty.NewWithClient(&http.Client{Transport: roundTripper})
	client.SetTimeout(opts.Timeout)
	headers := opts.Headers
	if headers == nil {
		headers = DefaultHeaders
	}
	client.SetHeaders(headers)

	telemetry.InstrumentResty(client, "bookgateway/internal/platform", a.tel)
	restyutil.DumpExchanges(client, a.profile.ID+"-"+op, opts.DumpOutput)
	return client
}

func (a *ScrapeAdapter) ID() string {
	return a.profile.ID
}

func (a *ScrapeAdapter) Name() string {
	return a.profile.Name
}

func (a *ScrapeAdapter) endpoint(template, value string) (*url.URL, error) {
	path := fmt.Sprintf(template, url.PathEscape(value))
	return url.Parse(a.baseUrl.String() + path)
}

func (a *ScrapeAdapter) policy(op string) retry.Policy {
	return retry.Policy{
		MaxAttempts: a.maxRetries,
		Delay:       a.retryDelay,
		OnRetry: func(attempt int, err error) {
			metrics.UpstreamRetriesTotal.WithLabelValues(a.profile.ID, op).Inc()
			a.tel.ReportWarning(report_adapter_retry, op, attempt, err)
		},
	}
}

// statusError is a non-2xx answer from the platform.
type statusError struct {
	status string
}

func (e statusError) Error() string {
	return fmt.Sprintf("upstream responded %s", e.status)
}

func (a *ScrapeAdapter) get(ctx context.Context, client *resty.Client, endpoint *url.URL, allowNotFound bool) (*resty.Response, error) {
	res, err := client.R().SetContext(ctx).Get(endpoint.String())
	if err != nil {
		return nil, err
	}
	if allowNotFound && res.StatusCode() == http.StatusNotFound {
		return res, nil
	}
	if !res.IsSuccess() {
		return nil, statusError{status: res.Status()}
	}
	return res, nil
}

func (a *ScrapeAdapter) Search(ctx context.Context, keyword string) (book.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "adapter.search")
	defer span.End()

	endpoint, err := a.endpoint(a.profile.SearchPath, keyword)
	if err != nil {
		return book.SearchResult{}, a.wrapError(err)
	}
	span.SetAttributes(
		attribute.String("platform", a.profile.ID),
		attribute.String("keyword", keyword),
		attribute.String("endpoint", endpoint.String()),
	)

	result, err := a.searchCache.Get(ctx, cache.Key(opSearch, endpoint), func(ctx context.Context) (book.SearchResult, error) {
		records, err := retry.Do(ctx, a.policy(opSearch), func(ctx context.Context) ([]book.Record, error) {
			res, err := a.get(ctx, a.searchClient, endpoint, false)
			if err != nil {
				return nil, err
			}
			return a.extractor.Extract(res.String(), a.baseUrl.String()), nil
		})
		if err != nil {
			return book.SearchResult{}, err
		}
		metrics.ExtractedRecordsTotal.WithLabelValues(a.profile.ID).Add(float64(len(records)))
		return book.NewSearchResult(a.profile.ID, a.profile.Name, records), nil
	})
	if err != nil {
		err = a.wrapError(err)
		a.tel.ReportWarning(report_adapter_search, keyword, err)
		metrics.UpstreamRequestsTotal.WithLabelValues(a.profile.ID, opSearch, outcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return book.SearchResult{}, err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(a.profile.ID, opSearch, outcomeOk).Inc()
	span.SetAttributes(attribute.Int("total", result.Total))
	return result, nil
}

func (a *ScrapeAdapter) Detail(ctx context.Context, id string) (book.Detail, error) {
	ctx, span := tracer.Start(ctx, "adapter.detail")
	defer span.End()

	endpoint, err := a.endpoint(a.profile.DetailPath, id)
	if err != nil {
		return book.Detail{}, a.wrapError(err)
	}
	span.SetAttributes(
		attribute.String("platform", a.profile.ID),
		attribute.String("book_id", id),
		attribute.String("endpoint", endpoint.String()),
	)

	detail, err := a.detailCache.Get(ctx, cache.Key(opDetail, endpoint), func(ctx context.Context) (book.Detail, error) {
		res, err := retry.Do(ctx, a.policy(opDetail), func(ctx context.Context) (*resty.Response, error) {
			return a.get(ctx, a.detailClient, endpoint, true)
		})
		if err != nil {
			return book.Detail{}, err
		}
		if res.StatusCode() == http.StatusNotFound {
			return book.Detail{}, book.BookNotFoundError{BookID: id, Platform: a.profile.Name}
		}
		return book.Detail{
			Content: res.String(),
			Status:  res.StatusCode(),
			Headers: flattenHeaders(res.Header()),
		}, nil
	})

	var notFound book.BookNotFoundError
	switch {
	case errors.As(err, &notFound):
		metrics.UpstreamRequestsTotal.WithLabelValues(a.profile.ID, opDetail, outcomeNotFound).Inc()
		span.SetStatus(codes.Error, "book not found")
		return book.Detail{}, notFound
	case err != nil:
		err = a.wrapError(err)
		a.tel.ReportWarning(report_adapter_detail, id, err)
		metrics.UpstreamRequestsTotal.WithLabelValues(a.profile.ID, opDetail, outcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail failed")
		return book.Detail{}, err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(a.profile.ID, opDetail, outcomeOk).Inc()
	return detail, nil
}

// wrapError turns whatever ended an upstream request into a SearchError.
func (a *ScrapeAdapter) wrapError(err error) error {
	var message string
	var status statusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	case errors.As(err, &status):
		message = status.Error()
	default:
		message = err.Error()
	}
	return book.SearchError{Platform: a.profile.Name, Message: message, Err: err}
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for k, v := range header {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
