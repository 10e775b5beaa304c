// Package testutil stands in for book platforms in tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Page is a canned upstream response.
type Page struct {
	Status  int
	Headers map[string]string
	Body    string
}

// Upstream is an httptest server answering from a fixed set of pages, any
// other path gets a 404. Requested paths are recorded.
type Upstream struct {
	URL string

	mutex     sync.Mutex
	pages     map[string]Page
	requested []string
}

// NewUpstream starts an upstream serving pages, keyed by url path, for the
// duration of the test.
func NewUpstream(t testing.TB, pages map[string]Page) *Upstream {
	t.Helper()

	u := &Upstream{pages: pages}
	server := httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(server.Close)
	u.URL = server.URL
	return u
}

// HTML is a 200 text/html page.
func HTML(body string) Page {
	return Page{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/html; charset=utf-8"},
		Body:    body,
	}
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mutex.Lock()
	u.requested = append(u.requested, r.URL.Path)
	page, ok := u.pages[r.URL.Path]
	u.mutex.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for k, v := range page.Headers {
		w.Header().Set(k, v)
	}
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page.Body))
}

// Requested returns the paths requested so far, in order.
func (u *Upstream) Requested() []string {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return append([]string(nil), u.requested...)
}
