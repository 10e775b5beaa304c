package gateway

import (
	"errors"
	"net/http"
	"strings"

	"bookgateway/internal/book"
	"bookgateway/lib/textutil"

	"github.com/gin-gonic/gin"
)

const (
	errNoKeywords     = "No keywords provided"
	errInvalidKeyword = "Invalid keyword"
	errInvalidBody    = "Invalid request body"
)

func (g *Gateway) fail(c *gin.Context, reportId string, err error) {
	status := book.StatusCode(err)
	if status >= http.StatusInternalServerError {
		g.tel.ReportWarning(reportId, err)
		_ = c.Error(err)
	}

	message := err.Error()
	var searchErr book.SearchError
	var notFound book.BookNotFoundError
	var platformErr book.PlatformNotFoundError
	if !errors.As(err, &searchErr) && !errors.As(err, &notFound) && !errors.As(err, &platformErr) {
		// never leak raw internals to clients
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}

func (g *Gateway) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (g *Gateway) search(c *gin.Context) {
	adapter, err := g.registry.Get(c.Param("platform"))
	if err != nil {
		g.fail(c, report_gateway_search, err)
		return
	}
	result, err := adapter.Search(c.Request.Context(), c.Param("keyword"))
	if err != nil {
		g.fail(c, report_gateway_search, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (g *Gateway) detail(c *gin.Context) {
	adapter, err := g.registry.Get(c.Param("platform"))
	if err != nil {
		g.fail(c, report_gateway_detail, err)
		return
	}
	detail, err := adapter.Detail(c.Request.Context(), c.Param("book_id"))
	if err != nil {
		g.fail(c, report_gateway_detail, err)
		return
	}
	c.JSON(detail.Status, detail)
}

type searchRequest struct {
	Keywords  *string  `json:"keywords"`
	Page      *int     `json:"page"`
	PerPage   *int     `json:"per_page"`
	Platforms []string `json:"platforms"`
}

// keyword picks what is actually searched for out of the keywords field: the
// first comma separated token, with the dashes of an ISBN removed.
func keyword(keywords string) string {
	first := textutil.FirstToken(keywords)
	if textutil.IsISBN(first) {
		return textutil.StripISBN(first)
	}
	return first
}

func (g *Gateway) apiSearch(c *gin.Context) {
	var req searchRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}
	if req.Keywords == nil || strings.TrimSpace(*req.Keywords) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoKeywords})
		return
	}
	kw := keyword(*req.Keywords)
	if kw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidKeyword})
		return
	}

	page, perPage := book.DefaultPage, book.DefaultPerPage
	if req.Page != nil {
		page = *req.Page
	}
	if req.PerPage != nil {
		perPage = *req.PerPage
	}
	// validate before going upstream
	_, err = book.Paginate(nil, page, perPage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := g.registry.SearchAll(c.Request.Context(), kw, req.Platforms...)
	if err != nil {
		g.fail(c, report_gateway_api_search, err)
		return
	}

	var records []book.Record
	for _, r := range results {
		records = append(records, r.Records...)
	}
	paginated, _ := book.Paginate(records, page, perPage)
	c.JSON(http.StatusOK, paginated)
}
