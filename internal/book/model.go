// Package book holds the normalized records returned by platform adapters and
// the typed errors surfaced to gateway callers.
package book

// Record is one book scraped from a platform's search results.
//
// A Record is only built once Title and SourceURL are both known, see
// extract.Extract.
type Record struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Year          string `json:"year"`
	ISBN          string `json:"isbn"`
	Publisher     string `json:"publisher"`
	Extension     string `json:"extension"`
	FilesizeLabel string `json:"filesize"`
	Language      string `json:"language"`
	Pages         string `json:"pages"`
	Quality       string `json:"quality"`
	Rating        string `json:"rating"`
	SourceURL     string `json:"book_url"`
	PlatformID    string `json:"platform_id"`
	PlatformName  string `json:"source"`
}

type PlatformStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Total     int    `json:"total"`
}

// SearchResult is what an adapter returns for a keyword search.
type SearchResult struct {
	Records        []Record       `json:"books"`
	Total          int            `json:"total"`
	PlatformStatus PlatformStatus `json:"platform_status"`
}

// NewSearchResult wraps records, keeping their order, and derives the totals.
func NewSearchResult(platformId, platformName string, records []Record) SearchResult {
	if records == nil {
		records = []Record{}
	}
	return SearchResult{
		Records: records,
		Total:   len(records),
		PlatformStatus: PlatformStatus{
			ID:        platformId,
			Name:      platformName,
			Available: len(records) > 0,
			Total:     len(records),
		},
	}
}

// Detail is the raw upstream response for a single book page.
type Detail struct {
	Content string            `json:"content"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
}
