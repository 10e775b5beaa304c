package book

import "fmt"

const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// Page is the gateway-level envelope for a slice of a result set.
type Page struct {
	Results    []Record `json:"results"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
}

// Paginate slices records to [(page-1)*perPage, page*perPage). Pages past
// the end give an empty slice, only page < 1 or perPage < 1 is an error.
func Paginate(records []Record, page, perPage int) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if perPage < 1 {
		return Page{}, fmt.Errorf("per_page must be >= 1, got %d", perPage)
	}

	total := len(records)
	results := []Record{}

	// compare before multiplying so absurd page numbers cannot overflow
	if page-1 <= total/perPage {
		start := (page - 1) * perPage
		if start < total {
			end := total
			if perPage < total-start {
				end = start + perPage
			}
			results = records[start:end]
		}
	}

	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}

	return Page{
		Results:    results,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}
