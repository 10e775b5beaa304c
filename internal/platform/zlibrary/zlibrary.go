// Package zlibrary describes the Z-Library search and book pages.
package zlibrary

import (
	"bookgateway/internal/book"
	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/extract"
	"bookgateway/internal/platform"
)

const (
	ID             = "zlibrary"
	Name           = "Z-Library"
	DefaultBaseUrl = "https://z-library.sk"
)

// BookcardSchema reads the current layout where every result is a
// <z-bookcard> element carrying its metadata as attributes.
var BookcardSchema = extract.Schema{
	Card:      "z-bookcard",
	Title:     extract.Field{Selector: `div[slot="title"]`},
	Author:    extract.Field{Selector: `div[slot="author"]`},
	Year:      extract.Field{Attr: "year"},
	ISBN:      extract.Field{Attr: "isbn"},
	Publisher: extract.Field{Attr: "publisher"},
	Extension: extract.Field{Attr: "extension"},
	Filesize:  extract.Field{Attr: "filesize"},
	Language:  extract.Field{Attr: "language"},
	Href:      extract.Field{Attr: "href"},
	Pages:     extract.Field{Attr: "pages"},
	Quality:   extract.Field{Attr: "quality"},
	Rating:    extract.Field{Attr: "rating"},
	Defaults: book.Record{
		Author:    "Unknown",
		Year:      "Unknown",
		Publisher: "Unknown",
		Language:  "Unknown",
		Pages:     "Unknown",
		Quality:   "0.0",
		Rating:    "0.0",
	},
}

// LegacySchema reads the older table-like layout still served by some mirrors.
var LegacySchema = extract.Schema{
	Card:   "div.resItemBox",
	Title:  extract.Field{Selector: "h3.title"},
	Author: extract.Field{Selector: "div.authors"},
	Year:   extract.Field{Selector: "div.property_year"},
	Href:   extract.Field{Selector: "a.dlButton", Attr: "href"},
	Defaults: book.Record{
		Author:    "Unknown",
		Year:      "Unknown",
		Publisher: "Unknown",
		Language:  "Unknown",
		Pages:     "Unknown",
		Quality:   "0.0",
		Rating:    "0.0",
	},
}

var Profile = platform.Profile{
	ID:         ID,
	Name:       Name,
	SearchPath: "/s/%s",
	DetailPath: "/book/%s",
	Schemas:    []extract.Schema{BookcardSchema, LegacySchema},
}

// New creates a Z-Library adapter, an empty base url means DefaultBaseUrl.
func New(opts platform.Options, tel telemetry.API) (*platform.ScrapeAdapter, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	return platform.NewScrapeAdapter(Profile, opts, tel)
}
