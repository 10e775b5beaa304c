// Package extract turns a platform's search results page into book records.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"bookgateway/internal/book"
	"bookgateway/internal/components/assert"
	"bookgateway/internal/components/telemetry"
	"bookgateway/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extract_parse   = "extract.parse"
	report_extract_card    = "extract.card"
	report_extract_cards   = "extract.cards"
	report_extract_records = "extract.records"
)

var (
	errMissingTitle = errors.New("missing title")
	errMissingHref  = errors.New("missing href")
)

// Field tells the extractor where a value lives inside a result card.
//
// With an empty Selector the card element itself is read, otherwise the first
// descendant matching Selector. With an empty Attr the element's text is read,
// otherwise the named attribute. The zero Field means the schema does not
// provide the value.
type Field struct {
	Selector string
	Attr     string
}

func (f Field) read(card *goquery.Selection) string {
	if f == (Field{}) {
		return ""
	}
	sel := card
	if f.Selector != "" {
		sel = card.Find(f.Selector).First()
	}
	if sel.Length() == 0 {
		return ""
	}
	if f.Attr != "" {
		return htmlutil.CleanText(sel.AttrOr(f.Attr, ""))
	}
	return htmlutil.SelectionText(sel)
}

// Schema describes one layout of a search results page.
type Schema struct {
	// Card is the CSS selector matching every result card.
	Card string

	Title     Field
	Author    Field
	Year      Field
	ISBN      Field
	Publisher Field
	Extension Field
	Filesize  Field
	Language  Field
	Href      Field
	Pages     Field
	Quality   Field
	Rating    Field

	// Defaults fills optional fields the card does not carry. Title and
	// SourceURL are never defaulted.
	Defaults book.Record
}

// Extractor parses result pages for a single platform.
type Extractor struct {
	platformId   string
	platformName string
	schemas      []Schema
	tel          telemetry.API
}

// NewExtractor creates an extractor trying schemas in order, the first one
// whose card selector matches anything is used for the whole page.
func NewExtractor(platformId, platformName string, tel telemetry.API, schemas ...Schema) Extractor {
	assert.NotEmptyStr(platformId, "platformId")
	assert.NotNil(tel, "tel")
	assert.Positive(len(schemas), "len(schemas)")
	for _, s := range schemas {
		assert.NotEmptyStr(s.Card, "schema.Card")
	}

	return Extractor{
		platformId:   platformId,
		platformName: platformName,
		schemas:      schemas,
		tel:          tel,
	}
}

// Extract returns the records found in html in document order. It never
// fails: unparsable input or a page without cards gives an empty slice, and
// cards that are missing a title or href, or that fail to be read, are
// skipped and reported.
func (e Extractor) Extract(html, baseUrl string) []book.Record {
	records := []book.Record{}
	if strings.TrimSpace(html) == "" {
		return records
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.tel.ReportWarning(report_extract_parse, err)
		return records
	}

	schema, cards := e.matchSchema(doc)
	e.tel.ReportCount(report_extract_cards, int64(cards.Length()))

	cards.Each(func(i int, card *goquery.Selection) {
		record, err := e.extractCard(card, baseUrl, schema)
		if err != nil {
			e.tel.ReportWarning(report_extract_card, fmt.Errorf("card %d: %w", i, err))
			return
		}
		records = append(records, record)
	})

	e.tel.ReportCount(report_extract_records, int64(len(records)))
	return records
}

func (e Extractor) matchSchema(doc *goquery.Document) (Schema, *goquery.Selection) {
	for _, schema := range e.schemas {
		cards := doc.Find(schema.Card)
		if cards.Length() > 0 {
			return schema, cards
		}
	}
	return e.schemas[0], doc.Find(e.schemas[0].Card)
}

func (e Extractor) extractCard(card *goquery.Selection, baseUrl string, schema Schema) (record book.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read card: %v", r)
		}
	}()

	title := schema.Title.read(card)
	if title == "" {
		return book.Record{}, errMissingTitle
	}
	sourceUrl := htmlutil.JoinURL(baseUrl, schema.Href.read(card))
	if sourceUrl == "" {
		return book.Record{}, errMissingHref
	}

	d := schema.Defaults
	return book.Record{
		Title:         title,
		Author:        orDefault(schema.Author.read(card), d.Author),
		Year:          orDefault(schema.Year.read(card), d.Year),
		ISBN:          orDefault(schema.ISBN.read(card), d.ISBN),
		Publisher:     orDefault(schema.Publisher.read(card), d.Publisher),
		Extension:     orDefault(schema.Extension.read(card), d.Extension),
		FilesizeLabel: orDefault(schema.Filesize.read(card), d.FilesizeLabel),
		Language:      orDefault(schema.Language.read(card), d.Language),
		Pages:         orDefault(schema.Pages.read(card), d.Pages),
		Quality:       orDefault(schema.Quality.read(card), d.Quality),
		Rating:        orDefault(schema.Rating.read(card), d.Rating),
		SourceURL:     sourceUrl,
		PlatformID:    e.platformId,
		PlatformName:  e.platformName,
	}, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
