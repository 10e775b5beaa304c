package book

import (
	"errors"
	"fmt"
	"net/http"
)

// PlatformNotFoundError means no adapter is registered under the requested key.
type PlatformNotFoundError struct {
	Platform string
}

func (e PlatformNotFoundError) Error() string {
	return fmt.Sprintf("Platform %s is not supported", e.Platform)
}

func (PlatformNotFoundError) StatusCode() int {
	return http.StatusBadRequest
}

// SearchError means the upstream request failed: timeout, transport error,
// non-2xx status or anything unexpected while searching.
type SearchError struct {
	Platform string
	Message  string
	Err      error
}

func (e SearchError) Error() string {
	return fmt.Sprintf("Search failed on %s: %s", e.Platform, e.Message)
}

func (e SearchError) Unwrap() error {
	return e.Err
}

func (SearchError) StatusCode() int {
	return http.StatusInternalServerError
}

// BookNotFoundError means the upstream explicitly reported the id as absent.
type BookNotFoundError struct {
	BookID   string
	Platform string
}

func (e BookNotFoundError) Error() string {
	return fmt.Sprintf("Book %s not found on %s", e.BookID, e.Platform)
}

func (BookNotFoundError) StatusCode() int {
	return http.StatusNotFound
}

type statusCoder interface {
	StatusCode() int
}

// StatusCode maps an error to the HTTP status a gateway should answer with.
// Errors outside of this package's taxonomy map to 500.
func StatusCode(err error) int {
	var coded statusCoder
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return http.StatusInternalServerError
}
