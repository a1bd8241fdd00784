package models

import (
	"errors"
	"fmt"
	"strings"
)

type FetchErrorKind string

const (
	FetchNetwork    FetchErrorKind = "network"
	FetchHTTPStatus FetchErrorKind = "http_status"
)

// FetchError is returned by the metadata extractor when the page could not be retrieved.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Detail     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Detail)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsSiteDown reports whether the failure looks like the target site being unreachable.
func (e *FetchError) IsSiteDown() bool {
	if e.Kind != FetchNetwork {
		return false
	}
	detail := strings.ToLower(e.Detail)
	return strings.Contains(detail, "timeout") ||
		strings.Contains(detail, "connection") ||
		strings.Contains(detail, "deadline exceeded") ||
		strings.Contains(detail, "no such host")
}

// AsFetchError unwraps err into a *FetchError if it carries one.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
