package api

import (
	"errors"
	"net/http"

	"github.com/maltedev/dampfi-automation/internal/catalog"
)

// statusFor maps service errors to HTTP status codes. Unknown errors are internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidProductURL),
		errors.Is(err, catalog.ErrInvalidUserID),
		errors.Is(err, catalog.ErrDuplicateProduct),
		errors.Is(err, catalog.ErrNoItems),
		errors.Is(err, catalog.ErrCredentialsMissing),
		errors.Is(err, catalog.ErrCredentialsInvalid):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrSiteDown):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the error text shown to API clients.
func messageFor(err error) string {
	switch {
	case errors.Is(err, catalog.ErrSiteDown):
		return catalog.ErrSiteDown.Error()
	case errors.Is(err, catalog.ErrDuplicateProduct):
		return "product with this URL already exists"
	case statusFor(err) == http.StatusInternalServerError && !errors.Is(err, catalog.ErrExtractionFailed):
		return "internal server error"
	}
	return err.Error()
}
