package catalog

import (
	"errors"

	"github.com/maltedev/dampfi-automation/internal/database"
	"github.com/maltedev/dampfi-automation/internal/lock"
	"github.com/maltedev/dampfi-automation/internal/validate"
)

var (
	ErrSiteDown           = errors.New("dampfi.ch appears to be down")
	ErrExtractionFailed   = errors.New("product extraction failed")
	ErrNoItems            = errors.New("no items selected")
	ErrCredentialsMissing = errors.New("user credentials not configured")
	ErrCredentialsInvalid = errors.New("email and password are required")

	ErrProductNotFound    = database.ErrProductNotFound
	ErrDuplicateProduct   = database.ErrDuplicateProduct
	ErrUserNotFound       = database.ErrUserNotFound
	ErrInvalidProductURL  = validate.ErrInvalidProductURL
	ErrInvalidUserID      = validate.ErrInvalidUserID
	ErrCheckoutInProgress = lock.ErrCheckoutInProgress
)
