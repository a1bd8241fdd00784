package models

import (
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyProductURL = errors.New("product url is required")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// LineItem is one requested cart entry. It is never modified once handed to a checkout run.
type LineItem struct {
	ProductURL   string  `json:"product_url"`
	Quantity     int     `json:"quantity"`
	VariantValue *string `json:"option_value,omitempty"`
}

func (l LineItem) Validate() error {
	if l.ProductURL == "" {
		return ErrEmptyProductURL
	}
	if l.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

func (l LineItem) HasVariant() bool {
	return l.VariantValue != nil && *l.VariantValue != ""
}

// Credentials for the target shop. The secret is redacted in every textual form.
type Credentials struct {
	LoginIdentifier string `json:"login_identifier"`
	Secret          string `json:"-"`
}

func (c Credentials) String() string {
	return c.LoginIdentifier + ":***"
}

func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.LoginIdentifier)
}

func (c Credentials) IsComplete() bool {
	return c.LoginIdentifier != "" && c.Secret != ""
}

type Confirmation struct {
	OrderNumber *string `json:"order_number,omitempty"`
	StatusText  *string `json:"status,omitempty"`
}

func (c *Confirmation) IsConfirmed() bool {
	return c != nil && c.StatusText != nil && *c.StatusText == ConfirmedStatus
}

const ConfirmedStatus = "confirmed"

// ItemResult records whether a line item actually reached the cart.
type ItemResult struct {
	Item       LineItem `json:"item"`
	Added      bool     `json:"added"`
	SkipReason string   `json:"skip_reason,omitempty"`
}

type FailureKind string

const (
	FailureAutomation FailureKind = "automation"
	FailureTimeout    FailureKind = "timeout"
)

type Failure struct {
	Kind   FailureKind `json:"kind"`
	State  string      `json:"state"`
	Detail string      `json:"detail"`
}

// CheckoutOutcome is the terminal result of one checkout run.
type CheckoutOutcome struct {
	RunID        string           `json:"run_id"`
	Succeeded    bool             `json:"succeeded"`
	OrderTotal   *decimal.Decimal `json:"order_total,omitempty"`
	Confirmation *Confirmation    `json:"confirmation,omitempty"`
	Items        []ItemResult     `json:"items"`
	Failure      *Failure         `json:"failure,omitempty"`
	FinishedAt   time.Time        `json:"finished_at"`
}

func NewSucceededOutcome(runID string, total *decimal.Decimal, confirmation *Confirmation, items []ItemResult) CheckoutOutcome {
	return CheckoutOutcome{
		RunID:        runID,
		Succeeded:    true,
		OrderTotal:   total,
		Confirmation: confirmation,
		Items:        items,
		FinishedAt:   time.Now(),
	}
}

func NewFailedOutcome(runID string, failure Failure, items []ItemResult) CheckoutOutcome {
	return CheckoutOutcome{
		RunID:      runID,
		Succeeded:  false,
		Items:      items,
		Failure:    &failure,
		FinishedAt: time.Now(),
	}
}

// AddedCount returns how many line items reached the cart.
func (o CheckoutOutcome) AddedCount() int {
	n := 0
	for _, r := range o.Items {
		if r.Added {
			n++
		}
	}
	return n
}

// Order is the persisted record of a successful checkout.
type Order struct {
	ID           int64            `json:"id"`
	UserID       int              `json:"user_id"`
	Timestamp    time.Time        `json:"timestamp"`
	TotalPrice   *decimal.Decimal `json:"total_price"`
	Items        []ItemResult     `json:"items"`
	Status       string           `json:"status"`
	Confirmation *Confirmation    `json:"confirmation_data,omitempty"`
}

// User is an operator-side account with its stored shop credentials.
type User struct {
	ID          int         `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Credentials Credentials `json:"-"`
}
