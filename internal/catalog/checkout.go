package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/dampfi-automation/internal/database"
	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/maltedev/dampfi-automation/internal/validate"
)

const OrderStatusCompleted = "completed"

// Checkouter runs one checkout against the shop. *checkout.Orchestrator implements it.
type Checkouter interface {
	Checkout(ctx context.Context, creds models.Credentials, items []models.LineItem) models.CheckoutOutcome
}

// Locker serializes checkouts per user. *lock.CheckoutLock implements it.
type Locker interface {
	Acquire(ctx context.Context, userID int) (func(context.Context) error, error)
}

type CheckoutService struct {
	store        OrderStore
	orchestrator Checkouter
	locker       Locker
	validator    *validate.Validator
	logger       *slog.Logger
}

func NewCheckoutService(store OrderStore, orchestrator Checkouter, locker Locker, validator *validate.Validator, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		store:        store,
		orchestrator: orchestrator,
		locker:       locker,
		validator:    validator,
		logger:       logger.With("component", "checkout_service"),
	}
}

type CheckoutResult struct {
	Outcome models.CheckoutOutcome `json:"outcome"`
	// Order is nil when the run failed or the order could not be recorded.
	Order *models.Order `json:"order,omitempty"`
}

func (s *CheckoutService) Checkout(ctx context.Context, userID int, items []models.LineItem) (*CheckoutResult, error) {
	if err := s.validator.UserID(userID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Credentials.IsComplete() {
		return nil, ErrCredentialsMissing
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, userID)
		if err != nil {
			return nil, err
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				s.logger.Warn("failed to release checkout lock", "user", userID, "error", err)
			}
		}()
	}

	outcome := s.orchestrator.Checkout(ctx, user.Credentials, items)
	result := &CheckoutResult{Outcome: outcome}
	if !outcome.Succeeded {
		return result, nil
	}

	order := &models.Order{
		UserID:       userID,
		TotalPrice:   outcome.OrderTotal,
		Items:        outcome.Items,
		Status:       OrderStatusCompleted,
		Confirmation: outcome.Confirmation,
	}
	if err := s.store.RecordOrder(context.WithoutCancel(ctx), order, outcome.RunID); err != nil {
		s.logger.Error("order placed but not recorded",
			"user", userID,
			"run_id", outcome.RunID,
			"error", err)
		return result, nil
	}

	s.logger.Info("order recorded", "user", userID, "order_id", order.ID, "run_id", outcome.RunID)
	result.Order = order
	return result, nil
}

func (s *CheckoutService) SaveCredentials(ctx context.Context, userID int, email, password string) error {
	if err := s.validator.UserID(userID); err != nil {
		return err
	}
	creds := models.Credentials{
		LoginIdentifier: strings.TrimSpace(email),
		Secret:          strings.TrimSpace(password),
	}
	if !creds.IsComplete() {
		return ErrCredentialsInvalid
	}
	if err := s.store.UpdateCredentials(ctx, userID, creds); err != nil {
		return err
	}
	s.logger.Info("credentials saved", "user", userID, "credentials", creds)
	return nil
}

func (s *CheckoutService) Orders(ctx context.Context, userID int) ([]*models.Order, error) {
	if err := s.validator.UserID(userID); err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx, userID, database.DefaultOrderHistoryLimit)
}

func (s *CheckoutService) Users(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}
