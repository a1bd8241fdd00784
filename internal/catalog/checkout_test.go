package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/maltedev/dampfi-automation/internal/validate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func configuredUser(id int) *models.User {
	return &models.User{
		ID:       id,
		Username: "user1",
		Credentials: models.Credentials{
			LoginIdentifier: "kunde@example.ch",
			Secret:          "geheim",
		},
	}
}

func mangoItems() []models.LineItem {
	return []models.LineItem{{ProductURL: mangoURL, Quantity: 2, VariantValue: models.StringPtr("101")}}
}

func succeededOutcome() models.CheckoutOutcome {
	total := decimal.RequireFromString("13.80")
	return models.NewSucceededOutcome("run-42", &total,
		&models.Confirmation{OrderNumber: models.StringPtr("000012345"), StatusText: models.StringPtr(models.ConfirmedStatus)},
		[]models.ItemResult{{Item: mangoItems()[0], Added: true}})
}

func newCheckoutService(store OrderStore, orch Checkouter, locker Locker) *CheckoutService {
	return NewCheckoutService(store, orch, locker, validate.New("www.dampfi.ch", 5), slog.Default())
}

func TestCheckoutService_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  int
		items   []models.LineItem
		setup   func(*MockOrderStore)
		wantErr error
	}{
		{
			name:    "user id out of range",
			userID:  6,
			items:   mangoItems(),
			wantErr: ErrInvalidUserID,
		},
		{
			name:    "no items",
			userID:  1,
			wantErr: ErrNoItems,
		},
		{
			name:   "unknown user",
			userID: 3,
			items:  mangoItems(),
			setup: func(m *MockOrderStore) {
				m.On("GetUser", ctx, 3).Return(nil, ErrUserNotFound)
			},
			wantErr: ErrUserNotFound,
		},
		{
			name:   "credentials missing",
			userID: 2,
			items:  mangoItems(),
			setup: func(m *MockOrderStore) {
				m.On("GetUser", ctx, 2).Return(&models.User{ID: 2, Username: "user2"}, nil)
			},
			wantErr: ErrCredentialsMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockOrderStore)
			if tt.setup != nil {
				tt.setup(store)
			}
			orch := &fakeOrchestrator{}

			result, err := newCheckoutService(store, orch, newFakeLocker()).Checkout(ctx, tt.userID, tt.items)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			assert.Zero(t, orch.calls)
			store.AssertExpectations(t)
		})
	}
}

func TestCheckoutService_Success(t *testing.T) {
	ctx := context.Background()
	store := new(MockOrderStore)
	store.On("GetUser", ctx, 1).Return(configuredUser(1), nil)
	store.On("RecordOrder", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.UserID == 1 &&
			o.Status == OrderStatusCompleted &&
			o.TotalPrice.StringFixed(2) == "13.80" &&
			o.Confirmation.IsConfirmed() &&
			len(o.Items) == 1
	}), "run-42").Run(func(args mock.Arguments) {
		args.Get(1).(*models.Order).ID = 7
	}).Return(nil)

	orch := &fakeOrchestrator{outcome: succeededOutcome()}
	locker := newFakeLocker()

	result, err := newCheckoutService(store, orch, locker).Checkout(ctx, 1, mangoItems())
	require.NoError(t, err)

	assert.True(t, result.Outcome.Succeeded)
	require.NotNil(t, result.Order)
	assert.Equal(t, int64(7), result.Order.ID)
	assert.Equal(t, "kunde@example.ch", orch.creds.LoginIdentifier)
	assert.Equal(t, mangoItems(), orch.items)
	assert.Equal(t, 1, locker.releases)
	assert.Empty(t, locker.held)
	store.AssertExpectations(t)
}

func TestCheckoutService_FailedRunRecordsNothing(t *testing.T) {
	ctx := context.Background()
	store := new(MockOrderStore)
	store.On("GetUser", ctx, 1).Return(configuredUser(1), nil)

	orch := &fakeOrchestrator{outcome: models.NewFailedOutcome("run-43",
		models.Failure{Kind: models.FailureAutomation, State: "login", Detail: "login form not found"}, nil)}
	locker := newFakeLocker()

	result, err := newCheckoutService(store, orch, locker).Checkout(ctx, 1, mangoItems())
	require.NoError(t, err)

	assert.False(t, result.Outcome.Succeeded)
	assert.Nil(t, result.Order)
	assert.Equal(t, models.FailureAutomation, result.Outcome.Failure.Kind)
	assert.Equal(t, 1, locker.releases)
	store.AssertNotCalled(t, "RecordOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutService_RecordFailureStillReturnsOutcome(t *testing.T) {
	ctx := context.Background()
	store := new(MockOrderStore)
	store.On("GetUser", ctx, 1).Return(configuredUser(1), nil)
	store.On("RecordOrder", mock.Anything, mock.Anything, "run-42").Return(errors.New("connection reset"))

	orch := &fakeOrchestrator{outcome: succeededOutcome()}

	result, err := newCheckoutService(store, orch, newFakeLocker()).Checkout(ctx, 1, mangoItems())
	require.NoError(t, err)
	assert.True(t, result.Outcome.Succeeded)
	assert.Nil(t, result.Order)
}

func TestCheckoutService_LockHeld(t *testing.T) {
	ctx := context.Background()
	store := new(MockOrderStore)
	store.On("GetUser", ctx, 1).Return(configuredUser(1), nil)

	locker := newFakeLocker()
	locker.held[1] = true
	orch := &fakeOrchestrator{outcome: succeededOutcome()}

	_, err := newCheckoutService(store, orch, locker).Checkout(ctx, 1, mangoItems())
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Zero(t, orch.calls)
	assert.Zero(t, locker.releases)
}

func TestCheckoutService_WithoutLocker(t *testing.T) {
	ctx := context.Background()
	store := new(MockOrderStore)
	store.On("GetUser", ctx, 1).Return(configuredUser(1), nil)
	store.On("RecordOrder", mock.Anything, mock.Anything, "run-42").Return(nil)

	orch := &fakeOrchestrator{outcome: succeededOutcome()}

	result, err := newCheckoutService(store, orch, nil).Checkout(ctx, 1, mangoItems())
	require.NoError(t, err)
	assert.NotNil(t, result.Order)
	assert.Equal(t, 1, orch.calls)
}

func TestCheckoutService_SaveCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("trims and stores", func(t *testing.T) {
		store := new(MockOrderStore)
		store.On("UpdateCredentials", ctx, 2, models.Credentials{
			LoginIdentifier: "kunde@example.ch",
			Secret:          "geheim",
		}).Return(nil)

		err := newCheckoutService(store, nil, nil).SaveCredentials(ctx, 2, " kunde@example.ch ", "geheim\n")
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("blank password", func(t *testing.T) {
		store := new(MockOrderStore)
		err := newCheckoutService(store, nil, nil).SaveCredentials(ctx, 2, "kunde@example.ch", "  ")
		assert.ErrorIs(t, err, ErrCredentialsInvalid)
	})

	t.Run("invalid user", func(t *testing.T) {
		store := new(MockOrderStore)
		err := newCheckoutService(store, nil, nil).SaveCredentials(ctx, 0, "kunde@example.ch", "geheim")
		assert.ErrorIs(t, err, ErrInvalidUserID)
	})
}

func TestCheckoutService_Orders(t *testing.T) {
	ctx := context.Background()
	store := new(MockOrderStore)
	store.On("ListOrders", ctx, 4, 10).Return([]*models.Order{{ID: 3, UserID: 4}}, nil)

	orders, err := newCheckoutService(store, nil, nil).Orders(ctx, 4)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(3), orders[0].ID)

	_, err = newCheckoutService(store, nil, nil).Orders(ctx, 99)
	assert.ErrorIs(t, err, ErrInvalidUserID)
}
