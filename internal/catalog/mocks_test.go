package catalog

import (
	"context"
	"sync"

	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) CreateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so the service cannot mutate the fixture.
	p := *args.Get(0).(*models.Product)
	return &p, args.Error(1)
}

func (m *MockProductStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}

func (m *MockProductStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductStore) DeleteProduct(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductStore) SaveSnapshot(ctx context.Context, p *models.Product, previous models.StockStatus) error {
	return m.Called(ctx, p, previous).Error(0)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetUser(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockOrderStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockOrderStore) UpdateCredentials(ctx context.Context, userID int, creds models.Credentials) error {
	return m.Called(ctx, userID, creds).Error(0)
}

func (m *MockOrderStore) ListOrders(ctx context.Context, userID, limit int) ([]*models.Order, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Order), args.Error(1)
}

func (m *MockOrderStore) RecordOrder(ctx context.Context, order *models.Order, runID string) error {
	return m.Called(ctx, order, runID).Error(0)
}

type scrapeResult struct {
	snapshot *models.ProductSnapshot
	err      error
}

// scriptedScraper returns its results in order and repeats the last one.
type scriptedScraper struct {
	mu      sync.Mutex
	results []scrapeResult
	calls   []string
}

func (s *scriptedScraper) Extract(ctx context.Context, url string) (*models.ProductSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	r := s.results[len(s.results)-1]
	if len(s.calls) <= len(s.results) {
		r = s.results[len(s.calls)-1]
	}
	return r.snapshot, r.err
}

type fakeOrchestrator struct {
	outcome models.CheckoutOutcome
	creds   models.Credentials
	items   []models.LineItem
	calls   int
}

func (f *fakeOrchestrator) Checkout(ctx context.Context, creds models.Credentials, items []models.LineItem) models.CheckoutOutcome {
	f.calls++
	f.creds = creds
	f.items = items
	return f.outcome
}

type fakeLocker struct {
	held       map[int]bool
	acquireErr error
	releases   int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[int]bool)}
}

func (l *fakeLocker) Acquire(ctx context.Context, userID int) (func(context.Context) error, error) {
	if l.acquireErr != nil {
		return nil, l.acquireErr
	}
	if l.held[userID] {
		return nil, ErrCheckoutInProgress
	}
	l.held[userID] = true
	return func(context.Context) error {
		l.releases++
		delete(l.held, userID)
		return nil
	}, nil
}
