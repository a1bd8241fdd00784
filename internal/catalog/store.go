package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maltedev/dampfi-automation/internal/database"
	"github.com/maltedev/dampfi-automation/internal/events"
	"github.com/maltedev/dampfi-automation/internal/models"
)

type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	// SaveSnapshot stores p and its PRODUCT_SNAPSHOT_UPDATED event atomically.
	SaveSnapshot(ctx context.Context, p *models.Product, previous models.StockStatus) error
}

type OrderStore interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateCredentials(ctx context.Context, userID int, creds models.Credentials) error
	ListOrders(ctx context.Context, userID, limit int) ([]*models.Order, error)
	// RecordOrder stores the order and its ORDER_PLACED event atomically.
	RecordOrder(ctx context.Context, order *models.Order, runID string) error
}

// PostgresStore implements ProductStore and OrderStore on the repositories in internal/database.
type PostgresStore struct {
	db        *sql.DB
	products  *database.ProductRepository
	users     *database.UserRepository
	orders    *database.OrderRepository
	publisher *events.Publisher
}

func NewPostgresStore(db *sql.DB, publisher *events.Publisher) *PostgresStore {
	return &PostgresStore{
		db:        db,
		products:  database.NewProductRepository(db),
		users:     database.NewUserRepository(db),
		orders:    database.NewOrderRepository(db),
		publisher: publisher,
	}
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *models.Product) error {
	return s.products.Create(ctx, p)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.products.List(ctx)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	return s.products.Update(ctx, p)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, p *models.Product, previous models.StockStatus) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.products.WithTx(tx).Update(ctx, p); err != nil {
			return err
		}
		if err := s.publisher.PublishSnapshotUpdated(ctx, tx, p, previous); err != nil {
			return fmt.Errorf("failed to record snapshot event: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetUser(ctx context.Context, id int) (*models.User, error) {
	return s.users.Get(ctx, id)
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *PostgresStore) UpdateCredentials(ctx context.Context, userID int, creds models.Credentials) error {
	return s.users.UpdateCredentials(ctx, userID, creds)
}

func (s *PostgresStore) ListOrders(ctx context.Context, userID, limit int) ([]*models.Order, error) {
	return s.orders.ListByUser(ctx, userID, limit)
}

func (s *PostgresStore) RecordOrder(ctx context.Context, order *models.Order, runID string) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := s.publisher.PublishOrderPlaced(ctx, tx, order, runID); err != nil {
			return fmt.Errorf("failed to record order event: %w", err)
		}
		return nil
	})
}
