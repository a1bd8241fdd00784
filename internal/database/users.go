package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maltedev/dampfi-automation/internal/models"
)

type UserRepository struct {
	db querier
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Get returns the user including stored shop credentials.
func (r *UserRepository) Get(ctx context.Context, id int) (*models.User, error) {
	var (
		u      models.User
		login  sql.NullString
		secret sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, dampfi_email, dampfi_password FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &login, &secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Credentials = models.Credentials{LoginIdentifier: login.String, Secret: secret.String}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, email FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return users, nil
}

func (r *UserRepository) UpdateCredentials(ctx context.Context, id int, creds models.Credentials) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET dampfi_email = $1, dampfi_password = $2 WHERE id = $3`,
		creds.LoginIdentifier, creds.Secret, id)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
