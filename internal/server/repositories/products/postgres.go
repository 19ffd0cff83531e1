package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arsansys/siva/internal/common"
	"github.com/arsansys/siva/internal/dbx"
	"github.com/arsansys/siva/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `id, name, description, category, price_cents, stock, seller_id, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	query := `
		INSERT INTO products (id, name, description, category, price_cents, stock, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	product.ID = uuid.NewString()

	err := r.db.QueryRowContext(ctx, query,
		product.ID, product.Name, product.Description, product.Category,
		product.PriceCents, product.Stock, product.SellerID,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return product, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product := &models.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.Name, &product.Description, &product.Category,
		&product.PriceCents, &product.Stock, &product.SellerID,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return product, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name`
	return r.queryMany(ctx, query)
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category = $1 ORDER BY name`
	return r.queryMany(ctx, query, category)
}

func (r *PostgresRepository) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, category = $4, price_cents = $5, stock = $6, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		product.ID, product.Name, product.Description, product.Category,
		product.PriceCents, product.Stock,
	)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM products WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var result []*models.Product
	for rows.Next() {
		product := &models.Product{}
		err := rows.Scan(
			&product.ID, &product.Name, &product.Description, &product.Category,
			&product.PriceCents, &product.Stock, &product.SellerID,
			&product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}
