// Package products provides persistent storage for the product catalog.
package products

import (
	"context"

	"github.com/arsansys/siva/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context) ([]*models.Product, error)
	ListByCategory(ctx context.Context, category string) ([]*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
