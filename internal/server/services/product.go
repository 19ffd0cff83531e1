package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/arsansys/siva/internal/server/models"
	"github.com/arsansys/siva/internal/server/repositories/repomanager"
)

// ProductService manages the product catalog.
type ProductService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewProductService(db *sql.DB, repos repomanager.RepositoryManager) *ProductService {
	return &ProductService{db: db, repos: repos}
}

func (s *ProductService) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.Name == "" {
		return nil, errors.New("product name is required")
	}
	return s.repos.Products(s.db).Create(ctx, product)
}

func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.repos.Products(s.db).GetByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context) ([]*models.Product, error) {
	return s.repos.Products(s.db).List(ctx)
}

func (s *ProductService) ListByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	return s.repos.Products(s.db).ListByCategory(ctx, category)
}

func (s *ProductService) Update(ctx context.Context, product *models.Product) error {
	if product.ID == "" || product.Name == "" {
		return errors.New("product id and name are required")
	}
	return s.repos.Products(s.db).Update(ctx, product)
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	return s.repos.Products(s.db).Delete(ctx, id)
}
