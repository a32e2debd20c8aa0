package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

var (
	ErrProductNameRequired = errors.New("product name cannot be empty")
	ErrNegativePrice       = errors.New("price cannot be negative")
	ErrNegativeStock       = errors.New("stock cannot be negative")
)

// CatalogService handles product browsing and the admin CRUD path. Stock is
// only ever written here (admin edits) and in the checkout transaction.
type CatalogService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ListProducts returns the full catalog.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.GetProducts(ctx)
}

// GetProduct returns one product.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.store.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func validateProduct(product *models.Product) error {
	if product.Name == "" {
		return ErrProductNameRequired
	}
	if product.Price < 0 {
		return ErrNegativePrice
	}
	if product.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// CreateProduct adds a product to the catalog.
func (s *CatalogService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product added",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name))
	return nil
}

// UpdateProduct replaces a product's fields.
func (s *CatalogService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	err := s.store.UpdateProduct(ctx, product)
	if errors.Is(err, store.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.Int64("product_id", product.ID))
	return nil
}

// DeleteProduct removes a product from the catalog.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	err := s.store.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}
