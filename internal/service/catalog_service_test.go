package service

import (
	"context"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCreateProduct_Validation(t *testing.T) {
	svc := &CatalogService{}
	ctx := context.Background()

	err := svc.CreateProduct(ctx, &models.Product{Name: "", Price: 100, Stock: 1})
	assert.ErrorIs(t, err, ErrProductNameRequired)

	err = svc.CreateProduct(ctx, &models.Product{Name: "Widget", Price: -1, Stock: 1})
	assert.ErrorIs(t, err, ErrNegativePrice)

	err = svc.CreateProduct(ctx, &models.Product{Name: "Widget", Price: 100, Stock: -1})
	assert.ErrorIs(t, err, ErrNegativeStock)
}
