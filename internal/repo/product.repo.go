package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guardians-shop/internal/domain"
)

type ProductRepo interface {
	// FindBySKU returns nil, nil when the sku is unknown.
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
}

type productRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepo {
	return &productRepo{db: db}
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		"SELECT sku, name, description, price, category, rcon_command, created_at FROM products WHERE sku = $1", sku,
	).Scan(&p.SKU, &p.Name, &p.Description, &p.Price, &p.Category, &p.RconCommand, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", sku, err)
	}
	return &p, nil
}

// StaticProductRepo serves a fixed catalog, used with the memory order store.
type StaticProductRepo map[string]domain.Product

func NewStaticProductRepo(products []domain.Product) StaticProductRepo {
	repo := make(StaticProductRepo, len(products))
	for _, p := range products {
		repo[p.SKU] = p
	}
	return repo
}

func (r StaticProductRepo) FindBySKU(_ context.Context, sku string) (*domain.Product, error) {
	p, ok := r[sku]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
