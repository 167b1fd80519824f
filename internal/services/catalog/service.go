// Package catalog serves the public product list and the shop view with
// pack quotes.
package catalog

import (
	"context"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/pricing"
)

type Repository interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id uint64) (*models.Product, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

type ShopProduct struct {
	*models.Product
	Packs []pricing.Quote `json:"packs"`
}

func (s *Service) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id uint64) (*models.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListShop(ctx context.Context) ([]*ShopProduct, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*ShopProduct, 0, len(products))
	for _, p := range products {
		out = append(out, withPacks(p))
	}
	return out, nil
}

func (s *Service) GetShopProduct(ctx context.Context, id uint64) (*ShopProduct, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return withPacks(p), nil
}

func withPacks(p *models.Product) *ShopProduct {
	return &ShopProduct{Product: p, Packs: pricing.PacksFor(p.Price)}
}
