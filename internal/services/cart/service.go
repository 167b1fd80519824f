package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/BearBump/xtreeshop/internal/cache"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/pricing"
	"github.com/BearBump/xtreeshop/internal/validation"
	"github.com/pkg/errors"
)

const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
)

type Repository interface {
	GetProduct(ctx context.Context, id uint64) (*models.Product, error)

	ListCartItems(ctx context.Context, userID uint64) ([]*models.CartItem, error)
	GetCartItem(ctx context.Context, userID, itemID uint64) (*models.CartItem, error)
	FindCartItem(ctx context.Context, userID, productID uint64, packSize int) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, userID, productID uint64, packSize, quantity int) (uint64, error)
	SetCartItemQuantity(ctx context.Context, userID, itemID uint64, quantity int) error
	DeleteCartItem(ctx context.Context, userID, itemID uint64) error
	ClearCart(ctx context.Context, userID uint64) error
	CountCartPacks(ctx context.Context, userID uint64) (int64, error)
}

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	countTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, countTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, countTTL: countTTL}
}

type Line struct {
	*models.CartItem
	Units       int64 `json:"units"`
	PackPrice   int64 `json:"pack_price"`
	DiscountPct int64 `json:"discount_pct"`
	LineTotal   int64 `json:"line_total"`
	Savings     int64 `json:"savings"`
}

type Cart struct {
	Items      []*Line `json:"items"`
	Subtotal   int64   `json:"subtotal"`
	Savings    int64   `json:"savings"`
	TotalPacks int64   `json:"total_packs"`
}

// PriceLine applies pack pricing to one cart line.
func PriceLine(it *models.CartItem) *Line {
	l := pricing.LineTotal(it.UnitPrice, it.PackSize, it.Quantity)
	return &Line{
		CartItem:    it,
		Units:       it.Units(),
		PackPrice:   l.Final,
		DiscountPct: l.DiscountPct,
		LineTotal:   l.Total,
		Savings:     l.Savings,
	}
}

func (s *Service) Get(ctx context.Context, userID uint64) (*Cart, error) {
	items, err := s.repo.ListCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Cart{Items: make([]*Line, 0, len(items))}
	for _, it := range items {
		l := PriceLine(it)
		out.Items = append(out.Items, l)
		out.Subtotal += l.LineTotal
		out.Savings += l.Savings
		out.TotalPacks += int64(it.Quantity)
	}
	return out, nil
}

type AddInput struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	PackSize  int    `json:"pack_size" validate:"required"`
}

// Add puts one more pack of the product in the cart and returns the new cart count.
func (s *Service) Add(ctx context.Context, userID uint64, in AddInput) (int64, error) {
	if err := validation.Struct(in); err != nil {
		return 0, err
	}
	if !pricing.IsValidPackSize(in.PackSize) {
		return 0, models.NewValidationError("pack_size", "invalid pack size")
	}

	p, err := s.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return 0, err
	}

	packs := 1
	existing, err := s.repo.FindCartItem(ctx, userID, in.ProductID, in.PackSize)
	switch {
	case err == nil:
		packs = existing.Quantity + 1
	case errors.Is(err, models.ErrNotFound):
	default:
		return 0, err
	}
	if int64(packs)*int64(in.PackSize) > p.Stock {
		return 0, models.ErrInsufficientStock
	}

	if _, err := s.repo.InsertCartItem(ctx, userID, in.ProductID, in.PackSize, 1); err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return s.Count(ctx, userID)
}

type UpdateResult struct {
	Quantity  int   `json:"quantity"`
	LineTotal int64 `json:"line_total"`
	Removed   bool  `json:"removed"`
	CartCount int64 `json:"cart_count"`
}

func (s *Service) Update(ctx context.Context, userID, itemID uint64, action string) (*UpdateResult, error) {
	if err := validation.Var("action", action, "required,oneof=increase decrease"); err != nil {
		return nil, err
	}
	it, err := s.repo.GetCartItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{}
	switch action {
	case ActionIncrease:
		it.Quantity++
		if it.Units() > it.Stock {
			return nil, models.ErrInsufficientStock
		}
		if err := s.repo.SetCartItemQuantity(ctx, userID, itemID, it.Quantity); err != nil {
			return nil, err
		}
	case ActionDecrease:
		it.Quantity--
		if it.Quantity <= 0 {
			if err := s.repo.DeleteCartItem(ctx, userID, itemID); err != nil {
				return nil, err
			}
			it.Quantity = 0
			res.Removed = true
		} else if err := s.repo.SetCartItemQuantity(ctx, userID, itemID, it.Quantity); err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, userID)

	res.Quantity = it.Quantity
	if !res.Removed {
		res.LineTotal = PriceLine(it).LineTotal
	}
	res.CartCount, err = s.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) Remove(ctx context.Context, userID, itemID uint64) (int64, error) {
	if err := s.repo.DeleteCartItem(ctx, userID, itemID); err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return s.Count(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID uint64) error {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Count is the number of packs in the cart, read through the cache.
func (s *Service) Count(ctx context.Context, userID uint64) (int64, error) {
	key := CountKey(userID)
	if s.cache != nil && s.countTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
				return n, nil
			}
		}
	}

	n, err := s.repo.CountCartPacks(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil && s.countTTL > 0 {
		_ = s.cache.Set(ctx, key, []byte(strconv.FormatInt(n, 10)), s.countTTL)
	}
	return n, nil
}

func (s *Service) invalidate(ctx context.Context, userID uint64) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, CountKey(userID))
	}
}

// CountKey is the cached pack count; checkout drops it after emptying the cart.
func CountKey(userID uint64) string {
	return fmt.Sprintf("cart:%d:count", userID)
}
