package checkout

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/xtreeshop/internal/broker/messages"
	"github.com/BearBump/xtreeshop/internal/cache"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/payment"
	"github.com/BearBump/xtreeshop/internal/pricing"
	"github.com/BearBump/xtreeshop/internal/services/cart"
	"github.com/BearBump/xtreeshop/internal/storage/pgstore"
	"github.com/BearBump/xtreeshop/internal/validation"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)

type Repository interface {
	ListCartItems(ctx context.Context, userID uint64) ([]*models.CartItem, error)
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	PlaceOrder(ctx context.Context, p pgstore.PlaceOrderParams) (*pgstore.PlacedOrder, error)
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Service struct {
	repo     Repository
	gateway  payment.Gateway
	producer Producer
	cache    cache.BytesCache
	log      *zap.Logger

	topic          string
	firstCheckWait time.Duration

	now func() time.Time
}

func New(repo Repository, gw payment.Gateway, producer Producer, c cache.BytesCache, log *zap.Logger, topic string) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		gateway:  gw,
		producer: producer,
		cache:    c,
		log:      log,
		topic:    topic,
		now:      time.Now,
	}
}

// WithFirstCheckDelay delays the first fulfillment poll after payment. By
// default a new order is due at once so the order.placed wake-up claims it.
func (s *Service) WithFirstCheckDelay(d time.Duration) *Service {
	if d >= 0 {
		s.firstCheckWait = d
	}
	return s
}

type SummaryLine struct {
	ProductID   uint64 `json:"product_id"`
	Name        string `json:"name"`
	PackSize    int    `json:"pack_size"`
	Packs       int    `json:"packs"`
	Units       int64  `json:"units"`
	PackPrice   int64  `json:"pack_price"`
	DiscountPct int64  `json:"discount_pct"`
	LineTotal   int64  `json:"line_total"`
}

type Summary struct {
	Lines   []*SummaryLine `json:"lines"`
	Total   int64          `json:"total"`
	Address string         `json:"address"`
}

func LineName(productName string, packSize int) string {
	return fmt.Sprintf("%s - Pack de %d latas", productName, packSize)
}

func (s *Service) Summary(ctx context.Context, userID uint64) (*Summary, error) {
	items, err := s.repo.ListCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.ErrEmptyCart
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Summary{Lines: make([]*SummaryLine, 0, len(items)), Address: u.Address}
	for _, it := range items {
		l := pricing.LineTotal(it.UnitPrice, it.PackSize, it.Quantity)
		out.Lines = append(out.Lines, &SummaryLine{
			ProductID:   it.ProductID,
			Name:        LineName(it.ProductName, it.PackSize),
			PackSize:    it.PackSize,
			Packs:       it.Quantity,
			Units:       it.Units(),
			PackPrice:   l.Final,
			DiscountPct: l.DiscountPct,
			LineTotal:   l.Total,
		})
		out.Total += l.Total
	}
	return out, nil
}

type PlaceOrderInput struct {
	Holder          string `json:"holder" validate:"required,max=100"`
	CardNumber      string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	CVV             string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	Expiry          string `json:"expiry" validate:"required"`
	ShippingAddress string `json:"shipping_address" validate:"required,min=10,max=500"`
}

func (in *PlaceOrderInput) normalize() {
	in.Holder = strings.TrimSpace(in.Holder)
	in.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(in.CardNumber)
	in.CVV = strings.TrimSpace(in.CVV)
	in.Expiry = strings.TrimSpace(in.Expiry)
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
}

func (in PlaceOrderInput) card() payment.Card {
	return payment.Card{Holder: in.Holder, Number: in.CardNumber, CVV: in.CVV, Expiry: in.Expiry}
}

type Result struct {
	Order *models.Order       `json:"order"`
	Lines []*models.OrderLine `json:"lines"`
}

// PlaceOrder turns the cart into a paid order. Stock, order rows and the
// payment authorization share one transaction; a declined card leaves no
// trace. The order.placed event is published after commit.
func (s *Service) PlaceOrder(ctx context.Context, userID uint64, in PlaceOrderInput) (*Result, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !expiryRe.MatchString(in.Expiry) {
		return nil, models.NewValidationError("expiry", "expiry must be MM/YY")
	}

	now := s.now().UTC()
	card := in.card()

	placed, err := s.repo.PlaceOrder(ctx, pgstore.PlaceOrderParams{
		UserID:          userID,
		ShippingAddress: in.ShippingAddress,
		Now:             now,
		FirstCheckAt:    now.Add(s.firstCheckWait),
		Price:           priceLines,
		Authorize: func(ctx context.Context, orderID uint64, total int64) (string, error) {
			auth, err := s.gateway.Authorize(ctx, payment.Charge{
				OrderID: orderID,
				UserID:  userID,
				Amount:  total,
				Card:    card,
			})
			if err != nil {
				return "", errors.Wrap(err, "authorize payment")
			}
			if !auth.Approved {
				s.log.Info("payment declined",
					zap.Uint64("user_id", userID),
					zap.String("card_last4", card.Last4()),
					zap.String("reason", auth.Reason))
				return "", errors.Wrap(models.ErrPaymentDeclined, auth.Reason)
			}
			return auth.Reference, nil
		},
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, cart.CountKey(userID))
	}
	s.publishPlaced(ctx, placed)

	return &Result{Order: placed.Order, Lines: placed.Lines}, nil
}

func (s *Service) publishPlaced(ctx context.Context, placed *pgstore.PlacedOrder) {
	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.OrderPlaced{
		OrderID:  placed.Order.ID,
		UserID:   placed.Order.UserID,
		Total:    placed.Order.Total,
		PlacedAt: placed.Order.CreatedAt,
	}
	for _, l := range placed.Lines {
		var pid uint64
		if l.ProductID != nil {
			pid = *l.ProductID
		}
		msg.Items = append(msg.Items, messages.OrderPlacedItem{ProductID: pid, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	key := strconv.FormatUint(placed.Order.ID, 10)
	if err := s.producer.PublishJSON(ctx, s.topic, key, msg); err != nil {
		s.log.Warn("publish order placed", zap.Uint64("order_id", placed.Order.ID), zap.Error(err))
	}
}

func priceLines(items []*models.CartItem) ([]*models.OrderLine, int64, error) {
	lines := make([]*models.OrderLine, 0, len(items))
	var total int64
	for _, it := range items {
		l := pricing.LineTotal(it.UnitPrice, it.PackSize, it.Quantity)
		pid := it.ProductID
		lines = append(lines, &models.OrderLine{
			ProductID:   &pid,
			ProductName: LineName(it.ProductName, it.PackSize),
			ImageURL:    it.ImageURL,
			Quantity:    it.Units(),
			UnitPrice:   it.UnitPrice,
			LineTotal:   l.Total,
		})
		total += l.Total
	}
	if total <= 0 {
		return nil, 0, models.NewValidationError("total", "order total must be positive")
	}
	return lines, total, nil
}
