package cart

import (
	"context"
	"testing"
	"time"

	cachemocks "github.com/BearBump/xtreeshop/internal/cache/mocks"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type repoMock struct {
	mock.Mock
}

func (m *repoMock) GetProduct(ctx context.Context, id uint64) (*models.Product, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*models.Product)
	return out, args.Error(1)
}
func (m *repoMock) ListCartItems(ctx context.Context, userID uint64) ([]*models.CartItem, error) {
	args := m.Called(ctx, userID)
	out, _ := args.Get(0).([]*models.CartItem)
	return out, args.Error(1)
}
func (m *repoMock) GetCartItem(ctx context.Context, userID, itemID uint64) (*models.CartItem, error) {
	args := m.Called(ctx, userID, itemID)
	out, _ := args.Get(0).(*models.CartItem)
	return out, args.Error(1)
}
func (m *repoMock) FindCartItem(ctx context.Context, userID, productID uint64, packSize int) (*models.CartItem, error) {
	args := m.Called(ctx, userID, productID, packSize)
	out, _ := args.Get(0).(*models.CartItem)
	return out, args.Error(1)
}
func (m *repoMock) InsertCartItem(ctx context.Context, userID, productID uint64, packSize, quantity int) (uint64, error) {
	args := m.Called(ctx, userID, productID, packSize, quantity)
	return args.Get(0).(uint64), args.Error(1)
}
func (m *repoMock) SetCartItemQuantity(ctx context.Context, userID, itemID uint64, quantity int) error {
	return m.Called(ctx, userID, itemID, quantity).Error(0)
}
func (m *repoMock) DeleteCartItem(ctx context.Context, userID, itemID uint64) error {
	return m.Called(ctx, userID, itemID).Error(0)
}
func (m *repoMock) ClearCart(ctx context.Context, userID uint64) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *repoMock) CountCartPacks(ctx context.Context, userID uint64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type ServiceSuite struct {
	suite.Suite

	repo  *repoMock
	cache *cachemocks.MockBytesCache
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &repoMock{}
	s.cache = &cachemocks.MockBytesCache{}
	s.svc = New(s.repo, s.cache, 5*time.Minute)
}

func (s *ServiceSuite) TearDownTest() {
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGet_PricesLines() {
	s.repo.On("ListCartItems", mock.Anything, uint64(1)).Return([]*models.CartItem{
		{ID: 1, ProductID: 10, PackSize: 6, Quantity: 2, UnitPrice: 100},
		{ID: 2, ProductID: 11, PackSize: 24, Quantity: 1, UnitPrice: 100},
	}, nil).Once()

	c, err := s.svc.Get(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Len(c.Items, 2)
	s.Require().EqualValues(1200, c.Items[0].LineTotal)
	s.Require().EqualValues(12, c.Items[0].Units)
	s.Require().EqualValues(2160, c.Items[1].LineTotal)
	s.Require().EqualValues(240, c.Items[1].Savings)
	s.Require().EqualValues(3360, c.Subtotal)
	s.Require().EqualValues(3, c.TotalPacks)
}

func (s *ServiceSuite) TestAdd_NewLine() {
	s.repo.On("GetProduct", mock.Anything, uint64(10)).Return(&models.Product{ID: 10, Price: 100, Stock: 12}, nil).Once()
	s.repo.On("FindCartItem", mock.Anything, uint64(1), uint64(10), 12).Return(nil, models.ErrNotFound).Once()
	s.repo.On("InsertCartItem", mock.Anything, uint64(1), uint64(10), 12, 1).Return(uint64(5), nil).Once()
	s.cache.On("Delete", mock.Anything, "cart:1:count").Return(nil).Once()
	s.cache.On("Get", mock.Anything, "cart:1:count").Return(nil, false, nil).Once()
	s.repo.On("CountCartPacks", mock.Anything, uint64(1)).Return(int64(1), nil).Once()
	s.cache.On("Set", mock.Anything, "cart:1:count", []byte("1"), 5*time.Minute).Return(nil).Once()

	n, err := s.svc.Add(context.Background(), 1, AddInput{ProductID: 10, PackSize: 12})
	s.Require().NoError(err)
	s.Require().EqualValues(1, n)
}

func (s *ServiceSuite) TestAdd_ExistingLineOverStock() {
	s.repo.On("GetProduct", mock.Anything, uint64(10)).Return(&models.Product{ID: 10, Price: 100, Stock: 12}, nil).Once()
	s.repo.On("FindCartItem", mock.Anything, uint64(1), uint64(10), 6).
		Return(&models.CartItem{ID: 3, PackSize: 6, Quantity: 2}, nil).Once()

	_, err := s.svc.Add(context.Background(), 1, AddInput{ProductID: 10, PackSize: 6})
	s.Require().ErrorIs(err, models.ErrInsufficientStock)
	s.repo.AssertNotCalled(s.T(), "InsertCartItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestAdd_InvalidPackSize() {
	_, err := s.svc.Add(context.Background(), 1, AddInput{ProductID: 10, PackSize: 7})
	var verr *models.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Require().Equal("pack_size", verr.Field)
}

func (s *ServiceSuite) TestAdd_UnknownProduct() {
	s.repo.On("GetProduct", mock.Anything, uint64(99)).Return(nil, models.ErrNotFound).Once()
	_, err := s.svc.Add(context.Background(), 1, AddInput{ProductID: 99, PackSize: 6})
	s.Require().ErrorIs(err, models.ErrNotFound)
}

func (s *ServiceSuite) TestUpdate_DecreaseToZeroRemoves() {
	s.repo.On("GetCartItem", mock.Anything, uint64(1), uint64(3)).
		Return(&models.CartItem{ID: 3, PackSize: 6, Quantity: 1, UnitPrice: 100, Stock: 100}, nil).Once()
	s.repo.On("DeleteCartItem", mock.Anything, uint64(1), uint64(3)).Return(nil).Once()
	s.cache.On("Delete", mock.Anything, "cart:1:count").Return(nil).Once()
	s.cache.On("Get", mock.Anything, "cart:1:count").Return(nil, false, nil).Once()
	s.repo.On("CountCartPacks", mock.Anything, uint64(1)).Return(int64(0), nil).Once()
	s.cache.On("Set", mock.Anything, "cart:1:count", []byte("0"), 5*time.Minute).Return(nil).Once()

	res, err := s.svc.Update(context.Background(), 1, 3, ActionDecrease)
	s.Require().NoError(err)
	s.Require().True(res.Removed)
	s.Require().Zero(res.Quantity)
	s.Require().Zero(res.CartCount)
}

func (s *ServiceSuite) TestUpdate_IncreaseChecksStock() {
	s.repo.On("GetCartItem", mock.Anything, uint64(1), uint64(3)).
		Return(&models.CartItem{ID: 3, PackSize: 12, Quantity: 1, UnitPrice: 100, Stock: 20}, nil).Once()

	_, err := s.svc.Update(context.Background(), 1, 3, ActionIncrease)
	s.Require().ErrorIs(err, models.ErrInsufficientStock)
}

func (s *ServiceSuite) TestUpdate_Increase() {
	s.repo.On("GetCartItem", mock.Anything, uint64(1), uint64(3)).
		Return(&models.CartItem{ID: 3, PackSize: 12, Quantity: 1, UnitPrice: 100, Stock: 100}, nil).Once()
	s.repo.On("SetCartItemQuantity", mock.Anything, uint64(1), uint64(3), 2).Return(nil).Once()
	s.cache.On("Delete", mock.Anything, "cart:1:count").Return(nil).Once()
	s.cache.On("Get", mock.Anything, "cart:1:count").Return([]byte("2"), true, nil).Once()

	res, err := s.svc.Update(context.Background(), 1, 3, ActionIncrease)
	s.Require().NoError(err)
	s.Require().Equal(2, res.Quantity)
	s.Require().EqualValues(2280, res.LineTotal)
	s.Require().EqualValues(2, res.CartCount)
}

func (s *ServiceSuite) TestUpdate_BadAction() {
	_, err := s.svc.Update(context.Background(), 1, 3, "double")
	var verr *models.ValidationError
	s.Require().ErrorAs(err, &verr)
}

func (s *ServiceSuite) TestUpdate_OtherUsersLine() {
	s.repo.On("GetCartItem", mock.Anything, uint64(2), uint64(3)).Return(nil, models.ErrNotFound).Once()
	_, err := s.svc.Update(context.Background(), 2, 3, ActionIncrease)
	s.Require().ErrorIs(err, models.ErrNotFound)
}

func (s *ServiceSuite) TestCount_CacheHit() {
	s.cache.On("Get", mock.Anything, "cart:7:count").Return([]byte("4"), true, nil).Once()

	n, err := s.svc.Count(context.Background(), 7)
	s.Require().NoError(err)
	s.Require().EqualValues(4, n)
	s.repo.AssertNotCalled(s.T(), "CountCartPacks", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestClear_Invalidates() {
	s.repo.On("ClearCart", mock.Anything, uint64(7)).Return(nil).Once()
	s.cache.On("Delete", mock.Anything, "cart:7:count").Return(nil).Once()
	s.Require().NoError(s.svc.Clear(context.Background(), 7))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
