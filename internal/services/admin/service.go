// Package admin implements the back office: dashboard, products, order
// problems, users. Every mutation is written to the audit trail.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/services/audit"
	"github.com/BearBump/xtreeshop/internal/validation"
)

const recentLimit = 5

type Repository interface {
	DashboardStats(ctx context.Context, lowStockThreshold int64) (models.DashboardStats, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error)
	ListTickets(ctx context.Context, f models.TicketFilter) ([]*models.Ticket, error)
	ListLowStock(ctx context.Context, threshold int64) ([]*models.Product, error)

	ListProductsNewest(ctx context.Context) ([]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, upd models.ProductUpdate) error
	DeleteProduct(ctx context.Context, id uint64) error
	GetProduct(ctx context.Context, id uint64) (*models.Product, error)

	MarkOrderProblem(ctx context.Context, orderID uint64, description string, at time.Time) error
	ResolveOrderProblem(ctx context.Context, orderID uint64) error

	ListUsersWithStats(ctx context.Context, viewerID uint64) ([]*models.UserWithStats, error)
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	EmailTakenByOther(ctx context.Context, email string, userID uint64) (bool, error)
	UpdateUser(ctx context.Context, id uint64, upd models.UserUpdate) error
}

// StatusSetter appends an order status and keeps the status cache fresh.
type StatusSetter interface {
	SetStatus(ctx context.Context, orderID uint64, code models.StatusCode) error
}

type Service struct {
	repo     Repository
	statuses StatusSetter
	audit    *audit.Recorder

	lowStockThreshold int64

	now func() time.Time
}

func New(repo Repository, statuses StatusSetter, rec *audit.Recorder, lowStockThreshold int) *Service {
	if lowStockThreshold <= 0 {
		lowStockThreshold = 50
	}
	return &Service{
		repo:              repo,
		statuses:          statuses,
		audit:             rec,
		lowStockThreshold: int64(lowStockThreshold),
		now:               time.Now,
	}
}

func (s *Service) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	stats, err := s.repo.DashboardStats(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrders(ctx, models.OrderFilter{Limit: recentLimit})
	if err != nil {
		return nil, err
	}
	tickets, err := s.repo.ListTickets(ctx, models.TicketFilter{Limit: recentLimit})
	if err != nil {
		return nil, err
	}
	low, err := s.repo.ListLowStock(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, err
	}
	return &models.Dashboard{Stats: stats, RecentOrders: orders, RecentTickets: tickets, LowStock: low}, nil
}

// Products

type ProductInput struct {
	Name           string `json:"name" validate:"required,min=3,max=100"`
	Description    string `json:"description" validate:"required,min=10,max=5000"`
	Price          int64  `json:"price" validate:"gt=0"`
	Stock          int64  `json:"stock" validate:"gte=0"`
	ImageURL       string `json:"image_url" validate:"required"`
	PrimaryColor   string `json:"primary_color" validate:"omitempty,hexcolor"`
	SecondaryColor string `json:"secondary_color" validate:"omitempty,hexcolor"`
	AccentColor    string `json:"accent_color" validate:"omitempty,hexcolor"`
}

func (s *Service) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.repo.ListProductsNewest(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, actor audit.Actor, in ProductInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.repo.CreateProduct(ctx, &models.Product{
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		Stock:          in.Stock,
		ImageURL:       in.ImageURL,
		PrimaryColor:   in.PrimaryColor,
		SecondaryColor: in.SecondaryColor,
		AccentColor:    in.AccentColor,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, "create_product", "products", &p.ID,
		fmt.Sprintf("name=%s price=%d stock=%d", p.Name, p.Price, p.Stock))
	return p, nil
}

type ProductUpdateInput struct {
	Name           string  `json:"name" validate:"required,min=3,max=100"`
	Description    string  `json:"description" validate:"required,min=10,max=5000"`
	Price          int64   `json:"price" validate:"gt=0"`
	Stock          *int64  `json:"stock" validate:"omitnil,gte=0"`
	ImageURL       *string `json:"image_url" validate:"omitnil,min=1"`
	PrimaryColor   *string `json:"primary_color" validate:"omitnil,hexcolor"`
	SecondaryColor *string `json:"secondary_color" validate:"omitnil,hexcolor"`
	AccentColor    *string `json:"accent_color" validate:"omitnil,hexcolor"`
}

func (s *Service) UpdateProduct(ctx context.Context, actor audit.Actor, id uint64, in ProductUpdateInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	err := s.repo.UpdateProduct(ctx, models.ProductUpdate{
		ID:             id,
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		ImageURL:       in.ImageURL,
		PrimaryColor:   in.PrimaryColor,
		SecondaryColor: in.SecondaryColor,
		AccentColor:    in.AccentColor,
		Stock:          in.Stock,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, "update_product", "products", &id,
		fmt.Sprintf("name=%s price=%d", in.Name, in.Price))
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) DeleteProduct(ctx context.Context, actor audit.Actor, id uint64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, "delete_product", "products", &id, "")
	return nil
}

// Orders

func (s *Service) ListOrders(ctx context.Context, problemsOnly bool) ([]*models.Order, error) {
	return s.repo.ListOrders(ctx, models.OrderFilter{ProblemsOnly: problemsOnly})
}

type ProblemInput struct {
	Description string `json:"description" validate:"required,min=10,max=1000"`
}

func (s *Service) MarkProblem(ctx context.Context, actor audit.Actor, orderID uint64, in ProblemInput) error {
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return err
	}
	if err := s.repo.MarkOrderProblem(ctx, orderID, in.Description, s.now().UTC()); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, "mark_order_problem", "orders", &orderID, in.Description)
	return nil
}

func (s *Service) ResolveProblem(ctx context.Context, actor audit.Actor, orderID uint64) error {
	if err := s.repo.ResolveOrderProblem(ctx, orderID); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, "resolve_order_problem", "orders", &orderID, "")
	return nil
}

type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

func (s *Service) SetOrderStatus(ctx context.Context, actor audit.Actor, orderID uint64, in StatusInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	code := models.StatusCode(strings.ToUpper(strings.TrimSpace(in.Status)))
	if err := s.statuses.SetStatus(ctx, orderID, code); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, "set_order_status", "order_tracking", &orderID, "status="+string(code))
	return nil
}

// Users

func (s *Service) ListUsers(ctx context.Context, viewer *models.User) ([]*models.UserWithStats, error) {
	return s.repo.ListUsersWithStats(ctx, viewer.ID)
}

type UserUpdateInput struct {
	FirstName *string `json:"first_name" validate:"omitnil,min=2,max=50,personname"`
	LastName  *string `json:"last_name" validate:"omitnil,min=2,max=50,personname"`
	Email     *string `json:"email" validate:"omitnil,email"`
	Role      *string `json:"role"`
}

func (in *UserUpdateInput) normalize() {
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(in.FirstName)
	trim(in.LastName)
	trim(in.Email)
	trim(in.Role)
	if in.Email != nil {
		*in.Email = strings.ToLower(*in.Email)
	}
}

// UpdateUser applies an admin edit. Only a superadmin may change roles,
// nobody changes their own role, superadmin is never assigned nor demoted.
func (s *Service) UpdateUser(ctx context.Context, viewer *models.User, actor audit.Actor, id uint64, in UserUpdateInput) (*models.User, error) {
	in.normalize()
	if in.FirstName == nil && in.LastName == nil && in.Email == nil && in.Role == nil {
		return nil, models.NewValidationError("user", "nothing to update")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	target, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	upd := models.UserUpdate{}
	var changes []string
	if in.FirstName != nil && *in.FirstName != target.FirstName {
		upd.FirstName = in.FirstName
		changes = append(changes, "first_name")
	}
	if in.LastName != nil && *in.LastName != target.LastName {
		upd.LastName = in.LastName
		changes = append(changes, "last_name")
	}
	if in.Email != nil && *in.Email != target.Email {
		taken, err := s.repo.EmailTakenByOther(ctx, *in.Email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflict("email already in use")
		}
		upd.Email = in.Email
		changes = append(changes, "email")
	}
	if in.Role != nil && models.Role(*in.Role) != target.Role {
		role, err := checkRoleChange(viewer, target, models.Role(*in.Role))
		if err != nil {
			return nil, err
		}
		upd.Role = &role
		changes = append(changes, "role="+string(role))
	}

	if len(changes) == 0 {
		return nil, models.NewValidationError("user", "no changes to apply")
	}
	if err := s.repo.UpdateUser(ctx, id, upd); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, "update_user", "users", &id, strings.Join(changes, ","))
	return s.repo.GetUserByID(ctx, id)
}

func checkRoleChange(viewer, target *models.User, role models.Role) (models.Role, error) {
	switch {
	case viewer.Role != models.RoleSuperadmin:
		return "", models.ErrForbidden
	case viewer.ID == target.ID:
		return "", models.NewValidationError("role", "you cannot change your own role")
	case role == models.RoleSuperadmin:
		return "", models.NewValidationError("role", "the superadmin role cannot be assigned")
	case target.Role == models.RoleSuperadmin:
		return "", models.NewValidationError("role", "a superadmin cannot be demoted")
	case role != models.RoleCustomer && role != models.RoleAdmin:
		return "", models.NewValidationError("role", "role must be one of: customer, admin")
	}
	return role, nil
}
