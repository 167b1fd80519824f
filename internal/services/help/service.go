package help

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/services/audit"
	"github.com/BearBump/xtreeshop/internal/validation"
)

const linkableOrdersLimit = 10

type Repository interface {
	ListLinkableOrders(ctx context.Context, userID uint64, limit int) ([]*models.LinkableOrder, error)
	OrderBelongsTo(ctx context.Context, orderID, userID uint64) (bool, error)

	CreateTicket(ctx context.Context, t *models.Ticket) (*models.Ticket, error)
	ListTickets(ctx context.Context, f models.TicketFilter) ([]*models.Ticket, error)
	GetTicket(ctx context.Context, id uint64) (*models.Ticket, error)
	ListTicketReplies(ctx context.Context, ticketID uint64) ([]*models.TicketReply, error)
	AddTicketReply(ctx context.Context, r *models.TicketReply, newStatus *models.TicketStatus, assignAdmin *uint64) (*models.TicketReply, error)
	SetTicketStatus(ctx context.Context, ticketID uint64, status models.TicketStatus) error
}

type Service struct {
	repo  Repository
	audit *audit.Recorder
}

func New(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, audit: rec}
}

func (s *Service) LinkableOrders(ctx context.Context, userID uint64) ([]*models.LinkableOrder, error) {
	return s.repo.ListLinkableOrders(ctx, userID, linkableOrdersLimit)
}

type TicketInput struct {
	Subject  string  `json:"subject" validate:"required,min=5,max=200"`
	Message  string  `json:"message" validate:"required,min=20,max=5000"`
	Priority string  `json:"priority"`
	OrderID  *uint64 `json:"order_id"`
}

func (s *Service) CreateTicket(ctx context.Context, userID uint64, in TicketInput) (*models.Ticket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	orderID := in.OrderID
	if orderID != nil && *orderID == 0 {
		orderID = nil
	}
	if orderID != nil {
		ok, err := s.repo.OrderBelongsTo(ctx, *orderID, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewValidationError("order_id", "order not found")
		}
	}

	return s.repo.CreateTicket(ctx, &models.Ticket{
		UserID:   userID,
		OrderID:  orderID,
		Subject:  in.Subject,
		Message:  in.Message,
		Priority: models.ParsePriority(in.Priority),
	})
}

func (s *Service) ListTickets(ctx context.Context, userID uint64) ([]*models.Ticket, error) {
	return s.repo.ListTickets(ctx, models.TicketFilter{UserID: &userID})
}

// ownTicket hides other customers' tickets behind ErrNotFound.
func (s *Service) ownTicket(ctx context.Context, userID, ticketID uint64) (*models.Ticket, error) {
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, models.ErrNotFound
	}
	return t, nil
}

func (s *Service) GetTicket(ctx context.Context, userID, ticketID uint64) (*models.TicketDetail, error) {
	t, err := s.ownTicket(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, t)
}

func (s *Service) detail(ctx context.Context, t *models.Ticket) (*models.TicketDetail, error) {
	replies, err := s.repo.ListTicketReplies(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return &models.TicketDetail{Ticket: t, Replies: replies}, nil
}

type ReplyInput struct {
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

// Reply adds a customer message. Replying to a resolved ticket reopens it.
func (s *Service) Reply(ctx context.Context, userID, ticketID uint64, in ReplyInput) (*models.TicketReply, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	t, err := s.ownTicket(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}

	var newStatus *models.TicketStatus
	switch t.Status {
	case models.TicketClosed:
		return nil, models.ErrTicketClosed
	case models.TicketResolved:
		st := models.TicketInProgress
		newStatus = &st
	}

	return s.repo.AddTicketReply(ctx, &models.TicketReply{
		TicketID: ticketID,
		UserID:   userID,
		Message:  in.Message,
	}, newStatus, nil)
}

func (s *Service) Close(ctx context.Context, userID, ticketID uint64) error {
	if _, err := s.ownTicket(ctx, userID, ticketID); err != nil {
		return err
	}
	return s.repo.SetTicketStatus(ctx, ticketID, models.TicketClosed)
}

func (s *Service) AdminList(ctx context.Context, status string) ([]*models.Ticket, error) {
	f := models.TicketFilter{}
	if status != "" {
		st := models.TicketStatus(status)
		if !st.Valid() {
			return nil, models.NewValidationError("status", "status must be one of: pending, in_progress, resolved, closed")
		}
		f.Status = &st
	}
	return s.repo.ListTickets(ctx, f)
}

func (s *Service) AdminGet(ctx context.Context, ticketID uint64) (*models.TicketDetail, error) {
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, t)
}

type AdminReplyInput struct {
	Message string `json:"message" validate:"required,min=10,max=5000"`
	Status  string `json:"status" validate:"required,oneof=pending in_progress resolved closed"`
}

// AdminReply answers a ticket, sets its status and assigns it to the admin
// when nobody owns it yet.
func (s *Service) AdminReply(ctx context.Context, actor audit.Actor, ticketID uint64, in AdminReplyInput) (*models.TicketReply, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	status := models.TicketStatus(in.Status)
	adminID := actor.AdminID

	r, err := s.repo.AddTicketReply(ctx, &models.TicketReply{
		TicketID: ticketID,
		UserID:   adminID,
		Message:  in.Message,
		IsAdmin:  true,
	}, &status, &adminID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, "reply_ticket", "help_tickets", &ticketID,
		fmt.Sprintf("status=%s", status))
	return r, nil
}
