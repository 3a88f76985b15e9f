package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agrimarket/negotiation-api/internal/domain"
	"github.com/agrimarket/negotiation-api/internal/infrastructure/smtp"
	"github.com/agrimarket/negotiation-api/internal/infrastructure/sns"
	"github.com/agrimarket/negotiation-api/internal/pkg/id"
)

type Service interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	// Notify persists the inbox entry (the durable record — its failure is
	// fatal to the triggering request) and then fans out over the
	// best-effort channels: websocket, email, and SMS for acceptances.
	Notify(ctx context.Context, recipient *domain.User, typ, message string, bid *domain.Bid) error
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type userEmitter interface {
	EmitUser(userID, event string, data interface{})
}

type service struct {
	repo    notificationStore
	gateway userEmitter
	mailer  smtp.Mailer   // nil disables email alerts
	sms     sns.SMSSender // nil disables SMS alerts
}

type ServiceDeps struct {
	NotificationRepo notificationStore
	Gateway          userEmitter
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:    deps.NotificationRepo,
		gateway: deps.Gateway,
		mailer:  deps.Mailer,
		sms:     deps.SMSSender,
	}
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListUnread(ctx, userID)
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) Notify(ctx context.Context, recipient *domain.User, typ, message string, bid *domain.Bid) error {
	now := time.Now().UTC()
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         recipient.UserID,
		Type:           typ,
		Message:        message,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if bid != nil {
		n.BidID = &bid.BidID
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	if s.gateway != nil {
		s.gateway.EmitUser(recipient.UserID, domain.EventBidNotification, domain.BidNotificationEvent{
			Type:    typ,
			Message: message,
			Bid:     bid,
		})
	}

	if s.mailer != nil && recipient.Email != "" {
		if err := s.mailer.SendEmail(recipient.Email, subjectFor(typ), message); err != nil {
			slog.Warn("email alert failed", "user", recipient.UserID, "type", typ, "err", err)
		}
	}

	// SMS is reserved for the terminal event; cheaper channels cover the rest.
	if s.sms != nil && typ == domain.NotificationBidAccepted && recipient.Phone != nil && *recipient.Phone != "" {
		if err := s.sms.SendSMS(ctx, *recipient.Phone, message); err != nil {
			slog.Warn("sms alert failed", "user", recipient.UserID, "err", err)
		}
	}

	return nil
}

func subjectFor(typ string) string {
	switch typ {
	case domain.NotificationNewBid:
		return "New bid on your product"
	case domain.NotificationCounterOffer:
		return "Counter-offer received"
	case domain.NotificationBidAccepted:
		return "Your bid was accepted"
	}
	return "Marketplace notification"
}
