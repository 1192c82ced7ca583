package notification

import (
	"context"
	"fmt"
	"time"

	"carshare/internal/pkg/logging"
)

type Service struct {
	repo   *Repository
	logger logging.Logger
}

func NewService(repo *Repository, logger logging.Logger) *Service {
	return &Service{repo: repo, logger: logging.OrDiscard(logger)}
}

func (s *Service) Create(ctx context.Context, userID int64, t Type, title, body string, data *NotificationData) (*Notification, error) {
	n := &Notification{
		UserID: userID,
		Type:   t,
		Title:  title,
		Body:   body,
	}
	if err := n.SetData(data); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.logger.WithFields(logging.Fields{
		"user_id": userID,
		"type":    t,
	}).Debug("notification created")
	return n, nil
}

// List returns a page of notifications plus the unread and total counts.
func (s *Service) List(ctx context.Context, userID int64, limit, offset int) ([]Notification, int64, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	list, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return list, unread, total, nil
}

func (s *Service) GetUnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *Service) NotifyBookingConfirmed(ctx context.Context, renterID, bookingID int64, start time.Time) error {
	startStr := start.UTC().Format(time.RFC3339)
	_, err := s.Create(
		ctx,
		renterID,
		TypeBookingConfirmed,
		"Booking confirmed",
		fmt.Sprintf("Your booking #%d was confirmed by the owner. Pickup on %s.", bookingID, start.UTC().Format("Jan 2, 2006 15:04 MST")),
		&NotificationData{BookingID: &bookingID, StartTime: &startStr},
	)
	return err
}

func (s *Service) NotifyBookingCancelled(ctx context.Context, userID, bookingID, refundCents int64, reason string) error {
	body := fmt.Sprintf("Booking #%d was cancelled. Refund: %s.", bookingID, formatCents(refundCents))
	data := &NotificationData{BookingID: &bookingID, RefundCents: &refundCents}
	if reason != "" {
		body = body + " Reason: " + reason
		data.Reason = &reason
	}
	_, err := s.Create(ctx, userID, TypeBookingCancelled, "Booking cancelled", body, data)
	return err
}

func (s *Service) NotifyPayoutReceived(ctx context.Context, ownerID, bookingID, amountCents int64) error {
	_, err := s.Create(
		ctx,
		ownerID,
		TypePayoutReceived,
		"Payout received",
		fmt.Sprintf("%s from booking #%d was added to your wallet.", formatCents(amountCents), bookingID),
		&NotificationData{BookingID: &bookingID, AmountCents: &amountCents},
	)
	return err
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
