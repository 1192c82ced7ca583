package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"carshare/internal/domain"
	"carshare/internal/domain/cancellation"
	"carshare/internal/domain/pricing"
	"carshare/internal/metrics"
	"carshare/internal/pkg/logging"
	"carshare/internal/saga"
)

const (
	DefaultStatusRetryAttempts = 3
	DefaultStatusRetryDelay    = 20 * time.Millisecond
)

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStatusRetry sets how many times a status change is attempted when it
// loses a race with another writer.
func WithStatusRetry(attempts int, delay time.Duration) Option {
	return func(s *Service) {
		s.retryAttempts = attempts
		s.retryDelay = delay
	}
}

// Service drives a booking through its lifecycle and keeps the renter's and
// owner's wallets in step with it.
type Service struct {
	bookings BookingRepository
	cars     CarCatalog
	payments PaymentRepository
	ledger   Ledger
	notifs   NotificationSender
	pricing  *pricing.Engine
	logger   logging.Logger
	now      func() time.Time

	retryAttempts int
	retryDelay    time.Duration
	statusRetry   retrypolicy.RetryPolicy[any]
}

func NewService(
	bookings BookingRepository,
	cars CarCatalog,
	payments PaymentRepository,
	ledger Ledger,
	notifs NotificationSender,
	engine *pricing.Engine,
	logger logging.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		bookings:      bookings,
		cars:          cars,
		payments:      payments,
		ledger:        ledger,
		notifs:        notifs,
		pricing:       engine,
		logger:        logging.OrDiscard(logger),
		now:           time.Now,
		retryAttempts: DefaultStatusRetryAttempts,
		retryDelay:    DefaultStatusRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statusRetry = newStatusRetryPolicy(s.retryAttempts, s.retryDelay)
	return s
}

func newStatusRetryPolicy(attempts int, delay time.Duration) retrypolicy.RetryPolicy[any] {
	if attempts < 1 {
		attempts = 1
	}
	builder := retrypolicy.NewBuilder[any]().
		HandleErrors(domain.ErrConcurrentModification).
		WithMaxRetries(attempts - 1).
		ReturnLastFailure()
	if delay > 0 {
		builder = builder.WithDelay(delay)
	}
	return builder.Build()
}

func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error) {
	car, err := s.cars.GetCar(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	return s.quoteFor(car, req)
}

func (s *Service) quoteFor(car *domain.Car, req QuoteRequest) (*pricing.Quote, error) {
	return s.pricing.Quote(pricing.Request{
		PricePerDayCents: car.PricePerDayCents,
		Start:            req.StartDate.UTC(),
		End:              req.EndDate.UTC(),
		Region:           car.Region,
		Insurance:        pricing.InsuranceTier(req.Insurance),
		ExtraDrivers:     req.ExtraDrivers,
		Extras:           req.Extras,
		PromoCode:        req.PromoCode,
	}, s.now())
}

// Create books a car for renterID and holds the quoted total in the
// renter's wallet. When the hold fails the booking is left cancelled and
// the hold's error is returned.
func (s *Service) Create(ctx context.Context, renterID int64, req CreateBookingRequest) (*CreateResult, error) {
	if renterID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	start, end := req.StartDate.UTC(), req.EndDate.UTC()
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end date must be after start date", domain.ErrValidation)
	}
	if start.Before(s.now()) {
		return nil, fmt.Errorf("%w: start date is in the past", domain.ErrValidation)
	}

	car, err := s.cars.GetCar(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	if car.OwnerID == renterID {
		return nil, fmt.Errorf("%w: owners cannot book their own car", domain.ErrValidation)
	}

	var (
		quote *pricing.Quote
		b     *domain.Booking
	)
	err = saga.New("create_booking", s.logger).
		AddStep("check_availability", func(ctx context.Context) error {
			ok, err := s.cars.IsAvailable(ctx, car.ID, start, end)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrCarNotAvailable
			}
			return nil
		}, nil).
		AddStep("quote", func(context.Context) error {
			var err error
			quote, err = s.quoteFor(car, req.QuoteRequest)
			return err
		}, nil).
		AddStep("create_booking", func(ctx context.Context) error {
			b = &domain.Booking{
				CarID:           car.ID,
				RenterID:        renterID,
				OwnerID:         car.OwnerID,
				StartDate:       start,
				EndDate:         end,
				Status:          domain.BookingPending,
				TotalPriceCents: quote.TotalCents,
				CancelPolicy:    car.CancelPolicy,
			}
			return s.bookings.Create(ctx, b)
		}, func(ctx context.Context) error {
			return s.cancelUnfunded(ctx, b.ID)
		}).
		AddStep("create_payment", func(ctx context.Context) error {
			return s.payments.Create(ctx, &domain.Payment{
				BookingID:   b.ID,
				PayerID:     renterID,
				AmountCents: quote.TotalCents,
				Status:      domain.PaymentPending,
			})
		}, func(ctx context.Context) error {
			return s.payments.UpdateStatus(ctx, b.ID, domain.PaymentFailed, 0)
		}).
		AddStep("hold_funds", func(ctx context.Context) error {
			_, err := s.ledger.Hold(ctx, renterID, quote.TotalCents, domain.ReferenceTypeBooking, b.ReferenceID())
			return err
		}, func(ctx context.Context) error {
			_, err := s.ledger.Release(ctx, renterID, quote.TotalCents, b.ReferenceID())
			return err
		}).
		AddStep("mark_payment_processing", func(ctx context.Context) error {
			return s.payments.UpdateStatus(ctx, b.ID, domain.PaymentProcessing, 0)
		}, nil).
		Run(ctx)
	if err != nil {
		return nil, err
	}

	metrics.BookingTransitions.WithLabelValues(string(domain.BookingPending)).Inc()
	s.logger.WithFields(logging.Fields{
		"booking_id":  b.ID,
		"car_id":      car.ID,
		"renter_id":   renterID,
		"total_cents": quote.TotalCents,
	}).Info("booking created")

	return &CreateResult{Booking: b, Quote: quote}, nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := participantRole(actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Booking, error) {
	return s.bookings.ListForUser(ctx, actor.UserID, limit, offset)
}

// Confirm accepts a pending booking. Only the car's owner may confirm.
func (s *Service) Confirm(ctx context.Context, actor domain.Actor, id int64) (*domain.Booking, error) {
	b, _, err := s.transition(ctx, id, domain.BookingConfirmed, func(b *domain.Booking) error {
		if actor.UserID != b.OwnerID {
			return domain.ErrUnauthorized
		}
		return nil
	}, func(*domain.Booking) domain.BookingChanges {
		now := s.now().UTC()
		return domain.BookingChanges{ConfirmedAt: &now}
	})
	if err != nil {
		return nil, err
	}

	if s.notifs != nil {
		if err := s.notifs.NotifyBookingConfirmed(ctx, b.RenterID, b.ID, b.StartDate); err != nil {
			s.logNotifyError("booking_confirmed", b.ID, err)
		}
	}
	return b, nil
}

// Start marks the car as handed over.
func (s *Service) Start(ctx context.Context, actor domain.Actor, id int64) (*domain.Booking, error) {
	b, _, err := s.transition(ctx, id, domain.BookingActive, func(b *domain.Booking) error {
		_, err := participantRole(actor, b)
		return err
	}, func(*domain.Booking) domain.BookingChanges {
		now := s.now().UTC()
		return domain.BookingChanges{StartedAt: &now}
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Complete closes an active booking and pays the held total to the owner.
// extraChargeCents, when positive, is charged afterwards as its own hold
// and capture; its failure is reported in the result and does not undo the
// main settlement.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, id, extraChargeCents int64) (*CompleteResult, error) {
	if extraChargeCents < 0 {
		return nil, fmt.Errorf("%w: extra charge must not be negative", domain.ErrValidation)
	}

	var b *domain.Booking
	err := saga.New("complete_booking", s.logger).
		AddStep("mark_completed", func(ctx context.Context) error {
			var err error
			b, _, err = s.transition(ctx, id, domain.BookingCompleted, func(b *domain.Booking) error {
				if !actor.IsAdmin() && actor.UserID != b.OwnerID {
					return domain.ErrUnauthorized
				}
				return nil
			}, func(*domain.Booking) domain.BookingChanges {
				now := s.now().UTC()
				return domain.BookingChanges{CompletedAt: &now}
			})
			return err
		}, func(ctx context.Context) error {
			return s.bookings.UpdateStatus(ctx, id, domain.BookingCompleted, domain.BookingActive, domain.BookingChanges{ClearCompletion: true})
		}).
		AddStep("mark_payment_succeeded", func(ctx context.Context) error {
			return s.payments.UpdateStatus(ctx, id, domain.PaymentSucceeded, 0)
		}, func(ctx context.Context) error {
			return s.payments.UpdateStatus(ctx, id, domain.PaymentProcessing, 0)
		}).
		AddStep("capture_payment", func(ctx context.Context) error {
			_, err := s.ledger.Capture(ctx, b.RenterID, b.TotalPriceCents, b.ReferenceID(), b.OwnerID)
			return err
		}, nil).
		Run(ctx)
	if err != nil {
		return nil, err
	}

	s.notifyPayout(ctx, b.OwnerID, b.ID, b.TotalPriceCents)
	res := &CompleteResult{Booking: b, PayoutCents: b.TotalPriceCents}

	if extraChargeCents > 0 {
		if err := s.chargeExtra(ctx, b, extraChargeCents); err != nil {
			s.logger.WithFields(logging.Fields{
				"booking_id": b.ID,
				"amount":     extraChargeCents,
				"error":      err.Error(),
			}).Warn("extra charge failed")
			res.ExtraChargeErr = err
		} else {
			res.ExtraChargeCents = extraChargeCents
		}
	}
	return res, nil
}

func (s *Service) chargeExtra(ctx context.Context, b *domain.Booking, amount int64) error {
	ref := domain.BookingExtraReference(b.ID)
	err := saga.New("extra_charge", s.logger).
		AddStep("hold_extra", func(ctx context.Context) error {
			_, err := s.ledger.Hold(ctx, b.RenterID, amount, domain.ReferenceTypeBookingExtra, ref)
			return err
		}, func(ctx context.Context) error {
			_, err := s.ledger.Release(ctx, b.RenterID, amount, ref)
			return err
		}).
		AddStep("capture_extra", func(ctx context.Context) error {
			_, err := s.ledger.Capture(ctx, b.RenterID, amount, ref, b.OwnerID)
			return err
		}, nil).
		Run(ctx)
	if err != nil {
		return err
	}

	b.ExtraChargeCents = amount
	if err := s.bookings.UpdateStatus(ctx, b.ID, domain.BookingCompleted, domain.BookingCompleted, domain.BookingChanges{ExtraChargeCents: &amount}); err != nil {
		// money already moved; the ledger entry under ref is the record of truth
		s.logger.WithFields(logging.Fields{
			"booking_id": b.ID,
			"error":      err.Error(),
		}).Error("failed to record extra charge on booking")
	}
	s.notifyPayout(ctx, b.OwnerID, b.ID, amount)
	return nil
}

// Cancel cancels a pending or confirmed booking. The refund decided by the
// car's cancellation policy goes back to the renter and the rest of the
// hold is paid to the owner, in one ledger transaction.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id int64, reason string) (*CancelResult, error) {
	var (
		b        *domain.Booking
		prev     domain.BookingStatus
		role     cancellation.Role
		decision cancellation.Decision
	)
	err := saga.New("cancel_booking", s.logger).
		AddStep("mark_cancelled", func(ctx context.Context) error {
			var err error
			b, prev, err = s.transition(ctx, id, domain.BookingCancelled, func(b *domain.Booking) error {
				var err error
				if role, err = participantRole(actor, b); err != nil {
					return err
				}
				return s.requireFunded(ctx, b)
			}, func(cur *domain.Booking) domain.BookingChanges {
				now := s.now().UTC()
				decision = cancellation.Resolve(cancellation.Input{
					TotalCents:  cur.TotalPriceCents,
					Start:       cur.StartDate,
					Policy:      cur.CancelPolicy,
					CancelledBy: role,
					Now:         now,
				})
				by := actor.UserID
				return domain.BookingChanges{
					CancelledAt:        &now,
					CancelledBy:        &by,
					CancellationReason: &reason,
					RefundCents:        &decision.RefundCents,
				}
			})
			return err
		}, func(ctx context.Context) error {
			return s.bookings.UpdateStatus(ctx, id, domain.BookingCancelled, prev, domain.BookingChanges{ClearCancellation: true})
		}).
		AddStep("update_payment", func(ctx context.Context) error {
			status := domain.PaymentRefunded
			if decision.RefundCents == 0 {
				status = domain.PaymentSucceeded
			}
			return s.payments.UpdateStatus(ctx, id, status, decision.RefundCents)
		}, func(ctx context.Context) error {
			return s.payments.UpdateStatus(ctx, id, domain.PaymentProcessing, 0)
		}).
		AddStep("settle_hold", func(ctx context.Context) error {
			_, err := s.ledger.Settle(ctx, b.RenterID, b.ReferenceID(), decision.RefundCents, decision.FeeCents, b.OwnerID)
			return err
		}, nil).
		Run(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logging.Fields{
		"booking_id":   b.ID,
		"cancelled_by": role,
		"refund_cents": decision.RefundCents,
		"fee_cents":    decision.FeeCents,
	}).Info("booking cancelled")

	if s.notifs != nil {
		for _, userID := range []int64{b.RenterID, b.OwnerID} {
			if err := s.notifs.NotifyBookingCancelled(ctx, userID, b.ID, decision.RefundCents, reason); err != nil {
				s.logNotifyError("booking_cancelled", b.ID, err)
			}
		}
	}
	if decision.FeeCents > 0 {
		s.notifyPayout(ctx, b.OwnerID, b.ID, decision.FeeCents)
	}
	return &CancelResult{Booking: b, Decision: decision}, nil
}

// cancelUnfunded cancels a booking whose hold was never placed. A booking
// that is already cancelled counts as done.
func (s *Service) cancelUnfunded(ctx context.Context, id int64) error {
	_, _, err := s.transition(ctx, id, domain.BookingCancelled, nil, func(*domain.Booking) domain.BookingChanges {
		now := s.now().UTC()
		reason := "payment hold failed"
		return domain.BookingChanges{CancelledAt: &now, CancellationReason: &reason}
	})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		return err
	}
	cur, gerr := s.bookings.GetByID(ctx, id)
	if gerr == nil && cur.Status == domain.BookingCancelled {
		return nil
	}
	return err
}

// requireFunded rejects cancelling a pending booking before its hold is in
// place. Create is still running for it and owns its cleanup.
func (s *Service) requireFunded(ctx context.Context, b *domain.Booking) error {
	if b.Status != domain.BookingPending {
		return nil
	}
	p, err := s.payments.GetByBookingID(ctx, b.ID)
	if err != nil {
		return err
	}
	if p.Status != domain.PaymentProcessing {
		return fmt.Errorf("%w: payment for booking %d is %s", domain.ErrInvalidStateTransition, b.ID, p.Status)
	}
	return nil
}

// transition re-reads the booking, checks authorize and the lifecycle, and
// writes the new status conditionally on the status it read. Only the
// read-then-write is retried, and only on domain.ErrConcurrentModification.
// It returns the updated booking and the status it moved from.
func (s *Service) transition(
	ctx context.Context,
	id int64,
	to domain.BookingStatus,
	authorize func(b *domain.Booking) error,
	changes func(b *domain.Booking) domain.BookingChanges,
) (*domain.Booking, domain.BookingStatus, error) {
	var (
		out      *domain.Booking
		from     domain.BookingStatus
		attempts int
	)
	err := failsafe.With(s.statusRetry).WithContext(ctx).Run(func() error {
		attempts++
		b, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(b); err != nil {
				return err
			}
		}
		if !b.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidStateTransition, b.Status, to)
		}

		var ch domain.BookingChanges
		if changes != nil {
			ch = changes(b)
		}
		if err := s.bookings.UpdateStatus(ctx, id, b.Status, to, ch); err != nil {
			return err
		}

		from = b.Status
		b.Status = to
		ch.Apply(b)
		out = b
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.logger.WithFields(logging.Fields{
				"booking_id": id,
				"to":         to,
				"attempts":   attempts,
			}).Warn("booking status update lost every retry")
		}
		return nil, "", err
	}

	metrics.BookingTransitions.WithLabelValues(string(to)).Inc()
	s.logger.WithFields(logging.Fields{
		"booking_id": id,
		"from":       from,
		"to":         to,
	}).Info("booking status changed")
	return out, from, nil
}

func (s *Service) notifyPayout(ctx context.Context, ownerID, bookingID, amount int64) {
	if s.notifs == nil {
		return
	}
	if err := s.notifs.NotifyPayoutReceived(ctx, ownerID, bookingID, amount); err != nil {
		s.logNotifyError("payout_received", bookingID, err)
	}
}

func (s *Service) logNotifyError(kind string, bookingID int64, err error) {
	s.logger.WithFields(logging.Fields{
		"notification": kind,
		"booking_id":   bookingID,
		"error":        err.Error(),
	}).Warn("failed to send notification")
}

// participantRole resolves who actor is with respect to b. Admins win over
// ownership; strangers get domain.ErrUnauthorized.
func participantRole(actor domain.Actor, b *domain.Booking) (cancellation.Role, error) {
	switch {
	case actor.IsAdmin():
		return cancellation.RoleAdmin, nil
	case actor.UserID != 0 && actor.UserID == b.OwnerID:
		return cancellation.RoleOwner, nil
	case actor.UserID != 0 && actor.UserID == b.RenterID:
		return cancellation.RoleRenter, nil
	}
	return "", domain.ErrUnauthorized
}
