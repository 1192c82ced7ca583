package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carshare/internal/domain"
	"carshare/internal/metrics"
)

const ReferenceTypeWithdrawal = "withdrawal"

// Result is what every balance-changing operation returns to its caller.
type Result struct {
	UserID           int64     `json:"user_id"`
	AvailableBalance int64     `json:"available_balance"`
	LockedBalance    int64     `json:"locked_balance"`
	TransactionID    uuid.UUID `json:"transaction_id"`
}

// Service is the only writer of wallet balances. Every operation runs in a
// single database transaction with the affected wallet rows locked.
type Service struct {
	db    *gorm.DB
	locks *walletLocks
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, locks: newWalletLocks()}
}

func (s *Service) GetOrCreateWallet(ctx context.Context, userID int64) (*Wallet, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	var out Wallet
	err := s.mutate(ctx, []int64{userID}, func(_ *gorm.DB, wallets map[int64]*Wallet) error {
		out = *wallets[userID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Hold moves amount from available to locked under (userID, referenceID).
func (s *Service) Hold(ctx context.Context, userID, amount int64, referenceType, referenceID string) (res *Result, err error) {
	defer func() { metrics.ObserveWalletOp("hold", err) }()

	meta := HoldMetadata{ReferenceType: referenceType, ReferenceID: referenceID}
	if err := validateOp(userID, amount, meta); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, []int64{userID}, func(tx *gorm.DB, wallets map[int64]*Wallet) error {
		w := wallets[userID]
		h, err := findHoldForUpdate(tx, userID, referenceID)
		if err != nil {
			return err
		}
		if h != nil && h.Status == HoldActive {
			return domain.ErrDuplicateHold
		}
		if w.AvailableBalance < amount {
			return domain.ErrInsufficientFunds
		}

		w.AvailableBalance -= amount
		w.LockedBalance += amount
		if err := saveBalances(tx, w); err != nil {
			return err
		}
		if err := putHold(tx, h, userID, amount, meta); err != nil {
			return err
		}
		t, err := appendEntry(tx, userID, -amount, referenceType, referenceID, meta)
		if err != nil {
			return err
		}
		res = resultFor(w, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Release returns amount of the hold filed under referenceID to the available balance.
func (s *Service) Release(ctx context.Context, userID, amount int64, referenceID string) (res *Result, err error) {
	defer func() { metrics.ObserveWalletOp("release", err) }()

	if err := validateOp(userID, amount, ReleaseMetadata{ReferenceID: referenceID}); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, []int64{userID}, func(tx *gorm.DB, wallets map[int64]*Wallet) error {
		w := wallets[userID]
		h, err := activeHoldCovering(tx, w, referenceID, amount)
		if err != nil {
			return err
		}
		t, err := releaseHeld(tx, w, h, amount)
		if err != nil {
			return err
		}
		res = resultFor(w, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Capture pays amount of the payer's hold to the recipient's available
// balance. Both sides commit together.
func (s *Service) Capture(ctx context.Context, payerID, amount int64, referenceID string, recipientID int64) (res *Result, err error) {
	defer func() { metrics.ObserveWalletOp("capture", err) }()

	if err := validateOp(payerID, amount, CaptureMetadata{ReferenceID: referenceID, RecipientID: recipientID}); err != nil {
		return nil, err
	}
	if payerID == recipientID {
		return nil, fmt.Errorf("%w: payer and recipient must differ", domain.ErrValidation)
	}

	err = s.mutate(ctx, []int64{payerID, recipientID}, func(tx *gorm.DB, wallets map[int64]*Wallet) error {
		payer := wallets[payerID]
		h, err := activeHoldCovering(tx, payer, referenceID, amount)
		if err != nil {
			return err
		}
		t, err := captureHeld(tx, payer, wallets[recipientID], h, amount)
		if err != nil {
			return err
		}
		res = resultFor(payer, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Settle closes out part or all of a hold in one transaction: releaseAmount
// goes back to the payer and captureAmount goes to the recipient.
func (s *Service) Settle(ctx context.Context, payerID int64, referenceID string, releaseAmount, captureAmount, recipientID int64) (res *Result, err error) {
	defer func() { metrics.ObserveWalletOp("settle", err) }()

	if err := validateUser(payerID); err != nil {
		return nil, err
	}
	if releaseAmount < 0 || captureAmount < 0 || releaseAmount+captureAmount == 0 {
		return nil, fmt.Errorf("%w: settle amounts must be non-negative and not both zero", domain.ErrValidation)
	}
	if referenceID == "" {
		return nil, fmt.Errorf("%w: reference_id is required", domain.ErrValidation)
	}
	parties := []int64{payerID}
	if captureAmount > 0 {
		if recipientID <= 0 || recipientID == payerID {
			return nil, fmt.Errorf("%w: capture needs a recipient other than the payer", domain.ErrValidation)
		}
		parties = append(parties, recipientID)
	}

	err = s.mutate(ctx, parties, func(tx *gorm.DB, wallets map[int64]*Wallet) error {
		payer := wallets[payerID]
		h, err := activeHoldCovering(tx, payer, referenceID, releaseAmount+captureAmount)
		if err != nil {
			return err
		}

		var last *Transaction
		if releaseAmount > 0 {
			if last, err = releaseHeld(tx, payer, h, releaseAmount); err != nil {
				return err
			}
		}
		if captureAmount > 0 {
			if last, err = captureHeld(tx, payer, wallets[recipientID], h, captureAmount); err != nil {
				return err
			}
		}
		res = resultFor(payer, last)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Credit adds funds that were not held first, e.g. an insurance payout.
func (s *Service) Credit(ctx context.Context, userID, amount int64, referenceType, referenceID string) (res *Result, err error) {
	defer func() { metrics.ObserveWalletOp("credit", err) }()

	meta := CreditMetadata{ReferenceType: referenceType, ReferenceID: referenceID}
	if err := validateOp(userID, amount, meta); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, []int64{userID}, func(tx *gorm.DB, wallets map[int64]*Wallet) error {
		w := wallets[userID]
		w.AvailableBalance += amount
		if err := saveBalances(tx, w); err != nil {
			return err
		}
		t, err := appendEntry(tx, userID, amount, referenceType, referenceID, meta)
		if err != nil {
			return err
		}
		res = resultFor(w, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Debit removes funds from the available balance without a prior hold.
func (s *Service) Debit(ctx context.Context, userID, amount int64, referenceType, referenceID string) (*Result, error) {
	res, err := s.debit(ctx, userID, amount, DebitMetadata{ReferenceType: referenceType, ReferenceID: referenceID})
	metrics.ObserveWalletOp("debit", err)
	return res, err
}

// Withdraw is a debit that must leave at least the non-withdrawable floor behind.
func (s *Service) Withdraw(ctx context.Context, userID, amount int64, referenceID string) (*Result, error) {
	res, err := s.debit(ctx, userID, amount, DebitMetadata{
		ReferenceType: ReferenceTypeWithdrawal,
		ReferenceID:   referenceID,
		Withdrawal:    true,
	})
	metrics.ObserveWalletOp("withdraw", err)
	return res, err
}

func (s *Service) debit(ctx context.Context, userID, amount int64, meta DebitMetadata) (*Result, error) {
	if err := validateOp(userID, amount, meta); err != nil {
		return nil, err
	}

	var res *Result
	err := s.mutate(ctx, []int64{userID}, func(tx *gorm.DB, wallets map[int64]*Wallet) error {
		w := wallets[userID]
		if w.AvailableBalance < amount {
			return domain.ErrInsufficientFunds
		}
		if meta.Withdrawal && w.AvailableBalance-amount < w.NonWithdrawableFloor {
			return domain.ErrInsufficientFunds
		}

		w.AvailableBalance -= amount
		if err := saveBalances(tx, w); err != nil {
			return err
		}
		t, err := appendEntry(tx, userID, -amount, meta.ReferenceType, meta.ReferenceID, meta)
		if err != nil {
			return err
		}
		res = resultFor(w, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) SetWithdrawalFloor(ctx context.Context, userID, floor int64) (*Wallet, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if floor < 0 {
		return nil, fmt.Errorf("%w: floor must not be negative", domain.ErrValidation)
	}

	var out Wallet
	err := s.mutate(ctx, []int64{userID}, func(tx *gorm.DB, wallets map[int64]*Wallet) error {
		w := wallets[userID]
		w.NonWithdrawableFloor = floor
		if err := tx.Model(&Wallet{}).Where("id = ?", w.ID).Updates(map[string]any{
			"non_withdrawable_floor": floor,
			"updated_at":             time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		out = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var txns []Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (s *Service) GetHold(ctx context.Context, userID int64, referenceID string) (*Hold, error) {
	var h Hold
	err := s.db.WithContext(ctx).Where("user_id = ? AND reference_id = ?", userID, referenceID).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// mutate runs fn in one transaction with the wallet rows of every listed
// user locked. Missing wallets are created empty.
func (s *Service) mutate(ctx context.Context, userIDs []int64, fn func(tx *gorm.DB, wallets map[int64]*Wallet) error) error {
	unlock := s.locks.acquire(userIDs...)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := make(map[int64]*Wallet, len(userIDs))
		for _, id := range uniqueSorted(userIDs) {
			var w Wallet
			if err := getOrCreateWalletForUpdate(tx, id, &w); err != nil {
				return err
			}
			wallets[id] = &w
		}
		return fn(tx, wallets)
	})
}

func getOrCreateWalletForUpdate(tx *gorm.DB, userID int64, wallet *Wallet) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(wallet).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	fresh := Wallet{UserID: userID, Currency: DefaultCurrency}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return err
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(wallet).Error
}

func findHoldForUpdate(tx *gorm.DB, userID int64, referenceID string) (*Hold, error) {
	var h Hold
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND reference_id = ?", userID, referenceID).
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// putHold activates the hold row for a reference, reusing a settled one.
func putHold(tx *gorm.DB, existing *Hold, userID, amount int64, meta HoldMetadata) error {
	if existing == nil {
		h := Hold{
			UserID:         userID,
			ReferenceID:    meta.ReferenceID,
			ReferenceType:  meta.ReferenceType,
			AmountCents:    amount,
			RemainingCents: amount,
			Status:         HoldActive,
		}
		if err := tx.Create(&h).Error; err != nil {
			if isUniqueConstraintError(err) {
				return domain.ErrDuplicateHold
			}
			return err
		}
		return nil
	}

	return tx.Model(&Hold{}).
		Where("user_id = ? AND reference_id = ? AND status = ?", userID, meta.ReferenceID, HoldSettled).
		Updates(map[string]any{
			"reference_type":  meta.ReferenceType,
			"amount_cents":    amount,
			"remaining_cents": amount,
			"status":          HoldActive,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func activeHoldCovering(tx *gorm.DB, w *Wallet, referenceID string, amount int64) (*Hold, error) {
	h, err := findHoldForUpdate(tx, w.UserID, referenceID)
	if err != nil {
		return nil, err
	}
	if h == nil || h.Status != HoldActive || h.RemainingCents < amount || w.LockedBalance < amount {
		return nil, domain.ErrInsufficientLockedFunds
	}
	return h, nil
}

func releaseHeld(tx *gorm.DB, w *Wallet, h *Hold, amount int64) (*Transaction, error) {
	w.LockedBalance -= amount
	w.AvailableBalance += amount
	if err := saveBalances(tx, w); err != nil {
		return nil, err
	}
	if err := consumeHold(tx, h, amount); err != nil {
		return nil, err
	}
	meta := ReleaseMetadata{ReferenceID: h.ReferenceID, RemainingCents: h.RemainingCents}
	return appendEntry(tx, w.UserID, amount, h.ReferenceType, h.ReferenceID, meta)
}

func captureHeld(tx *gorm.DB, payer, recipient *Wallet, h *Hold, amount int64) (*Transaction, error) {
	payer.LockedBalance -= amount
	if err := saveBalances(tx, payer); err != nil {
		return nil, err
	}
	if err := consumeHold(tx, h, amount); err != nil {
		return nil, err
	}
	t, err := appendEntry(tx, payer.UserID, -amount, h.ReferenceType, h.ReferenceID, CaptureMetadata{
		ReferenceID: h.ReferenceID,
		RecipientID: recipient.UserID,
	})
	if err != nil {
		return nil, err
	}

	recipient.AvailableBalance += amount
	if err := saveBalances(tx, recipient); err != nil {
		return nil, err
	}
	if _, err := appendEntry(tx, recipient.UserID, amount, h.ReferenceType, h.ReferenceID, CreditMetadata{
		ReferenceType: h.ReferenceType,
		ReferenceID:   h.ReferenceID,
		PayerID:       payer.UserID,
	}); err != nil {
		return nil, err
	}
	return t, nil
}

func consumeHold(tx *gorm.DB, h *Hold, amount int64) error {
	h.RemainingCents -= amount
	if h.RemainingCents == 0 {
		h.Status = HoldSettled
	}
	return tx.Model(&Hold{}).
		Where("user_id = ? AND reference_id = ?", h.UserID, h.ReferenceID).
		Updates(map[string]any{
			"remaining_cents": h.RemainingCents,
			"status":          h.Status,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func saveBalances(tx *gorm.DB, w *Wallet) error {
	return tx.Model(&Wallet{}).Where("id = ?", w.ID).Updates(map[string]any{
		"available_balance": w.AvailableBalance,
		"locked_balance":    w.LockedBalance,
		"updated_at":        time.Now().UTC(),
	}).Error
}

func appendEntry(tx *gorm.DB, userID, amount int64, referenceType, referenceID string, meta Metadata) (*Transaction, error) {
	raw, err := encodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	t := &Transaction{
		UserID:        userID,
		Amount:        amount,
		Kind:          meta.Kind(),
		Status:        StatusCompleted,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Metadata:      raw,
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func resultFor(w *Wallet, t *Transaction) *Result {
	return &Result{
		UserID:           w.UserID,
		AvailableBalance: w.AvailableBalance,
		LockedBalance:    w.LockedBalance,
		TransactionID:    t.ID,
	}
}

func validateUser(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user_id must be positive", domain.ErrValidation)
	}
	return nil
}

func validateOp(userID, amount int64, meta Metadata) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	return meta.validate()
}

func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
