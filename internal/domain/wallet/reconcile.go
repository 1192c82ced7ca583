package wallet

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carshare/internal/domain"
)

// Reconciliation compares a wallet's balances with what its ledger entries
// add up to.
//
// Holds and releases move money between available and locked, so they count
// toward the available side only. Credits, debits (withdrawals included) and
// captures change the wallet's total.
type Reconciliation struct {
	UserID           int64 `json:"user_id"`
	AvailableBalance int64 `json:"available_balance"`
	LockedBalance    int64 `json:"locked_balance"`
	LedgerAvailable  int64 `json:"ledger_available"`
	LedgerTotal      int64 `json:"ledger_total"`
}

func (r Reconciliation) Balanced() bool {
	return r.LedgerAvailable == r.AvailableBalance &&
		r.LedgerTotal == r.AvailableBalance+r.LockedBalance
}

type kindSum struct {
	Kind  Kind
	Total int64
}

func (s *Service) Reconcile(ctx context.Context, userID int64) (*Reconciliation, error) {
	unlock := s.locks.acquire(userID)
	defer unlock()

	var out Reconciliation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var w Wallet
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&w).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var sums []kindSum
		if err := tx.Model(&Transaction{}).
			Select("kind, COALESCE(SUM(amount), 0) AS total").
			Where("user_id = ? AND status = ?", userID, StatusCompleted).
			Group("kind").
			Scan(&sums).Error; err != nil {
			return err
		}

		out = Reconciliation{UserID: userID, AvailableBalance: w.AvailableBalance, LockedBalance: w.LockedBalance}
		for _, ks := range sums {
			switch ks.Kind {
			case KindCredit, KindDebit:
				out.LedgerAvailable += ks.Total
				out.LedgerTotal += ks.Total
			case KindHold, KindRelease:
				out.LedgerAvailable += ks.Total
			case KindCapture:
				out.LedgerTotal += ks.Total
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReconcileAll checks every wallet and returns the ones that do not balance.
func (s *Service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	var userIDs []int64
	if err := s.db.WithContext(ctx).Model(&Wallet{}).Order("user_id").Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}

	var mismatched []Reconciliation
	for _, id := range userIDs {
		r, err := s.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		if !r.Balanced() {
			mismatched = append(mismatched, *r)
		}
	}
	return mismatched, nil
}
