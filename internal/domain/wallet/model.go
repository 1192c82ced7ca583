package wallet

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultCurrency = "USD"

// Wallet holds a user's balances. Only Service mutates it.
type Wallet struct {
	ID                   uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID               int64     `json:"user_id" gorm:"not null;uniqueIndex"`
	AvailableBalance     int64     `json:"available_balance" gorm:"not null;default:0;check:chk_wallets_available,available_balance >= 0"`
	LockedBalance        int64     `json:"locked_balance" gorm:"not null;default:0;check:chk_wallets_locked,locked_balance >= 0"`
	NonWithdrawableFloor int64     `json:"non_withdrawable_floor" gorm:"not null;default:0"`
	Currency             string    `json:"currency" gorm:"type:varchar(3);not null;default:USD"`
	CreatedAt            time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}

func (w *Wallet) BeforeCreate(_ *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	return nil
}

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is an immutable ledger entry. Amount is signed: negative when
// money leaves the available or locked balance of UserID.
type Transaction struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        int64             `json:"user_id" gorm:"not null;index:idx_wallet_tx_user_created,priority:1"`
	Amount        int64             `json:"amount" gorm:"not null"`
	Kind          Kind              `json:"kind" gorm:"type:varchar(16);not null;index"`
	Status        TransactionStatus `json:"status" gorm:"type:varchar(16);not null"`
	ReferenceType string            `json:"reference_type" gorm:"type:varchar(32);not null"`
	ReferenceID   string            `json:"reference_id" gorm:"type:varchar(128);not null;index"`
	Metadata      json.RawMessage   `json:"metadata" gorm:"type:text;not null"`
	CreatedAt     time.Time         `json:"created_at" gorm:"autoCreateTime;index:idx_wallet_tx_user_created,priority:2"`
}

func (Transaction) TableName() string {
	return "wallet_transactions"
}

func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Details decodes the kind-specific metadata of the entry.
func (t *Transaction) Details() (Metadata, error) {
	return decodeMetadata(t.Kind, t.Metadata)
}

type HoldStatus string

const (
	HoldActive  HoldStatus = "active"
	HoldSettled HoldStatus = "settled"
)

// Hold tracks the funds locked against one reference. A reference can only
// carry one active hold per user.
type Hold struct {
	UserID         int64      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	ReferenceID    string     `json:"reference_id" gorm:"primaryKey;type:varchar(128)"`
	ReferenceType  string     `json:"reference_type" gorm:"type:varchar(32);not null"`
	AmountCents    int64      `json:"amount_cents" gorm:"not null"`
	RemainingCents int64      `json:"remaining_cents" gorm:"not null;check:chk_wallet_holds_remaining,remaining_cents >= 0"`
	Status         HoldStatus `json:"status" gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Hold) TableName() string {
	return "wallet_holds"
}

// Models lists the tables owned by the ledger.
func Models() []any {
	return []any{&Wallet{}, &Transaction{}, &Hold{}}
}
