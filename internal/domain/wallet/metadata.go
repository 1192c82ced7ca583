package wallet

import (
	"encoding/json"
	"fmt"

	"carshare/internal/domain"
)

type Kind string

const (
	KindHold    Kind = "hold"
	KindCapture Kind = "capture"
	KindRelease Kind = "release"
	KindCredit  Kind = "credit"
	KindDebit   Kind = "debit"
)

// Metadata is the kind-specific payload of a ledger entry. The set of
// implementations is closed: one struct per Kind.
type Metadata interface {
	Kind() Kind
	validate() error
}

type HoldMetadata struct {
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
}

type ReleaseMetadata struct {
	ReferenceID    string `json:"reference_id"`
	RemainingCents int64  `json:"remaining_cents"`
}

type CaptureMetadata struct {
	ReferenceID string `json:"reference_id"`
	RecipientID int64  `json:"recipient_id"`
}

// CreditMetadata carries PayerID when the credit is the receiving half of a capture.
type CreditMetadata struct {
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	PayerID       int64  `json:"payer_id,omitempty"`
}

type DebitMetadata struct {
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	Withdrawal    bool   `json:"withdrawal,omitempty"`
}

func (HoldMetadata) Kind() Kind    { return KindHold }
func (ReleaseMetadata) Kind() Kind { return KindRelease }
func (CaptureMetadata) Kind() Kind { return KindCapture }
func (CreditMetadata) Kind() Kind  { return KindCredit }
func (DebitMetadata) Kind() Kind   { return KindDebit }

func (m HoldMetadata) validate() error {
	return requireReference(m.ReferenceType, m.ReferenceID)
}

func (m ReleaseMetadata) validate() error {
	if m.ReferenceID == "" {
		return fmt.Errorf("%w: reference_id is required", domain.ErrValidation)
	}
	if m.RemainingCents < 0 {
		return fmt.Errorf("%w: remaining_cents must not be negative", domain.ErrValidation)
	}
	return nil
}

func (m CaptureMetadata) validate() error {
	if m.ReferenceID == "" {
		return fmt.Errorf("%w: reference_id is required", domain.ErrValidation)
	}
	if m.RecipientID <= 0 {
		return fmt.Errorf("%w: recipient_id is required", domain.ErrValidation)
	}
	return nil
}

func (m CreditMetadata) validate() error {
	return requireReference(m.ReferenceType, m.ReferenceID)
}

func (m DebitMetadata) validate() error {
	return requireReference(m.ReferenceType, m.ReferenceID)
}

func requireReference(refType, refID string) error {
	if refType == "" {
		return fmt.Errorf("%w: reference_type is required", domain.ErrValidation)
	}
	if refID == "" {
		return fmt.Errorf("%w: reference_id is required", domain.ErrValidation)
	}
	return nil
}

func encodeMetadata(m Metadata) (json.RawMessage, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func decodeMetadata(kind Kind, raw json.RawMessage) (Metadata, error) {
	var (
		m   Metadata
		err error
	)
	switch kind {
	case KindHold:
		var v HoldMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case KindRelease:
		var v ReleaseMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case KindCapture:
		var v CaptureMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case KindCredit:
		var v CreditMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case KindDebit:
		var v DebitMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", kind, err)
	}
	return m, nil
}
