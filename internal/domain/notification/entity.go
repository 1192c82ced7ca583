package notification

import (
	"encoding/json"
	"time"
)

// Type represents notification type
type Type string

const (
	TypeBookingConfirmed Type = "booking_confirmed" // Renter: the owner accepted the booking
	TypeBookingCancelled Type = "booking_cancelled" // Both parties: booking cancelled
	TypePayoutReceived   Type = "payout_received"   // Owner: rental income credited
)

// Notification represents a user notification
type Notification struct {
	ID        int64           `gorm:"primaryKey;column:id" json:"id"`
	UserID    int64           `gorm:"column:user_id;not null;index:idx_notifications_user_unread" json:"user_id"`
	Type      Type            `gorm:"column:type;size:40;not null" json:"type"`
	Title     string          `gorm:"column:title;not null" json:"title"`
	Body      string          `gorm:"column:body" json:"body,omitempty"`
	Data      json.RawMessage `gorm:"column:data;type:text" json:"data,omitempty"`
	IsRead    bool            `gorm:"column:is_read;not null;default:false;index:idx_notifications_user_unread" json:"is_read"`
	ReadAt    *time.Time      `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `gorm:"column:created_at;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationData links a notification to the booking and amounts it is about.
type NotificationData struct {
	BookingID   *int64  `json:"booking_id,omitempty"`
	AmountCents *int64  `json:"amount_cents,omitempty"`
	RefundCents *int64  `json:"refund_cents,omitempty"`
	StartTime   *string `json:"start_time,omitempty"` // RFC3339
	Reason      *string `json:"reason,omitempty"`
}

// SetData encodes data to JSON
func (n *Notification) SetData(data *NotificationData) error {
	if data == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	n.Data = b
	return nil
}

// GetData decodes data from JSON
func (n *Notification) GetData() *NotificationData {
	if len(n.Data) == 0 {
		return &NotificationData{}
	}
	var data NotificationData
	_ = json.Unmarshal(n.Data, &data)
	return &data
}

func Models() []any {
	return []any{&Notification{}}
}
