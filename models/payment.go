package models

import "time"

// PaymentStatus values accepted from the provider webhook
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ProcessedPayment marks a provider session id as handled. The primary key is
// the dedup guard: a redelivered webhook for the same session inserts zero
// rows and must produce zero side effects.
type ProcessedPayment struct {
	SessionID     string        `gorm:"primaryKey" json:"session_id"`
	AccountID     string        `gorm:"index;not null" json:"account_id"`
	BoosterTypeID string        `gorm:"not null" json:"booster_type_id"`
	Quantity      int           `gorm:"not null;default:1" json:"quantity"`
	Status        PaymentStatus `gorm:"not null" json:"status"`
	ProcessedAt   time.Time     `json:"processed_at" gorm:"autoCreateTime"`
}

// PaymentNotification is the decoded webhook payload. The provider may
// deliver the same session more than once.
type PaymentNotification struct {
	SessionID string        `json:"session_id"`
	Status    PaymentStatus `json:"status"`
	Metadata  struct {
		AccountID     string `json:"account_id"`
		BoosterTypeID string `json:"booster_type_id"`
		Quantity      int    `json:"quantity"`
	} `json:"metadata"`
}
