package models

import (
	"time"

	"gorm.io/gorm"
)

// TransactionKind tags the origin of a balance mutation
type TransactionKind string

const (
	TxKindAchievementReward TransactionKind = "achievement_reward"
	TxKindSeriesReward      TransactionKind = "series_reward"
	TxKindDailyReward       TransactionKind = "daily_reward"
	TxKindMissionReward     TransactionKind = "mission_reward"
	TxKindSpendGems         TransactionKind = "spend_gems"
	TxKindStripePayment     TransactionKind = "stripe_payment"
	TxKindAdminAdjust       TransactionKind = "admin_adjust"
)

// Account is the per-player economy state. Balance and XP are mutated only
// through the LedgerService; everything else reads them.
type Account struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	Balance int64 `json:"balance" gorm:"not null;default:0"` // gems
	XP      int64 `json:"xp" gorm:"not null;default:0"`
	Level   int   `json:"level" gorm:"not null;default:1"` // always xp/100 + 1

	Timestamps
}

// Transaction is one append-only ledger entry. Rows are never updated or
// deleted; sum(amount) per account must always equal Account.Balance.
type Transaction struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID   string          `gorm:"index;not null" json:"account_id"`
	Kind        TransactionKind `gorm:"not null" json:"kind"`
	Amount      int64           `json:"amount"` // signed, gems
	XPAmount    int64           `json:"xp_amount"`
	Description string          `json:"description"`
	ExternalRef *string         `gorm:"uniqueIndex" json:"external_ref,omitempty"` // idempotency key
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
