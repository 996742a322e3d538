package models

import "time"

// RewardSourceKind tags which trigger produced a claimable reward
type RewardSourceKind string

const (
	SourceAchievement RewardSourceKind = "achievement"
	SourceSeries      RewardSourceKind = "series"
	SourceDaily       RewardSourceKind = "daily"
	SourceMission     RewardSourceKind = "mission"
)

// RewardClaim is the one-time-grant record shared by achievements, series and
// daily rewards. claimed=true implies exactly one ledger Transaction exists
// with external_ref derived from (kind, source_id, account_id).
type RewardClaim struct {
	ID         string           `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID  string           `gorm:"not null;uniqueIndex:idx_claim_key" json:"account_id"`
	SourceKind RewardSourceKind `gorm:"not null;uniqueIndex:idx_claim_key" json:"source_kind"`
	SourceID   string           `gorm:"not null;uniqueIndex:idx_claim_key" json:"source_id"`
	Unlocked   bool             `gorm:"default:false" json:"unlocked"`
	Claimed    bool             `gorm:"default:false" json:"claimed"`
	ClaimedAt  *time.Time       `json:"claimed_at,omitempty"`

	Timestamps
}

// Achievement: catalog mirror, synced from the content service
type Achievement struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // e.g. "FIRST_BOOSTER"
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description,omitempty"`
	RewardGems  int64  `gorm:"not null;default:0" json:"reward_gems"`
	RewardXP    int64  `gorm:"not null;default:0" json:"reward_xp"`
	Active      bool   `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// CardSeries: catalog mirror. A series completes when the player owns every
// card with SeriesID pointing at it.
type CardSeries struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	Slug       string `gorm:"uniqueIndex;not null" json:"slug"`
	RewardGems int64  `gorm:"not null;default:0" json:"reward_gems"`
	RewardXP   int64  `gorm:"not null;default:0" json:"reward_xp"`
	Active     bool   `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// DailyRewardTier is one row of the login-streak schedule (day 1..N).
// Reward amounts come from this table, never computed from the day number.
type DailyRewardTier struct {
	ID   string `gorm:"primaryKey;type:uuid" json:"id"`
	Day  int    `gorm:"uniqueIndex;not null" json:"day"`
	Gems int64  `gorm:"not null;default:0" json:"gems"`
	XP   int64  `gorm:"not null;default:0" json:"xp"`
}

// DailyStreak tracks consecutive-day login claims per account.
// LastClaimDate is a UTC calendar date "2006-01-02"; empty means never claimed.
type DailyStreak struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID     string `gorm:"uniqueIndex;not null" json:"account_id"`
	CurrentStreak int    `gorm:"not null;default:0" json:"current_streak"`
	LastClaimDate string `gorm:"not null;default:''" json:"last_claim_date"`

	Timestamps
}
