package models

import "time"

// MissionFrequency controls how often a mission instance re-arms
type MissionFrequency string

const (
	FrequencyDaily  MissionFrequency = "daily"
	FrequencyWeekly MissionFrequency = "weekly"
	FrequencyOnce   MissionFrequency = "once"
)

// Mission: catalog entry describing a progress goal and its reward
type Mission struct {
	ID             string           `gorm:"primaryKey;type:uuid" json:"id"`
	Name           string           `gorm:"not null" json:"name"`
	Description    string           `json:"description,omitempty"`
	ConditionType  string           `gorm:"index;not null" json:"condition_type"` // e.g. "open_booster", "collect_card"
	ConditionValue int64            `gorm:"not null" json:"condition_value"`
	RewardGems     int64            `gorm:"not null;default:0" json:"reward_gems"`
	RewardXP       int64            `gorm:"not null;default:0" json:"reward_xp"`
	Frequency      MissionFrequency `gorm:"not null;default:'daily'" json:"frequency"`
	Active         bool             `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserMission is one player's instance of a catalog mission.
// Progress only moves forward and freezes at ConditionValue once completed.
type UserMission struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string `gorm:"not null;uniqueIndex:idx_user_mission" json:"account_id"`
	MissionID string `gorm:"not null;uniqueIndex:idx_user_mission" json:"mission_id"`

	Progress  int64      `gorm:"not null;default:0" json:"progress"`
	Completed bool       `gorm:"default:false" json:"completed"`
	Claimed   bool       `gorm:"default:false" json:"claimed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Timestamps

	Mission *Mission `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
}
