package models

import "time"

// CardRarity tiers used by the weighted draw
type CardRarity string

const (
	RarityCommon    CardRarity = "common"
	RarityRare      CardRarity = "rare"
	RarityEpic      CardRarity = "epic"
	RarityLegendary CardRarity = "legendary"
)

// Card: catalog mirror of a collectible card definition
type Card struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string     `gorm:"not null" json:"name"`
	Slug       string     `gorm:"uniqueIndex;not null" json:"slug"`
	Faction    string     `gorm:"index" json:"faction,omitempty"`
	Rarity     CardRarity `gorm:"index;not null;default:'common'" json:"rarity"`
	SeriesID   *string    `gorm:"index" json:"series_id,omitempty"`
	ArtworkURL string     `gorm:"type:text" json:"artwork_url,omitempty"`
	Active     bool       `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// UserCard is an owned card. Drawing a duplicate increments Quantity instead
// of inserting a second row.
type UserCard struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string `gorm:"not null;uniqueIndex:idx_user_card" json:"account_id"`
	CardID    string `gorm:"not null;uniqueIndex:idx_user_card" json:"card_id"`
	Quantity  int64  `gorm:"not null;default:1" json:"quantity"`

	ObtainedAt time.Time `json:"obtained_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Card *Card `gorm:"foreignKey:CardID" json:"card,omitempty"`
}
