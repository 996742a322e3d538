package models

import "time"

// BoosterType: catalog entry for a purchasable pack. Exactly one of
// PriceGems/PriceCents decides the purchase path; both nil means the type is
// not directly purchasable (e.g. event-only packs).
type BoosterType struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string  `gorm:"not null" json:"name"`
	Slug       string  `gorm:"uniqueIndex;not null" json:"slug"`
	PriceGems  *int64  `json:"price_gems,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	PackSize   int     `gorm:"not null;default:5" json:"pack_size"`
	Faction    *string `json:"faction,omitempty"` // restricts the card pool when set
	Active     bool    `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	RarityWeights []BoosterRarityWeight `gorm:"foreignKey:BoosterTypeID" json:"rarity_weights,omitempty"`
}

// BoosterRarityWeight is one row of a booster's rarity table. Weights are
// relative integers; the draw samples a tier proportionally.
type BoosterRarityWeight struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	BoosterTypeID string     `gorm:"not null;uniqueIndex:idx_booster_rarity" json:"booster_type_id"`
	Rarity        CardRarity `gorm:"not null;uniqueIndex:idx_booster_rarity" json:"rarity"`
	Weight        int64      `gorm:"not null" json:"weight"`
}

// UserBooster is an owned, possibly still unopened pack instance
type UserBooster struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID     string     `gorm:"index;not null" json:"account_id"`
	BoosterTypeID string     `gorm:"index;not null" json:"booster_type_id"`
	Opened        bool       `gorm:"default:false" json:"opened"`
	OpenedAt      *time.Time `json:"opened_at,omitempty"`
	PaymentRef    *string    `gorm:"index" json:"payment_ref,omitempty"` // provider session id for paid packs

	Timestamps

	BoosterType *BoosterType `gorm:"foreignKey:BoosterTypeID" json:"booster_type,omitempty"`
}
