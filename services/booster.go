package services

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"card-economy-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BoosterService validates purchases, debits gems (or hands off to the
// payment provider) and runs the weighted card draw when a pack is opened.
type BoosterService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Claims   *ClaimService
	Missions *MissionService
	Payments *PaymentService

	// Rand returns a uniform int in [0, n); injectable for deterministic draws
	Rand func(n int) int
}

func NewBoosterService(db *gorm.DB, ledger *LedgerService, claims *ClaimService, missions *MissionService, payments *PaymentService) *BoosterService {
	return &BoosterService{
		DB:       db,
		Ledger:   ledger,
		Claims:   claims,
		Missions: missions,
		Payments: payments,
		Rand:     rand.Intn,
	}
}

// PurchaseResult: exactly one of Booster (gems path, applied immediately) or
// CheckoutURL (real-money path, fulfilled later by the webhook) is set.
type PurchaseResult struct {
	Booster     *models.UserBooster `json:"booster,omitempty"`
	NewBalance  *int64              `json:"new_balance,omitempty"`
	CheckoutURL string              `json:"checkout_url,omitempty"`
	SessionID   string              `json:"session_id,omitempty"`
}

// Purchase buys one booster of the given type for the account
func (s *BoosterService) Purchase(accountID, boosterTypeID string) (*PurchaseResult, error) {
	var bt models.BoosterType
	if err := s.DB.Where("id = ? AND active = ?", boosterTypeID, true).First(&bt).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch {
	case bt.PriceGems != nil:
		return s.purchaseWithGems(accountID, &bt)
	case bt.PriceCents != nil:
		session, err := s.Payments.CreateCheckoutSession(accountID, &bt, 1)
		if err != nil {
			return nil, err
		}
		return &PurchaseResult{CheckoutURL: session.CheckoutURL, SessionID: session.SessionID}, nil
	default:
		return nil, ErrNotPurchasable
	}
}

// purchaseWithGems debits the price and creates the unopened pack in one DB
// transaction; the conditional decrement inside the ledger keeps two
// concurrent purchases from ever driving the balance negative.
func (s *BoosterService) purchaseWithGems(accountID string, bt *models.BoosterType) (*PurchaseResult, error) {
	var result *PurchaseResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		adj, err := s.Ledger.AdjustTx(tx, accountID, -*bt.PriceGems, 0,
			models.TxKindSpendGems, fmt.Sprintf("Booster purchase: %s", bt.Name), "")
		if err != nil {
			return err
		}

		booster := models.UserBooster{
			ID:            uuid.NewString(),
			AccountID:     accountID,
			BoosterTypeID: bt.ID,
		}
		if err := tx.Create(&booster).Error; err != nil {
			return err
		}
		balance := adj.Account.Balance
		result = &PurchaseResult{Booster: &booster, NewBalance: &balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[BOOSTER] account %s bought %s for %d gems", accountID, bt.Name, *bt.PriceGems)
	return result, nil
}

// OpenResult is the outcome of opening one pack
type OpenResult struct {
	BoosterID string        `json:"booster_id"`
	Cards     []models.Card `json:"cards"`
}

// Open consumes an unopened pack and grants its drawn cards. The opened flag
// flips with a compare-and-set so a double-submit opens the pack once; the
// flip and the card grants commit together. The draw itself never touches
// the gems ledger.
func (s *BoosterService) Open(accountID, userBoosterID string) (*OpenResult, error) {
	var ub models.UserBooster
	err := s.DB.Where("id = ? AND account_id = ?", userBoosterID, accountID).First(&ub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var bt models.BoosterType
	if err := s.DB.Preload("RarityWeights").Where("id = ?", ub.BoosterTypeID).First(&bt).Error; err != nil {
		return nil, err
	}

	var drawn []models.Card
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		cas := tx.Model(&models.UserBooster{}).
			Where("id = ? AND account_id = ? AND opened = ?", userBoosterID, accountID, false).
			Updates(map[string]interface{}{"opened": true, "opened_at": now})
		if cas.Error != nil {
			return cas.Error
		}
		if cas.RowsAffected == 0 {
			return ErrAlreadyOpened
		}

		for i := 0; i < bt.PackSize; i++ {
			card, err := s.drawCard(tx, &bt)
			if err != nil {
				return err
			}
			if err := s.grantCard(tx, accountID, card.ID); err != nil {
				return err
			}
			drawn = append(drawn, *card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-open bookkeeping; neither failure revokes the opened pack
	if err := s.Claims.EvaluateSeriesUnlocks(accountID); err != nil {
		log.Printf("[BOOSTER] series evaluation failed for account %s: %v", accountID, err)
	}
	if _, err := s.Missions.RecordProgress(accountID, "open_booster", 1); err != nil {
		log.Printf("[BOOSTER] mission progress failed for account %s: %v", accountID, err)
	}

	log.Printf("[BOOSTER] account %s opened %s: %d cards", accountID, bt.Name, len(drawn))
	return &OpenResult{BoosterID: userBoosterID, Cards: drawn}, nil
}

// drawCard samples a rarity tier by weight, then a uniform card within the
// tier restricted to the booster's faction pool. An empty tier falls back to
// the whole pool so a sparse catalog never bricks a paid pack.
func (s *BoosterService) drawCard(tx *gorm.DB, bt *models.BoosterType) (*models.Card, error) {
	if rarity, ok := s.sampleRarity(bt.RarityWeights); ok {
		if card, err := s.pickCard(tx, bt, &rarity); err != nil {
			return nil, err
		} else if card != nil {
			return card, nil
		}
	}
	card, err := s.pickCard(tx, bt, nil)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, fmt.Errorf("card pool for booster type %s is empty", bt.ID)
	}
	return card, nil
}

func (s *BoosterService) sampleRarity(weights []models.BoosterRarityWeight) (models.CardRarity, bool) {
	var total int64
	for _, w := range weights {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	if total <= 0 {
		return "", false
	}
	roll := int64(s.Rand(int(total)))
	for _, w := range weights {
		if w.Weight <= 0 {
			continue
		}
		if roll < w.Weight {
			return w.Rarity, true
		}
		roll -= w.Weight
	}
	return weights[len(weights)-1].Rarity, true
}

func (s *BoosterService) pickCard(tx *gorm.DB, bt *models.BoosterType, rarity *models.CardRarity) (*models.Card, error) {
	pool := func() *gorm.DB {
		q := tx.Model(&models.Card{}).Where("active = ?", true)
		if bt.Faction != nil && *bt.Faction != "" {
			q = q.Where("faction = ?", *bt.Faction)
		}
		if rarity != nil {
			q = q.Where("rarity = ?", *rarity)
		}
		return q
	}

	var count int64
	if err := pool().Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	var card models.Card
	if err := pool().Order("id ASC").Offset(s.Rand(int(count))).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// grantCard adds a card to the collection; a duplicate bumps the quantity
func (s *BoosterService) grantCard(tx *gorm.DB, accountID, cardID string) error {
	uc := models.UserCard{
		ID:        uuid.NewString(),
		AccountID: accountID,
		CardID:    cardID,
		Quantity:  1,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "card_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("quantity + 1")}),
	}).Create(&uc).Error
}

// ListBoosters returns the account's packs, unopened first
func (s *BoosterService) ListBoosters(accountID string) ([]models.UserBooster, error) {
	var boosters []models.UserBooster
	err := s.DB.Where("account_id = ?", accountID).
		Preload("BoosterType").
		Order("opened ASC, created_at DESC").
		Find(&boosters).Error
	return boosters, err
}

// ListCollection returns the account's owned cards with catalog data
func (s *BoosterService) ListCollection(accountID string) ([]models.UserCard, error) {
	var cards []models.UserCard
	err := s.DB.Where("account_id = ?", accountID).
		Preload("Card").
		Order("obtained_at ASC").
		Find(&cards).Error
	return cards, err
}
