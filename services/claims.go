package services

import (
	"fmt"
	"log"
	"time"

	"card-economy-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimService is the one-time-grant state machine shared by achievement,
// series and daily rewards. The claimed flag is the single point of truth for
// "has this been granted"; the ledger's idempotency ref is defense in depth.
type ClaimService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewClaimService(db *gorm.DB, ledger *LedgerService) *ClaimService {
	return &ClaimService{DB: db, Ledger: ledger}
}

// ClaimResult is the success payload of any claim operation
type ClaimResult struct {
	SourceKind  models.RewardSourceKind `json:"source_kind"`
	SourceID    string                  `json:"source_id"`
	GemsGranted int64                   `json:"gems_granted"`
	XPGranted   int64                   `json:"xp_granted"`
	NewBalance  int64                   `json:"new_balance"`
	NewXP       int64                   `json:"new_xp"`
	Level       int                     `json:"level"`
}

func claimRef(kind models.RewardSourceKind, sourceID, accountID string) string {
	return fmt.Sprintf("%s:%s:%s", kind, sourceID, accountID)
}

// EnsureClaim makes sure a claim record exists for (account, kind, source),
// locked by default. Idempotent.
func (s *ClaimService) EnsureClaim(accountID string, kind models.RewardSourceKind, sourceID string) error {
	claim := models.RewardClaim{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		SourceKind: kind,
		SourceID:   sourceID,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "source_kind"}, {Name: "source_id"}},
		DoNothing: true,
	}).Create(&claim).Error
}

// Unlock flips unlocked=false → true when gameplay meets the condition.
// Never touches the claimed flag; safe to call repeatedly.
func (s *ClaimService) Unlock(accountID string, kind models.RewardSourceKind, sourceID string) error {
	claim := models.RewardClaim{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		SourceKind: kind,
		SourceID:   sourceID,
		Unlocked:   true,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "source_kind"}, {Name: "source_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"unlocked": true}),
	}).Create(&claim).Error
}

// ClaimAchievement grants an unlocked achievement's reward exactly once
func (s *ClaimService) ClaimAchievement(accountID, achievementID string) (*ClaimResult, error) {
	var ach models.Achievement
	if err := s.DB.Where("id = ? AND active = ?", achievementID, true).First(&ach).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.claim(accountID, models.SourceAchievement, ach.ID, ach.RewardGems, ach.RewardXP,
		models.TxKindAchievementReward, fmt.Sprintf("Achievement: %s", ach.Name))
}

// ClaimSeries grants a completed card series' reward exactly once
func (s *ClaimService) ClaimSeries(accountID, seriesID string) (*ClaimResult, error) {
	var series models.CardSeries
	if err := s.DB.Where("id = ? AND active = ?", seriesID, true).First(&series).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.claim(accountID, models.SourceSeries, series.ID, series.RewardGems, series.RewardXP,
		models.TxKindSeriesReward, fmt.Sprintf("Series completed: %s", series.Name))
}

// claim runs the generic flow: compare-and-set the claimed flag, then grant.
// The flip and the ledger entry commit in one DB transaction, so a failure in
// either leaves no partial state.
func (s *ClaimService) claim(accountID string, kind models.RewardSourceKind, sourceID string, gems, xp int64, txKind models.TransactionKind, description string) (*ClaimResult, error) {
	var result *ClaimResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		cas := tx.Model(&models.RewardClaim{}).
			Where("account_id = ? AND source_kind = ? AND source_id = ? AND unlocked = ? AND claimed = ?",
				accountID, kind, sourceID, true, false).
			Updates(map[string]interface{}{"claimed": true, "claimed_at": now})
		if cas.Error != nil {
			return cas.Error
		}
		if cas.RowsAffected == 0 {
			// Lost the race or precondition unmet — inspect the row to say why
			var rec models.RewardClaim
			err := tx.Where("account_id = ? AND source_kind = ? AND source_id = ?",
				accountID, kind, sourceID).First(&rec).Error
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if rec.Claimed {
				return ErrAlreadyClaimed
			}
			return ErrNotUnlocked
		}

		adj, err := s.Ledger.AdjustTx(tx, accountID, gems, xp, txKind, description, claimRef(kind, sourceID, accountID))
		if err != nil {
			return err
		}
		result = &ClaimResult{
			SourceKind:  kind,
			SourceID:    sourceID,
			GemsGranted: gems,
			XPGranted:   xp,
			NewBalance:  adj.Account.Balance,
			NewXP:       adj.Account.XP,
			Level:       adj.Account.Level,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[CLAIM] %s %s granted to account %s (+%d gems, +%d xp)", kind, sourceID, accountID, gems, xp)
	return result, nil
}

// ListClaims returns the account's claim records for one source kind
func (s *ClaimService) ListClaims(accountID string, kind models.RewardSourceKind) ([]models.RewardClaim, error) {
	var claims []models.RewardClaim
	err := s.DB.Where("account_id = ? AND source_kind = ?", accountID, kind).
		Order("created_at ASC").
		Find(&claims).Error
	return claims, err
}

// EvaluateSeriesUnlocks unlocks the series claim for every active series
// whose card set the account now fully owns. Called after card grants;
// missing anything here only delays the unlock until the next evaluation.
func (s *ClaimService) EvaluateSeriesUnlocks(accountID string) error {
	var seriesList []models.CardSeries
	if err := s.DB.Where("active = ?", true).Find(&seriesList).Error; err != nil {
		return err
	}
	for _, series := range seriesList {
		var total, owned int64
		if err := s.DB.Model(&models.Card{}).
			Where("series_id = ? AND active = ?", series.ID, true).
			Count(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			continue
		}
		if err := s.DB.Model(&models.UserCard{}).
			Joins("JOIN cards ON cards.id = user_cards.card_id").
			Where("user_cards.account_id = ? AND cards.series_id = ? AND cards.active = ?", accountID, series.ID, true).
			Count(&owned).Error; err != nil {
			return err
		}
		if owned >= total {
			if err := s.Unlock(accountID, models.SourceSeries, series.ID); err != nil {
				return err
			}
			log.Printf("[CLAIM] series %s unlocked for account %s (%d/%d cards)", series.Name, accountID, owned, total)
		}
	}
	return nil
}
