package services

import (
	"fmt"
	"log"

	"card-economy-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns Account.Balance and Account.XP. Every other service
// funnels balance mutations through Adjust so that the conditional update and
// the Transaction insert commit as one unit.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// AdjustResult reports the account state after an adjustment. Applied is
// false when an idempotency key had already been consumed and the call was a
// no-op replay.
type AdjustResult struct {
	Account *models.Account `json:"account"`
	Applied bool            `json:"applied"`
}

// EnsureAccount returns the account for an external user id, creating it on
// first contact. The upsert closes the race between two concurrent first
// requests for the same user.
func (s *LedgerService) EnsureAccount(externalUserID string) (*models.Account, error) {
	row := models.Account{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Balance:        0,
		XP:             0,
		Level:          1,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return nil, err
	}
	var acc models.Account
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetAccount loads an account by internal id
func (s *LedgerService) GetAccount(accountID string) (*models.Account, error) {
	var acc models.Account
	if err := s.DB.Where("id = ?", accountID).First(&acc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// GetBalance returns the current gem balance
func (s *LedgerService) GetBalance(accountID string) (int64, error) {
	acc, err := s.GetAccount(accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Adjust applies a signed gem delta and a non-negative xp delta in one ledger
// entry. externalRef, when non-empty, is the idempotency key: a replay with a
// ref that already has a Transaction returns the current state untouched.
func (s *LedgerService) Adjust(accountID string, gems, xp int64, kind models.TransactionKind, description, externalRef string) (*AdjustResult, error) {
	var res *AdjustResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		res, txErr = s.AdjustTx(tx, accountID, gems, xp, kind, description, externalRef)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AdjustTx is Adjust composed into a caller-owned transaction, so a claim
// flag flip and its grant commit together.
func (s *LedgerService) AdjustTx(tx *gorm.DB, accountID string, gems, xp int64, kind models.TransactionKind, description, externalRef string) (*AdjustResult, error) {
	if xp < 0 {
		return nil, fmt.Errorf("xp delta must be non-negative, got %d", xp)
	}

	if externalRef != "" {
		var existing models.Transaction
		err := tx.Where("external_ref = ?", externalRef).First(&existing).Error
		if err == nil {
			acc := &models.Account{}
			if err := tx.Where("id = ?", accountID).First(acc).Error; err != nil {
				return nil, err
			}
			log.Printf("[LEDGER] replay suppressed for ref %s (account %s)", externalRef, accountID)
			return &AdjustResult{Account: acc, Applied: false}, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	// Single conditional update: the balance floor check and the decrement
	// are one statement, never a read followed by a write.
	result := tx.Model(&models.Account{}).
		Where("id = ? AND balance + ? >= 0", accountID, gems).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", gems),
			"xp":      gorm.Expr("xp + ?", xp),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrInsufficientFunds
	}

	acc := &models.Account{}
	if err := tx.Where("id = ?", accountID).First(acc).Error; err != nil {
		return nil, err
	}

	// Level is a pure function of xp
	newLevel := int(acc.XP/100) + 1
	if newLevel != acc.Level {
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Update("level", newLevel).Error; err != nil {
			return nil, err
		}
		acc.Level = newLevel
	}

	entry := models.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        kind,
		Amount:      gems,
		XPAmount:    xp,
		Description: description,
	}
	if externalRef != "" {
		ref := externalRef
		entry.ExternalRef = &ref
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	return &AdjustResult{Account: acc, Applied: true}, nil
}

// AdjustBalance is the gems-only form of Adjust
func (s *LedgerService) AdjustBalance(accountID string, delta int64, kind models.TransactionKind, description, externalRef string) (*AdjustResult, error) {
	return s.Adjust(accountID, delta, 0, kind, description, externalRef)
}

// AdjustXP grants experience outside a balance mutation. XP is monotonically
// non-decreasing; the level derives from it.
func (s *LedgerService) AdjustXP(accountID string, delta int64) (*models.Account, error) {
	if delta < 0 {
		return nil, fmt.Errorf("xp delta must be non-negative, got %d", delta)
	}
	var acc *models.Account
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Account{}).
			Where("id = ?", accountID).
			Update("xp", gorm.Expr("xp + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		acc = &models.Account{}
		if err := tx.Where("id = ?", accountID).First(acc).Error; err != nil {
			return err
		}
		newLevel := int(acc.XP/100) + 1
		if newLevel != acc.Level {
			if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Update("level", newLevel).Error; err != nil {
				return err
			}
			acc.Level = newLevel
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Transactions returns the most recent ledger entries for an account
func (s *LedgerService) Transactions(accountID string, limit int) ([]models.Transaction, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var entries []models.Transaction
	err := s.DB.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
