package services

import (
	"testing"

	"card-economy-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB returns an isolated in-memory database with the full schema.
// A single pooled connection keeps the memory DB alive and serializes writes.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.RewardClaim{},
		&models.Achievement{},
		&models.CardSeries{},
		&models.DailyRewardTier{},
		&models.DailyStreak{},
		&models.Mission{},
		&models.UserMission{},
		&models.Card{},
		&models.UserCard{},
		&models.BoosterType{},
		&models.BoosterRarityWeight{},
		&models.UserBooster{},
		&models.ProcessedPayment{},
	))

	return db
}

func newTestAccount(t *testing.T, ledger *LedgerService) *models.Account {
	t.Helper()
	acc, err := ledger.EnsureAccount("user-" + uuid.NewString())
	require.NoError(t, err)
	return acc
}

func fundAccount(t *testing.T, ledger *LedgerService, accountID string, gems int64) {
	t.Helper()
	_, err := ledger.AdjustBalance(accountID, gems, models.TxKindAdminAdjust, "test funding", "")
	require.NoError(t, err)
}

// ledgerSum returns sum(transaction.amount) for the account, which must
// always reconcile with Account.Balance
func ledgerSum(t *testing.T, db *gorm.DB, accountID string) int64 {
	t.Helper()
	var sum *int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("account_id = ?", accountID).
		Select("SUM(amount)").
		Scan(&sum).Error)
	if sum == nil {
		return 0
	}
	return *sum
}

func seedCard(t *testing.T, db *gorm.DB, name, faction string, rarity models.CardRarity, seriesID *string) *models.Card {
	t.Helper()
	card := models.Card{
		ID:       uuid.NewString(),
		Name:     name,
		Slug:     uuid.NewString(),
		Faction:  faction,
		Rarity:   rarity,
		SeriesID: seriesID,
		Active:   true,
	}
	require.NoError(t, db.Create(&card).Error)
	return &card
}
