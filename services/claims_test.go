package services

import (
	"testing"

	"card-economy-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAchievement(t *testing.T, db *gorm.DB, gems, xp int64) *models.Achievement {
	t.Helper()
	ach := models.Achievement{
		ID:         uuid.NewString(),
		Code:       "ACH_" + uuid.NewString(),
		Name:       "Collector",
		RewardGems: gems,
		RewardXP:   xp,
		Active:     true,
	}
	require.NoError(t, db.Create(&ach).Error)
	return &ach
}

func seedSeries(t *testing.T, db *gorm.DB, gems, xp int64) *models.CardSeries {
	t.Helper()
	series := models.CardSeries{
		ID:         uuid.NewString(),
		Name:       "Emberfall",
		Slug:       uuid.NewString(),
		RewardGems: gems,
		RewardXP:   xp,
		Active:     true,
	}
	require.NoError(t, db.Create(&series).Error)
	return &series
}

func TestClaimAchievementGrantsExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	claims := NewClaimService(db, ledger)
	acc := newTestAccount(t, ledger)
	fundAccount(t, ledger, acc.ID, 500)
	ach := seedAchievement(t, db, 200, 50)

	require.NoError(t, claims.Unlock(acc.ID, models.SourceAchievement, ach.ID))

	res, err := claims.ClaimAchievement(acc.ID, ach.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.GemsGranted)
	assert.Equal(t, int64(50), res.XPGranted)
	assert.Equal(t, int64(700), res.NewBalance)

	// Second claim must not grant again
	_, err = claims.ClaimAchievement(acc.ID, ach.ID)
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	balance, err := ledger.GetBalance(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)

	var txCount int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("external_ref = ?", claimRef(models.SourceAchievement, ach.ID, acc.ID)).
		Count(&txCount).Error)
	assert.Equal(t, int64(1), txCount)
	assert.Equal(t, int64(700), ledgerSum(t, db, acc.ID))
}

func TestClaimAchievementNotUnlocked(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	claims := NewClaimService(db, ledger)
	acc := newTestAccount(t, ledger)
	ach := seedAchievement(t, db, 100, 0)

	require.NoError(t, claims.EnsureClaim(acc.ID, models.SourceAchievement, ach.ID))

	_, err := claims.ClaimAchievement(acc.ID, ach.ID)
	require.ErrorIs(t, err, ErrNotUnlocked)

	balance, err := ledger.GetBalance(acc.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestClaimAchievementWithoutClaimRecord(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	claims := NewClaimService(db, ledger)
	acc := newTestAccount(t, ledger)
	ach := seedAchievement(t, db, 100, 0)

	_, err := claims.ClaimAchievement(acc.ID, ach.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClaimUnknownOrInactiveAchievement(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	claims := NewClaimService(db, ledger)
	acc := newTestAccount(t, ledger)

	_, err := claims.ClaimAchievement(acc.ID, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	inactive := seedAchievement(t, db, 100, 0)
	require.NoError(t, db.Model(&models.Achievement{}).Where("id = ?", inactive.ID).Update("active", false).Error)
	_, err = claims.ClaimAchievement(acc.ID, inactive.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnlockNeverClearsClaimed(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	claims := NewClaimService(db, ledger)
	acc := newTestAccount(t, ledger)
	ach := seedAchievement(t, db, 10, 0)

	require.NoError(t, claims.Unlock(acc.ID, models.SourceAchievement, ach.ID))
	require.NoError(t, claims.Unlock(acc.ID, models.SourceAchievement, ach.ID))

	_, err := claims.ClaimAchievement(acc.ID, ach.ID)
	require.NoError(t, err)

	// A late unlock re-delivery must not reset the claimed flag
	require.NoError(t, claims.Unlock(acc.ID, models.SourceAchievement, ach.ID))

	var rec models.RewardClaim
	require.NoError(t, db.Where("account_id = ? AND source_kind = ? AND source_id = ?",
		acc.ID, models.SourceAchievement, ach.ID).First(&rec).Error)
	assert.True(t, rec.Claimed)
	assert.True(t, rec.Unlocked)
	assert.NotNil(t, rec.ClaimedAt)
}

func TestSeriesUnlockEvaluationAndClaim(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	claims := NewClaimService(db, ledger)
	acc := newTestAccount(t, ledger)
	series := seedSeries(t, db, 150, 25)

	first := seedCard(t, db, "Ember Drake", "ember", models.RarityRare, &series.ID)
	second := seedCard(t, db, "Ash Wyrm", "ember", models.RarityEpic, &series.ID)

	grant := func(cardID string) {
		require.NoError(t, db.Create(&models.UserCard{
			ID:        uuid.NewString(),
			AccountID: acc.ID,
			CardID:    cardID,
			Quantity:  1,
		}).Error)
	}

	grant(first.ID)
	require.NoError(t, claims.EvaluateSeriesUnlocks(acc.ID))
	_, err := claims.ClaimSeries(acc.ID, series.ID)
	require.Error(t, err) // one of two cards owned, nothing claimable yet

	grant(second.ID)
	require.NoError(t, claims.EvaluateSeriesUnlocks(acc.ID))

	res, err := claims.ClaimSeries(acc.ID, series.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.GemsGranted)
	assert.Equal(t, int64(150), res.NewBalance)

	_, err = claims.ClaimSeries(acc.ID, series.ID)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestListClaimsFiltersBySourceKind(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	claims := NewClaimService(db, ledger)
	acc := newTestAccount(t, ledger)

	require.NoError(t, claims.EnsureClaim(acc.ID, models.SourceAchievement, uuid.NewString()))
	require.NoError(t, claims.EnsureClaim(acc.ID, models.SourceAchievement, uuid.NewString()))
	require.NoError(t, claims.EnsureClaim(acc.ID, models.SourceSeries, uuid.NewString()))

	achievements, err := claims.ListClaims(acc.ID, models.SourceAchievement)
	require.NoError(t, err)
	assert.Len(t, achievements, 2)

	series, err := claims.ListClaims(acc.ID, models.SourceSeries)
	require.NoError(t, err)
	assert.Len(t, series, 1)
}
