package services

import (
	"testing"
	"time"

	"card-economy-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedMission(t *testing.T, db *gorm.DB, conditionType string, conditionValue, gems int64, freq models.MissionFrequency) *models.Mission {
	t.Helper()
	mission := models.Mission{
		ID:             uuid.NewString(),
		Name:           "Open boosters",
		ConditionType:  conditionType,
		ConditionValue: conditionValue,
		RewardGems:     gems,
		RewardXP:       10,
		Frequency:      freq,
		Active:         true,
	}
	require.NoError(t, db.Create(&mission).Error)
	return &mission
}

func newMissionFixture(t *testing.T) (*MissionService, *LedgerService, *models.Account) {
	t.Helper()
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	missions := NewMissionService(db, ledger)
	acc := newTestAccount(t, ledger)
	return missions, ledger, acc
}

func TestRecordProgressSaturatesAtConditionValue(t *testing.T) {
	missions, _, acc := newMissionFixture(t)
	mission := seedMission(t, missions.DB, "open_booster", 5, 100, models.FrequencyOnce)
	require.NoError(t, missions.AssignMissions(acc.ID))

	updates, err := missions.RecordProgress(acc.ID, "open_booster", 3)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(3), updates[0].Progress)
	assert.False(t, updates[0].Completed)

	// Overshoot freezes at the condition value
	updates, err = missions.RecordProgress(acc.ID, "open_booster", 10)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(5), updates[0].Progress)
	assert.True(t, updates[0].Completed)
	assert.Equal(t, mission.ID, updates[0].MissionID)

	// Completed instances take no further progress
	updates, err = missions.RecordProgress(acc.ID, "open_booster", 1)
	require.NoError(t, err)
	assert.Empty(t, updates)

	var um models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, mission.ID).First(&um).Error)
	assert.Equal(t, int64(5), um.Progress)
	assert.True(t, um.Completed)
}

func TestRecordProgressOnlyTouchesMatchingConditionType(t *testing.T) {
	missions, _, acc := newMissionFixture(t)
	opened := seedMission(t, missions.DB, "open_booster", 3, 50, models.FrequencyOnce)
	collected := seedMission(t, missions.DB, "collect_card", 10, 50, models.FrequencyOnce)
	require.NoError(t, missions.AssignMissions(acc.ID))

	updates, err := missions.RecordProgress(acc.ID, "open_booster", 2)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, opened.ID, updates[0].MissionID)

	var um models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, collected.ID).First(&um).Error)
	assert.Zero(t, um.Progress)
}

func TestRecordProgressWithNoMatchingMissions(t *testing.T) {
	missions, _, acc := newMissionFixture(t)

	updates, err := missions.RecordProgress(acc.ID, "win_match", 1)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestRecordProgressSkipsExpiredInstances(t *testing.T) {
	missions, _, acc := newMissionFixture(t)
	mission := seedMission(t, missions.DB, "open_booster", 5, 50, models.FrequencyDaily)

	past := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	require.NoError(t, missions.DB.Create(&models.UserMission{
		ID:        uuid.NewString(),
		AccountID: acc.ID,
		MissionID: mission.ID,
		ExpiresAt: &past,
	}).Error)

	missions.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	updates, err := missions.RecordProgress(acc.ID, "open_booster", 2)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestClaimMissionGrantsExactlyOnce(t *testing.T) {
	missions, ledger, acc := newMissionFixture(t)
	mission := seedMission(t, missions.DB, "open_booster", 2, 100, models.FrequencyOnce)
	require.NoError(t, missions.AssignMissions(acc.ID))

	var um models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, mission.ID).First(&um).Error)

	// Not completed yet
	_, err := missions.ClaimMission(acc.ID, um.ID)
	require.ErrorIs(t, err, ErrNotCompleted)

	_, err = missions.RecordProgress(acc.ID, "open_booster", 2)
	require.NoError(t, err)

	res, err := missions.ClaimMission(acc.ID, um.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.GemsGranted)
	assert.Equal(t, int64(100), res.NewBalance)

	_, err = missions.ClaimMission(acc.ID, um.ID)
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	balance, err := ledger.GetBalance(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	var txCount int64
	require.NoError(t, missions.DB.Model(&models.Transaction{}).
		Where("external_ref = ?", "mission:"+um.ID).Count(&txCount).Error)
	assert.Equal(t, int64(1), txCount)
}

func TestClaimMissionOwnershipAndExistence(t *testing.T) {
	missions, ledger, acc := newMissionFixture(t)
	mission := seedMission(t, missions.DB, "open_booster", 1, 50, models.FrequencyOnce)
	require.NoError(t, missions.AssignMissions(acc.ID))
	_, err := missions.RecordProgress(acc.ID, "open_booster", 1)
	require.NoError(t, err)

	var um models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, mission.ID).First(&um).Error)

	_, err = missions.ClaimMission(acc.ID, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	// Another account cannot claim someone else's instance
	other := newTestAccount(t, ledger)
	_, err = missions.ClaimMission(other.ID, um.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssignMissionsIsIdempotentAndSetsExpiry(t *testing.T) {
	missions, _, acc := newMissionFixture(t)
	daily := seedMission(t, missions.DB, "open_booster", 3, 50, models.FrequencyDaily)
	once := seedMission(t, missions.DB, "collect_card", 10, 50, models.FrequencyOnce)

	missions.now = func() time.Time { return time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC) }
	require.NoError(t, missions.AssignMissions(acc.ID))
	require.NoError(t, missions.AssignMissions(acc.ID))

	var count int64
	require.NoError(t, missions.DB.Model(&models.UserMission{}).Where("account_id = ?", acc.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var dailyUM, onceUM models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, daily.ID).First(&dailyUM).Error)
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, once.ID).First(&onceUM).Error)

	require.NotNil(t, dailyUM.ExpiresAt)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), dailyUM.ExpiresAt.UTC())
	assert.Nil(t, onceUM.ExpiresAt)
}

func TestRearmExpiredResetsRecurringInstances(t *testing.T) {
	missions, _, acc := newMissionFixture(t)
	mission := seedMission(t, missions.DB, "open_booster", 3, 50, models.FrequencyDaily)

	assignedAt := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	missions.now = func() time.Time { return assignedAt }
	require.NoError(t, missions.AssignMissions(acc.ID))
	_, err := missions.RecordProgress(acc.ID, "open_booster", 3)
	require.NoError(t, err)

	// Window rolls over
	missions.now = func() time.Time { return assignedAt.AddDate(0, 0, 1).Add(2 * time.Hour) }
	rearmed, err := missions.RearmExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, rearmed)

	var um models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, mission.ID).First(&um).Error)
	assert.Zero(t, um.Progress)
	assert.False(t, um.Completed)
	assert.False(t, um.Claimed)
	require.NotNil(t, um.ExpiresAt)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), um.ExpiresAt.UTC())

	// Live windows are never touched
	rearmed, err = missions.RearmExpired()
	require.NoError(t, err)
	assert.Zero(t, rearmed)
}

func TestClaimMissionPaysOutAgainAfterRearm(t *testing.T) {
	missions, ledger, acc := newMissionFixture(t)
	mission := seedMission(t, missions.DB, "open_booster", 2, 50, models.FrequencyDaily)

	windowOne := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	missions.now = func() time.Time { return windowOne }
	require.NoError(t, missions.AssignMissions(acc.ID))

	var um models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, mission.ID).First(&um).Error)

	_, err := missions.RecordProgress(acc.ID, "open_booster", 2)
	require.NoError(t, err)
	res, err := missions.ClaimMission(acc.ID, um.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.NewBalance)

	// Window rolls over, the instance re-arms
	missions.now = func() time.Time { return windowOne.AddDate(0, 0, 1).Add(2 * time.Hour) }
	rearmed, err := missions.RearmExpired()
	require.NoError(t, err)
	require.Equal(t, 1, rearmed)

	// Completing and claiming again in the new window pays out again
	_, err = missions.RecordProgress(acc.ID, "open_booster", 2)
	require.NoError(t, err)
	res, err = missions.ClaimMission(acc.ID, um.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.NewBalance)

	balance, err := ledger.GetBalance(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	assert.Equal(t, int64(100), ledgerSum(t, missions.DB, acc.ID))

	// One ledger entry per window, each under its own ref
	var refs []string
	require.NoError(t, missions.DB.Model(&models.Transaction{}).
		Where("account_id = ? AND kind = ?", acc.ID, models.TxKindMissionReward).
		Order("created_at ASC").
		Pluck("external_ref", &refs).Error)
	require.Len(t, refs, 2)
	assert.Equal(t, "mission:"+um.ID+":2026-08-28", refs[0])
	assert.Equal(t, "mission:"+um.ID+":2026-08-29", refs[1])
}

func TestRearmExpiredLeavesOnceMissionsAlone(t *testing.T) {
	missions, _, acc := newMissionFixture(t)
	mission := seedMission(t, missions.DB, "open_booster", 1, 50, models.FrequencyOnce)

	past := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, missions.DB.Create(&models.UserMission{
		ID:        uuid.NewString(),
		AccountID: acc.ID,
		MissionID: mission.ID,
		Progress:  1,
		Completed: true,
		ExpiresAt: &past,
	}).Error)

	rearmed, err := missions.RearmExpired()
	require.NoError(t, err)
	assert.Zero(t, rearmed)

	var um models.UserMission
	require.NoError(t, missions.DB.Where("account_id = ? AND mission_id = ?", acc.ID, mission.ID).First(&um).Error)
	assert.True(t, um.Completed)
}

func TestListMissionsPreloadsCatalog(t *testing.T) {
	missions, _, acc := newMissionFixture(t)
	seedMission(t, missions.DB, "open_booster", 3, 50, models.FrequencyDaily)
	require.NoError(t, missions.AssignMissions(acc.ID))

	list, err := missions.ListMissions(acc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Mission)
	assert.Equal(t, "open_booster", list[0].Mission.ConditionType)
}
