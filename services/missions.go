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

// MissionService accumulates gameplay progress into per-account mission
// counters and flips them to completed. It never grants rewards itself;
// claiming a completed mission is a separate guarded operation.
type MissionService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	now func() time.Time
}

func NewMissionService(db *gorm.DB, ledger *LedgerService) *MissionService {
	return &MissionService{DB: db, Ledger: ledger, now: time.Now}
}

// ProgressUpdate reports one mission touched by RecordProgress
type ProgressUpdate struct {
	UserMissionID string `json:"user_mission_id"`
	MissionID     string `json:"mission_id"`
	Progress      int64  `json:"progress"`
	Completed     bool   `json:"completed"`
}

// RecordProgress adds amount to every active mission of the account whose
// condition type matches. Progress saturates at the condition value. Each
// mission updates independently: one failing never blocks the others, and a
// user mission whose catalog entry has disappeared is skipped, not an error.
func (s *MissionService) RecordProgress(accountID, conditionType string, amount int64) ([]ProgressUpdate, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("progress amount must be positive, got %d", amount)
	}
	nowUTC := s.now().UTC()

	var missionIDs []string
	if err := s.DB.Model(&models.Mission{}).
		Where("condition_type = ? AND active = ?", conditionType, true).
		Pluck("id", &missionIDs).Error; err != nil {
		return nil, err
	}
	if len(missionIDs) == 0 {
		return nil, nil
	}

	var userMissions []models.UserMission
	if err := s.DB.
		Where("account_id = ? AND mission_id IN ? AND completed = ?", accountID, missionIDs, false).
		Where("expires_at IS NULL OR expires_at > ?", nowUTC).
		Find(&userMissions).Error; err != nil {
		return nil, err
	}

	missions := make(map[string]models.Mission, len(missionIDs))
	var catalog []models.Mission
	if err := s.DB.Where("id IN ?", missionIDs).Find(&catalog).Error; err != nil {
		return nil, err
	}
	for _, m := range catalog {
		missions[m.ID] = m
	}

	var updates []ProgressUpdate
	for _, um := range userMissions {
		mission, ok := missions[um.MissionID]
		if !ok {
			continue // dangling instance, catalog entry gone
		}
		update, err := s.advance(um, mission, amount)
		if err != nil {
			log.Printf("[MISSION] progress update failed for user mission %s: %v", um.ID, err)
			continue
		}
		if update != nil {
			updates = append(updates, *update)
		}
	}
	return updates, nil
}

// advance applies one saturating progress increment under an optimistic
// compare-and-set on the previous progress value, retrying when a concurrent
// writer got there first.
func (s *MissionService) advance(um models.UserMission, mission models.Mission, amount int64) (*ProgressUpdate, error) {
	for attempt := 0; attempt < 3; attempt++ {
		newProgress := um.Progress + amount
		if newProgress > mission.ConditionValue {
			newProgress = mission.ConditionValue
		}
		completed := newProgress >= mission.ConditionValue

		res := s.DB.Model(&models.UserMission{}).
			Where("id = ? AND progress = ? AND completed = ?", um.ID, um.Progress, false).
			Updates(map[string]interface{}{
				"progress":  newProgress,
				"completed": completed,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			if completed {
				log.Printf("[MISSION] %s completed by account %s", mission.Name, um.AccountID)
			}
			return &ProgressUpdate{
				UserMissionID: um.ID,
				MissionID:     mission.ID,
				Progress:      newProgress,
				Completed:     completed,
			}, nil
		}

		// Someone else moved it; re-read and retry unless already done
		var fresh models.UserMission
		if err := s.DB.Where("id = ?", um.ID).First(&fresh).Error; err != nil {
			return nil, err
		}
		if fresh.Completed {
			return nil, nil
		}
		um = fresh
	}
	return nil, fmt.Errorf("progress conflict persisted after retries")
}

// MissionClaimResult is the success payload for claiming a completed mission
type MissionClaimResult struct {
	UserMissionID string `json:"user_mission_id"`
	MissionID     string `json:"mission_id"`
	GemsGranted   int64  `json:"gems_granted"`
	XPGranted     int64  `json:"xp_granted"`
	NewBalance    int64  `json:"new_balance"`
}

// ClaimMission grants a completed mission's reward exactly once. Same shape
// as the reward claim flow: compare-and-set the claimed flag, then grant, in
// one DB transaction.
func (s *MissionService) ClaimMission(accountID, userMissionID string) (*MissionClaimResult, error) {
	var um models.UserMission
	if err := s.DB.Where("id = ? AND account_id = ?", userMissionID, accountID).First(&um).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var mission models.Mission
	if err := s.DB.Where("id = ?", um.MissionID).First(&mission).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Recurring instances re-arm with claimed=false, so the idempotency ref
	// must be scoped to the window or the next window's grant would be
	// suppressed as a replay of the first.
	ref := fmt.Sprintf("mission:%s", userMissionID)
	if um.ExpiresAt != nil {
		ref = fmt.Sprintf("mission:%s:%s", userMissionID, um.ExpiresAt.UTC().Format(dailyDateLayout))
	}

	var result *MissionClaimResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cas := tx.Model(&models.UserMission{}).
			Where("id = ? AND account_id = ? AND completed = ? AND claimed = ?", userMissionID, accountID, true, false).
			Update("claimed", true)
		if cas.Error != nil {
			return cas.Error
		}
		if cas.RowsAffected == 0 {
			var rec models.UserMission
			if err := tx.Where("id = ? AND account_id = ?", userMissionID, accountID).First(&rec).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrNotFound
				}
				return err
			}
			if rec.Claimed {
				return ErrAlreadyClaimed
			}
			return ErrNotCompleted
		}

		adj, err := s.Ledger.AdjustTx(tx, accountID, mission.RewardGems, mission.RewardXP,
			models.TxKindMissionReward, fmt.Sprintf("Mission: %s", mission.Name), ref)
		if err != nil {
			return err
		}
		result = &MissionClaimResult{
			UserMissionID: userMissionID,
			MissionID:     mission.ID,
			GemsGranted:   mission.RewardGems,
			XPGranted:     mission.RewardXP,
			NewBalance:    adj.Account.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[MISSION] %s claimed by account %s (+%d gems)", mission.Name, accountID, result.GemsGranted)
	return result, nil
}

// AssignMissions instantiates a UserMission for every active catalog mission
// the account does not have yet. Idempotent.
func (s *MissionService) AssignMissions(accountID string) error {
	var catalog []models.Mission
	if err := s.DB.Where("active = ?", true).Find(&catalog).Error; err != nil {
		return err
	}
	nowUTC := s.now().UTC()
	for _, mission := range catalog {
		um := models.UserMission{
			ID:        uuid.NewString(),
			AccountID: accountID,
			MissionID: mission.ID,
			ExpiresAt: missionExpiry(mission.Frequency, nowUTC),
		}
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "mission_id"}},
			DoNothing: true,
		}).Create(&um).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListMissions returns the account's mission instances with catalog data
func (s *MissionService) ListMissions(accountID string) ([]models.UserMission, error) {
	var userMissions []models.UserMission
	err := s.DB.Where("account_id = ?", accountID).
		Preload("Mission").
		Order("created_at ASC").
		Find(&userMissions).Error
	return userMissions, err
}

func missionExpiry(freq models.MissionFrequency, from time.Time) *time.Time {
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	switch freq {
	case models.FrequencyDaily:
		t := midnight.AddDate(0, 0, 1)
		return &t
	case models.FrequencyWeekly:
		t := midnight.AddDate(0, 0, 7)
		return &t
	default:
		return nil
	}
}

// RearmExpired resets expired daily/weekly mission instances so the next
// window starts clean. Progress in a live window is never touched. Returns
// how many instances were re-armed.
func (s *MissionService) RearmExpired() (int, error) {
	nowUTC := s.now().UTC()
	var expired []models.UserMission
	if err := s.DB.Preload("Mission").
		Where("expires_at IS NOT NULL AND expires_at <= ?", nowUTC).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	rearmed := 0
	for _, um := range expired {
		if um.Mission == nil || um.Mission.Frequency == models.FrequencyOnce {
			continue
		}
		next := missionExpiry(um.Mission.Frequency, nowUTC)
		res := s.DB.Model(&models.UserMission{}).
			Where("id = ? AND expires_at = ?", um.ID, um.ExpiresAt).
			Updates(map[string]interface{}{
				"progress":   0,
				"completed":  false,
				"claimed":    false,
				"expires_at": next,
			})
		if res.Error != nil {
			log.Printf("[MISSION] re-arm failed for user mission %s: %v", um.ID, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			rearmed++
		}
	}
	return rearmed, nil
}
