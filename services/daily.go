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

const dailyDateLayout = "2006-01-02"

// DailyService runs the login-streak reward. The streak row doubles as the
// per-day claim record: last_claim_date is the claimed flag for "today", and
// the claim flips it with a compare-and-set so two concurrent claims can
// never both grant.
type DailyService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	now func() time.Time // injectable clock
}

func NewDailyService(db *gorm.DB, ledger *LedgerService) *DailyService {
	return &DailyService{DB: db, Ledger: ledger, now: time.Now}
}

// DailyClaimResult is the success payload for a daily claim
type DailyClaimResult struct {
	Day         int   `json:"day"` // position in the schedule cycle
	Streak      int   `json:"streak"`
	GemsGranted int64 `json:"gems_granted"`
	XPGranted   int64 `json:"xp_granted"`
	NewBalance  int64 `json:"new_balance"`
}

// DailyScheduleEntry is one display row of the streak schedule
type DailyScheduleEntry struct {
	Day     int   `json:"day"`
	Gems    int64 `json:"gems"`
	XP      int64 `json:"xp"`
	Claimed bool  `json:"claimed"`
	Current bool  `json:"current"`
}

// DailyStatus is the display state for the daily reward widget
type DailyStatus struct {
	CanClaim      bool                 `json:"can_claim"`
	CurrentStreak int                  `json:"current_streak"`
	MsUntilReset  int64                `json:"ms_until_reset"`
	Schedule      []DailyScheduleEntry `json:"schedule"`
}

func (s *DailyService) schedule() ([]models.DailyRewardTier, error) {
	var tiers []models.DailyRewardTier
	if err := s.DB.Order("day ASC").Find(&tiers).Error; err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("daily reward schedule is not configured")
	}
	return tiers, nil
}

func (s *DailyService) ensureStreak(accountID string) (*models.DailyStreak, error) {
	row := models.DailyStreak{
		ID:        uuid.NewString(),
		AccountID: accountID,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return nil, err
	}
	var streak models.DailyStreak
	if err := s.DB.Where("account_id = ?", accountID).First(&streak).Error; err != nil {
		return nil, err
	}
	return &streak, nil
}

// Claim grants today's streak reward at most once per UTC calendar day.
// A consecutive-day claim increments the streak, a missed day resets it to 1;
// the amount for day N comes from the schedule table.
func (s *DailyService) Claim(accountID string) (*DailyClaimResult, error) {
	nowUTC := s.now().UTC()
	today := nowUTC.Format(dailyDateLayout)
	yesterday := nowUTC.AddDate(0, 0, -1).Format(dailyDateLayout)

	tiers, err := s.schedule()
	if err != nil {
		return nil, err
	}

	streak, err := s.ensureStreak(accountID)
	if err != nil {
		return nil, err
	}
	if streak.LastClaimDate == today {
		return nil, ErrAlreadyClaimed
	}

	newStreak := 1
	if streak.LastClaimDate == yesterday {
		newStreak = streak.CurrentStreak + 1
	}
	tier := tiers[(newStreak-1)%len(tiers)]

	var result *DailyClaimResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		cas := tx.Model(&models.DailyStreak{}).
			Where("account_id = ? AND last_claim_date = ?", accountID, streak.LastClaimDate).
			Updates(map[string]interface{}{
				"current_streak":  newStreak,
				"last_claim_date": today,
			})
		if cas.Error != nil {
			return cas.Error
		}
		if cas.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		ref := fmt.Sprintf("daily:%s:%s", accountID, today)
		adj, err := s.Ledger.AdjustTx(tx, accountID, tier.Gems, tier.XP,
			models.TxKindDailyReward, fmt.Sprintf("Daily reward day %d (streak %d)", tier.Day, newStreak), ref)
		if err != nil {
			return err
		}
		result = &DailyClaimResult{
			Day:         tier.Day,
			Streak:      newStreak,
			GemsGranted: tier.Gems,
			XPGranted:   tier.XP,
			NewBalance:  adj.Account.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[DAILY] account %s claimed day %d, streak %d", accountID, result.Day, result.Streak)
	return result, nil
}

// Status reports whether today's reward is claimable, the time until the
// claim window rolls over, and the schedule with claimed/current markers.
func (s *DailyService) Status(accountID string) (*DailyStatus, error) {
	nowUTC := s.now().UTC()
	today := nowUTC.Format(dailyDateLayout)
	yesterday := nowUTC.AddDate(0, 0, -1).Format(dailyDateLayout)

	tiers, err := s.schedule()
	if err != nil {
		return nil, err
	}
	streak, err := s.ensureStreak(accountID)
	if err != nil {
		return nil, err
	}

	claimedToday := streak.LastClaimDate == today
	canClaim := !claimedToday

	// The schedule position the player is on (or will claim next)
	effective := streak.CurrentStreak
	if !claimedToday {
		if streak.LastClaimDate == yesterday {
			effective = streak.CurrentStreak + 1
		} else {
			effective = 1
		}
	}
	if effective < 1 {
		effective = 1
	}
	currentDay := (effective-1)%len(tiers) + 1

	midnight := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	entries := make([]DailyScheduleEntry, 0, len(tiers))
	for _, tier := range tiers {
		entries = append(entries, DailyScheduleEntry{
			Day:     tier.Day,
			Gems:    tier.Gems,
			XP:      tier.XP,
			Claimed: tier.Day < currentDay || (tier.Day == currentDay && claimedToday),
			Current: tier.Day == currentDay,
		})
	}

	return &DailyStatus{
		CanClaim:      canClaim,
		CurrentStreak: streak.CurrentStreak,
		MsUntilReset:  midnight.Sub(nowUTC).Milliseconds(),
		Schedule:      entries,
	}, nil
}

// SeedDefaultSchedule installs a 7-day schedule if none exists yet
func (s *DailyService) SeedDefaultSchedule() error {
	var count int64
	if err := s.DB.Model(&models.DailyRewardTier{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defaults := []models.DailyRewardTier{
		{Day: 1, Gems: 25, XP: 10},
		{Day: 2, Gems: 50, XP: 10},
		{Day: 3, Gems: 75, XP: 20},
		{Day: 4, Gems: 100, XP: 20},
		{Day: 5, Gems: 150, XP: 30},
		{Day: 6, Gems: 200, XP: 30},
		{Day: 7, Gems: 300, XP: 50},
	}
	for i := range defaults {
		defaults[i].ID = uuid.NewString()
	}
	return s.DB.Create(&defaults).Error
}
