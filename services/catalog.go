// services/catalog.go
package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"card-economy-system/models"
	"card-economy-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CatalogService serves the read-only content definitions (cards, boosters,
// achievements, series, missions) and the admin write endpoints that feed
// them. The economy services only ever read this data.
type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// --- Public read endpoints ---

func (s *CatalogService) GetCards(c *fiber.Ctx) error {
	var cards []models.Card
	query := s.DB.Where("active = ?", true)
	if faction := c.Query("faction"); faction != "" {
		query = query.Where("faction = ?", faction)
	}
	if rarity := c.Query("rarity"); rarity != "" {
		query = query.Where("rarity = ?", rarity)
	}
	if err := query.Order("name ASC").Find(&cards).Error; err != nil {
		log.Printf("DB Error fetching cards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch cards"})
	}
	return c.JSON(cards)
}

func (s *CatalogService) GetBoosterTypes(c *fiber.Ctx) error {
	var types []models.BoosterType
	if err := s.DB.Where("active = ?", true).Preload("RarityWeights").Find(&types).Error; err != nil {
		log.Printf("DB Error fetching booster types: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch booster types"})
	}
	return c.JSON(types)
}

func (s *CatalogService) GetAchievements(c *fiber.Ctx) error {
	var achievements []models.Achievement
	if err := s.DB.Where("active = ?", true).Order("code ASC").Find(&achievements).Error; err != nil {
		log.Printf("DB Error fetching achievements: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch achievements"})
	}
	return c.JSON(achievements)
}

func (s *CatalogService) GetSeries(c *fiber.Ctx) error {
	var series []models.CardSeries
	if err := s.DB.Where("active = ?", true).Order("name ASC").Find(&series).Error; err != nil {
		log.Printf("DB Error fetching series: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch series"})
	}
	return c.JSON(series)
}

// --- Admin write endpoints ---

// CreateCard creates a card definition (Admin only)
func (s *CatalogService) CreateCard(c *fiber.Ctx) error {
	var req struct {
		Name     string            `json:"name" validate:"required"`
		Faction  string            `json:"faction"`
		Rarity   models.CardRarity `json:"rarity" validate:"required,oneof=common rare epic legendary"`
		SeriesID *string           `json:"series_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}

	card := models.Card{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Slug:     slug.Make(req.Name),
		Faction:  req.Faction,
		Rarity:   req.Rarity,
		SeriesID: req.SeriesID,
		Active:   true,
	}
	if err := s.DB.Create(&card).Error; err != nil {
		log.Printf("DB Error creating card: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create card"})
	}
	return c.Status(fiber.StatusCreated).JSON(card)
}

// UploadCardArtwork stores the card art in R2 and records its public URL
func (s *CatalogService) UploadCardArtwork(c *fiber.Ctx) error {
	id := c.Params("id")
	var card models.Card
	if err := s.DB.First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Card not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	fileHeader, err := c.FormFile("artwork")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "artwork file is required"})
	}

	key := fmt.Sprintf("cards/%s%s", card.Slug, filepath.Ext(fileHeader.Filename))
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("R2 upload failed for card %s: %v", card.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload artwork"})
	}

	card.ArtworkURL = url
	if err := s.DB.Save(&card).Error; err != nil {
		log.Printf("DB Error saving artwork URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save artwork URL"})
	}
	return c.JSON(card)
}

// CreateBoosterType creates a booster pack definition with its rarity table
func (s *CatalogService) CreateBoosterType(c *fiber.Ctx) error {
	var req struct {
		Name          string           `json:"name" validate:"required"`
		PriceGems     *int64           `json:"price_gems"`
		PriceCents    *int64           `json:"price_cents"`
		PackSize      int              `json:"pack_size"`
		Faction       *string          `json:"faction"`
		RarityWeights map[string]int64 `json:"rarity_weights"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}
	if req.PriceGems != nil && req.PriceCents != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Set price_gems or price_cents, not both"})
	}
	if req.PackSize < 1 {
		req.PackSize = 5
	}

	bt := models.BoosterType{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Slug:       slug.Make(req.Name),
		PriceGems:  req.PriceGems,
		PriceCents: req.PriceCents,
		PackSize:   req.PackSize,
		Faction:    req.Faction,
		Active:     true,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bt).Error; err != nil {
			return err
		}
		for rarity, weight := range req.RarityWeights {
			row := models.BoosterRarityWeight{
				ID:            uuid.NewString(),
				BoosterTypeID: bt.ID,
				Rarity:        models.CardRarity(rarity),
				Weight:        weight,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("DB Error creating booster type: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create booster type"})
	}
	return c.Status(fiber.StatusCreated).JSON(bt)
}

// CreateAchievement creates an achievement definition (Admin only)
func (s *CatalogService) CreateAchievement(c *fiber.Ctx) error {
	var req struct {
		Code        string `json:"code" validate:"required"`
		Name        string `json:"name" validate:"required"`
		Description string `json:"description"`
		RewardGems  int64  `json:"reward_gems"`
		RewardXP    int64  `json:"reward_xp"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Code == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Code and name are required"})
	}

	ach := models.Achievement{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		RewardGems:  req.RewardGems,
		RewardXP:    req.RewardXP,
		Active:      true,
	}
	if err := s.DB.Create(&ach).Error; err != nil {
		log.Printf("DB Error creating achievement: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create achievement"})
	}
	return c.Status(fiber.StatusCreated).JSON(ach)
}

// CreateMission creates a mission definition (Admin only)
func (s *CatalogService) CreateMission(c *fiber.Ctx) error {
	var req struct {
		Name           string                  `json:"name" validate:"required"`
		Description    string                  `json:"description"`
		ConditionType  string                  `json:"condition_type" validate:"required"`
		ConditionValue int64                   `json:"condition_value" validate:"required,min=1"`
		RewardGems     int64                   `json:"reward_gems"`
		RewardXP       int64                   `json:"reward_xp"`
		Frequency      models.MissionFrequency `json:"frequency" validate:"oneof=daily weekly once"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" || req.ConditionType == "" || req.ConditionValue < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name, condition_type and condition_value are required"})
	}
	if req.Frequency == "" {
		req.Frequency = models.FrequencyDaily
	}

	mission := models.Mission{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		ConditionType:  req.ConditionType,
		ConditionValue: req.ConditionValue,
		RewardGems:     req.RewardGems,
		RewardXP:       req.RewardXP,
		Frequency:      req.Frequency,
		Active:         true,
	}
	if err := s.DB.Create(&mission).Error; err != nil {
		log.Printf("DB Error creating mission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create mission"})
	}
	return c.Status(fiber.StatusCreated).JSON(mission)
}

// CreateSeries creates a card series definition (Admin only)
func (s *CatalogService) CreateSeries(c *fiber.Ctx) error {
	var req struct {
		Name       string `json:"name" validate:"required"`
		RewardGems int64  `json:"reward_gems"`
		RewardXP   int64  `json:"reward_xp"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}

	series := models.CardSeries{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Slug:       slug.Make(req.Name),
		RewardGems: req.RewardGems,
		RewardXP:   req.RewardXP,
		Active:     true,
	}
	if err := s.DB.Create(&series).Error; err != nil {
		log.Printf("DB Error creating series: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create series"})
	}
	return c.Status(fiber.StatusCreated).JSON(series)
}
