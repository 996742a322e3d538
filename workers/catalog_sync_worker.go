package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"card-economy-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogSyncClient pulls card definitions from the upstream content service
// into the local catalog mirror.
type CatalogSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewCatalogSyncClient(db *gorm.DB) *CatalogSyncClient {
	baseURL := os.Getenv("CATALOG_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("CATALOG_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("ECONOMY_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("ECONOMY_SERVICE_TOKEN environment variable is required for catalog sync")
	}

	return &CatalogSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *CatalogSyncClient) GetChangedCards(ctx context.Context, since time.Time) ([]models.Card, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/cards", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("catalog service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Cards []models.Card `json:"cards"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode catalog service response: %w", err)
	}

	return response.Cards, nil
}

// PollCatalog mirrors upstream card changes into the local DB. The cursor
// only advances on a successful upsert, so a failed window is retried whole.
func PollCatalog(ctx context.Context, client *CatalogSyncClient, pollInterval time.Duration) {
	log.Println("Starting catalog polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Catalog polling stopped.")
			return
		case <-ticker.C:
			windowStart := time.Now().UTC()

			cards, err := client.GetChangedCards(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling catalog: %v", err)
				continue
			}

			count := len(cards)
			if count == 0 {
				continue
			}
			log.Printf("📥 Received %d card change(s) from catalog service.", count)

			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "slug"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"name",
						"faction",
						"rarity",
						"series_id",
						"artwork_url",
						"active",
						"updated_at",
					}),
				},
			).Create(&cards).Error; err != nil {
				log.Printf("❌ Failed to upsert %d card(s) into catalog mirror: %v", count, err)
				// Do NOT advance the cursor on failure — retry same window next tick
				continue
			}

			lastSyncTime = windowStart
			log.Printf("✅ Upserted %d card(s) into catalog mirror.", count)
		}
	}
}
