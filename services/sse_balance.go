package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"card-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamBalanceSSE streams balance changes for the authenticated account as
// server-sent events. The core only exposes the event stream; how the client
// consumes it is its own concern.
func (s *LedgerService) StreamBalanceSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	acc, err := s.EnsureAccount(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve account"})
	}
	accountID := acc.ID

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var cursor time.Time

		// Initialize cursor at the newest existing entry
		var latest models.Transaction
		if err := s.DB.
			Where("account_id = ?", accountID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			cursor = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for account %s: %v", accountID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var entries []models.Transaction
				err := s.DB.
					Where("account_id = ? AND created_at > ?", accountID, cursor).
					Order("created_at ASC").
					Find(&entries).Error
				if err != nil {
					log.Printf("SSE query error for account %s: %v", accountID, err)
					continue
				}
				if len(entries) == 0 {
					continue
				}
				cursor = entries[len(entries)-1].CreatedAt

				balance, err := s.GetBalance(accountID)
				if err != nil {
					log.Printf("SSE balance read error for account %s: %v", accountID, err)
					continue
				}

				for _, entry := range entries {
					payload, _ := json.Marshal(fiber.Map{
						"balance":     balance,
						"transaction": entry,
					})
					fmt.Fprintf(w, "event: balance\ndata: %s\n\n", payload)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
