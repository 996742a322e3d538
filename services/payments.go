package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	"card-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentService verifies and deduplicates provider webhooks and fulfils
// real-money booster purchases. Gems never flow through here: a paid session
// buys packs directly, so the ledger entry it writes is zero-amount and only
// exists for the audit trail and the idempotency ref.
type PaymentService struct {
	DB *gorm.DB

	CheckoutBaseURL string // provider-hosted checkout, e.g. https://pay.example.com/session
	WebhookSecret   string
}

func NewPaymentService(db *gorm.DB, checkoutBaseURL, webhookSecret string) *PaymentService {
	return &PaymentService{
		DB:              db,
		CheckoutBaseURL: checkoutBaseURL,
		WebhookSecret:   webhookSecret,
	}
}

// CheckoutSession is the redirect reference returned to the purchase caller
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CreateCheckoutSession builds the provider redirect for a real-money pack.
// No local mutation happens here; fulfilment arrives via the webhook.
func (s *PaymentService) CreateCheckoutSession(accountID string, bt *models.BoosterType, quantity int) (*CheckoutSession, error) {
	if bt.PriceCents == nil {
		return nil, ErrNotPurchasable
	}
	if quantity < 1 {
		quantity = 1
	}
	sessionID := fmt.Sprintf("cs_%s", uuid.NewString())
	url := fmt.Sprintf("%s/%s?account_id=%s&booster_type_id=%s&quantity=%d&amount_cents=%d",
		s.CheckoutBaseURL, sessionID, accountID, bt.ID, quantity, *bt.PriceCents*int64(quantity))
	log.Printf("[PAYMENT] checkout session %s created for account %s (%s x%d)", sessionID, accountID, bt.Name, quantity)
	return &CheckoutSession{SessionID: sessionID, CheckoutURL: url}, nil
}

// VerifySignature checks the webhook HMAC-SHA256 of the raw body
func (s *PaymentService) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleWebhook is the fiber endpoint the provider posts notifications to.
// Verification failures are terminal for the delivery — redelivery is the
// provider's job and lands on the idempotency guard in Reconcile.
func (s *PaymentService) HandleWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("X-Payment-Signature")
	if signature == "" || !s.VerifySignature(body, signature) {
		log.Printf("[PAYMENT] webhook rejected: bad signature from %s", c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrPaymentVerification.Error()})
	}

	var notification models.PaymentNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification payload"})
	}

	if err := s.Reconcile(&notification); err != nil {
		if err == ErrPaymentVerification {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("[PAYMENT] reconcile failed for session %s: %v", notification.SessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to process notification"})
	}

	return c.JSON(fiber.Map{"received": true})
}

// Reconcile applies one verified notification at most once. The dedup marker
// insert, the booster grants and the audit transaction commit as one unit, so
// a crash mid-way rolls everything back and the redelivery starts clean.
func (s *PaymentService) Reconcile(n *models.PaymentNotification) error {
	if n.SessionID == "" || n.Metadata.AccountID == "" || n.Metadata.BoosterTypeID == "" {
		return ErrPaymentVerification
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		quantity := n.Metadata.Quantity
		if quantity < 1 {
			quantity = 1
		}

		marker := models.ProcessedPayment{
			SessionID:     n.SessionID,
			AccountID:     n.Metadata.AccountID,
			BoosterTypeID: n.Metadata.BoosterTypeID,
			Quantity:      quantity,
			Status:        n.Status,
		}
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			if n.Status != models.PaymentStatusCompleted {
				log.Printf("[PAYMENT] session %s already processed, replay ignored", n.SessionID)
				return nil
			}
			// The provider can re-deliver a session it first reported as
			// expired/failed once it settles. Completed is terminal: this CAS
			// lets the upgraded delivery fulfil exactly once while completed
			// replays insert zero rows and stop here.
			upd := tx.Model(&models.ProcessedPayment{}).
				Where("session_id = ? AND status <> ?", n.SessionID, models.PaymentStatusCompleted).
				Update("status", models.PaymentStatusCompleted)
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected == 0 {
				log.Printf("[PAYMENT] session %s already fulfilled, replay ignored", n.SessionID)
				return nil
			}
		}

		if n.Status != models.PaymentStatusCompleted {
			// Marker keeps the audit trail for sessions that never settled
			log.Printf("[PAYMENT] session %s recorded with status %s, nothing granted", n.SessionID, n.Status)
			return nil
		}

		// Secondary guard: an audit transaction for this session means a
		// previous delivery already granted, even if the marker was lost.
		var existing int64
		if err := tx.Model(&models.Transaction{}).
			Where("external_ref = ?", n.SessionID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			log.Printf("[PAYMENT] session %s has a ledger entry already, replay ignored", n.SessionID)
			return nil
		}

		for i := 0; i < quantity; i++ {
			ref := n.SessionID
			booster := models.UserBooster{
				ID:            uuid.NewString(),
				AccountID:     n.Metadata.AccountID,
				BoosterTypeID: n.Metadata.BoosterTypeID,
				PaymentRef:    &ref,
			}
			if err := tx.Create(&booster).Error; err != nil {
				return err
			}
		}

		ref := n.SessionID
		audit := models.Transaction{
			ID:          uuid.NewString(),
			AccountID:   n.Metadata.AccountID,
			Kind:        models.TxKindStripePayment,
			Amount:      0, // packs bought directly, gems untouched
			Description: fmt.Sprintf("Payment fulfilled: %d booster(s)", quantity),
			ExternalRef: &ref,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return err
		}

		log.Printf("[PAYMENT] session %s fulfilled: %d booster(s) for account %s", n.SessionID, quantity, n.Metadata.AccountID)
		return nil
	})
}
