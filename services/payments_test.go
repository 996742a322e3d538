package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"card-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentFixture(t *testing.T) (*PaymentService, *LedgerService, *models.Account, *models.BoosterType) {
	t.Helper()
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	payments := NewPaymentService(db, "https://pay.test/session", "whsec_test")
	acc := newTestAccount(t, ledger)
	bt := seedBoosterType(t, db, nil, int64p(499), 5, nil, nil)
	return payments, ledger, acc, bt
}

func notificationFor(acc *models.Account, bt *models.BoosterType, status models.PaymentStatus, quantity int) *models.PaymentNotification {
	n := &models.PaymentNotification{
		SessionID: "cs_" + uuid.NewString(),
		Status:    status,
	}
	n.Metadata.AccountID = acc.ID
	n.Metadata.BoosterTypeID = bt.ID
	n.Metadata.Quantity = quantity
	return n
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestReconcileCompletedSessionGrantsBoosters(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)
	n := notificationFor(acc, bt, models.PaymentStatusCompleted, 2)

	require.NoError(t, payments.Reconcile(n))

	var boosters []models.UserBooster
	require.NoError(t, payments.DB.Where("account_id = ?", acc.ID).Find(&boosters).Error)
	require.Len(t, boosters, 2)
	for _, b := range boosters {
		require.NotNil(t, b.PaymentRef)
		assert.Equal(t, n.SessionID, *b.PaymentRef)
		assert.False(t, b.Opened)
	}

	// Audit entry is zero-amount: paid packs never mint gems
	var audit models.Transaction
	require.NoError(t, payments.DB.Where("external_ref = ?", n.SessionID).First(&audit).Error)
	assert.Equal(t, models.TxKindStripePayment, audit.Kind)
	assert.Zero(t, audit.Amount)
	assert.Zero(t, ledgerSum(t, payments.DB, acc.ID))
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)
	n := notificationFor(acc, bt, models.PaymentStatusCompleted, 3)

	require.NoError(t, payments.Reconcile(n))
	require.NoError(t, payments.Reconcile(n))
	require.NoError(t, payments.Reconcile(n))

	var boosterCount, txCount int64
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&boosterCount).Error)
	require.NoError(t, payments.DB.Model(&models.Transaction{}).Where("external_ref = ?", n.SessionID).Count(&txCount).Error)
	assert.Equal(t, int64(3), boosterCount)
	assert.Equal(t, int64(1), txCount)
}

func TestReconcileNonCompletedSessionGrantsNothing(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)
	n := notificationFor(acc, bt, models.PaymentStatusExpired, 1)

	require.NoError(t, payments.Reconcile(n))

	var marker models.ProcessedPayment
	require.NoError(t, payments.DB.Where("session_id = ?", n.SessionID).First(&marker).Error)
	assert.Equal(t, models.PaymentStatusExpired, marker.Status)

	var boosterCount int64
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&boosterCount).Error)
	assert.Zero(t, boosterCount)

	// An expired replay changes nothing
	require.NoError(t, payments.Reconcile(n))
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&boosterCount).Error)
	assert.Zero(t, boosterCount)
}

func TestReconcileUpgradesSettledSessionExactlyOnce(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)
	n := notificationFor(acc, bt, models.PaymentStatusExpired, 2)

	require.NoError(t, payments.Reconcile(n))

	// The session settles after the expired delivery
	n.Status = models.PaymentStatusCompleted
	require.NoError(t, payments.Reconcile(n))

	var marker models.ProcessedPayment
	require.NoError(t, payments.DB.Where("session_id = ?", n.SessionID).First(&marker).Error)
	assert.Equal(t, models.PaymentStatusCompleted, marker.Status)

	var boosterCount, txCount int64
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&boosterCount).Error)
	require.NoError(t, payments.DB.Model(&models.Transaction{}).Where("external_ref = ?", n.SessionID).Count(&txCount).Error)
	assert.Equal(t, int64(2), boosterCount)
	assert.Equal(t, int64(1), txCount)

	// Completed replays stay blocked
	require.NoError(t, payments.Reconcile(n))
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&boosterCount).Error)
	assert.Equal(t, int64(2), boosterCount)
}

func TestReconcileRejectsIncompleteNotifications(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)

	empty := &models.PaymentNotification{Status: models.PaymentStatusCompleted}
	require.ErrorIs(t, payments.Reconcile(empty), ErrPaymentVerification)

	missingAccount := notificationFor(acc, bt, models.PaymentStatusCompleted, 1)
	missingAccount.Metadata.AccountID = ""
	require.ErrorIs(t, payments.Reconcile(missingAccount), ErrPaymentVerification)
}

func TestReconcileDefaultsQuantityToOne(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)
	n := notificationFor(acc, bt, models.PaymentStatusCompleted, 0)

	require.NoError(t, payments.Reconcile(n))

	var count int64
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestVerifySignature(t *testing.T) {
	payments, _, _, _ := newPaymentFixture(t)
	body := []byte(`{"session_id":"cs_x","status":"completed"}`)

	assert.True(t, payments.VerifySignature(body, signBody("whsec_test", body)))
	assert.False(t, payments.VerifySignature(body, signBody("wrong_secret", body)))
	assert.False(t, payments.VerifySignature(body, "not-a-signature"))
	assert.False(t, payments.VerifySignature([]byte("tampered"), signBody("whsec_test", body)))
}

func TestWebhookEndpointVerifiesAndFulfils(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)

	app := fiber.New()
	app.Post("/payments/webhook", payments.HandleWebhook)

	n := notificationFor(acc, bt, models.PaymentStatusCompleted, 1)
	body, err := json.Marshal(n)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Payment-Signature", signBody("whsec_test", body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"received":true}`, string(payload))

	var count int64
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	payments, _, acc, bt := newPaymentFixture(t)

	app := fiber.New()
	app.Post("/payments/webhook", payments.HandleWebhook)

	n := notificationFor(acc, bt, models.PaymentStatusCompleted, 1)
	body, err := json.Marshal(n)
	require.NoError(t, err)

	for _, signature := range []string{"", signBody("wrong_secret", body)} {
		req := httptest.NewRequest("POST", "/payments/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("X-Payment-Signature", signature)
		}

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	}

	var count int64
	require.NoError(t, payments.DB.Model(&models.UserBooster{}).Where("account_id = ?", acc.ID).Count(&count).Error)
	assert.Zero(t, count)
}
