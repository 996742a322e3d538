package services

import "errors"

// Failure kinds surfaced by the economy services. Handlers map these to HTTP
// statuses; nothing below is a crash — duplicate guards in particular are
// expected outcomes under retries and double-clicks.
var (
	ErrNotFound            = errors.New("not found")
	ErrNotUnlocked         = errors.New("reward not unlocked")
	ErrNotCompleted        = errors.New("mission not completed")
	ErrAlreadyClaimed      = errors.New("already claimed")
	ErrAlreadyOpened       = errors.New("booster already opened")
	ErrInsufficientFunds   = errors.New("insufficient gems")
	ErrNotPurchasable      = errors.New("booster not purchasable")
	ErrPaymentVerification = errors.New("payment verification failed")
)
