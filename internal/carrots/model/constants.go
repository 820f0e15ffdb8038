package model

const (
	// Subscription Status
	SubscriptionPremium = "premium"
	SubscriptionFree    = "free"

	// DefaultCarrotsMax applies when carrots.max is absent or not a finite number.
	DefaultCarrotsMax = 5

	// Transaction
	TransactionTypeReset = "reset"
	ResetDescription     = "Weekly carrot refresh"

	// Field paths written by a reset
	FieldCarrotsCurrent     = "carrots.current"
	FieldCarrotsLastResetAt = "carrots.lastResetAt"
	FieldUpdatedAt          = "updatedAt"
)
