package model

import "time"

// Reset is one queued reset: a user update plus a transaction create.
type Reset struct {
	UserID string
	Amount int
}

// OpsPerReset is the number of store writes a Reset expands to.
const OpsPerReset = 2

// Transaction is the append-only audit entry written under a user for every reset.
type Transaction struct {
	ID           string    `bson:"_id,omitempty" firestore:"-"`
	UserID       string    `bson:"userId" firestore:"-"`
	Type         string    `bson:"type" firestore:"type"`
	Amount       int       `bson:"amount" firestore:"amount"`
	BalanceAfter int       `bson:"balanceAfter" firestore:"balanceAfter"`
	Description  string    `bson:"description" firestore:"description"`
	Timestamp    time.Time `bson:"timestamp" firestore:"timestamp"`
}

// NewResetTransaction builds the audit entry for r. Timestamp is left zero;
// stores assign it server side.
func NewResetTransaction(r Reset) Transaction {
	return Transaction{
		UserID:       r.UserID,
		Type:         TransactionTypeReset,
		Amount:       r.Amount,
		BalanceAfter: r.Amount,
		Description:  ResetDescription,
	}
}
