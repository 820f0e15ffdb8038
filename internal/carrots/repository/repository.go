package repository

import (
	"context"

	"carrotreset/internal/carrots/model"
)

// MaxBatchOps is the hard per-batch write ceiling shared by the supported stores.
const MaxBatchOps = 500

type UserRepository interface {
	// List up to limit users ordered by id ascending, starting strictly after cursor ("" = from the start)
	ListUsersAfter(ctx context.Context, cursor string, limit int) ([]model.UserRecord, error)
	// Apply every reset (user update + transaction create) atomically
	CommitResets(ctx context.Context, resets []model.Reset) error
	// Release the underlying client
	Close(ctx context.Context) error
}
