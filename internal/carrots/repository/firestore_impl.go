package repository

import (
	"context"
	"fmt"

	"carrotreset/internal/carrots/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// FirestoreRepository keeps users in a top-level collection and their reset
// transactions in a sub-collection under each user document.
type FirestoreRepository struct {
	Client                 *firestore.Client
	UsersCollection        string
	TransactionsCollection string
}

func NewFirestoreRepository(client *firestore.Client, usersCollection, transactionsCollection string) *FirestoreRepository {
	return &FirestoreRepository{
		Client:                 client,
		UsersCollection:        usersCollection,
		TransactionsCollection: transactionsCollection,
	}
}

// OpenFirestore builds a client for projectID authenticated with a service account JSON document.
func OpenFirestore(ctx context.Context, projectID string, credentialsJSON []byte, usersCollection, transactionsCollection string) (*FirestoreRepository, error) {
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return NewFirestoreRepository(client, usersCollection, transactionsCollection), nil
}

func (r *FirestoreRepository) ListUsersAfter(ctx context.Context, cursor string, limit int) ([]model.UserRecord, error) {
	query := r.Client.Collection(r.UsersCollection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(limit)
	if cursor != "" {
		query = query.StartAfter(cursor)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	users := make([]model.UserRecord, 0, len(docs))
	for _, doc := range docs {
		users = append(users, userFromData(doc.Ref.ID, doc.Data()))
	}
	return users, nil
}

func userFromData(id string, data map[string]interface{}) model.UserRecord {
	user := model.UserRecord{ID: id}
	if s, ok := data["subscriptionStatus"].(string); ok {
		user.SubscriptionStatus = s
	}
	if carrots, ok := data["carrots"].(map[string]interface{}); ok {
		user.CarrotsMax = carrots["max"]
	}
	return user
}

func (r *FirestoreRepository) CommitResets(ctx context.Context, resets []model.Reset) error {
	if len(resets) == 0 {
		return nil
	}
	if len(resets)*model.OpsPerReset > MaxBatchOps {
		return fmt.Errorf("batch of %d resets exceeds %d operations", len(resets), MaxBatchOps)
	}

	batch := r.Client.Batch()
	for _, reset := range resets {
		userRef := r.Client.Collection(r.UsersCollection).Doc(reset.UserID)
		txRef := userRef.Collection(r.TransactionsCollection).NewDoc()
		tx := model.NewResetTransaction(reset)

		batch.Update(userRef, []firestore.Update{
			{Path: model.FieldCarrotsCurrent, Value: reset.Amount},
			{Path: model.FieldCarrotsLastResetAt, Value: firestore.ServerTimestamp},
			{Path: model.FieldUpdatedAt, Value: firestore.ServerTimestamp},
		})
		batch.Set(txRef, map[string]interface{}{
			"type":         tx.Type,
			"amount":       tx.Amount,
			"balanceAfter": tx.BalanceAfter,
			"description":  tx.Description,
			"timestamp":    firestore.ServerTimestamp,
		})
	}

	_, err := batch.Commit(ctx)
	return err
}

func (r *FirestoreRepository) Close(_ context.Context) error {
	return r.Client.Close()
}
