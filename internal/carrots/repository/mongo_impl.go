package repository

import (
	"context"
	"fmt"
	"time"

	"carrotreset/internal/carrots/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository keeps users keyed by string _id and their reset
// transactions in a sibling collection linked by userId.
type MongoRepository struct {
	Users        *mongo.Collection
	Transactions *mongo.Collection
	Client       *mongo.Client // for transactions
	NewID        func() string
}

func NewMongoRepository(db *mongo.Database, usersCollectionName, transactionsCollectionName string) *MongoRepository {
	return &MongoRepository{
		Users:        db.Collection(usersCollectionName),
		Transactions: db.Collection(transactionsCollectionName),
		Client:       db.Client(),
		NewID:        uuid.NewString,
	}
}

// OpenMongo connects, pings and returns a repository on database dbName.
func OpenMongo(ctx context.Context, uri, dbName, usersCollectionName, transactionsCollectionName string, timeout time.Duration) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRetryWrites(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return NewMongoRepository(client.Database(dbName), usersCollectionName, transactionsCollectionName), nil
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	// Per-user audit trail, newest first
	idxUserTimestamp := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "timestamp", Value: -1},
		},
		Options: options.Index().SetName("idx_user_timestamp"),
	}
	_, err := r.Transactions.Indexes().CreateOne(ctx, idxUserTimestamp)
	return err
}

type mongoUserDoc struct {
	ID                 string        `bson:"_id"`
	SubscriptionStatus bson.RawValue `bson:"subscriptionStatus"`
	Carrots            bson.RawValue `bson:"carrots"`
}

func (d mongoUserDoc) toUserRecord() model.UserRecord {
	user := model.UserRecord{ID: d.ID}
	if s, ok := d.SubscriptionStatus.StringValueOK(); ok {
		user.SubscriptionStatus = s
	}
	if doc, ok := d.Carrots.DocumentOK(); ok {
		user.CarrotsMax = rawNumber(doc.Lookup("max"))
	}
	return user
}

// rawNumber widens BSON numerics to int64/float64 and drops everything else.
func rawNumber(v bson.RawValue) any {
	switch v.Type {
	case bson.TypeInt32:
		return int64(v.Int32())
	case bson.TypeInt64:
		return v.Int64()
	case bson.TypeDouble:
		return v.Double()
	default:
		return nil
	}
}

func (r *MongoRepository) ListUsersAfter(ctx context.Context, cursor string, limit int) ([]model.UserRecord, error) {
	// $gt on a string only matches string ids, "" matches all of them
	filter := bson.M{"_id": bson.M{"$gt": cursor}}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"subscriptionStatus": 1, "carrots.max": 1})

	cur, err := r.Users.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []mongoUserDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]model.UserRecord, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toUserRecord())
	}
	return users, nil
}

// resetUserPipeline sets the reset fields with an update pipeline. A carrots
// value that is not a document (null, a number, an array) is replaced by an
// empty one first, since a plain $set on "carrots.current" fails there.
func resetUserPipeline(amount int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"carrots": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{bson.M{"$type": "$carrots"}, "object"}},
				"$carrots",
				bson.M{},
			}},
		}}},
		{{Key: "$set", Value: bson.M{
			model.FieldCarrotsCurrent:     bson.M{"$literal": amount},
			model.FieldCarrotsLastResetAt: "$$NOW",
			model.FieldUpdatedAt:          "$$NOW",
		}}},
	}
}

func (r *MongoRepository) CommitResets(ctx context.Context, resets []model.Reset) error {
	if len(resets) == 0 {
		return nil
	}
	if len(resets)*model.OpsPerReset > MaxBatchOps {
		return fmt.Errorf("batch of %d resets exceeds %d operations", len(resets), MaxBatchOps)
	}

	userModels := make([]mongo.WriteModel, 0, len(resets))
	txModels := make([]mongo.WriteModel, 0, len(resets))
	for _, reset := range resets {
		userModels = append(userModels, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": reset.UserID}).
			SetUpdate(resetUserPipeline(reset.Amount)))

		tx := model.NewResetTransaction(reset)
		// Upsert on a fresh id so the server stamps the timestamp
		txModels = append(txModels, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": r.NewID()}).
			SetUpdate(bson.M{
				"$setOnInsert": bson.M{
					"userId":       tx.UserID,
					"type":         tx.Type,
					"amount":       tx.Amount,
					"balanceAfter": tx.BalanceAfter,
					"description":  tx.Description,
				},
				"$currentDate": bson.M{"timestamp": true},
			}).
			SetUpsert(true))
	}

	session, err := r.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	callback := func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.BulkWrite().SetOrdered(true)
		if _, err := r.Users.BulkWrite(sessCtx, userModels, opts); err != nil {
			return nil, err
		}
		if _, err := r.Transactions.BulkWrite(sessCtx, txModels, opts); err != nil {
			return nil, err
		}
		return nil, nil
	}

	_, err = session.WithTransaction(ctx, callback)
	return err
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.Client.Disconnect(ctx)
}
