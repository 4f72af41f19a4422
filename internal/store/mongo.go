package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eunej/CleanField/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps claim state in MongoDB. CommitClaim runs in a multi-document
// transaction, so the deployment must be a replica set or sharded cluster.
type MongoStore struct {
	client    *mongo.Client
	histories *mongo.Collection
	payments  *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:    client,
		histories: db.Collection("claim_history"),
		payments:  db.Collection("payments"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.payments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

func (s *MongoStore) GetClaimHistory(ctx context.Context, farmID string) (model.ClaimHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var h model.ClaimHistory
	err := s.histories.FindOne(ctx, bson.M{"_id": farmID}).Decode(&h)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.ClaimHistory{FarmID: farmID}, nil
		}
		return model.ClaimHistory{}, err
	}
	return h, nil
}

// CommitClaim writes the payment and the advanced history in one session
// transaction. Neither write is visible unless both succeed.
func (s *MongoStore) CommitClaim(ctx context.Context, expectedVersion int64, history model.ClaimHistory, payment model.PaymentRecord) error {
	if err := validateCommit(history, payment); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	history.Version = expectedVersion + 1
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.payments.InsertOne(sc, payment); err != nil {
			return nil, fmt.Errorf("insert payment: %w", err)
		}
		return nil, s.advanceHistory(sc, expectedVersion, history)
	})
	return err
}

func (s *MongoStore) advanceHistory(ctx context.Context, expectedVersion int64, history model.ClaimHistory) error {
	if expectedVersion == 0 {
		_, err := s.histories.InsertOne(ctx, history)
		if mongo.IsDuplicateKeyError(err) {
			return ErrClaimConflict
		}
		return err
	}

	res, err := s.histories.ReplaceOne(ctx,
		bson.M{"_id": history.FarmID, "version": expectedVersion},
		history,
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrClaimConflict
	}
	return nil
}

func (s *MongoStore) AppendPayment(ctx context.Context, payment model.PaymentRecord) error {
	if err := validatePayment(payment); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.payments.InsertOne(ctx, payment)
	return err
}

func (s *MongoStore) ListPayments(ctx context.Context, farmID string, limit int) ([]model.PaymentRecord, error) {
	return s.findPayments(ctx, bson.M{"farm_id": farmID}, limit)
}

func (s *MongoStore) ListAllPayments(ctx context.Context, limit int) ([]model.PaymentRecord, error) {
	return s.findPayments(ctx, bson.M{}, limit)
}

func (s *MongoStore) findPayments(ctx context.Context, filter bson.M, limit int) ([]model.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.payments.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	payments := make([]model.PaymentRecord, 0)
	if err := cur.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *MongoStore) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.histories.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	_, err := s.payments.DeleteMany(ctx, bson.M{})
	return err
}

func (s *MongoStore) Close() error {
	return nil
}
