package integration

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DatabaseCleaner removes claim state left behind by a Mongo-backed service
type DatabaseCleaner struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewDatabaseCleaner(mongoURI, dbName string) (*DatabaseCleaner, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &DatabaseCleaner{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (d *DatabaseCleaner) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// CleanFarm removes the claim history and payments of one farm
func (d *DatabaseCleaner) CleanFarm(ctx context.Context, farmID string) error {
	if _, err := d.db.Collection("claim_history").DeleteOne(ctx, bson.M{"_id": farmID}); err != nil {
		return fmt.Errorf("failed to clean claim history: %w", err)
	}
	if _, err := d.db.Collection("payments").DeleteMany(ctx, bson.M{"farm_id": farmID}); err != nil {
		return fmt.Errorf("failed to clean payments: %w", err)
	}
	return nil
}

// CountPayments counts stored payments of a farm with the given status
func (d *DatabaseCleaner) CountPayments(ctx context.Context, farmID, status string) (int64, error) {
	return d.db.Collection("payments").CountDocuments(ctx, bson.M{"farm_id": farmID, "status": status})
}
