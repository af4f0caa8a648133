package database

import (
	"context"
	"fmt"

	"github.com/frequency-chain/frequency-ops/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) CreateUpgradeBatch(ctx context.Context, batch models.UpgradeBatch) error {
	if _, err := db.collection(upgradeBatchesCollection).InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("failed to create upgrade batch: %w", err)
	}
	return nil
}

// GetUpgradeBatches returns the batches of a chain, newest first. An empty
// chain returns every batch.
func (db *Database) GetUpgradeBatches(ctx context.Context, chain string) ([]models.UpgradeBatch, error) {
	filter := bson.M{}
	if chain != "" {
		filter["chain"] = chain
	}

	cursor, err := db.collection(upgradeBatchesCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "batch", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find upgrade batches: %w", err)
	}
	defer cursor.Close(ctx)

	batches := []models.UpgradeBatch{}
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("failed to decode upgrade batches: %w", err)
	}
	return batches, nil
}
