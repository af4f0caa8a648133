package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frequency-chain/frequency-ops/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpdateLastIndexedBlock upserts the resume point stored under key.
func (db *Database) UpdateLastIndexedBlock(ctx context.Context, key string, blockNumber uint64) error {
	filter := bson.D{{Key: "key", Value: key}}
	update := bson.D{{
		Key: "$set",
		Value: bson.D{
			{Key: "block_number", Value: blockNumber},
			{Key: "updated_at", Value: time.Now().UTC()},
		},
	}}

	_, err := db.collection(lastIndexedBlockCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update last indexed block: %w", err)
	}

	return nil
}

// GetLastIndexedBlock returns 0 when nothing was stored under key yet.
func (db *Database) GetLastIndexedBlock(ctx context.Context, key string) (uint64, error) {
	var result models.LastIndexedBlock
	err := db.collection(lastIndexedBlockCollection).FindOne(ctx, bson.D{{Key: "key", Value: key}}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last indexed block: %w", err)
	}

	db.logger.Debug("loaded last indexed block", "key", key, "block", result.BlockNumber)

	return result.BlockNumber, nil
}

func (db *Database) ListLastIndexedBlocks(ctx context.Context) ([]models.LastIndexedBlock, error) {
	cursor, err := db.collection(lastIndexedBlockCollection).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list last indexed blocks: %w", err)
	}
	defer cursor.Close(ctx)

	blocks := []models.LastIndexedBlock{}
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode last indexed blocks: %w", err)
	}
	return blocks, nil
}
