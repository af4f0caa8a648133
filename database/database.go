package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frequency-chain/frequency-ops/database/models"
	"github.com/frequency-chain/frequency-ops/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	messagesCollection         = "messages"
	lastIndexedBlockCollection = "last_indexed_block"
	upgradeBatchesCollection   = "upgrade_batches"
)

type Database struct {
	client       *mongo.Client
	databaseName string
	logger       *slog.Logger
}

type DatabaseOpts struct {
	URI          string
	DatabaseName string
	Logger       *slog.Logger
}

const (
	defaultTimeout = 10 * time.Second
	// duplicateKeyCode is MongoDB's duplicate key error code.
	duplicateKeyCode = 11000
)

func NewDatabase(opts DatabaseOpts) (*Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetMaxConnecting(5).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewDatabaseFromClient(client, opts), nil
}

// NewDatabaseFromClient wraps an already connected client.
func NewDatabaseFromClient(client *mongo.Client, opts DatabaseOpts) *Database {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Database{
		client:       client,
		databaseName: opts.DatabaseName,
		logger:       opts.Logger,
	}
}

func (db *Database) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *Database) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

func (db *Database) collection(name string) *mongo.Collection {
	return db.client.Database(db.databaseName).Collection(name)
}

func (db *Database) CreateIndexes(ctx context.Context) error {
	_, err := db.collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "schema_id", Value: 1},
				{Key: "block_number", Value: 1},
				{Key: "index", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "provider_msa_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create messages indexes: %w", err)
	}

	_, err = db.collection(lastIndexedBlockCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create last_indexed_block index: %w", err)
	}

	_, err = db.collection(upgradeBatchesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chain", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create upgrade_batches index: %w", err)
	}

	return nil
}

// BatchCreateMessages inserts messages unordered. Messages already stored are
// skipped, so re-fetching a window is harmless.
func (db *Database) BatchCreateMessages(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	documents := make([]interface{}, len(messages))
	for i, message := range messages {
		documents[i] = message
	}

	_, err := db.collection(messagesCollection).InsertMany(ctx, documents, options.InsertMany().SetOrdered(false))
	if err != nil {
		var writeErr mongo.BulkWriteException
		if errors.As(err, &writeErr) && allDuplicates(writeErr) {
			db.logger.Debug("skipped already stored messages",
				"inserted", len(messages)-len(writeErr.WriteErrors),
				"duplicates", len(writeErr.WriteErrors))
			return nil
		}
		return fmt.Errorf("failed to insert messages: %w", err)
	}

	return nil
}

func allDuplicates(err mongo.BulkWriteException) bool {
	if err.WriteConcernError != nil || len(err.WriteErrors) == 0 {
		return false
	}
	for _, writeErr := range err.WriteErrors {
		if writeErr.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

// WriteMessages stores one page of node responses for a schema.
func (db *Database) WriteMessages(ctx context.Context, schemaID types.SchemaID, content []types.MessageResponse) error {
	now := time.Now().UTC()
	messages := make([]models.Message, len(content))
	for i, m := range content {
		messages[i] = models.NewMessage(schemaID, m, now)
	}
	return db.BatchCreateMessages(ctx, messages)
}

func buildFilter(f models.Filter) bson.M {
	filter := bson.M{}
	if f.SchemaID != nil {
		filter["schema_id"] = *f.SchemaID
	}
	if f.ProviderMsaID != nil {
		filter["provider_msa_id"] = *f.ProviderMsaID
	}
	if f.FromBlock > 0 || f.ToBlock > 0 {
		blocks := bson.M{"$gte": f.FromBlock}
		if f.ToBlock > 0 {
			blocks["$lt"] = f.ToBlock
		}
		filter["block_number"] = blocks
	}
	return filter
}

// GetMessages returns one page of messages in chain order. page starts at 1.
func (db *Database) GetMessages(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error) {
	collection := db.collection(messagesCollection)
	mongoFilter := buildFilter(filter)

	total, err := collection.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{
			{Key: "schema_id", Value: 1},
			{Key: "block_number", Value: 1},
			{Key: "index", Value: 1},
		}).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)

	cursor, err := collection.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return &models.PaginatedResult{
		Items:      messages,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
