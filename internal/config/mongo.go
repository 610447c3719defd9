package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Documents collection indexes
	documentsCollection := db.Collection("documents")
	documentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "name", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "processing_started_at", Value: 1}},
		},
	}
	_, err := documentsCollection.Indexes().CreateMany(context.Background(), documentIndexes)
	if err != nil {
		return err
	}

	// Document chunks collection indexes
	chunksCollection := db.Collection("document_chunks")
	chunkIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "ordinal", Value: 1}}},
	}
	_, err = chunksCollection.Indexes().CreateMany(context.Background(), chunkIndexes)
	if err != nil {
		return err
	}

	// Knowledge chunks collection indexes
	knowledgeCollection := db.Collection("knowledge_chunks")
	knowledgeIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "assistant_id", Value: 1}, {Key: "ordinal", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	}
	_, err = knowledgeCollection.Indexes().CreateMany(context.Background(), knowledgeIndexes)
	if err != nil {
		return err
	}

	return nil
}
