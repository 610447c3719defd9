package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"document-qa-platform/internal/errs"
	"document-qa-platform/models"
)

// MongoStore implements the document and chunk stores on one MongoDB
// database.
type MongoStore struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		documents: db.Collection("documents"),
		chunks:    db.Collection("document_chunks"),
	}
}

// MongoKnowledgeStore implements KnowledgeStore.
type MongoKnowledgeStore struct {
	knowledge *mongo.Collection
}

func NewMongoKnowledgeStore(client *mongo.Client, dbName string) *MongoKnowledgeStore {
	return &MongoKnowledgeStore{
		knowledge: client.Database(dbName).Collection("knowledge_chunks"),
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.NewValidationError("id", "malformed id: "+id)
	}
	return oid, nil
}

// --- DocumentStore ---

func (s *MongoStore) Insert(ctx context.Context, doc *models.Document) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		return errs.NewStorageError("insert document", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = s.documents.FindOne(ctx, bson.M{"_id": oid, "owner_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NewNotFoundError("document", id)
	}
	if err != nil {
		return nil, errs.NewStorageError("get document", err)
	}
	return &doc, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = s.documents.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NewNotFoundError("document", id)
	}
	if err != nil {
		return nil, errs.NewStorageError("get document", err)
	}
	return &doc, nil
}

func (s *MongoStore) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return nil, errs.NewStorageError("list documents", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errs.NewStorageError("list documents", err)
	}
	return docs, nil
}

func (s *MongoStore) Delete(ctx context.Context, ownerID, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": oid, "owner_id": ownerID})
	if err != nil {
		return errs.NewStorageError("delete document", err)
	}
	if res.DeletedCount == 0 {
		return errs.NewNotFoundError("document", id)
	}
	return nil
}

// MarkProcessing claims the document with a compare-and-set: only one
// concurrent caller sees the pending (or error) state and wins.
func (s *MongoStore) MarkProcessing(ctx context.Context, id string) (*models.Document, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	filter := bson.M{
		"_id":    oid,
		"status": bson.M{"$in": bson.A{models.StatusPending, models.StatusError}},
	}
	update := bson.M{"$set": bson.M{
		"status":                models.StatusProcessing,
		"processing_started_at": now,
		"error_message":         "",
	}}

	var doc models.Document
	err = s.documents.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, errs.NewStorageError("mark processing", err)
	}
	return &doc, nil
}

func (s *MongoStore) MarkReady(ctx context.Context, id string, chunkCount int, degraded bool) error {
	return s.finishProcessing(ctx, id, bson.M{
		"status":        models.StatusReady,
		"chunk_count":   chunkCount,
		"degraded":      degraded,
		"error_message": "",
		"processed_at":  time.Now(),
	})
}

func (s *MongoStore) MarkError(ctx context.Context, id, message string) error {
	return s.finishProcessing(ctx, id, bson.M{
		"status":        models.StatusError,
		"error_message": message,
		"processed_at":  time.Now(),
	})
}

func (s *MongoStore) finishProcessing(ctx context.Context, id string, set bson.M) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": oid, "status": models.StatusProcessing},
		bson.M{"$set": set})
	if err != nil {
		return errs.NewStorageError("finish processing", err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

func (s *MongoStore) FailStaleProcessing(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	res, err := s.documents.UpdateMany(ctx,
		bson.M{
			"status":                models.StatusProcessing,
			"processing_started_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":        models.StatusError,
			"error_message": message,
			"processed_at":  time.Now(),
		}})
	if err != nil {
		return 0, errs.NewStorageError("fail stale processing", err)
	}
	return res.ModifiedCount, nil
}

// --- ChunkStore ---

func (s *MongoStore) InsertBatch(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	now := time.Now()
	for i := range chunks {
		if chunks[i].ID.IsZero() {
			chunks[i].ID = primitive.NewObjectID()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
		docs[i] = chunks[i]
	}
	if _, err := s.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return errs.NewStorageError("insert chunk batch", err)
	}
	return nil
}

func (s *MongoStore) DeleteByDocument(ctx context.Context, documentID string) error {
	oid, err := parseObjectID(documentID)
	if err != nil {
		return err
	}
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": oid}); err != nil {
		return errs.NewStorageError("delete document chunks", err)
	}
	return nil
}

func (s *MongoStore) ByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	oid, err := parseObjectID(documentID)
	if err != nil {
		return nil, err
	}
	return s.findChunks(ctx, bson.M{"document_id": oid})
}

func (s *MongoStore) ByOwner(ctx context.Context, ownerID string) ([]models.DocumentChunk, error) {
	return s.findChunks(ctx, bson.M{"owner_id": ownerID})
}

func (s *MongoStore) findChunks(ctx context.Context, filter bson.M) ([]models.DocumentChunk, error) {
	cursor, err := s.chunks.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "document_id", Value: 1}, {Key: "ordinal", Value: 1}}))
	if err != nil {
		return nil, errs.NewStorageError("find chunks", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.DocumentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, errs.NewStorageError("find chunks", err)
	}
	return chunks, nil
}

// --- KnowledgeStore ---

func (s *MongoKnowledgeStore) Insert(ctx context.Context, chunk *models.KnowledgeChunk) error {
	if chunk.ID.IsZero() {
		chunk.ID = primitive.NewObjectID()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	if _, err := s.knowledge.InsertOne(ctx, chunk); err != nil {
		return errs.NewStorageError("insert knowledge chunk", err)
	}
	return nil
}

func (s *MongoKnowledgeStore) InsertBatch(ctx context.Context, chunks []models.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	now := time.Now()
	for i := range chunks {
		if chunks[i].ID.IsZero() {
			chunks[i].ID = primitive.NewObjectID()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
		docs[i] = chunks[i]
	}
	if _, err := s.knowledge.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return errs.NewStorageError("insert knowledge batch", err)
	}
	return nil
}

func (s *MongoKnowledgeStore) ByAssistant(ctx context.Context, assistantID string) ([]models.KnowledgeChunk, error) {
	oid, err := parseObjectID(assistantID)
	if err != nil {
		return nil, err
	}

	cursor, err := s.knowledge.Find(ctx, bson.M{"assistant_id": oid},
		options.Find().SetSort(bson.D{{Key: "ordinal", Value: 1}}))
	if err != nil {
		return nil, errs.NewStorageError("find knowledge chunks", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.KnowledgeChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, errs.NewStorageError("find knowledge chunks", err)
	}
	return chunks, nil
}

func (s *MongoKnowledgeStore) MaxOrdinal(ctx context.Context, assistantID string) (int, error) {
	oid, err := parseObjectID(assistantID)
	if err != nil {
		return -1, err
	}

	var top models.KnowledgeChunk
	err = s.knowledge.FindOne(ctx, bson.M{"assistant_id": oid},
		options.FindOne().SetSort(bson.D{{Key: "ordinal", Value: -1}})).Decode(&top)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return -1, nil
	}
	if err != nil {
		return -1, errs.NewStorageError("max ordinal", err)
	}
	return top.Ordinal, nil
}

var (
	_ DocumentStore  = (*MongoStore)(nil)
	_ ChunkStore     = (*MongoStore)(nil)
	_ KnowledgeStore = (*MongoKnowledgeStore)(nil)
)
