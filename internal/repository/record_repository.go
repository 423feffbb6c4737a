package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// RecordRepository stores catalog records of one kind in their own collection.
type RecordRepository struct {
	collection *mongo.Collection
}

func NewRecordRepository(db *mongo.Database, kind models.RecordKind) *RecordRepository {
	return &RecordRepository{collection: db.Collection(kind.Collection)}
}

func (r *RecordRepository) Insert(ctx context.Context, record *models.CatalogRecord) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	record.ID = primitive.NewObjectID()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Fields == nil {
		record.Fields = map[string]interface{}{}
	}

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		record.ID = primitive.NilObjectID
		return handleDatabaseError(err)
	}
	return nil
}

func (r *RecordRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CatalogRecord, error) {
	var record models.CatalogRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	return &record, nil
}

func (r *RecordRepository) FindAll(ctx context.Context) ([]models.CatalogRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	var records []models.CatalogRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, handleDatabaseError(err)
	}

	if records == nil {
		records = []models.CatalogRecord{}
	}

	return records, nil
}

// UpdateByID merges set into the record and returns the document as it is after the update.
func (r *RecordRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.CatalogRecord, error) {
	fields := bson.M{}
	for k, v := range set {
		fields[k] = v
	}
	fields["updatedAt"] = time.Now().UTC().Truncate(time.Millisecond)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record models.CatalogRecord
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&record)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	return &record, nil
}

func (r *RecordRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return handleDatabaseError(err)
	}

	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateMany applies set to every record in ids. Unknown ids are simply not matched.
func (r *RecordRepository) UpdateMany(ctx context.Context, ids []primitive.ObjectID, set bson.M) (models.BulkResult, error) {
	fields := bson.M{}
	for k, v := range set {
		fields[k] = v
	}
	fields["updatedAt"] = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, bson.M{"$set": fields})
	if err != nil {
		return models.BulkResult{}, handleDatabaseError(err)
	}
	return models.BulkResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
	}, nil
}

