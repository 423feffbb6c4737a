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

const (
	ordersCollection = "orders"
	defaultPageSize  = 10
)

type OrderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{collection: db.Collection(ordersCollection)}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	order.ID = primitive.NewObjectID()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		order.ID = primitive.NilObjectID
		return handleDatabaseError(err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	return &order, nil
}

func (r *OrderRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Order, error) {
	fields := bson.M{}
	for k, v := range set {
		fields[k] = v
	}
	fields["updatedAt"] = time.Now().UTC().Truncate(time.Millisecond)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var order models.Order
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&order)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	return &order, nil
}

func (r *OrderRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return handleDatabaseError(err)
	}

	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}

	return nil
}

// FindMany returns one page of orders, newest first. Pages start at 1.
func (r *OrderRepository) FindMany(ctx context.Context, filter models.OrderFilter, page, pageSize int64) (*models.OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	query := orderQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, handleDatabaseError(err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, handleDatabaseError(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}

	return &models.OrderPage{
		Total:      total,
		Page:       page,
		TotalPages: (total + pageSize - 1) / pageSize,
		Data:       orders,
	}, nil
}

// Stats counts all orders and sums the totals of completed ones.
func (r *OrderRepository) Stats(ctx context.Context) (*models.OrderStats, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, handleDatabaseError(err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.StatusCompleted}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "revenue": bson.M{"$sum": "$total"}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, handleDatabaseError(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Revenue float64 `bson:"revenue"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, handleDatabaseError(err)
	}

	stats := &models.OrderStats{TotalOrders: count}
	if len(rows) > 0 {
		stats.TotalRevenue = rows[0].Revenue
	}
	return stats, nil
}

func orderQuery(filter models.OrderFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.CustomerEmail != "" {
		query["customerInfo.email"] = filter.CustomerEmail
	}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		query["createdAt"] = created
	}
	return query
}
