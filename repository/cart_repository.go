package repository

import (
	"context"
	"time"

	"github.com/storefront/commerce-backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CartRepository defines the interface for cart data access. A cart is one
// document per user (unique index on user_id), created lazily and emptied
// rather than deleted.
type CartRepository interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Clear(ctx context.Context, userID string) error
}

// MongoCartRepository implements CartRepository on the carts collection
type MongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{collection: db.Collection("carts")}
}

// Get returns the user's cart, creating an empty one on first access.
// The upsert makes the lazy create idempotent under concurrent first calls.
func (r *MongoCartRepository) Get(ctx context.Context, userID string) (*models.Cart, error) {
	now := time.Now().UTC()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":      userID,
			"items":        []models.CartItem{},
			"total_amount": 0.0,
			"created_at":   now,
			"updated_at":   now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var cart models.Cart
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

// Save persists the cart with its total recomputed from the items. The
// whole document is replaced in one write, so items and total can never
// drift apart.
func (r *MongoCartRepository) Save(ctx context.Context, cart *models.Cart) error {
	cart.RecomputeTotal()
	cart.UpdatedAt = time.Now().UTC()

	_, err := r.collection.ReplaceOne(ctx, bson.M{"user_id": cart.UserID}, cart)
	return err
}

// Clear empties the cart in place. It does not read the cart first, so it
// succeeds regardless of what another process did to the items, and the
// document itself stays present.
func (r *MongoCartRepository) Clear(ctx context.Context, userID string) error {
	update := bson.M{
		"$set": bson.M{
			"items":        []models.CartItem{},
			"total_amount": 0.0,
			"updated_at":   time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
