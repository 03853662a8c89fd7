package repository

import (
	"context"

	"github.com/arzan03/cloudvault/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoShares struct {
	coll *mongo.Collection
}

func (r *MongoShares) Create(ctx context.Context, s *models.Share) error {
	_, err := r.coll.InsertOne(ctx, s)
	return insertErr(err)
}

func (r *MongoShares) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Share, error) {
	return findOne[models.Share](ctx, r.coll, bson.M{"_id": id})
}

func (r *MongoShares) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Share, error) {
	return findAll[models.Share](ctx, r.coll, bson.M{"created_by": owner}, options.Find().SetSort(newestFirst))
}

func (r *MongoShares) ListAllocatedTo(ctx context.Context, userID primitive.ObjectID) ([]models.Share, error) {
	// allocated_to is an array; equality matches any element.
	return findAll[models.Share](ctx, r.coll, bson.M{"allocated_to": userID}, options.Find().SetSort(newestFirst))
}
