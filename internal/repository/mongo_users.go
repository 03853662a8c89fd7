package repository

import (
	"context"
	"regexp"

	"github.com/arzan03/cloudvault/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUsers struct {
	coll *mongo.Collection
}

func (r *MongoUsers) Create(ctx context.Context, u *models.User) error {
	_, err := r.coll.InsertOne(ctx, u)
	return insertErr(err)
}

func (r *MongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"_id": id})
}

func (r *MongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"email": email})
}

func (r *MongoUsers) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return findAll[models.User](ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *MongoUsers) List(ctx context.Context) ([]models.User, error) {
	return findAll[models.User](ctx, r.coll, bson.M{}, options.Find().SetSort(newestFirst))
}

func (r *MongoUsers) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}}
	opts := options.Find().
		SetProjection(bson.M{"password": 0}).
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit))
	return findAll[models.User](ctx, r.coll, filter, opts)
}

func (r *MongoUsers) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
