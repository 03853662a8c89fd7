package repository

import (
	"context"

	"github.com/arzan03/cloudvault/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoFolders struct {
	coll *mongo.Collection
}

func (r *MongoFolders) Create(ctx context.Context, f *models.Folder) error {
	_, err := r.coll.InsertOne(ctx, f)
	return insertErr(err)
}

func (r *MongoFolders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error) {
	return findOne[models.Folder](ctx, r.coll, bson.M{"_id": id})
}

func (r *MongoFolders) FindByName(ctx context.Context, owner primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error) {
	return findOne[models.Folder](ctx, r.coll, bson.M{"owner": owner, "parent_id": parentID, "name": name})
}

func (r *MongoFolders) ListChildren(ctx context.Context, owner primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error) {
	filter := bson.M{"owner": owner, "parent_id": parentID}
	return findAll[models.Folder](ctx, r.coll, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *MongoFolders) Update(ctx context.Context, f *models.Folder) error {
	return replaceByID(ctx, r.coll, f.ID, f)
}

func (r *MongoFolders) DeleteMany(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}
