package repository

import (
	"context"

	"github.com/arzan03/cloudvault/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoFiles struct {
	coll *mongo.Collection
}

func (r *MongoFiles) Create(ctx context.Context, f *models.File) error {
	_, err := r.coll.InsertOne(ctx, f)
	return insertErr(err)
}

func (r *MongoFiles) FindByID(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	return findOne[models.File](ctx, r.coll, bson.M{"_id": id})
}

func (r *MongoFiles) ListByOwner(ctx context.Context, owner primitive.ObjectID, folderID *primitive.ObjectID) ([]models.File, error) {
	filter := bson.M{"owner": owner}
	if folderID != nil {
		filter["folder_id"] = *folderID
	}
	return findAll[models.File](ctx, r.coll, filter, options.Find().SetSort(newestFirst))
}

func (r *MongoFiles) ListInFolders(ctx context.Context, folderIDs []primitive.ObjectID) ([]models.File, error) {
	if len(folderIDs) == 0 {
		return []models.File{}, nil
	}
	return findAll[models.File](ctx, r.coll, bson.M{"folder_id": bson.M{"$in": folderIDs}})
}

func (r *MongoFiles) List(ctx context.Context) ([]models.File, error) {
	return findAll[models.File](ctx, r.coll, bson.M{}, options.Find().SetSort(newestFirst))
}

func (r *MongoFiles) Update(ctx context.Context, f *models.File) error {
	return replaceByID(ctx, r.coll, f.ID, f)
}

// Delete is idempotent: deleting a missing file is not an error.
func (r *MongoFiles) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
