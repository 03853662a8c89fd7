package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection        = "users"
	FilesCollection        = "files"
	FoldersCollection      = "folders"
	SharesCollection       = "shares"
	ActivityLogsCollection = "activity_logs"
)

// NewMongoStore wires every repository to its collection in db.
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:        &MongoUsers{coll: db.Collection(UsersCollection)},
		Files:        &MongoFiles{coll: db.Collection(FilesCollection)},
		Folders:      &MongoFolders{coll: db.Collection(FoldersCollection)},
		Shares:       &MongoShares{coll: db.Collection(SharesCollection)},
		ActivityLogs: &MongoActivityLogs{coll: db.Collection(ActivityLogsCollection)},
	}
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func replaceByID(ctx context.Context, coll *mongo.Collection, id any, doc any) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return insertErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func insertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}
