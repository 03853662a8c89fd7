package repository

import (
	"context"

	"github.com/arzan03/cloudvault/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoActivityLogs only ever inserts; there is no update or delete path.
type MongoActivityLogs struct {
	coll *mongo.Collection
}

func (r *MongoActivityLogs) Insert(ctx context.Context, entry *models.ActivityLog) error {
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}

func (r *MongoActivityLogs) InsertMany(ctx context.Context, entries []*models.ActivityLog) error {
	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}

func (r *MongoActivityLogs) Find(ctx context.Context, filter LogFilter, page Page) ([]models.ActivityLog, error) {
	opts := options.Find().SetSort(newestFirst)
	if page.Limit > 0 {
		opts.SetSkip(page.Skip()).SetLimit(int64(page.Limit))
	}
	return findAll[models.ActivityLog](ctx, r.coll, logQuery(filter), opts)
}

func (r *MongoActivityLogs) Count(ctx context.Context, filter LogFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, logQuery(filter))
}

func logQuery(f LogFilter) bson.M {
	q := bson.M{}
	if f.ShareIDs != nil {
		q["share_id"] = bson.M{"$in": f.ShareIDs}
	}
	if f.AccessedBy != nil {
		q["accessed_by"] = *f.AccessedBy
	}
	if f.Action != "" {
		q["action"] = f.Action
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = *f.From
		}
		if f.To != nil {
			rng["$lte"] = *f.To
		}
		q["created_at"] = rng
	}
	return q
}
