package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogotex/docstore/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements document.Store on a shared, pooled mongo client.
type MongoStore struct {
	client *mongo.Client
}

func NewMongoStore(client *mongo.Client) *MongoStore {
	return &MongoStore{client: client}
}

func (s *MongoStore) Exists(ctx context.Context, db, coll string) (bool, error) {
	names, err := s.client.Database(db).ListCollectionNames(ctx, bson.D{{Key: "name", Value: coll}})
	if err != nil {
		return false, fmt.Errorf("list collections %s: %w", db, err)
	}
	return len(names) > 0, nil
}

func (s *MongoStore) Collection(db, coll string) document.Collection {
	return &MongoCollection{col: s.client.Database(db).Collection(coll)}
}

// MongoCollection adapts *mongo.Collection to document.Collection.
type MongoCollection struct {
	col *mongo.Collection
}

func (m *MongoCollection) FullName() string {
	return m.col.Database().Name() + "." + m.col.Name()
}

func (m *MongoCollection) FindOne(ctx context.Context, filter bson.D) (document.Document, error) {
	return decodeSingle(m.col.FindOne(ctx, filter))
}

func (m *MongoCollection) FindOneAndUpdate(ctx context.Context, filter, update bson.D, upsert bool) (document.Document, error) {
	opts := options.FindOneAndUpdate().SetUpsert(upsert).SetReturnDocument(options.Before)
	return decodeSingle(m.col.FindOneAndUpdate(ctx, filter, update, opts))
}

func (m *MongoCollection) FindOneAndReplace(ctx context.Context, filter bson.D, replacement document.Document, upsert bool, projection []string) (document.Document, error) {
	opts := options.FindOneAndReplace().SetUpsert(upsert).SetReturnDocument(options.Before)
	if len(projection) > 0 {
		proj := bson.D{}
		for _, f := range projection {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		opts.SetProjection(proj)
	}
	return decodeSingle(m.col.FindOneAndReplace(ctx, filter, replacement, opts))
}

func (m *MongoCollection) FindOneAndDelete(ctx context.Context, filter bson.D) (document.Document, error) {
	return decodeSingle(m.col.FindOneAndDelete(ctx, filter))
}

func (m *MongoCollection) UpdateOne(ctx context.Context, filter, update bson.D, upsert bool) error {
	_, err := m.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	return err
}

func (m *MongoCollection) ReplaceOne(ctx context.Context, filter bson.D, replacement document.Document, upsert bool) error {
	_, err := m.col.ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(upsert))
	return err
}

// decodeSingle maps ErrNoDocuments to (nil, nil).
func decodeSingle(res *mongo.SingleResult) (document.Document, error) {
	var d document.Document
	if err := res.Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}
