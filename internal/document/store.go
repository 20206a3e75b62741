package document

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Store resolves collections by database and collection name.
type Store interface {
	Exists(ctx context.Context, db, coll string) (bool, error)
	Collection(db, coll string) Collection
}

// Collection is the set of single-document atomic primitives the service
// relies on. The FindOneAnd* methods return the document as it was before the
// mutation, or nil when nothing matched.
type Collection interface {
	FullName() string
	FindOne(ctx context.Context, filter bson.D) (Document, error)
	FindOneAndUpdate(ctx context.Context, filter, update bson.D, upsert bool) (Document, error)
	// A nil projection returns the whole previous document. The service always
	// passes nil because the guard and rollback need the full previous version;
	// a non-nil projection keeps _id plus the named fields.
	FindOneAndReplace(ctx context.Context, filter bson.D, replacement Document, upsert bool, projection []string) (Document, error)
	FindOneAndDelete(ctx context.Context, filter bson.D) (Document, error)
	UpdateOne(ctx context.Context, filter, update bson.D, upsert bool) error
	ReplaceOne(ctx context.Context, filter bson.D, replacement Document, upsert bool) error
}
