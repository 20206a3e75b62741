package document

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID addresses a document within a collection. It is either an ObjectID or an
// opaque string key chosen by the caller.
type ID struct {
	oid    primitive.ObjectID
	str    string
	native bool
}

// ResolveID parses s as an ObjectID when it is one, otherwise keeps it as a
// string key.
func ResolveID(s string) ID {
	if primitive.IsValidObjectID(s) {
		oid, err := primitive.ObjectIDFromHex(s)
		if err == nil {
			return ID{oid: oid, native: true}
		}
	}
	return ID{str: s}
}

// ObjectIDKey wraps an already minted ObjectID.
func ObjectIDKey(oid primitive.ObjectID) ID {
	return ID{oid: oid, native: true}
}

func (id ID) IsObjectID() bool { return id.native }

// Value is the representation stored under _id.
func (id ID) Value() interface{} {
	if id.native {
		return id.oid
	}
	return id.str
}

func (id ID) String() string {
	if id.native {
		return id.oid.Hex()
	}
	return id.str
}

// Filter matches the document with this identifier.
func (id ID) Filter() bson.D {
	return bson.D{{Key: FieldID, Value: id.Value()}}
}
