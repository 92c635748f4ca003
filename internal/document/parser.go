package document

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peternagy/mongobrowse/internal/bsonutil"
	"github.com/peternagy/mongobrowse/internal/query"
	"github.com/peternagy/mongobrowse/internal/value"
)

// ParseDocumentID converts user text to an _id value.
// Accepts: extended JSON, shell syntax such as ObjectId("..."), an ObjectID
// hex string, or a plain string.
func ParseDocumentID(text string) interface{} {
	text = strings.TrimSpace(text)
	normalized := query.NormalizeShellSyntax(text)

	if strings.HasPrefix(normalized, "{") {
		// Decoding into a document converts extended JSON wrappers such as
		// $numberLong; decoding into interface{} would not.
		wrapped := fmt.Sprintf(`{"_id": %s}`, normalized)
		var doc bson.D
		if err := bson.UnmarshalExtJSON([]byte(wrapped), false, &doc); err == nil {
			if id, ok := bsonutil.Lookup(doc, "_id"); ok {
				return id
			}
		}
	}

	if oid, err := primitive.ObjectIDFromHex(text); err == nil {
		return oid
	}

	return text
}

// DocumentID returns the _id of doc.
func DocumentID(doc bson.D) (interface{}, bool) {
	return bsonutil.Lookup(doc, "_id")
}

// FormatDocumentID renders an _id for display and logs.
func FormatDocumentID(id interface{}) string {
	return value.Classify(id).Format()
}
