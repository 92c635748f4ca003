package value

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Classify maps a loosely typed driver value onto its variant. Numeric widths
// are preserved; values without a variant become opaque binaries.
func Classify(raw interface{}) Value {
	switch v := raw.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return Null()
	case bool:
		return Bool(v)
	case int32:
		return Int32(v)
	case int64:
		return Int64(v)
	case int:
		return Int64(int64(v))
	case float64:
		return Double(v)
	case float32:
		return Double(float64(v))
	case string:
		return String(v)
	case primitive.DateTime:
		return Date(v)
	case time.Time:
		return Date(primitive.NewDateTimeFromTime(v))
	case primitive.Binary:
		return Binary(v)
	case []byte:
		return Binary(primitive.Binary{Data: v})
	case primitive.ObjectID:
		return ObjectID(v)
	case bson.D:
		return classifyDocument(v)
	case bson.M:
		return classifyMap(v)
	case map[string]interface{}:
		return classifyMap(v)
	case bson.A:
		return classifyList(v)
	case []interface{}:
		return classifyList(v)
	default:
		return Opaque(raw)
	}
}

// FromDocument classifies an ordered document.
func FromDocument(doc bson.D) Value {
	return classifyDocument(doc)
}

func classifyDocument(doc bson.D) Value {
	fields := make([]Field, len(doc))
	for i, e := range doc {
		fields[i] = Field{Key: e.Key, Value: Classify(e.Value)}
	}
	return Value{kind: KindDocument, fields: fields}
}

// Unordered maps carry no key order; keys are sorted so that classification
// is deterministic.
func classifyMap(m map[string]interface{}) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]Field, len(keys))
	for i, k := range keys {
		fields[i] = Field{Key: k, Value: Classify(m[k])}
	}
	return Value{kind: KindDocument, fields: fields}
}

func classifyList(items []interface{}) Value {
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = Classify(item)
	}
	return Value{kind: KindList, items: out}
}
