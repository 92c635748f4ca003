// Package bsonutil provides shared BSON conversion helpers.
// Server replies report the same numeric field as int32, int64 or float64
// depending on magnitude and server version; these helpers normalise them
// without panicking on unexpected types.
package bsonutil

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToString converts a BSON value to string. Returns "" for nil.
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case primitive.ObjectID:
		return s.Hex()
	case bool:
		return strconv.FormatBool(s)
	case int32, int64, float64, int:
		return FormatNumber(s)
	default:
		return ""
	}
}

// ToInt64 converts a BSON numeric value to int64. Returns 0 for nil or
// unrecognised types.
func ToInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// ToFloat64 converts a BSON numeric value to float64. Returns 0 for nil or
// unrecognised types.
func ToFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// ToBool converts a BSON value to bool. Returns false for nil or non-bool types.
func ToBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

// IsNumber reports whether v is one of the numeric types a server reply can carry.
func IsNumber(v interface{}) bool {
	switch v.(type) {
	case int32, int64, float64, int:
		return true
	}
	return false
}

// FormatNumber renders a numeric value as literal text. Integral types print
// as decimal integers; doubles use the shortest representation. Non-numeric
// values render as "0".
func FormatNumber(v interface{}) string {
	switch n := v.(type) {
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return "0"
	}
}

// Lookup returns the value stored under key in an ordered document.
func Lookup(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Int64FromDoc extracts an int64 value from a document by key.
// Returns 0 if the key is missing or the value is not numeric.
func Int64FromDoc(doc bson.D, key string) int64 {
	v, _ := Lookup(doc, key)
	return ToInt64(v)
}

// BoolFromDoc extracts a bool value from a document by key.
// Returns false if the key is missing or the value is not bool.
func BoolFromDoc(doc bson.D, key string) bool {
	v, _ := Lookup(doc, key)
	return ToBool(v)
}

// DocFromDoc extracts a nested document by key. bson.M values are accepted
// but lose their key order.
func DocFromDoc(doc bson.D, key string) (bson.D, bool) {
	v, ok := Lookup(doc, key)
	if !ok {
		return nil, false
	}
	switch d := v.(type) {
	case bson.D:
		return d, true
	case bson.M:
		out := make(bson.D, 0, len(d))
		for k, val := range d {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, true
	}
	return nil, false
}
