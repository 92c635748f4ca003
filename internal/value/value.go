// Package value defines the closed set of typed values a document can hold and the
// single classification step from raw driver values into that set.
package value

import (
	"bytes"
	"math"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindDate
	KindBinary
	KindObjectID
	KindDocument
	KindList
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindDouble:   "double",
	KindString:   "string",
	KindDate:     "date",
	KindBinary:   "binary",
	KindObjectID: "objectId",
	KindDocument: "document",
	KindList:     "list",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsContainer reports whether values of this kind hold children.
func (k Kind) IsContainer() bool {
	return k == KindDocument || k == KindList
}

// Field is one key/value pair of a document.
type Field struct {
	Key   string
	Value Value
}

// Value is a tagged variant. The zero Value is Null.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	date   primitive.DateTime
	bin    primitive.Binary
	oid    primitive.ObjectID
	fields []Field
	items  []Value
	raw    interface{} // set only for opaque binaries
}

func Null() Value                          { return Value{kind: KindNull} }
func Bool(b bool) Value                    { return Value{kind: KindBool, b: b} }
func Int32(i int32) Value                  { return Value{kind: KindInt32, i: int64(i)} }
func Int64(i int64) Value                  { return Value{kind: KindInt64, i: i} }
func Double(f float64) Value               { return Value{kind: KindDouble, f: f} }
func String(s string) Value                { return Value{kind: KindString, s: s} }
func Date(d primitive.DateTime) Value      { return Value{kind: KindDate, date: d} }
func Binary(b primitive.Binary) Value      { return Value{kind: KindBinary, bin: b} }
func ObjectID(id primitive.ObjectID) Value { return Value{kind: KindObjectID, oid: id} }

// Document builds a document value; fields keep the given order.
func Document(fields ...Field) Value {
	return Value{kind: KindDocument, fields: append([]Field{}, fields...)}
}

// List builds a list value; items keep the given order.
func List(items ...Value) Value {
	return Value{kind: KindList, items: append([]Value{}, items...)}
}

// Opaque wraps a driver value that has no dedicated variant. It is displayed
// as a binary placeholder but converts back to raw unchanged.
func Opaque(raw interface{}) Value {
	return Value{kind: KindBinary, raw: raw}
}

func (v Value) Kind() Kind { return v.kind }

// IsOpaque reports whether v wraps an unsupported driver value.
func (v Value) IsOpaque() bool { return v.kind == KindBinary && v.raw != nil }

func (v Value) Bool() bool                   { return v.b }
func (v Value) Int32() int32                 { return int32(v.i) }
func (v Value) Int64() int64                 { return v.i }
func (v Value) Double() float64              { return v.f }
func (v Value) Str() string                  { return v.s }
func (v Value) Date() primitive.DateTime     { return v.date }
func (v Value) Binary() primitive.Binary     { return v.bin }
func (v Value) ObjectID() primitive.ObjectID { return v.oid }

// Fields returns a copy of the document's fields.
func (v Value) Fields() []Field { return append([]Field{}, v.fields...) }

// Items returns a copy of the list's items.
func (v Value) Items() []Value { return append([]Value{}, v.items...) }

// Len returns the number of fields or items of a container, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindDocument:
		return len(v.fields)
	case KindList:
		return len(v.items)
	}
	return 0
}

// Get returns the value stored under key in a document.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Equal compares structurally. Documents compare key order as well as content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt32, KindInt64:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindDate:
		return v.date == o.date
	case KindObjectID:
		return v.oid == o.oid
	case KindBinary:
		if v.raw != nil || o.raw != nil {
			return reflect.DeepEqual(v.raw, o.raw)
		}
		return v.bin.Subtype == o.bin.Subtype && bytes.Equal(v.bin.Data, o.bin.Data)
	case KindDocument:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Key != o.fields[i].Key || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface returns the canonical driver representation of v.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindDouble:
		return v.f
	case KindString:
		return v.s
	case KindDate:
		return v.date
	case KindObjectID:
		return v.oid
	case KindBinary:
		if v.raw != nil {
			return v.raw
		}
		return v.bin
	case KindDocument:
		return v.Document()
	case KindList:
		arr := make(bson.A, len(v.items))
		for i, item := range v.items {
			arr[i] = item.Interface()
		}
		return arr
	}
	return nil
}

// Document converts a document value to bson.D. Non-documents yield nil.
func (v Value) Document() bson.D {
	if v.kind != KindDocument {
		return nil
	}
	doc := make(bson.D, len(v.fields))
	for i, f := range v.fields {
		doc[i] = bson.E{Key: f.Key, Value: f.Value.Interface()}
	}
	return doc
}
