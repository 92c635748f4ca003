package value

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peternagy/mongobrowse/internal/core"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Parse reads text as a value of the given kind. The kind of the result is
// always kind; containers and binaries cannot be parsed from text.
func Parse(kind Kind, text string) (Value, error) {
	fail := func(reason string) (Value, error) {
		return Value{}, &core.ValueParseError{Kind: kind.String(), Input: text, Reason: reason}
	}

	switch kind {
	case KindNull:
		if strings.TrimSpace(text) == "null" {
			return Null(), nil
		}
		return fail("only null is accepted")
	case KindBool:
		switch strings.TrimSpace(text) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return fail("expected true or false")
	case KindInt32:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return fail(numError(err))
		}
		return Int32(int32(n)), nil
	case KindInt64:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return fail(numError(err))
		}
		return Int64(n), nil
	case KindDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return fail(numError(err))
		}
		return Double(f), nil
	case KindString:
		return String(text), nil
	case KindDate:
		trimmed := strings.TrimSpace(text)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return Date(primitive.NewDateTimeFromTime(t)), nil
			}
		}
		return fail("expected an ISO-8601 date")
	case KindObjectID:
		oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(text))
		if err != nil {
			return fail("expected 24 hex characters")
		}
		return ObjectID(oid), nil
	}
	return fail("value is not editable as text")
}

func numError(err error) string {
	if errors.Is(err, strconv.ErrRange) {
		return "out of range"
	}
	return "not a valid number"
}

// Infer guesses a value from free text typed for a new key or list element:
// null, booleans, integers (int32 when they fit), doubles, extended JSON
// documents and arrays, or a plain string. Surrounding double quotes force a
// string.
func Infer(text string) Value {
	trimmed := strings.TrimSpace(text)
	switch trimmed {
	case "null":
		return Null()
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if n >= -1<<31 && n <= 1<<31-1 {
			return Int32(int32(n))
		}
		return Int64(n)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Double(f)
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		if s, err := strconv.Unquote(trimmed); err == nil {
			return String(s)
		}
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var wrapped bson.D
		if err := bson.UnmarshalExtJSON([]byte(`{"v":`+trimmed+`}`), false, &wrapped); err == nil && len(wrapped) == 1 {
			return Classify(wrapped[0].Value)
		}
	}
	return String(text)
}
