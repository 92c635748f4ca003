package value

import (
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// CannotDisplay is shown for binary and unsupported values.
const CannotDisplay = "cannot display value"

// DateLayout is the layout dates are displayed and preferably parsed with.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Format returns the display text of v.
func (v Value) Format() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindDate:
		return v.date.Time().UTC().Format(DateLayout)
	case KindObjectID:
		return v.oid.Hex()
	case KindBinary:
		return CannotDisplay
	case KindDocument:
		return marshalRelaxed(v.Document())
	case KindList:
		text := marshalRelaxed(bson.D{{Key: "v", Value: v.Interface()}})
		if text == CannotDisplay {
			return text
		}
		return strings.TrimSuffix(strings.TrimPrefix(text, `{"v":`), "}")
	}
	return ""
}

// String implements fmt.Stringer.
func (v Value) String() string {
	return v.Format()
}

func marshalRelaxed(doc bson.D) string {
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return CannotDisplay
	}
	return string(b)
}

// FormatTime renders t with DateLayout in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
