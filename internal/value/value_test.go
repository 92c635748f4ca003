package value

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peternagy/mongobrowse/internal/core"
)

func TestClassifyKinds(t *testing.T) {
	oid := primitive.NewObjectID()
	now := primitive.NewDateTimeFromTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		in   interface{}
		want Kind
	}{
		{"nil", nil, KindNull},
		{"primitive null", primitive.Null{}, KindNull},
		{"bool", true, KindBool},
		{"int32", int32(25), KindInt32},
		{"int64", int64(25), KindInt64},
		{"int", 25, KindInt64},
		{"double", 2.5, KindDouble},
		{"string", "Paul", KindString},
		{"date", now, KindDate},
		{"time", time.Now(), KindDate},
		{"binary", primitive.Binary{Subtype: 4, Data: []byte{1, 2}}, KindBinary},
		{"bytes", []byte{0xff}, KindBinary},
		{"object id", oid, KindObjectID},
		{"document", bson.D{{Key: "a", Value: 1}}, KindDocument},
		{"map", bson.M{"a": 1}, KindDocument},
		{"array", bson.A{1, 2}, KindList},
		{"slice", []interface{}{"x"}, KindList},
		{"regex (unsupported)", primitive.Regex{Pattern: "^a"}, KindBinary},
		{"decimal (unsupported)", primitive.NewDecimal128(1, 2), KindBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in).Kind(); got != tt.want {
				t.Errorf("Classify(%v).Kind() = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpaqueValueKeepsRaw(t *testing.T) {
	re := primitive.Regex{Pattern: "^dev", Options: "i"}
	v := Classify(re)

	if !v.IsOpaque() {
		t.Fatal("regex should classify as opaque")
	}
	if v.Format() != CannotDisplay {
		t.Errorf("Format() = %q, want %q", v.Format(), CannotDisplay)
	}
	if !reflect.DeepEqual(v.Interface(), re) {
		t.Errorf("Interface() = %v, want original regex", v.Interface())
	}
}

func TestNumericWidthPreserved(t *testing.T) {
	doc := bson.D{
		{Key: "small", Value: int32(7)},
		{Key: "big", Value: int64(7)},
		{Key: "float", Value: float64(7)},
	}
	back := FromDocument(doc).Document()
	if !reflect.DeepEqual(doc, back) {
		t.Errorf("round trip changed numeric widths: %#v", back)
	}
}

func TestEqualIsStructural(t *testing.T) {
	a := Document(Field{Key: "x", Value: List(Int32(1), String("a"))})
	b := Document(Field{Key: "x", Value: List(Int32(1), String("a"))})
	c := Document(Field{Key: "x", Value: List(Int64(1), String("a"))})

	if !a.Equal(b) {
		t.Error("identical structures should be equal")
	}
	if a.Equal(c) {
		t.Error("int32 and int64 must not compare equal")
	}
	reordered := Document(Field{Key: "b", Value: Null()}, Field{Key: "a", Value: Null()})
	ordered := Document(Field{Key: "a", Value: Null()}, Field{Key: "b", Value: Null()})
	if reordered.Equal(ordered) {
		t.Error("documents with different key order must not be equal")
	}
}

func TestFormat(t *testing.T) {
	oid, _ := primitive.ObjectIDFromHex("5f1d7e2c9b1e8a3f4c2d1b0a")
	date := primitive.NewDateTimeFromTime(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))

	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null(), "null"},
		{"bool", Bool(false), "false"},
		{"int32", Int32(-3), "-3"},
		{"int64", Int64(9000000000), "9000000000"},
		{"double", Double(2.5), "2.5"},
		{"string", String("Paul"), "Paul"},
		{"date", Date(date), "2024-05-01T10:30:00.000Z"},
		{"object id", ObjectID(oid), "5f1d7e2c9b1e8a3f4c2d1b0a"},
		{"binary", Binary(primitive.Binary{Data: []byte{1}}), CannotDisplay},
		{"document", Document(Field{Key: "name", Value: String("Paul")}), `{"name":"Paul"}`},
		{"list", List(Int32(1), String("a")), `[1,"a"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		text    string
		want    Value
		wantErr bool
	}{
		{"bool true", KindBool, "true", Bool(true), false},
		{"bool false", KindBool, "false", Bool(false), false},
		{"bool garbage", KindBool, "notabool", Value{}, true},
		{"bool capitalised", KindBool, "True", Value{}, true},
		{"bool padded", KindBool, " true", Bool(true), false},
		{"int32", KindInt32, "42", Int32(42), false},
		{"int32 overflow", KindInt32, "3000000000", Value{}, true},
		{"int32 float", KindInt32, "4.2", Value{}, true},
		{"int64", KindInt64, "3000000000", Int64(3000000000), false},
		{"double", KindDouble, "2.75", Double(2.75), false},
		{"double garbage", KindDouble, "abc", Value{}, true},
		{"string", KindString, "anything at all", String("anything at all"), false},
		{"null", KindNull, "null", Null(), false},
		{"null other", KindNull, "nil", Value{}, true},
		{"null padded", KindNull, " null ", Null(), false},
		{"object id", KindObjectID, "zz", Value{}, true},
		{"document", KindDocument, "{}", Value{}, true},
		{"binary", KindBinary, "AAAA", Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.kind, tt.text)
			if tt.wantErr {
				var pe *core.ValueParseError
				if !errors.As(err, &pe) {
					t.Fatalf("Parse(%s, %q) error = %v, want ValueParseError", tt.kind, tt.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%s, %q) unexpected error: %v", tt.kind, tt.text, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%s, %q) = %v, want %v", tt.kind, tt.text, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	v, err := Parse(KindDate, "2024-05-01T10:30:00.000Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Format() != "2024-05-01T10:30:00.000Z" {
		t.Errorf("Format() = %q", v.Format())
	}
	if _, err := Parse(KindDate, "2024-05-01"); err != nil {
		t.Errorf("date-only input rejected: %v", err)
	}
	if _, err := Parse(KindDate, "yesterday"); err == nil {
		t.Error("expected error for non-date text")
	}
}

func TestInfer(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"null", KindNull},
		{"true", KindBool},
		{"12", KindInt32},
		{"12345678901", KindInt64},
		{"1.5", KindDouble},
		{`"12"`, KindString},
		{"hello", KindString},
		{`{"a": 1}`, KindDocument},
		{`[1, 2]`, KindList},
		{`{"$oid": "5f1d7e2c9b1e8a3f4c2d1b0a"}`, KindObjectID},
		{"{broken", KindString},
	}
	for _, tt := range tests {
		if got := Infer(tt.in).Kind(); got != tt.want {
			t.Errorf("Infer(%q).Kind() = %s, want %s", tt.in, got, tt.want)
		}
	}
}
