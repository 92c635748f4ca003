package tree

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/value"
)

func sampleDocument() bson.D {
	oid, _ := primitive.ObjectIDFromHex("5f1d7e2c9b1e8a3f4c2d1b0a")
	return bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "Paul"},
		{Key: "age", Value: int32(25)},
		{Key: "salary", Value: int64(120000)},
		{Key: "rating", Value: 4.5},
		{Key: "active", Value: true},
		{Key: "manager", Value: nil},
		{Key: "hired", Value: primitive.NewDateTimeFromTime(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))},
		{Key: "avatar", Value: primitive.Binary{Subtype: 0, Data: []byte{0x89, 0x50}}},
		{Key: "address", Value: bson.D{
			{Key: "city", Value: "Paris"},
			{Key: "geo", Value: bson.D{{Key: "lat", Value: 48.85}, {Key: "lng", Value: 2.35}}},
		}},
		{Key: "skills", Value: bson.A{"go", "mongo", int32(3)}},
		{Key: "projects", Value: bson.A{
			bson.D{{Key: "title", Value: "alpha"}},
			bson.A{int64(1), int64(2)},
			bson.A{},
		}},
		{Key: "meta", Value: bson.D{}},
	}
}

func TestRoundTrip(t *testing.T) {
	doc := sampleDocument()
	got := Build(doc).Rebuild()
	if !reflect.DeepEqual(doc, got) {
		t.Errorf("Rebuild(Build(d)) != d\n got: %#v\nwant: %#v", got, doc)
	}
}

func TestRoundTripEmptyDocument(t *testing.T) {
	doc := bson.D{}
	if got := Build(doc).Rebuild(); !reflect.DeepEqual(doc, got) {
		t.Errorf("empty document round trip = %#v", got)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	doc := sampleDocument()
	a, b := Build(doc), Build(doc)
	if a == b {
		t.Fatal("Build should produce a fresh tree")
	}
	if !a.Equal(b) {
		t.Error("two builds of the same document should be structurally equal")
	}
}

func TestListLabels(t *testing.T) {
	tr := Build(sampleDocument())
	skills, ok := tr.Find("skills")
	if !ok {
		t.Fatal("skills node not found")
	}
	var labels []string
	for _, c := range tr.Children(skills) {
		labels = append(labels, tr.Label(c))
	}
	if want := []string{"[0]", "[1]", "[2]"}; !reflect.DeepEqual(labels, want) {
		t.Errorf("labels = %v, want %v", labels, want)
	}
	if id, ok := tr.Find("address", "geo", "lat"); !ok || tr.Kind(id) != value.KindDouble {
		t.Errorf("nested lookup failed: %v %v", id, ok)
	}
}

func TestAddKey(t *testing.T) {
	tr := Build(bson.D{{Key: "name", Value: "Paul"}})

	if _, err := tr.AddKey(tr.Root(), "name", value.String("other")); err == nil {
		t.Fatal("expected DuplicateKeyError")
	} else {
		var dk *core.DuplicateKeyError
		if !errors.As(err, &dk) || dk.Key != "name" {
			t.Errorf("error = %v, want DuplicateKeyError for name", err)
		}
	}

	nested := value.Document(value.Field{Key: "street", Value: value.String("Main")})
	if _, err := tr.AddKey(tr.Root(), "address", nested); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	want := bson.D{
		{Key: "name", Value: "Paul"},
		{Key: "address", Value: bson.D{{Key: "street", Value: "Main"}}},
	}
	if got := tr.Rebuild(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rebuild() = %#v, want %#v", got, want)
	}

	// Same key under a different parent is fine.
	addr, _ := tr.Find("address")
	if _, err := tr.AddKey(addr, "name", value.String("home")); err != nil {
		t.Errorf("AddKey under nested document: %v", err)
	}
}

func TestAddKeyRequiresDocument(t *testing.T) {
	tr := Build(bson.D{{Key: "tags", Value: bson.A{}}})
	tags, _ := tr.Find("tags")
	if _, err := tr.AddKey(tags, "x", value.Null()); !errors.Is(err, ErrNotDocument) {
		t.Errorf("error = %v, want ErrNotDocument", err)
	}
}

func TestAddListElement(t *testing.T) {
	tr := Build(bson.D{{Key: "tags", Value: bson.A{}}})
	tags, _ := tr.Find("tags")

	first, err := tr.AddListElement(tags, value.String("a"))
	if err != nil {
		t.Fatalf("AddListElement: %v", err)
	}
	second, _ := tr.AddListElement(tags, value.Int32(2))
	if tr.Label(first) != "[0]" || tr.Label(second) != "[1]" {
		t.Errorf("labels = %q, %q", tr.Label(first), tr.Label(second))
	}

	want := bson.D{{Key: "tags", Value: bson.A{"a", int32(2)}}}
	if got := tr.Rebuild(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rebuild() = %#v", got)
	}

	if _, err := tr.AddListElement(tr.Root(), value.Null()); !errors.Is(err, ErrNotList) {
		t.Errorf("error = %v, want ErrNotList", err)
	}
}

func TestDeleteNode(t *testing.T) {
	tr := Build(bson.D{
		{Key: "keep", Value: int32(1)},
		{Key: "list", Value: bson.A{"a", "b", "c"}},
	})
	list, _ := tr.Find("list")
	middle, _ := tr.Find("list", "[1]")
	last, _ := tr.Find("list", "[2]")

	if err := tr.DeleteNode(middle); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	// Stored labels are not renumbered.
	if tr.Label(last) != "[2]" {
		t.Errorf("label of last element = %q, want [2]", tr.Label(last))
	}
	if n := len(tr.Children(list)); n != 2 {
		t.Errorf("children after delete = %d, want 2", n)
	}

	want := bson.D{{Key: "keep", Value: int32(1)}, {Key: "list", Value: bson.A{"a", "c"}}}
	if got := tr.Rebuild(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rebuild() = %#v", got)
	}

	if err := tr.SetLeafValue(middle, "x"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("editing a deleted node: %v, want ErrUnknownNode", err)
	}

	added, err := tr.AddListElement(list, value.String("d"))
	if err != nil {
		t.Fatalf("AddListElement: %v", err)
	}
	if got, ok := tr.Find("list", "[2]"); !ok || got != added {
		t.Errorf(`Find("list", "[2]") = %d, want the appended element %d`, got, added)
	}
	if got, ok := tr.Find("list", "[1]"); !ok || got != last {
		t.Errorf(`Find("list", "[1]") = %d, want the shifted element %d`, got, last)
	}
	if _, ok := tr.Find("list", "[3]"); ok {
		t.Error(`Find("list", "[3]") found a node past the end of the list`)
	}
	if err := tr.DeleteNode(tr.Root()); !errors.Is(err, ErrRootNode) {
		t.Errorf("deleting root: %v, want ErrRootNode", err)
	}
}

func TestDeletedSubtreeIsUnreachable(t *testing.T) {
	tr := Build(bson.D{{Key: "a", Value: bson.D{{Key: "b", Value: "c"}}}})
	a, _ := tr.Find("a")
	b, _ := tr.Find("a", "b")
	_ = tr.DeleteNode(a)

	if _, err := tr.Node(b); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("descendant of deleted node still reachable: %v", err)
	}
}

func TestSetLeafValue(t *testing.T) {
	tr := Build(bson.D{
		{Key: "active", Value: false},
		{Key: "age", Value: int32(25)},
		{Key: "name", Value: "Paul"},
	})
	active, _ := tr.Find("active")

	err := tr.SetLeafValue(active, "notabool")
	var pe *core.ValueParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ValueParseError", err)
	}

	if err := tr.SetLeafValue(active, "true"); err != nil {
		t.Fatalf("SetLeafValue(true): %v", err)
	}
	n, _ := tr.Node(active)
	if !n.Value.Equal(value.Bool(true)) {
		t.Errorf("value = %v, want Bool(true)", n.Value)
	}
}

func TestEditingStringKeepsSiblingWidth(t *testing.T) {
	tr := Build(bson.D{{Key: "name", Value: "Paul"}, {Key: "age", Value: int32(25)}})
	name, _ := tr.Find("name")
	if err := tr.SetLeafValue(name, "Pauline"); err != nil {
		t.Fatal(err)
	}

	got := tr.Rebuild()
	if _, ok := got[1].Value.(int32); !ok {
		t.Errorf("age changed type to %T", got[1].Value)
	}
}

func TestSetLeafValueOnContainer(t *testing.T) {
	tr := Build(bson.D{{Key: "address", Value: bson.D{}}})
	addr, _ := tr.Find("address")
	var pe *core.ValueParseError
	if err := tr.SetLeafValue(addr, "{}"); !errors.As(err, &pe) {
		t.Errorf("error = %v, want ValueParseError", err)
	}
}

func TestSetLeafValueKeepsKind(t *testing.T) {
	tr := Build(bson.D{{Key: "count", Value: int64(1)}})
	count, _ := tr.Find("count")
	if err := tr.SetLeafValue(count, "2.5"); err == nil {
		t.Error("int64 node accepted a float literal")
	}
	if err := tr.SetLeafValue(count, "7"); err != nil {
		t.Fatal(err)
	}
	if got := tr.Rebuild()[0].Value; got != int64(7) {
		t.Errorf("count = %#v, want int64(7)", got)
	}
}

func TestResultSet(t *testing.T) {
	docs := []bson.D{
		{{Key: "name", Value: "Melissa"}},
		{{Key: "name", Value: "Paul"}},
	}
	tr := BuildResultSet(docs)

	children := tr.Children(tr.Root())
	if len(children) != 2 || tr.Label(children[0]) != "[0]" || tr.Label(children[1]) != "[1]" {
		t.Fatalf("unexpected top level: %v", children)
	}
	if tr.Rebuild() != nil {
		t.Error("Rebuild() on a result set should be nil")
	}
	if got := tr.Documents(); !reflect.DeepEqual(got, docs) {
		t.Errorf("Documents() = %#v", got)
	}

	paul, _ := tr.Find("[1]", "name")
	_ = tr.SetLeafValue(paul, "Paulo")
	if got := tr.Documents()[1][0].Value; got != "Paulo" {
		t.Errorf("edited result = %v", got)
	}
}

func TestWalkOrder(t *testing.T) {
	tr := Build(bson.D{
		{Key: "a", Value: bson.D{{Key: "b", Value: int32(1)}}},
		{Key: "c", Value: bson.A{"x"}},
	})
	var seen []string
	tr.Walk(func(id NodeID, depth int) bool {
		seen = append(seen, tr.Label(id))
		return true
	})
	want := []string{"", "a", "b", "c", "[0]"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("walk order = %v, want %v", seen, want)
	}
}
