package app

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/document"
	"github.com/peternagy/mongobrowse/internal/query"
	"github.com/peternagy/mongobrowse/internal/tree"
	"github.com/peternagy/mongobrowse/internal/types"
	"github.com/peternagy/mongobrowse/internal/value"
)

func parseDocument(field, text string) (bson.D, error) {
	return query.ParseDocument(field, text)
}

// GetDocument loads the document whose _id is written as idText.
func (a *App) GetDocument(ctx context.Context, ref string, ns types.Namespace, idText string) (bson.D, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	return a.document.GetDocument(ctx, target, ns, document.ParseDocumentID(idText))
}

// SaveDocument parses docText and upserts it, returning the document's _id.
func (a *App) SaveDocument(ctx context.Context, ref string, ns types.Namespace, docText string) (interface{}, error) {
	doc, err := parseDocument("document", docText)
	if err != nil {
		return nil, err
	}
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	return a.document.Upsert(ctx, target, ns, doc)
}

// DeleteDocument removes the document whose _id is written as idText.
func (a *App) DeleteDocument(ctx context.Context, ref string, ns types.Namespace, idText string) error {
	target, err := a.Target(ref)
	if err != nil {
		return err
	}
	return a.document.Delete(ctx, target, ns, document.ParseDocumentID(idText))
}

// EditOp is the kind of change an Edit makes.
type EditOp string

const (
	// EditSet replaces a leaf value, keeping its kind.
	EditSet EditOp = "set"
	// EditAdd adds a key to a document, or appends to a list. The value
	// kind is inferred from the text.
	EditAdd EditOp = "add"
	// EditDelete removes a field or list element.
	EditDelete EditOp = "delete"
)

// Edit is one change to a document, addressed by a dotted path of keys and
// list labels, e.g. "address.lines.[0]". For EditAdd on a list the last path
// element names the list itself.
type Edit struct {
	Op    EditOp
	Path  string
	Value string
}

// EditDocument loads a document, applies the edits through its tree and saves
// the result. Nothing is saved when an edit fails.
func (a *App) EditDocument(ctx context.Context, ref string, ns types.Namespace, idText string, edits ...Edit) (bson.D, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	doc, err := a.document.GetDocument(ctx, target, ns, document.ParseDocumentID(idText))
	if err != nil {
		return nil, err
	}

	updated, err := ApplyEdits(doc, edits...)
	if err != nil {
		return nil, err
	}
	if _, err := a.document.Upsert(ctx, target, ns, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyEdits applies edits to a tree built from doc and returns the rebuilt document.
func ApplyEdits(doc bson.D, edits ...Edit) (bson.D, error) {
	t := tree.Build(doc)
	for _, e := range edits {
		if err := applyEdit(t, e); err != nil {
			return nil, err
		}
	}
	return t.Rebuild(), nil
}

func applyEdit(t *tree.Tree, e Edit) error {
	path := splitPath(e.Path)
	if len(path) == 0 {
		return &core.ConfigurationError{Field: "path", Reason: "path must not be empty"}
	}
	if path[0] == "_id" {
		// The edited document is saved by its _id.
		return &core.ConfigurationError{Field: "path", Reason: "_id cannot be edited"}
	}

	switch e.Op {
	case EditSet:
		id, err := find(t, path)
		if err != nil {
			return err
		}
		return t.SetLeafValue(id, e.Value)

	case EditDelete:
		id, err := find(t, path)
		if err != nil {
			return err
		}
		return t.DeleteNode(id)

	case EditAdd:
		if id, ok := t.Find(path...); ok && t.Kind(id) == value.KindList {
			_, err := t.AddListElement(id, value.Infer(e.Value))
			return err
		}
		parent, err := find(t, path[:len(path)-1])
		if err != nil {
			return err
		}
		_, err = t.AddKey(parent, path[len(path)-1], value.Infer(e.Value))
		return err
	}
	return &core.ConfigurationError{Field: "op", Reason: fmt.Sprintf("unknown edit %q", e.Op)}
}

func find(t *tree.Tree, path []string) (tree.NodeID, error) {
	id, ok := t.Find(path...)
	if !ok {
		return tree.NoNode, &core.ConfigurationError{Field: "path", Reason: fmt.Sprintf("no field at %q", strings.Join(path, "."))}
	}
	return id, nil
}

func splitPath(path string) []string {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	return strings.Split(path, ".")
}
