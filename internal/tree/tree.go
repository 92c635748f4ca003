// Package tree converts documents into editable trees of typed nodes and back.
//
// Nodes live in an arena owned by the Tree and are addressed by NodeID.
// Children are ordered id lists; the parent id is kept for navigation only.
// A tree is owned by a single edit session and is not safe for concurrent use.
package tree

import (
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/value"
)

// NodeID addresses a node inside its Tree.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

var (
	ErrUnknownNode = errors.New("tree: unknown or deleted node")
	ErrNotDocument = errors.New("tree: parent is not a document")
	ErrNotList     = errors.New("tree: parent is not a list")
	ErrRootNode    = errors.New("tree: the root node cannot be deleted")
)

type node struct {
	label    string
	indexed  bool
	val      value.Value // leaf value; containers keep only their kind here
	children []NodeID
	parent   NodeID
	detached bool
}

// Tree is an editable document tree.
type Tree struct {
	nodes []node
	root  NodeID
}

// Node is a read-only snapshot of one node.
type Node struct {
	ID       NodeID
	Label    string
	Indexed  bool // list element (label is "[i]") rather than document key
	Value    value.Value
	Parent   NodeID
	Children []NodeID
}

// Build converts doc into a tree whose root is a document node.
func Build(doc bson.D) *Tree {
	t := &Tree{}
	t.root = t.attach(NoNode, "", false, value.FromDocument(doc))
	return t
}

// BuildResultSet converts query results into a tree whose root is a list of
// indexed documents.
func BuildResultSet(docs []bson.D) *Tree {
	items := make([]value.Value, len(docs))
	for i, d := range docs {
		items[i] = value.FromDocument(d)
	}
	t := &Tree{}
	t.root = t.attach(NoNode, "", false, value.List(items...))
	return t
}

func indexLabel(i int) string {
	return fmt.Sprintf("[%d]", i)
}

// attach creates the node for v (recursively for containers) under parent.
func (t *Tree) attach(parent NodeID, label string, indexed bool, v value.Value) NodeID {
	id := NodeID(len(t.nodes))
	n := node{label: label, indexed: indexed, val: v, parent: parent}
	switch v.Kind() {
	case value.KindDocument:
		n.val = value.Document()
	case value.KindList:
		n.val = value.List()
	}
	t.nodes = append(t.nodes, n)

	switch v.Kind() {
	case value.KindDocument:
		for _, f := range v.Fields() {
			child := t.attach(id, f.Key, false, f.Value)
			t.nodes[id].children = append(t.nodes[id].children, child)
		}
	case value.KindList:
		for i, item := range v.Items() {
			child := t.attach(id, indexLabel(i), true, item)
			t.nodes[id].children = append(t.nodes[id].children, child)
		}
	}
	return id
}

// Root returns the root node id.
func (t *Tree) Root() NodeID {
	return t.root
}

func (t *Tree) alive(id NodeID) bool {
	for id != NoNode {
		if id < 0 || int(id) >= len(t.nodes) || t.nodes[id].detached {
			return false
		}
		id = t.nodes[id].parent
	}
	return true
}

// Node returns a snapshot of id. Container values are rebuilt from the
// current children.
func (t *Tree) Node(id NodeID) (Node, error) {
	if !t.alive(id) {
		return Node{}, ErrUnknownNode
	}
	n := t.nodes[id]
	return Node{
		ID:       id,
		Label:    n.label,
		Indexed:  n.indexed,
		Value:    t.RebuildNode(id),
		Parent:   n.parent,
		Children: append([]NodeID{}, n.children...),
	}, nil
}

// Kind returns the value kind of id.
func (t *Tree) Kind(id NodeID) value.Kind {
	if !t.alive(id) {
		return value.KindNull
	}
	return t.nodes[id].val.Kind()
}

// Label returns the stored label of id: the key, or "[i]" for list elements.
// Labels of list elements are assigned at insertion and are not renumbered
// after a sibling is deleted.
func (t *Tree) Label(id NodeID) string {
	if !t.alive(id) {
		return ""
	}
	return t.nodes[id].label
}

// Children returns the ordered child ids of id.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.alive(id) {
		return nil
	}
	return append([]NodeID{}, t.nodes[id].children...)
}

// Parent returns the parent of id, or NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.alive(id) {
		return NoNode
	}
	return t.nodes[id].parent
}

// Find follows labels from the root, e.g. Find("address", "lines", "[0]").
// Inside a list, "[i]" selects the element at position i among the live
// children, since stored labels are not renumbered after a delete.
func (t *Tree) Find(path ...string) (NodeID, bool) {
	cur := t.root
	for _, label := range path {
		next := NoNode
		if t.nodes[cur].val.Kind() == value.KindList {
			if i, ok := parseIndexLabel(label); ok && i < len(t.nodes[cur].children) {
				next = t.nodes[cur].children[i]
			}
		} else {
			for _, c := range t.nodes[cur].children {
				if t.nodes[c].label == label {
					next = c
					break
				}
			}
		}
		if next == NoNode {
			return NoNode, false
		}
		cur = next
	}
	return cur, true
}

func parseIndexLabel(label string) (int, bool) {
	if len(label) < 3 || label[0] != '[' || label[len(label)-1] != ']' {
		return 0, false
	}
	i, err := strconv.Atoi(label[1 : len(label)-1])
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Walk visits live nodes depth-first in child order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(id NodeID, depth int) bool) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		if !fn(id, depth) {
			return
		}
		for _, c := range t.nodes[id].children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
}

// =============================================================================
// Rebuild
// =============================================================================

// RebuildNode reassembles the current value of id from its subtree.
// List indices come from position, not from stored labels.
func (t *Tree) RebuildNode(id NodeID) value.Value {
	n := t.nodes[id]
	switch n.val.Kind() {
	case value.KindDocument:
		fields := make([]value.Field, 0, len(n.children))
		for _, c := range n.children {
			fields = append(fields, value.Field{Key: t.nodes[c].label, Value: t.RebuildNode(c)})
		}
		return value.Document(fields...)
	case value.KindList:
		items := make([]value.Value, 0, len(n.children))
		for _, c := range n.children {
			items = append(items, t.RebuildNode(c))
		}
		return value.List(items...)
	}
	return n.val
}

// Rebuild returns the document held by a tree built with Build.
// It returns nil for result-set trees; use Documents for those.
func (t *Tree) Rebuild() bson.D {
	return t.RebuildNode(t.root).Document()
}

// Documents returns every top-level document: the single rebuilt document
// for a document tree, or each document element of a result-set tree.
func (t *Tree) Documents() []bson.D {
	root := t.RebuildNode(t.root)
	if root.Kind() == value.KindDocument {
		return []bson.D{root.Document()}
	}
	var docs []bson.D
	for _, item := range root.Items() {
		if item.Kind() == value.KindDocument {
			docs = append(docs, item.Document())
		}
	}
	return docs
}

// Equal reports whether both trees have the same labels, kinds and values in
// the same order.
func (t *Tree) Equal(o *Tree) bool {
	return equalNodes(t, t.root, o, o.root)
}

func equalNodes(a *Tree, ai NodeID, b *Tree, bi NodeID) bool {
	na, nb := a.nodes[ai], b.nodes[bi]
	if na.label != nb.label || na.indexed != nb.indexed || len(na.children) != len(nb.children) {
		return false
	}
	if !na.val.Equal(nb.val) {
		return false
	}
	for i := range na.children {
		if !equalNodes(a, na.children[i], b, nb.children[i]) {
			return false
		}
	}
	return true
}

// =============================================================================
// Edits
// =============================================================================

// AddKey appends key with v under a document node.
func (t *Tree) AddKey(parent NodeID, key string, v value.Value) (NodeID, error) {
	if !t.alive(parent) {
		return NoNode, ErrUnknownNode
	}
	if t.nodes[parent].val.Kind() != value.KindDocument {
		return NoNode, ErrNotDocument
	}
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].label == key {
			return NoNode, &core.DuplicateKeyError{Key: key}
		}
	}
	id := t.attach(parent, key, false, v)
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id, nil
}

// AddListElement appends v to a list node, labelled with the current child count.
func (t *Tree) AddListElement(parent NodeID, v value.Value) (NodeID, error) {
	if !t.alive(parent) {
		return NoNode, ErrUnknownNode
	}
	if t.nodes[parent].val.Kind() != value.KindList {
		return NoNode, ErrNotList
	}
	id := t.attach(parent, indexLabel(len(t.nodes[parent].children)), true, v)
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id, nil
}

// DeleteNode detaches id from its parent. Sibling labels are left as they are.
func (t *Tree) DeleteNode(id NodeID) error {
	if !t.alive(id) {
		return ErrUnknownNode
	}
	if id == t.root {
		return ErrRootNode
	}
	parent := t.nodes[id].parent
	siblings := t.nodes[parent].children
	for i, c := range siblings {
		if c == id {
			t.nodes[parent].children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	t.nodes[id].detached = true
	return nil
}

// SetLeafValue parses text as the node's current kind and stores it.
// The kind of a leaf never changes through this call.
func (t *Tree) SetLeafValue(id NodeID, text string) error {
	if !t.alive(id) {
		return ErrUnknownNode
	}
	kind := t.nodes[id].val.Kind()
	if kind.IsContainer() {
		return &core.ValueParseError{Kind: kind.String(), Input: text, Reason: "containers are edited through their children"}
	}
	if t.nodes[id].val.IsOpaque() {
		return &core.ValueParseError{Kind: kind.String(), Input: text, Reason: "value is not editable as text"}
	}
	v, err := value.Parse(kind, text)
	if err != nil {
		return err
	}
	t.nodes[id].val = v
	return nil
}
