// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package xmldecoder implements a streaming, path-configured XML decoder that
// turns a Push Port message into a small tagged-variant tree instead of a
// generic DOM. It exists because the Darwin schemas mix deeply nested,
// strongly-typed records (schedules) with loosely-typed heterogeneous
// sequences (a uR batch interleaving schedule/TS/OW/association records) and
// embedded HTML fragments (station messages) — a generic XML-to-JSON mapping
// would need a second, equally fiddly pass to recover any of that structure.
package xmldecoder

// Kind discriminates the three shapes a Node can take.
type Kind int

const (
	KindObject Kind = iota
	KindList
	KindScalar
)

// Node is one element of the decoded tree. Exactly one of its three shapes
// is populated, selected by Kind:
//   - KindScalar: Text (and TypedValue, if a collapse_data_types coercion ran)
//   - KindObject: Attrs plus named Fields, with Text holding any direct
//     character content ("$" in the source encoding)
//   - KindList: Items, the ordered same-name children folded under one
//     field; object items carry their Tag, collapsed scalar items do not
type Node struct {
	Kind Kind
	Tag  string

	Attrs map[string]string
	Text  string

	// TypedValue holds the coerced scalar when the path was configured with
	// a collapse_data_types entry; nil otherwise (Text is always kept too).
	TypedValue any

	Items []*Node

	// ListChildren holds the heterogeneous children of a node whose path was
	// configured as a list_path (e.g. the uR/sR batch): each child keeps its
	// own Tag so a classifier can dispatch on it. A node can be KindObject
	// (it may still carry its own Attrs/Fields) and also be a list container.
	ListChildren    []*Node
	isListContainer bool

	keys   []string
	fields map[string]*Node
}

func newObject(tag string, attrs map[string]string) *Node {
	return &Node{Kind: KindObject, Tag: tag, Attrs: attrs, fields: map[string]*Node{}}
}

// Field returns the named child, or nil if it was never set.
func (n *Node) Field(name string) *Node {
	if n == nil || n.fields == nil {
		return nil
	}
	return n.fields[name]
}

// FieldNames returns the object's field names in insertion order.
func (n *Node) FieldNames() []string {
	if n == nil {
		return nil
	}
	return n.keys
}

func (n *Node) set(name string, child *Node) {
	if _, exists := n.fields[name]; !exists {
		n.keys = append(n.keys, name)
	}
	n.fields[name] = child
}

func (n *Node) appendToListField(name string, child *Node) {
	list := n.fields[name]
	if list == nil {
		list = &Node{Kind: KindList}
		n.set(name, list)
	}
	list.Items = append(list.Items, child)
}

// Str returns the scalar text of the named field, or "" if absent. Works for
// both collapsed scalar fields and the "$" text of a nested object.
func (n *Node) Str(name string) string {
	f := n.Field(name)
	if f == nil {
		return ""
	}
	return f.Text
}

// StrPtr is like Str but returns nil instead of "" for an absent or
// empty field, matching the source's "attribute or NULL" convention.
func (n *Node) StrPtr(name string) *string {
	f := n.Field(name)
	if f == nil || f.Text == "" {
		return nil
	}
	s := f.Text
	return &s
}

// Attr returns a raw XML attribute of this element, or "" if absent.
func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// AttrPtr is like Attr but returns nil for an absent or empty attribute.
func (n *Node) AttrPtr(name string) *string {
	v := n.Attr(name)
	if v == "" {
		return nil
	}
	return &v
}

// Bool coerces an attribute's string truthiness: present, non-empty and not
// "false" or "0" is truthy (Darwin sends "true"/"1").
func (n *Node) Bool(name string) bool {
	v := n.Attr(name)
	return v != "" && v != "false" && v != "0"
}

// List returns the ordered children of a KindList node (nil-safe).
func (n *Node) List() []*Node {
	if n == nil {
		return nil
	}
	return n.Items
}

// Children returns the heterogeneous list-path children of this node
// (nil-safe); empty unless the node's path was configured as a list_path.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	return n.ListChildren
}
