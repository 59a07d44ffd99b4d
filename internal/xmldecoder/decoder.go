// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package xmldecoder

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Config configures a Decoder the way DarwinParser was configured in the
// source: which dotted paths behave as heterogeneous lists, which fold
// repeated same-name children into a homogeneous sequence, which paths are
// flattened to a scalar, and which subtrees are re-serialized back into the
// surrounding text instead of being structurally parsed.
type Config struct {
	// ListPaths are dotted paths (joined by ".") whose children accumulate,
	// in order, under Node.ListChildren, each tagged with its own element
	// name.
	ListPaths []string

	// FoldedList are dotted paths where repeated same-name children collapse
	// into a Node.Field(name) of KindList instead of overwriting each other.
	FoldedList []string

	// Detokenise are dotted paths below which inner element tags are
	// re-serialized as literal text into the containing element's Text,
	// instead of being parsed structurally (embedded HTML).
	Detokenise []string

	// CollapseData are dotted paths whose element becomes a plain scalar
	// field on the parent instead of a nested object.
	CollapseData []string

	// CollapseDataTypes maps a CollapseData path to a coercion: "int",
	// "float" or "bool" ("true"/"false" exactly; anything else is an error).
	CollapseDataTypes map[string]string

	// ExcludeKeys are dotted paths whose subtree is discarded entirely.
	ExcludeKeys []string

	// StripWhitespace suppresses a character run that is entirely
	// whitespace when the text accumulated so far is also whitespace.
	// Off when left unset; New does not turn it on.
	StripWhitespace bool

	// IncludeTags records the element name on every object Node as Tag
	// (always true in practice; Darwin's classifier dispatches on it).
	IncludeTags bool
}

// Decoder is a configured, reusable (restartable per input) XML path
// decoder.
type Decoder struct {
	listPaths    map[string]bool
	foldedList   map[string]bool
	detokenise   map[string]bool
	collapseData map[string]bool
	collapseType map[string]string
	excludeKeys  map[string]bool
	strip        bool
	includeTags  bool
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}

// New builds a Decoder from cfg.
func New(cfg Config) *Decoder {
	return &Decoder{
		listPaths:    toSet(cfg.ListPaths),
		foldedList:   toSet(cfg.FoldedList),
		detokenise:   toSet(cfg.Detokenise),
		collapseData: toSet(cfg.CollapseData),
		collapseType: cfg.CollapseDataTypes,
		excludeKeys:  toSet(cfg.ExcludeKeys),
		strip:        cfg.StripWhitespace,
		includeTags:  cfg.IncludeTags,
	}
}

func localName(name xml.Name) string {
	// encoding/xml already splits prefix from local name; this mirrors the
	// source's "keep the part after the last ':'" rule for the rare case of
	// an undeclared or attribute-style prefix slipping through as text.
	local := name.Local
	if i := strings.LastIndex(local, ":"); i >= 0 {
		local = local[i+1:]
	}
	return local
}

func isWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Decode parses a single XML document and returns its root Node (KindObject,
// one field per top-level element — typically just "Pport" or
// "PportTimetableRef").
func (d *Decoder) Decode(r io.Reader) (*Node, error) {
	xd := xml.NewDecoder(r)
	xd.Strict = false

	root := newObject("", nil)
	dicts := []*Node{root}
	var path []string
	excludeTrigger := false

	for {
		tok, err := xd.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmldecoder: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			currentPath := strings.Join(path, ".")

			if d.detokenise[currentPath] {
				d.writeCharacters(dicts, path, currentPath, reserializeStart(t))
				continue
			}

			name := localName(t.Name)
			path = append(path, name)
			newPath := strings.Join(path, ".")

			attrs := map[string]string{}
			for _, a := range t.Attr {
				an := localName(a.Name)
				if strings.HasPrefix(an, "xmlns") || a.Name.Space == "xmlns" {
					continue
				}
				attrs[an] = a.Value
			}

			node := newObject(name, attrs)
			if !d.includeTags {
				node.Tag = ""
			}

			parent := dicts[len(dicts)-1]

			switch {
			case excludeTrigger:
				// contents discarded; neither registered with parent nor
				// pushed onto the container stack.
			case d.excludeKeys[newPath]:
				excludeTrigger = true
			case parent.isListContainer:
				parent.ListChildren = append(parent.ListChildren, node)
			case d.foldedList[newPath]:
				if d.collapseData[newPath] {
					parent.appendToListField(name, &Node{Kind: KindScalar})
				} else {
					parent.appendToListField(name, node)
				}
			case d.collapseData[newPath]:
				parent.set(name, &Node{Kind: KindScalar, Tag: name})
			default:
				parent.set(name, node)
			}

			if !d.collapseData[newPath] && !d.excludeKeys[newPath] && !excludeTrigger {
				dicts = append(dicts, node)
			}

			if d.listPaths[newPath] {
				node.isListContainer = true
			}

		case xml.EndElement:
			name := localName(t.Name)
			currentPath := strings.Join(path, ".")

			switch {
			case d.excludeKeys[currentPath]:
				excludeTrigger = false
				path = path[:len(path)-1]
			case excludeTrigger:
				path = path[:len(path)-1]
			case d.detokenise[currentPath] && (len(path) == 0 || path[len(path)-1] != name):
				d.writeCharacters(dicts, path, currentPath, "</"+name+">")
			case d.collapseData[currentPath]:
				field := dicts[len(dicts)-1].Field(path[len(path)-1])
				if typeName, ok := d.collapseType[currentPath]; ok {
					val, err := coerce(typeName, field.Text)
					if err != nil {
						return nil, fmt.Errorf("xmldecoder: %s: %w", currentPath, err)
					}
					field.TypedValue = val
				}
				path = path[:len(path)-1]
			default:
				path = path[:len(path)-1]
				dicts = dicts[:len(dicts)-1]
			}

		case xml.CharData:
			d.writeCharacters(dicts, path, strings.Join(path, "."), string(t))
		}
	}

	return root, nil
}

// writeCharacters mirrors DarwinParser.characters(): direct text either
// accumulates into a collapsed scalar field, or into the current object's
// Text ("$" in the source), with whitespace-run suppression.
func (d *Decoder) writeCharacters(dicts []*Node, path []string, fullPath, data string) {
	if len(dicts) == 0 {
		return
	}
	cur := dicts[len(dicts)-1]

	if d.collapseData[fullPath] && len(path) > 0 {
		fieldName := path[len(path)-1]
		if d.foldedList[fullPath] {
			list := cur.Field(fieldName)
			if list != nil && len(list.Items) > 0 {
				list.Items[len(list.Items)-1].Text += data
			}
			return
		}
		field := cur.Field(fieldName)
		if field == nil {
			field = &Node{Kind: KindScalar}
			cur.set(fieldName, field)
		}
		field.Text += data
		return
	}

	if !d.strip || !isWhitespace(data) || !isWhitespace(cur.Text) {
		cur.Text += data
	}
}

func reserializeStart(t xml.StartElement) string {
	name := localName(t.Name)
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(name)
	for _, a := range t.Attr {
		an := localName(a.Name)
		if strings.HasPrefix(an, "xmlns") || a.Name.Space == "xmlns" {
			continue
		}
		fmt.Fprintf(&b, ` %s="%s"`, an, a.Value)
	}
	b.WriteByte('>')
	return b.String()
}

func coerce(typeName, text string) (any, error) {
	switch typeName {
	case "int":
		return strconv.Atoi(text)
	case "float":
		return strconv.ParseFloat(text, 64)
	case "bool":
		switch strings.ToLower(text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, fmt.Errorf("value marked as bool type but not a boolean: %q", text)
		}
	default:
		return text, nil
	}
}
