package sources

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// Kind is the variant held by a Node
type Kind int

const (
	KindString Kind = iota
	KindMap
	KindList
)

// Keys used for attributes and for text of elements that also carry attributes or children
const (
	AttrKey = "$"
	TextKey = "_"
)

// Node is a generic document tree value. A nil *Node is null.
//
// Elements map to a string when they have neither attributes nor children,
// otherwise to a map of child name to value with attributes under "$" and
// text under "_". Repeated children collapse into a list.
type Node struct {
	Kind   Kind
	Text   string
	Fields map[string]*Node
	Items  []*Node
}

func stringNode(s string) *Node {
	return &Node{Kind: KindString, Text: s}
}

type frame struct {
	name   string
	fields map[string]*Node
	text   strings.Builder
}

func (f *frame) value() *Node {
	text := strings.TrimSpace(f.text.String())
	if len(f.fields) == 0 {
		return stringNode(text)
	}
	if text != "" {
		f.fields[TextKey] = stringNode(text)
	}
	return &Node{Kind: KindMap, Fields: f.fields}
}

func (f *frame) add(name string, v *Node) {
	if f.fields == nil {
		f.fields = make(map[string]*Node)
	}
	existing, ok := f.fields[name]
	switch {
	case !ok:
		f.fields[name] = v
	case existing.Kind == KindList:
		existing.Items = append(existing.Items, v)
	default:
		f.fields[name] = &Node{Kind: KindList, Items: []*Node{existing, v}}
	}
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// ParseTree converts an XML document into a Node rooted at a one-key map named after the root element
func ParseTree(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var stack []*frame
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: "malformed xml", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			f := &frame{name: qualified(t.Name)}
			if len(t.Attr) > 0 {
				attrs := make(map[string]*Node, len(t.Attr))
				for _, a := range t.Attr {
					attrs[qualified(a.Name)] = stringNode(a.Value)
				}
				f.fields = map[string]*Node{AttrKey: {Kind: KindMap, Fields: attrs}}
			}
			stack = append(stack, f)

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &ParseError{Reason: "unexpected closing tag " + qualified(t.Name)}
			}
			top := stack[len(stack)-1]
			if name := qualified(t.Name); name != top.name {
				return nil, &ParseError{Reason: "closing tag " + name + " does not match " + top.name}
			}
			stack = stack[:len(stack)-1]
			v := top.value()
			if len(stack) == 0 {
				return &Node{Kind: KindMap, Fields: map[string]*Node{top.name: v}}, nil
			}
			stack[len(stack)-1].add(top.name, v)
		}
	}

	if len(stack) > 0 {
		return nil, &ParseError{Reason: "unexpected end of document inside " + stack[len(stack)-1].name}
	}
	return nil, &ParseError{Reason: "document has no root element"}
}

// Lookup walks a dot-separated path. Segments are map keys, list indexes
// ("0") or key[index] ("link[1]"). Any missing segment yields nil.
func Lookup(n *Node, path string) *Node {
	if path == "" {
		return n
	}
	for _, seg := range strings.Split(path, ".") {
		if n == nil {
			return nil
		}
		name, index, hasIndex := splitSegment(seg)
		if name != "" {
			if n.Kind != KindMap {
				return nil
			}
			n = n.Fields[name]
		}
		if hasIndex {
			if n == nil || n.Kind != KindList || index < 0 || index >= len(n.Items) {
				return nil
			}
			n = n.Items[index]
		}
	}
	return n
}

func splitSegment(seg string) (name string, index int, hasIndex bool) {
	if i, err := strconv.Atoi(seg); err == nil {
		return "", i, true
	}
	open := strings.IndexByte(seg, '[')
	if open > 0 && strings.HasSuffix(seg, "]") {
		if i, err := strconv.Atoi(seg[open+1 : len(seg)-1]); err == nil {
			return seg[:open], i, true
		}
	}
	return seg, 0, false
}

// Text returns the scalar text of n, or its "_" text when n is an element map
func Text(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindString:
		return n.Text
	case KindMap:
		if t, ok := n.Fields[TextKey]; ok && t.Kind == KindString {
			return t.Text
		}
	}
	return ""
}

// AsList normalizes a single value into a one-element list; nil yields nil
func AsList(n *Node) []*Node {
	switch {
	case n == nil:
		return nil
	case n.Kind == KindList:
		return n.Items
	default:
		return []*Node{n}
	}
}
