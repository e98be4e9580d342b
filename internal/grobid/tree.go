package grobid

import (
	"encoding/xml"
	"io"
	"strings"
)

// node is a minimal in-memory XML tree, built once from the decoder's token
// stream. It exists because the TEI documents the external parser returns
// must be inspected by local element name and by namespaced attributes
// (notably xml:id on biblStruct) the way a generic tree-walking XML library
// would expose them; encoding/xml's streaming Decoder does not keep a tree,
// so one is built here.
type node struct {
	name     string // local name; empty for text nodes
	attrs    map[string]string
	children []*node
	text     string
	isText   bool
}

// attr returns the local-name attribute value and whether it was present.
func (n *node) attr(local string) (string, bool) {
	v, ok := n.attrs[local]
	return v, ok
}

// xmlID returns the xml:id attribute. encoding/xml reports the reserved
// "xml" prefix with the XML namespace URL as its Space; parseTree stores
// either form under the "xml:" key.
func (n *node) xmlID() (string, bool) {
	v, ok := n.attrs["xml:id"]
	return v, ok
}

func parseTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)

	root := &node{name: "#document"}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				key := a.Name.Local
				if a.Name.Space == "xml" || a.Name.Space == "http://www.w3.org/XML/1998/namespace" {
					key = "xml:" + a.Name.Local
				} else if a.Name.Space != "" {
					key = a.Name.Space + ":" + a.Name.Local
				}
				n.attrs[key] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(t) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, &node{isText: true, text: string(t)})
		}
	}

	return root, nil
}

// findElement returns the first descendant (depth-first, document order)
// whose local name matches, or nil.
func findElement(n *node, name string) *node {
	for _, c := range n.children {
		if c.isText {
			continue
		}
		if c.name == name {
			return c
		}
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// findElements returns every descendant (depth-first, document order)
// whose local name matches.
func findElements(n *node, name string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, c := range cur.children {
			if c.isText {
				continue
			}
			if c.name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// allText concatenates every text descendant, then collapses whitespace
// runs into single spaces, matching the parser's own normalization.
func allText(n *node) string {
	var b strings.Builder
	var walk func(*node)
	walk = func(cur *node) {
		if cur.isText {
			b.WriteString(cur.text)
			return
		}
		for _, c := range cur.children {
			walk(c)
		}
	}
	walk(n)
	return collapseWhitespace(b.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
