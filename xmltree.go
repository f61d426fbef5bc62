package xltemplate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// parseXML parses a part into a document.
func parseXML(name string, data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parse %s: no root element", name)
	}
	return doc, nil
}

// serializeXML renders a document back to bytes.
func serializeXML(name string, doc *etree.Document) ([]byte, error) {
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", name, err)
	}
	return b, nil
}

// cloneShallow copies an element's tag and attributes without children.
func cloneShallow(e *etree.Element) *etree.Element {
	n := etree.NewElement(e.FullTag())
	for _, a := range e.Attr {
		n.CreateAttr(a.FullKey(), a.Value)
	}
	return n
}

// cloneDeep copies an element and its whole subtree. The copy has no parent.
func cloneDeep(e *etree.Element) *etree.Element {
	return e.Copy()
}

// replaceChildren drops every child token of parent and appends children in order.
func replaceChildren(parent *etree.Element, children []*etree.Element) {
	for i := len(parent.Child) - 1; i >= 0; i-- {
		parent.RemoveChildAt(i)
	}
	for _, c := range children {
		parent.AddChild(c)
	}
}

// removeElements removes every direct child with the given tag.
func removeElements(parent *etree.Element, tag string) {
	for _, c := range parent.SelectElements(tag) {
		parent.RemoveChild(c)
	}
}

// attrInt reads an integer attribute; ok is false when absent or not a number.
func attrInt(e *etree.Element, key string) (int, bool) {
	a := e.SelectAttr(key)
	if a == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(a.Value))
	if err != nil {
		return 0, false
	}
	return n, true
}
