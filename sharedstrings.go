package xltemplate

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const contentTypeSharedStrings = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"

// SharedStrings is the workbook's shared-string table. Cells of type "s"
// hold an index into it.
//
// Replace renames an entry in place, so every cell in every sheet that
// points at that index shows the new text.
type SharedStrings struct {
	values []string
	lookup map[string]int
	// items keeps the loaded <si> element per index so untouched rich-text
	// entries are written back as they were. nil for added or renamed entries.
	items []*etree.Element
}

func newSharedStrings() *SharedStrings {
	return &SharedStrings{lookup: make(map[string]int)}
}

// loadSharedStrings reads an <sst> document.
func loadSharedStrings(doc *etree.Document) *SharedStrings {
	s := newSharedStrings()
	for _, si := range doc.Root().SelectElements("si") {
		text := siText(si)
		idx := len(s.values)
		s.values = append(s.values, text)
		s.items = append(s.items, si)
		if _, ok := s.lookup[text]; !ok {
			s.lookup[text] = idx
		}
	}
	return s
}

// siText concatenates the plain and rich-text runs of one <si>.
func siText(si *etree.Element) string {
	var b strings.Builder
	for _, c := range si.ChildElements() {
		switch c.Tag {
		case "t":
			b.WriteString(c.Text())
		case "r":
			for _, t := range c.SelectElements("t") {
				b.WriteString(t.Text())
			}
		}
	}
	return b.String()
}

// IndexOf returns the index of value, appending it when not pooled yet.
func (s *SharedStrings) IndexOf(value string) int {
	if idx, ok := s.lookup[value]; ok {
		return idx
	}
	idx := len(s.values)
	s.values = append(s.values, value)
	s.items = append(s.items, nil)
	s.lookup[value] = idx
	return idx
}

// Replace renames oldValue to newValue keeping its index. When oldValue is
// not pooled it behaves like IndexOf(newValue).
func (s *SharedStrings) Replace(oldValue, newValue string) int {
	idx, ok := s.lookup[oldValue]
	if !ok {
		return s.IndexOf(newValue)
	}
	s.values[idx] = newValue
	s.items[idx] = nil
	delete(s.lookup, oldValue)
	s.lookup[newValue] = idx
	return idx
}

// Get returns the string at idx.
func (s *SharedStrings) Get(idx int) (string, bool) {
	if idx < 0 || idx >= len(s.values) {
		return "", false
	}
	return s.values[idx], true
}

// Len returns the number of pooled strings.
func (s *SharedStrings) Len() int {
	return len(s.values)
}

// Strings returns a copy of the pool in index order.
func (s *SharedStrings) Strings() []string {
	return append([]string(nil), s.values...)
}

func (s *SharedStrings) clone() *SharedStrings {
	c := &SharedStrings{
		values: append([]string(nil), s.values...),
		items:  append([]*etree.Element(nil), s.items...),
		lookup: make(map[string]int, len(s.lookup)),
	}
	for k, v := range s.lookup {
		c.lookup[k] = v
	}
	return c
}

// document renders the pool as an <sst> part. base, when not nil, supplies
// the declaration, root attributes and trailing extension elements.
func (s *SharedStrings) document(base *etree.Document) *etree.Document {
	var doc *etree.Document
	if base != nil {
		doc = base.Copy()
	} else {
		doc = etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		sst := doc.CreateElement("sst")
		sst.CreateAttr("xmlns", "http://schemas.openxmlformats.org/spreadsheetml/2006/main")
	}
	root := doc.Root()

	var rest []*etree.Element
	for _, c := range root.ChildElements() {
		if c.Tag != "si" {
			rest = append(rest, c)
		}
	}
	children := make([]*etree.Element, 0, len(s.values)+len(rest))
	for i, v := range s.values {
		if item := s.items[i]; item != nil {
			children = append(children, cloneDeep(item))
			continue
		}
		children = append(children, newSI(v))
	}
	replaceChildren(root, append(children, rest...))

	n := strconv.Itoa(len(s.values))
	root.CreateAttr("count", n)
	root.CreateAttr("uniqueCount", n)
	return doc
}

func newSI(value string) *etree.Element {
	si := etree.NewElement("si")
	t := si.CreateElement("t")
	if value != strings.TrimSpace(value) {
		t.CreateAttr("xml:space", "preserve")
	}
	t.SetText(value)
	return si
}
