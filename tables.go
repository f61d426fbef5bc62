package xltemplate

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// namedTable is a table part bound to a sheet. ref covers the header and
// data rows only; totals rows are added back when the part is written.
type namedTable struct {
	part    string
	doc     *etree.Document
	ref     Range
	totals  int
	changed bool
}

func newNamedTable(part string, doc *etree.Document) (*namedTable, error) {
	root := doc.Root()
	r, err := ParseRange(root.SelectAttrValue("ref", ""))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", part, err)
	}
	t := &namedTable{part: part, doc: doc, ref: r}
	if n, ok := attrInt(root, "totalsRowCount"); ok && n > 0 {
		t.totals = n
		t.ref.End = t.ref.End.ShiftRows(-n)
	}
	return t, nil
}

// loadTables reads the tables referenced by a sheet's <tableParts>.
func loadTables(pkg *opcPackage, sheetPart string, sheet *etree.Document, rels *etree.Document) ([]*namedTable, error) {
	parts := sheet.Root().SelectElement("tableParts")
	if parts == nil || rels == nil {
		return nil, nil
	}
	relsPart := relsPartFor(sheetPart)
	var tables []*namedTable
	for _, tp := range parts.SelectElements("tablePart") {
		id := relID(tp)
		rel := findRelByID(rels, id)
		if rel == nil {
			return nil, &MissingPartError{Part: relsPart + "#" + id}
		}
		part := resolveTarget(sheetPart, rel.SelectAttrValue("Target", ""))
		doc, err := pkg.readXMLPart(part)
		if err != nil {
			return nil, err
		}
		t, err := newNamedTable(part, doc)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (t *namedTable) name() string {
	root := t.doc.Root()
	if n := root.SelectAttrValue("displayName", ""); n != "" {
		return n
	}
	return root.SelectAttrValue("name", t.part)
}

func (t *namedTable) contains(ref CellRef) bool {
	return t.ref.Contains(ref)
}

// growDown adds one data row.
func (t *namedTable) growDown() {
	t.ref.End = t.ref.End.NextRow()
	t.changed = true
}

func (t *namedTable) shiftRows(n int) {
	t.ref = t.ref.ShiftRows(n)
	t.changed = true
}

// widen adds n columns on the right.
func (t *namedTable) widen(n int) {
	t.ref.End = t.ref.End.ShiftCols(n)
	t.changed = true
}

// sync writes the working range back into the part: ref spans the totals
// rows too, the autoFilter only header and data.
func (t *namedTable) sync() {
	root := t.doc.Root()
	full := t.ref
	full.End = full.End.ShiftRows(t.totals)
	root.CreateAttr("ref", full.String())
	if af := root.SelectElement("autoFilter"); af != nil {
		af.CreateAttr("ref", t.ref.String())
	}
}

// substituteColumnHeaders resolves placeholders in column names. A
// whole-name placeholder bound to a sequence repeats the column once per
// element and widens the table. Unresolved placeholders are left as they are.
func (t *namedTable) substituteColumnHeaders(values any) {
	columns := t.doc.Root().SelectElement("tableColumns")
	if columns == nil {
		return
	}
	var out []*etree.Element
	id, inserted, renamed := 0, 0, false
	for _, col := range columns.SelectElements("tableColumn") {
		id++
		setColumnID(col, id, &renamed)
		out = append(out, col)

		name := col.SelectAttrValue("name", "")
		phs := ExtractPlaceholders(name)
		if len(phs) == 0 {
			continue
		}
		if p := phs[0]; len(phs) == 1 && p.Full && !p.IsTable() {
			val, ok := Lookup(values, p.Path())
			if seq, isSeq := AsSequence(val); ok && isSeq {
				for i, el := range seq {
					c := col
					if i > 0 {
						c = cloneDeep(col)
						id++
						c.CreateAttr("id", strconv.Itoa(id))
						out = append(out, c)
						inserted++
					}
					c.CreateAttr("name", Stringify(el))
				}
				renamed = renamed || len(seq) > 0
				continue
			}
		}
		if s, ok := replacePlaceholders(name, values, false); ok {
			col.CreateAttr("name", s)
			renamed = true
		}
	}
	if !renamed && inserted == 0 {
		return
	}
	replaceChildren(columns, out)
	columns.CreateAttr("count", strconv.Itoa(len(out)))
	if inserted > 0 {
		t.widen(inserted)
	}
	t.changed = true
}

func setColumnID(col *etree.Element, id int, changed *bool) {
	s := strconv.Itoa(id)
	if col.SelectAttrValue("id", "") != s {
		col.CreateAttr("id", s)
		*changed = true
	}
}

// replacePlaceholders substitutes every placeholder in text with its
// stringified lookup. With blankUndefined false unresolved markers are kept.
// ok reports whether at least one marker was resolved.
func replacePlaceholders(text string, values any, blankUndefined bool) (out string, ok bool) {
	out = placeholderPattern.ReplaceAllStringFunc(text, func(raw string) string {
		p := ExtractPlaceholders(raw)[0]
		val, found := Lookup(values, p.Path())
		if !found && !blankUndefined {
			return raw
		}
		ok = true
		return Stringify(val)
	})
	return out, ok
}
