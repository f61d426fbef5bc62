package xltemplate

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// templateCell is a cell whose shared string carries placeholders.
type templateCell struct {
	Ref          string
	Text         string
	Placeholders []Placeholder
}

// sheetTemplate is the parsed view of one sheet used by Describe and Validate.
type sheetTemplate struct {
	sheet  Sheet
	doc    *etree.Document
	rels   *etree.Document
	cells  []templateCell
	tables []*namedTable
}

func (w *Workbook) inspectSheet(s Sheet) (*sheetTemplate, error) {
	doc, err := w.pkg.readXMLPart(s.Part)
	if err != nil {
		return nil, err
	}
	st := &sheetTemplate{sheet: s, doc: doc}
	if relsPart := relsPartFor(s.Part); w.pkg.has(relsPart) {
		if st.rels, err = w.pkg.readXMLPart(relsPart); err != nil {
			return nil, err
		}
	}
	if sheetData := doc.Root().SelectElement("sheetData"); sheetData != nil {
		for _, row := range sheetData.SelectElements("row") {
			for _, c := range row.SelectElements("c") {
				idx, ok := sharedStringIndex(c)
				if !ok {
					continue
				}
				text, ok := w.strings.Get(idx)
				if !ok {
					continue
				}
				if phs := ExtractPlaceholders(text); len(phs) > 0 {
					st.cells = append(st.cells, templateCell{
						Ref:          c.SelectAttrValue("r", ""),
						Text:         text,
						Placeholders: phs,
					})
				}
			}
		}
	}
	return st, nil
}

// hyperlinkTargets returns the decoded hyperlink targets that contain placeholders, by relationship id.
func (st *sheetTemplate) hyperlinkTargets() [][2]string {
	if st.rels == nil {
		return nil
	}
	var out [][2]string
	for _, rel := range relationships(st.rels) {
		if rel.SelectAttrValue("Type", "") != relTypeHyperlink {
			continue
		}
		target := decodeURI(decodeURI(rel.SelectAttrValue("Target", "")))
		if len(ExtractPlaceholders(target)) > 0 {
			out = append(out, [2]string{rel.SelectAttrValue("Id", ""), target})
		}
	}
	return out
}

// Describe returns a human-readable listing of the template: per sheet the
// placeholder cells, tables with their columns, and hyperlink targets that
// hold placeholders. Useful while authoring templates.
func (w *Workbook) Describe() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Workbook: %s (%d sheets, %d shared strings)\n", w.workbookPart, len(w.sheets), w.strings.Len())
	for _, s := range w.sheets {
		st, err := w.inspectSheet(s)
		if err != nil {
			return "", fmt.Errorf("describe sheet %q: %w", s.Name, err)
		}
		// Tables are listed even when malformed refs keep them from loading.
		st.tables, _ = loadTables(w.pkg, s.Part, st.doc, st.rels)

		fmt.Fprintf(&b, "Sheet %d %q %s\n", s.ID, s.Name, s.Part)
		if dim := st.doc.Root().SelectElement("dimension"); dim != nil {
			fmt.Fprintf(&b, "  dimension %s\n", dim.SelectAttrValue("ref", ""))
		}
		if len(st.cells) > 0 {
			b.WriteString("  Placeholders:\n")
			for _, c := range st.cells {
				for _, p := range c.Placeholders {
					fmt.Fprintf(&b, "    %s: %s %s%s\n", c.Ref, p.Raw, p.Type, describeFlags(p))
				}
			}
		}
		for _, t := range st.tables {
			fmt.Fprintf(&b, "  Table %s %s\n", t.name(), t.doc.Root().SelectAttrValue("ref", ""))
			if cols := t.doc.Root().SelectElement("tableColumns"); cols != nil {
				var names []string
				for _, c := range cols.SelectElements("tableColumn") {
					names = append(names, c.SelectAttrValue("name", ""))
				}
				fmt.Fprintf(&b, "    columns: %s\n", strings.Join(names, ", "))
			}
		}
		if links := st.hyperlinkTargets(); len(links) > 0 {
			b.WriteString("  Hyperlinks:\n")
			for _, l := range links {
				fmt.Fprintf(&b, "    %s: %s\n", l[0], l[1])
			}
		}
	}
	return b.String(), nil
}

func describeFlags(p Placeholder) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("path=%q", p.Path()))
	if p.Full {
		parts = append(parts, "whole-cell")
	}
	return " " + strings.Join(parts, " ")
}

// Describe opens a template file and returns its description.
func Describe(templatePath string, opts ...Option) (string, error) {
	w, err := Open(templatePath, opts...)
	if err != nil {
		return "", err
	}
	return w.Describe()
}
