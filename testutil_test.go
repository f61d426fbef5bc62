package xltemplate

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	nsMain = `xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsRels = `xmlns="http://schemas.openxmlformats.org/package/2006/relationships"`
	xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

	relTypeStyles = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
)

// fixtureSheet is one worksheet of a hand-built package.
type fixtureSheet struct {
	name   string
	body   string            // children of <worksheet>
	rels   string            // <Relationship> elements of the sheet's rels part
	tables map[string]string // part name → <table> XML
}

// fixture describes a minimal package assembled from XML strings. Parts
// are written with fixed layout so tests can assert on exact XML:
//
//	xl/workbook.xml               sheets rId1..rIdN
//	xl/worksheets/sheetI.xml
//	xl/sharedStrings.xml          rId(N+1), unless noStrings is set
//	xl/styles.xml                 rId(N+2)
//	xl/calcChain.xml              rId(N+3), when calcChain is set
type fixture struct {
	sheets       []fixtureSheet
	strings      []string
	definedNames string
	calcChain    bool
	noStrings    bool // omit the shared-strings part
}

// singleSheet is a fixture with one sheet called Sheet1.
func singleSheet(body string, strs ...string) fixture {
	return fixture{sheets: []fixtureSheet{{name: "Sheet1", body: body}}, strings: strs}
}

func (f fixture) build(t *testing.T) []byte {
	t.Helper()
	parts := map[string]string{}
	var order []string
	add := func(name, content string) {
		parts[name] = content
		order = append(order, name)
	}

	var overrides, sheetEls, wbRels strings.Builder
	override := func(part, ct string) {
		fmt.Fprintf(&overrides, `<Override PartName="/%s" ContentType="%s"/>`, part, ct)
	}
	override("xl/workbook.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml")

	n := len(f.sheets)
	for i, s := range f.sheets {
		part := fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		override(part, contentTypeWorksheet)
		fmt.Fprintf(&sheetEls, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, s.name, i+1, i+1)
		fmt.Fprintf(&wbRels, `<Relationship Id="rId%d" Type="%s" Target="worksheets/sheet%d.xml"/>`, i+1, relTypeWorksheet, i+1)
		add(part, xmlDecl+"\n"+`<worksheet `+nsMain+`>`+s.body+`</worksheet>`)
		if s.rels != "" {
			add(fmt.Sprintf("xl/worksheets/_rels/sheet%d.xml.rels", i+1), xmlDecl+"\n"+`<Relationships `+nsRels+`>`+s.rels+`</Relationships>`)
		}
		names := make([]string, 0, len(s.tables))
		for name := range s.tables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			override(name, "application/vnd.openxmlformats-officedocument.spreadsheetml.table+xml")
			add(name, xmlDecl+"\n"+s.tables[name])
		}
	}

	if !f.noStrings {
		override("xl/sharedStrings.xml", contentTypeSharedStrings)
		fmt.Fprintf(&wbRels, `<Relationship Id="rId%d" Type="%s" Target="sharedStrings.xml"/>`, n+1, relTypeSharedStrings)
		var sst strings.Builder
		fmt.Fprintf(&sst, `<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="%d" uniqueCount="%d">`, len(f.strings), len(f.strings))
		for _, s := range f.strings {
			fmt.Fprintf(&sst, `<si><t>%s</t></si>`, s)
		}
		sst.WriteString(`</sst>`)
		add("xl/sharedStrings.xml", xmlDecl+"\n"+sst.String())
	}

	override("xl/styles.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml")
	fmt.Fprintf(&wbRels, `<Relationship Id="rId%d" Type="%s" Target="styles.xml"/>`, n+2, relTypeStyles)
	add("xl/styles.xml", xmlDecl+"\n"+`<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><fonts count="1"><font/></fonts><fills count="1"><fill/></fills><borders count="1"><border/></borders><cellXfs count="1"><xf/></cellXfs></styleSheet>`)

	if f.calcChain {
		override("xl/calcChain.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.calcChain+xml")
		fmt.Fprintf(&wbRels, `<Relationship Id="rId%d" Type="%s" Target="calcChain.xml"/>`, n+3, relTypeCalcChain)
		add("xl/calcChain.xml", xmlDecl+"\n"+`<calcChain xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><c r="A1" i="1"/></calcChain>`)
	}

	var definedNames string
	if f.definedNames != "" {
		definedNames = `<definedNames>` + f.definedNames + `</definedNames>`
	}
	add("xl/workbook.xml", xmlDecl+"\n"+`<workbook `+nsMain+`><bookViews><workbookView activeTab="0"/></bookViews><sheets>`+sheetEls.String()+`</sheets>`+definedNames+`</workbook>`)
	add("xl/_rels/workbook.xml.rels", xmlDecl+"\n"+`<Relationships `+nsRels+`>`+wbRels.String()+`</Relationships>`)
	add("_rels/.rels", xmlDecl+"\n"+`<Relationships `+nsRels+`><Relationship Id="rId1" Type="`+relTypeOfficeDocument+`" Target="xl/workbook.xml"/></Relationships>`)
	add(contentTypesPart, xmlDecl+"\n"+`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/>`+overrides.String()+`</Types>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// load builds the fixture and opens it.
func (f fixture) load(t *testing.T, opts ...Option) *Workbook {
	t.Helper()
	w, err := LoadFrom(f.build(t), opts...)
	require.NoError(t, err)
	return w
}

// sheetData wraps rows in <sheetData>.
func sheetData(rows ...string) string {
	return "<sheetData>" + strings.Join(rows, "") + "</sheetData>"
}

func row(r int, cells ...string) string {
	return fmt.Sprintf(`<row r="%d">%s</row>`, r, strings.Join(cells, ""))
}

func rowSpans(r int, spans string, cells ...string) string {
	return fmt.Sprintf(`<row r="%d" spans="%s">%s</row>`, r, spans, strings.Join(cells, ""))
}

// sCell is a shared-string cell.
func sCell(ref string, idx int) string {
	return fmt.Sprintf(`<c r="%s" t="s"><v>%d</v></c>`, ref, idx)
}

// nCell is a numeric cell.
func nCell(ref, v string) string {
	return fmt.Sprintf(`<c r="%s"><v>%s</v></c>`, ref, v)
}

// partDoc parses a part of the workbook's current package.
func partDoc(t *testing.T, w *Workbook, name string) *etree.Document {
	t.Helper()
	doc, err := w.pkg.readXMLPart(name)
	require.NoError(t, err)
	return doc
}

func sheetDoc(t *testing.T, w *Workbook, sheet string) *etree.Document {
	t.Helper()
	s, err := w.sheetByName(sheet)
	require.NoError(t, err)
	return partDoc(t, w, s.Part)
}

// cellAt returns the cell element at ref, or nil.
func cellAt(doc *etree.Document, ref string) *etree.Element {
	return doc.FindElement(fmt.Sprintf("//sheetData/row/c[@r='%s']", ref))
}

// cellText renders a cell the way a reader would see it: the pooled text
// of shared strings, "=formula" for formulas, the raw value otherwise.
func cellText(t *testing.T, w *Workbook, doc *etree.Document, ref string) string {
	t.Helper()
	c := cellAt(doc, ref)
	require.NotNil(t, c, "cell %s not found", ref)
	if f := c.SelectElement("f"); f != nil {
		return "=" + f.Text()
	}
	if idx, ok := sharedStringIndex(c); ok {
		s, ok := w.SharedStrings().Get(idx)
		require.True(t, ok, "cell %s points outside the pool", ref)
		return s
	}
	if v := c.SelectElement("v"); v != nil {
		return v.Text()
	}
	return ""
}

func attr(doc *etree.Document, path, key string) string {
	e := doc.FindElement(path)
	if e == nil {
		return ""
	}
	return e.SelectAttrValue(key, "")
}

// hasOverride reports whether [Content_Types].xml declares part.
func hasOverride(ct *etree.Document, part string) bool {
	for _, o := range ct.Root().SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == "/"+part {
			return true
		}
	}
	return false
}

func rowNumbers(doc *etree.Document) []string {
	var out []string
	for _, r := range doc.FindElements("//sheetData/row") {
		out = append(out, r.SelectAttrValue("r", ""))
	}
	return out
}

// writeZip writes parts to w in name order.
func writeZip(w io.Writer, parts map[string]string) error {
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)
	zw := zip.NewWriter(w)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(fw, parts[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

// unzip returns every entry of an archive by name.
func unzip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(b)
	}
	return out
}

// newExcelizeTemplate builds a template with excelize from cell values on Sheet1.
func newExcelizeTemplate(t *testing.T, cells map[string]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for ref, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", ref, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// openExcelize re-opens generated output for reading.
func openExcelize(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}
