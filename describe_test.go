package xltemplate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describedFixture() fixture {
	return fixture{
		sheets: []fixtureSheet{{
			name: "Sheet1",
			body: `<dimension ref="A1:B2"/>` + sheetData(
				row(1, sCell("A1", 0), nCell("B1", "4")),
				row(2, sCell("A2", 1), sCell("B2", 2)),
			) + `<hyperlinks><hyperlink ref="B1" r:id="rId2"/></hyperlinks>` + tablePartsBody(),
			rels: tableRels() +
				`<Relationship Id="rId2" Type="` + relTypeHyperlink + `" Target="https://x.test/%7B%7Bid%7D%7D" TargetMode="External"/>` +
				`<Relationship Id="rId3" Type="` + relTypeHyperlink + `" Target="https://x.test/static" TargetMode="External"/>`,
			tables: map[string]string{
				"xl/tables/table1.xml": `<table ` + tableXMLNS + ` id="1" name="Table1" displayName="Lines" ref="A1:B2"><tableColumns count="2"><tableColumn id="1" name="Name"/><tableColumn id="2" name="{{cols}}"/></tableColumns></table>`,
			},
		}},
		strings: []string{"{{title}}", "{{table:items.qty}}", "Qty: {{x.y}}"},
	}
}

func TestDescribe_Workbook(t *testing.T) {
	w := describedFixture().load(t)
	out, err := w.Describe()
	require.NoError(t, err)

	assert.Contains(t, out, "Workbook: xl/workbook.xml (1 sheets, 3 shared strings)\n")
	assert.Contains(t, out, `Sheet 1 "Sheet1" xl/worksheets/sheet1.xml`+"\n")
	assert.Contains(t, out, "  dimension A1:B2\n")
	assert.Contains(t, out, "  Placeholders:\n")
	assert.Contains(t, out, `    A1: {{title}} normal path="title" whole-cell`+"\n")
	assert.Contains(t, out, `    A2: {{table:items.qty}} table path="items.qty" whole-cell`+"\n")
	assert.Contains(t, out, `    B2: {{x.y}} normal path="x.y"`+"\n")
	assert.Contains(t, out, "  Table Lines A1:B2\n    columns: Name, {{cols}}\n")
	assert.Contains(t, out, "  Hyperlinks:\n    rId2: https://x.test/{{id}}\n")
	assert.NotContains(t, out, "static")
}

func TestDescribe_DoesNotModify(t *testing.T) {
	data := describedFixture().build(t)
	w, err := LoadFrom(data)
	require.NoError(t, err)
	_, err = w.Describe()
	require.NoError(t, err)

	out, err := w.Generate()
	require.NoError(t, err)
	assert.Equal(t, unzip(t, data), unzip(t, out))
}

func TestDescribe_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "describe.xlsx")
	require.NoError(t, os.WriteFile(path, newExcelizeTemplate(t, map[string]any{
		"A1": "{{name}}",
		"B3": "Dear {{person.first}}",
		"C1": 12,
	}), 0o644))

	out, err := Describe(path)
	require.NoError(t, err)
	assert.Contains(t, out, `Sheet 1 "Sheet1"`)
	assert.Contains(t, out, `A1: {{name}} normal path="name" whole-cell`)
	assert.Contains(t, out, `B3: {{person.first}} normal path="person.first"`)

	_, err = Describe(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
