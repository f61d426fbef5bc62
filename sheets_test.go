package xltemplate

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type SheetsSuite struct {
	suite.Suite
	wb *Workbook
}

func TestSheetsSuite(t *testing.T) {
	suite.Run(t, new(SheetsSuite))
}

func (s *SheetsSuite) SetupTest() {
	data := fixture{
		sheets: []fixtureSheet{
			{
				name: "Data",
				body: `<dimension ref="A1:B2"/>` + sheetData(
					row(1, sCell("A1", 0), sCell("B1", 1)),
					row(2, sCell("A2", 2)),
				) + `<hyperlinks><hyperlink ref="B1" r:id="rId2"/></hyperlinks>` + tablePartsBody(),
				rels: tableRels() +
					`<Relationship Id="rId2" Type="` + relTypeHyperlink + `" Target="https://example.com/%7B%7Bid%7D%7D" TargetMode="External"/>`,
				tables: map[string]string{
					"xl/tables/table1.xml": `<table ` + tableXMLNS + ` id="1" name="T" displayName="T" ref="A1:B2"><autoFilter ref="A1:B2"/><tableColumns count="2"><tableColumn id="1" name="Name"/><tableColumn id="2" name="Link"/></tableColumns></table>`,
				},
			},
			{name: "Summary", body: sheetData(row(1, sCell("A1", 0)))},
		},
		strings: []string{"{{title}}", "link", "{{table:rows.v}}"},
		definedNames: `<definedName name="DataTitle" localSheetId="0">Data!$A$1</definedName>` +
			`<definedName name="SummaryTitle" localSheetId="1">Summary!$A$1</definedName>` +
			`<definedName name="Global">Summary!$A$1</definedName>`,
	}
	s.wb = data.load(s.T())
}

func (s *SheetsSuite) sheetNames() []string {
	var names []string
	for _, sh := range s.wb.Sheets() {
		names = append(names, sh.Name)
	}
	return names
}

func (s *SheetsSuite) TestCopySheet() {
	s.Require().NoError(s.wb.CopySheet("Data", "Copy"))

	sheets := s.wb.Sheets()
	s.Require().Len(sheets, 3)
	s.Equal([]string{"Data", "Summary", "Copy"}, s.sheetNames())
	for i, sh := range sheets {
		s.Equal(i+1, sh.ID)
		s.Equal("rId"+string(rune('1'+i)), sh.RelID)
	}
	s.Equal("xl/worksheets/sheet3.xml", sheets[2].Part)

	rels := partDoc(s.T(), s.wb, "xl/_rels/workbook.xml.rels")
	s.Equal("rId4", findRelByType(rels, relTypeStyles).SelectAttrValue("Id", ""))
	s.Equal("rId5", findRelByType(rels, relTypeSharedStrings).SelectAttrValue("Id", ""))
	s.True(hasOverride(partDoc(s.T(), s.wb, contentTypesPart), "xl/worksheets/sheet3.xml"))

	copyDoc := sheetDoc(s.T(), s.wb, "Copy")
	s.Nil(copyDoc.Root().SelectElement("tableParts"))
	copyRels := partDoc(s.T(), s.wb, "xl/worksheets/_rels/sheet3.xml.rels")
	s.Nil(findRelByType(copyRels, relTypeTable))
	s.NotNil(findRelByID(copyRels, "rId2"))
}

func (s *SheetsSuite) TestCopySheetIsIndependent() {
	s.Require().NoError(s.wb.CopySheet("Data", "Copy"))
	values := map[string]any{
		"title": "Copied",
		"id":    7,
		"rows":  []any{map[string]any{"v": 1}, map[string]any{"v": 2}},
	}
	s.Require().NoError(s.wb.Substitute("Copy", values))

	copyDoc := sheetDoc(s.T(), s.wb, "Copy")
	s.Equal("Copied", cellText(s.T(), s.wb, copyDoc, "A1"))
	s.Equal([]string{"1", "2", "3"}, rowNumbers(copyDoc))

	dataDoc := sheetDoc(s.T(), s.wb, "Data")
	s.Equal("{{title}}", cellText(s.T(), s.wb, dataDoc, "A1"))
	s.Equal([]string{"1", "2"}, rowNumbers(dataDoc))

	// The table stays with the source sheet.
	table := partDoc(s.T(), s.wb, "xl/tables/table1.xml")
	s.Equal("A1:B2", table.Root().SelectAttrValue("ref", ""))

	out, err := s.wb.Generate()
	s.Require().NoError(err)
	xf := openExcelize(s.T(), out)
	s.Equal([]string{"Data", "Summary", "Copy"}, xf.GetSheetList())
	v, err := xf.GetCellValue("Copy", "A3")
	s.Require().NoError(err)
	s.Equal("2", v)
}

func (s *SheetsSuite) TestCopySheetDefaultName() {
	s.Require().NoError(s.wb.CopySheet("Data", ""))
	s.Require().NoError(s.wb.CopySheet("Summary", ""))
	s.Equal([]string{"Data", "Summary", "Sheet3", "Sheet4"}, s.sheetNames())
}

func (s *SheetsSuite) TestCopySheetErrors() {
	s.ErrorIs(s.wb.CopySheet("Nope", "X"), ErrSheetNotFound)
	s.Error(s.wb.CopySheet("Data", "Summary"))
	s.Len(s.wb.Sheets(), 2)
}

func (s *SheetsSuite) TestDeleteSheet() {
	s.Require().NoError(s.wb.DeleteSheet("Data"))

	sheets := s.wb.Sheets()
	s.Require().Len(sheets, 1)
	s.Equal(Sheet{ID: 1, Name: "Summary", RelID: "rId1", Part: "xl/worksheets/sheet2.xml"}, sheets[0])
	s.True(s.wb.pkg.has("xl/worksheets/sheet1.xml"), "the part stays in the package")

	wb := partDoc(s.T(), s.wb, "xl/workbook.xml")
	s.Nil(wb.FindElement("//definedName[@name='DataTitle']"))
	s.Equal("0", wb.FindElement("//definedName[@name='SummaryTitle']").SelectAttrValue("localSheetId", ""))
	s.NotNil(wb.FindElement("//definedName[@name='Global']"))

	rels := partDoc(s.T(), s.wb, "xl/_rels/workbook.xml.rels")
	s.Len(relationships(rels), 3)
	s.Equal("rId3", findRelByType(rels, relTypeSharedStrings).SelectAttrValue("Id", ""))

	s.ErrorIs(s.wb.Substitute("Data", nil), ErrSheetNotFound)
	s.Require().NoError(s.wb.Substitute("Summary", map[string]any{"title": "Only"}))

	out, err := s.wb.Generate()
	s.Require().NoError(err)
	xf := openExcelize(s.T(), out)
	s.Equal([]string{"Summary"}, xf.GetSheetList())
}

func (s *SheetsSuite) TestDeleteSheetKeepsActiveTab() {
	s.Require().NoError(s.wb.CopySheet("Data", "Copy"))
	setActive := func(tab string) {
		s.wb.workbook.FindElement("//workbookView").CreateAttr("activeTab", tab)
	}
	activeTab := func() string {
		return attr(partDoc(s.T(), s.wb, "xl/workbook.xml"), "//workbookView", "activeTab")
	}

	setActive("1")
	s.Require().NoError(s.wb.DeleteSheet("Data"))
	s.Equal("0", activeTab(), "Summary stays active")

	setActive("0")
	s.Require().NoError(s.wb.DeleteSheet("Copy"))
	s.Equal("0", activeTab())

	s.Require().NoError(s.wb.CopySheet("Summary", "Last"))
	setActive("1")
	s.Require().NoError(s.wb.DeleteSheet("Last"))
	s.Equal("0", activeTab(), "deleting the active last sheet selects the one before")
}

func (s *SheetsSuite) TestDeleteLastSheet() {
	s.Require().NoError(s.wb.DeleteSheet("Summary"))
	s.Error(s.wb.DeleteSheet("Data"))
	s.ErrorIs(s.wb.DeleteSheet("Summary"), ErrSheetNotFound)
}
