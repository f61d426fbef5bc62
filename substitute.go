package xltemplate

import (
	"fmt"
	"path"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
)

// Substitute resolves the placeholders of one sheet. The call is
// all-or-nothing: on error no part of the workbook changes.
func (w *Workbook) Substitute(sheet string, values any) error {
	s, err := w.sheetByName(sheet)
	if err != nil {
		return err
	}
	return w.substitute(s, values)
}

// SubstituteIndex is Substitute for a 1-based sheet number, matched first
// against sheetId and then against the sheet's position.
func (w *Workbook) SubstituteIndex(index int, values any) error {
	s, err := w.sheetByIndex(index)
	if err != nil {
		return err
	}
	return w.substitute(s, values)
}

// SubstituteAll substitutes every sheet, or the sheets named with WithSheets.
func (w *Workbook) SubstituteAll(values any) error {
	targets := w.Sheets()
	if len(w.opts.sheets) > 0 {
		targets = targets[:0]
		for _, name := range w.opts.sheets {
			s, err := w.sheetByName(name)
			if err != nil {
				return err
			}
			targets = append(targets, s)
		}
	}
	for _, s := range targets {
		if err := w.substitute(s, values); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) substitute(s Sheet, values any) error {
	sub, err := w.newSheetSubstitution(s, values)
	if err == nil {
		err = sub.run()
	}
	if err == nil {
		err = sub.commit()
	}
	if err != nil {
		return &SubstitutionError{Sheet: s.Name, Err: err}
	}
	w.log.Debug("sheet substituted",
		"sheet", s.Name,
		"part", s.Part,
		"rows_inserted", sub.rowsInserted,
		"cols_inserted", sub.colsInserted,
		"tables", len(sub.tables))
	return nil
}

// sheetSubstitution holds the private copies one Substitute call mutates.
type sheetSubstitution struct {
	w      *Workbook
	sheet  Sheet
	values any

	pool        *SharedStrings
	doc         *etree.Document
	workbook    *etree.Document
	rels        *etree.Document // nil when the sheet has no relationships part
	relsChanged bool
	tables      []*namedTable
	shift       *shifter

	rowsInserted int
	colsInserted int
	touched      bool
}

// rowState tracks one source row while its cells are walked.
type rowState struct {
	row      *etree.Element
	r        int
	cells    []*etree.Element
	inserted int
	rebuild  bool
	newRows  []*etree.Element
}

func (rs *rowState) keep(cell *etree.Element) {
	rs.cells = append(rs.cells, cell)
}

func (w *Workbook) newSheetSubstitution(s Sheet, values any) (*sheetSubstitution, error) {
	doc, err := w.pkg.readXMLPart(s.Part)
	if err != nil {
		return nil, err
	}
	var rels *etree.Document
	if relsPart := relsPartFor(s.Part); w.pkg.has(relsPart) {
		if rels, err = w.pkg.readXMLPart(relsPart); err != nil {
			return nil, err
		}
	}
	tables, err := loadTables(w.pkg, s.Part, doc, rels)
	if err != nil {
		return nil, err
	}
	wb := w.workbook.Copy()
	return &sheetSubstitution{
		w:        w,
		sheet:    s,
		values:   values,
		pool:     w.strings.clone(),
		doc:      doc,
		workbook: wb,
		rels:     rels,
		tables:   tables,
		shift:    &shifter{sheet: doc.Root(), workbook: wb.Root(), tables: tables},
	}, nil
}

func (s *sheetSubstitution) run() error {
	root := s.doc.Root()
	if sheetData := root.SelectElement("sheetData"); sheetData != nil {
		if err := s.substituteRows(sheetData); err != nil {
			return err
		}
		if s.touched {
			stripCachedFormulaValues(sheetData)
		}
	}
	for _, t := range s.tables {
		t.substituteColumnHeaders(s.values)
	}
	if s.w.opts.hyperlinks {
		s.substituteHyperlinks()
	}
	return s.updateDimension()
}

// substituteRows walks the rows in order. Every row and cell address is
// rewritten with the rows and columns inserted so far before its cells are
// substituted.
func (s *sheetSubstitution) substituteRows(sheetData *etree.Element) error {
	var rows []*etree.Element
	prev := 0
	for _, row := range sheetData.SelectElements("row") {
		r, ok := attrInt(row, "r")
		if !ok {
			r = prev + 1
		}
		prev = r

		rs := &rowState{row: row, r: r + s.rowsInserted}
		row.CreateAttr("r", strconv.Itoa(rs.r))
		rows = append(rows, row)
		if err := s.substituteRow(rs); err != nil {
			return err
		}
		s.colsInserted = max(s.colsInserted, rs.inserted)
		if len(rs.newRows) > 0 {
			rows = append(rows, rs.newRows...)
			s.rowsInserted += len(rs.newRows)
			if err := s.shift.pushDown(rs.r, len(rs.newRows)); err != nil {
				return err
			}
		}
	}
	if s.rowsInserted > 0 {
		replaceChildren(sheetData, rows)
	}
	return nil
}

func (s *sheetSubstitution) substituteRow(rs *rowState) error {
	prevCol := 0
	for _, cell := range rs.row.SelectElements("c") {
		col := prevCol + 1
		if a := cell.SelectAttr("r"); a != nil {
			ref, err := ParseRef(a.Value)
			if err != nil {
				return err
			}
			col = ref.ColNumber()
		}
		prevCol = col

		ref := CellRef{Col: NumberToChars(col + rs.inserted), Row: rs.r}
		cell.CreateAttr("r", ref.String())
		if err := s.substituteCell(rs, cell, ref); err != nil {
			return err
		}
	}
	if rs.rebuild {
		var rest []*etree.Element
		for _, c := range rs.row.ChildElements() {
			if c.Tag != "c" {
				rest = append(rest, c)
			}
		}
		replaceChildren(rs.row, append(rs.cells, rest...))
	}
	updateRowSpan(rs.row, rs.inserted)
	return nil
}

// substituteCell handles one cell at its current address ref. Only
// shared-string cells can hold placeholders.
func (s *sheetSubstitution) substituteCell(rs *rowState, cell *etree.Element, ref CellRef) error {
	idx, ok := sharedStringIndex(cell)
	if !ok {
		rs.keep(cell)
		return nil
	}
	text, ok := s.pool.Get(idx)
	if !ok {
		rs.keep(cell)
		return nil
	}
	phs := ExtractPlaceholders(text)
	if len(phs) == 0 {
		rs.keep(cell)
		return nil
	}
	s.touched = true

	if len(phs) == 1 && phs[0].Full {
		return s.substituteWhole(rs, cell, ref, phs[0])
	}
	out, _ := replacePlaceholders(text, s.values, true)
	setSharedString(cell, out, s.pool)
	rs.keep(cell)
	return nil
}

// substituteWhole dispatches a placeholder that is the cell's entire text.
// Sequences expand; everything else, undefined included, is written as a scalar.
func (s *sheetSubstitution) substituteWhole(rs *rowState, cell *etree.Element, ref CellRef, p Placeholder) error {
	if p.IsTable() {
		val, ok := Lookup(s.values, p.Name)
		if seq, isSeq := AsSequence(val); ok && isSeq {
			return s.recordInserted(rs, ref, s.substituteTable(rs, cell, ref, p.Key, seq))
		}
	} else {
		val, ok := Lookup(s.values, p.Path())
		if seq, isSeq := AsSequence(val); ok && isSeq {
			return s.recordInserted(rs, ref, s.substituteArray(&rs.cells, cell, ref, seq))
		}
	}
	val, _ := Lookup(s.values, p.Path())
	insertCellValue(cell, val, s.pool)
	rs.keep(cell)
	return nil
}

func (s *sheetSubstitution) recordInserted(rs *rowState, ref CellRef, n int) error {
	rs.rebuild = true
	if n == 0 {
		return nil
	}
	rs.inserted += n
	return s.shift.pushRight(ref, n)
}

// substituteArray writes seq into cell and the cells to its right and
// returns the number of columns inserted. An empty sequence clears the cell.
func (s *sheetSubstitution) substituteArray(dst *[]*etree.Element, cell *etree.Element, ref CellRef, seq []any) int {
	if len(seq) == 0 {
		clearCell(cell)
		*dst = append(*dst, cell)
		return 0
	}
	proto := cloneDeep(cell)
	for i, el := range seq {
		c := cell
		if i > 0 {
			c = cloneDeep(proto)
		}
		c.CreateAttr("r", ref.ShiftCols(i).String())
		insertCellValue(c, el, s.pool)
		*dst = append(*dst, c)
	}
	return len(seq) - 1
}

// substituteTable writes record 0 into cell and records 1..n-1 into the
// rows below, creating them as needed. Tables containing the cell grow by one
// row for every record that falls outside them. It returns the columns
// inserted on the source row.
func (s *sheetSubstitution) substituteTable(rs *rowState, cell *etree.Element, ref CellRef, key string, seq []any) int {
	if len(seq) == 0 {
		clearCell(cell)
		rs.keep(cell)
		return 0
	}
	proto := cloneDeep(cell)
	var parents []*namedTable
	for _, t := range s.tables {
		if t.contains(ref) {
			parents = append(parents, t)
		}
	}

	inserted := 0
	for i, record := range seq {
		val, _ := Lookup(record, key)
		if i == 0 {
			if arr, ok := AsSequence(val); ok {
				inserted = s.substituteArray(&rs.cells, cell, ref, arr)
			} else {
				insertCellValue(cell, val, s.pool)
				rs.keep(cell)
			}
			continue
		}

		row := s.tableRow(rs, i)
		at := ref.WithRow(rs.r + i)
		c := cloneDeep(proto)
		c.CreateAttr("r", at.String())
		if arr, ok := AsSequence(val); ok {
			var cells []*etree.Element
			n := s.substituteArray(&cells, c, at, arr)
			for _, x := range cells {
				row.AddChild(x)
			}
			updateRowSpan(row, n)
		} else {
			insertCellValue(c, val, s.pool)
			row.AddChild(c)
		}
		for _, t := range parents {
			if !t.contains(at) {
				t.growDown()
			}
		}
	}
	return inserted
}

// tableRow returns synthetic row i (1-based) below the source row. Rows are
// shared by every table placeholder of the source row.
func (s *sheetSubstitution) tableRow(rs *rowState, i int) *etree.Element {
	if i-1 < len(rs.newRows) {
		return rs.newRows[i-1]
	}
	row := cloneShallow(rs.row)
	row.CreateAttr("r", strconv.Itoa(rs.r+len(rs.newRows)+1))
	rs.newRows = append(rs.newRows, row)
	return row
}

// updateDimension grows the sheet extent by the rows and columns inserted.
func (s *sheetSubstitution) updateDimension() error {
	dim := s.doc.Root().SelectElement("dimension")
	if dim == nil || (s.rowsInserted == 0 && s.colsInserted == 0) {
		return nil
	}
	r, err := ParseRange(dim.SelectAttrValue("ref", ""))
	if err != nil {
		return err
	}
	r.End = r.End.ShiftRows(s.rowsInserted).ShiftCols(s.colsInserted)
	dim.CreateAttr("ref", r.String())
	return nil
}

// stripCachedFormulaValues drops <v> from every cell that has a formula.
func stripCachedFormulaValues(sheetData *etree.Element) {
	for _, row := range sheetData.SelectElements("row") {
		for _, c := range row.SelectElements("c") {
			if c.SelectElement("f") != nil {
				removeElements(c, "v")
			}
		}
	}
}

func (s *sheetSubstitution) commit() error {
	cs := newChangeset()
	if err := cs.put(s.sheet.Part, s.doc); err != nil {
		return err
	}
	for _, t := range s.tables {
		if !t.changed {
			continue
		}
		t.sync()
		if err := cs.put(t.part, t.doc); err != nil {
			return err
		}
	}
	if s.relsChanged {
		if err := cs.put(relsPartFor(s.sheet.Part), s.rels); err != nil {
			return err
		}
	}
	if err := s.w.stageShared(cs, s.workbook, s.pool, s.w.opts.removeCalcChain); err != nil {
		return err
	}
	s.w.apply(cs)
	return nil
}

// changeset collects serialized part writes and removals so they can be
// applied together once every part has been produced.
type changeset struct {
	writes  []stagedPart
	removes []string
	after   []func()
}

type stagedPart struct {
	name string
	data []byte
}

func newChangeset() *changeset {
	return &changeset{}
}

func (c *changeset) put(name string, doc *etree.Document) error {
	b, err := serializeXML(name, doc)
	if err != nil {
		return err
	}
	c.writes = append(c.writes, stagedPart{name: name, data: b})
	return nil
}

func (c *changeset) remove(name string) {
	c.removes = append(c.removes, name)
}

func (c *changeset) onCommit(fn func()) {
	c.after = append(c.after, fn)
}

func (w *Workbook) apply(c *changeset) {
	for _, p := range c.writes {
		w.pkg.writePart(p.name, p.data)
	}
	for _, name := range c.removes {
		w.pkg.removePart(name)
	}
	for _, fn := range c.after {
		fn()
	}
}

// stageShared stages the workbook-level parts: the workbook itself (when wb
// is not nil), the shared-string pool and, if asked, the calculation chain
// removal.
func (w *Workbook) stageShared(cs *changeset, wb *etree.Document, pool *SharedStrings, dropCalcChain bool) error {
	rels := w.workbookRels
	relsChanged := false
	editRels := func() {
		if !relsChanged {
			rels = w.workbookRels.Copy()
			relsChanged = true
		}
	}
	var ct *contentTypes
	editTypes := func() error {
		if ct != nil {
			return nil
		}
		var err error
		ct, err = w.pkg.contentTypes()
		return err
	}

	stringsPart := w.stringsPart
	if stringsPart == "" && pool.Len() > 0 {
		stringsPart = path.Join(path.Dir(w.workbookPart), "sharedStrings.xml")
		editRels()
		addRelationship(rels, relTypeSharedStrings, relativeTarget(w.workbookPart, stringsPart))
		if err := editTypes(); err != nil {
			return err
		}
		ct.addOverride(stringsPart, contentTypeSharedStrings)
	}
	if stringsPart != "" {
		if err := cs.put(stringsPart, pool.document(w.stringsBase)); err != nil {
			return err
		}
	}

	calcChainPart := w.calcChainPart
	if dropCalcChain && calcChainPart != "" {
		editRels()
		removeRelsByType(rels, relTypeCalcChain)
		if err := editTypes(); err != nil {
			return err
		}
		ct.removeOverride(calcChainPart)
		cs.remove(calcChainPart)
		w.log.Debug("calculation chain removed", "part", calcChainPart)
		calcChainPart = ""
	}

	if wb != nil {
		if err := cs.put(w.workbookPart, wb); err != nil {
			return err
		}
	}
	if relsChanged {
		if err := cs.put(relsPartFor(w.workbookPart), rels); err != nil {
			return err
		}
	}
	if ct != nil {
		if err := cs.put(contentTypesPart, ct.doc); err != nil {
			return err
		}
	}

	cs.onCommit(func() {
		w.strings = pool
		w.stringsPart = stringsPart
		w.stringsDirty = false
		w.calcChainPart = calcChainPart
		w.workbookRels = rels
		if wb != nil {
			w.workbook = wb
		}
	})
	return nil
}

var relIDPattern = regexp.MustCompile(`^rId(\d+)$`)

// addRelationship appends a relationship with the next free rIdN and returns the id.
func addRelationship(rels *etree.Document, typ, target string) string {
	next := 1
	for _, r := range relationships(rels) {
		if m := relIDPattern.FindStringSubmatch(r.SelectAttrValue("Id", "")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
				next = n + 1
			}
		}
	}
	id := fmt.Sprintf("rId%d", next)
	rel := rels.Root().CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", typ)
	rel.CreateAttr("Target", target)
	return id
}

func removeRelsByType(rels *etree.Document, typ string) {
	for _, r := range relationships(rels) {
		if r.SelectAttrValue("Type", "") == typ {
			rels.Root().RemoveChild(r)
		}
	}
}
