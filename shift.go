package xltemplate

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// shifter keeps range-valued references consistent after cells or rows
// are inserted on one sheet.
type shifter struct {
	sheet    *etree.Element // <worksheet>
	workbook *etree.Element // <workbook>
	tables   []*namedTable
}

// pushRight moves merges, sheet hyperlinks and defined names that start on
// trigger's row, strictly right of trigger's column, n columns to the right.
func (s *shifter) pushRight(trigger CellRef, n int) error {
	col := trigger.ColNumber()
	onRowRight := func(start CellRef) bool {
		return start.Row == trigger.Row && start.ColNumber() > col
	}

	for _, mc := range s.mergeCells() {
		r, err := ParseRange(mc.SelectAttrValue("ref", ""))
		if err != nil {
			return err
		}
		if onRowRight(r.Start) {
			mc.CreateAttr("ref", r.ShiftCols(n).String())
		}
	}
	for _, h := range s.hyperlinks() {
		r, err := ParseRange(h.SelectAttrValue("ref", ""))
		if err != nil {
			return err
		}
		if onRowRight(r.Start) {
			h.CreateAttr("ref", formatLike(h.SelectAttrValue("ref", ""), r.ShiftCols(n)))
		}
	}
	s.shiftDefinedNames(onRowRight, func(r Range) Range { return r.ShiftCols(n) })
	return nil
}

// pushDown moves everything that starts below row n rows down. Merges that
// start on row itself are repeated once on each of the n inserted rows.
func (s *shifter) pushDown(row, n int) error {
	below := func(start CellRef) bool { return start.Row > row }

	if mergeCells := s.sheet.SelectElement("mergeCells"); mergeCells != nil {
		var added []*etree.Element
		for _, mc := range mergeCells.SelectElements("mergeCell") {
			r, err := ParseRange(mc.SelectAttrValue("ref", ""))
			if err != nil {
				return err
			}
			switch {
			case below(r.Start):
				mc.CreateAttr("ref", r.ShiftRows(n).String())
			case r.Start.Row == row:
				for i := 1; i <= n; i++ {
					dup := cloneDeep(mc)
					dup.CreateAttr("ref", r.ShiftRows(i).String())
					added = append(added, dup)
				}
			}
		}
		for _, mc := range added {
			mergeCells.AddChild(mc)
		}
		mergeCells.CreateAttr("count", strconv.Itoa(len(mergeCells.SelectElements("mergeCell"))))
	}

	for _, h := range s.hyperlinks() {
		r, err := ParseRange(h.SelectAttrValue("ref", ""))
		if err != nil {
			return err
		}
		if below(r.Start) {
			h.CreateAttr("ref", formatLike(h.SelectAttrValue("ref", ""), r.ShiftRows(n)))
		}
	}

	for _, t := range s.tables {
		if below(t.ref.Start) {
			t.shiftRows(n)
		}
	}

	if af := s.sheet.SelectElement("autoFilter"); af != nil {
		ref := af.SelectAttrValue("ref", "")
		r, err := ParseRange(ref)
		if err != nil {
			return err
		}
		switch {
		case below(r.Start):
			af.CreateAttr("ref", formatLike(ref, r.ShiftRows(n)))
		case r.Start.Row <= row && row <= r.End.Row:
			r.End = r.End.ShiftRows(n)
			af.CreateAttr("ref", formatLike(ref, r))
		}
	}

	s.shiftDefinedNames(below, func(r Range) Range { return r.ShiftRows(n) })
	return nil
}

// shiftDefinedNames applies move to every area of a workbook defined name
// whose start satisfies match. Point names stay point names. Names that are
// not plain cell or range references are left alone.
func (s *shifter) shiftDefinedNames(match func(CellRef) bool, move func(Range) Range) {
	if s.workbook == nil {
		return
	}
	names := s.workbook.SelectElement("definedNames")
	if names == nil {
		return
	}
	for _, dn := range names.SelectElements("definedName") {
		text := dn.Text()
		areas, ok := nameAreas(text)
		if !ok {
			continue
		}
		parts := strings.Split(text, ",")
		moved := false
		for i, r := range areas {
			if match(r.Start) {
				parts[i] = formatLike(parts[i], move(r))
				moved = true
			}
		}
		if moved {
			dn.SetText(strings.Join(parts, ","))
		}
	}
}

// nameAreas splits a defined name into its comma-separated areas. ok is
// false for constants, formulas and whole-row or whole-column references.
func nameAreas(text string) (areas []Range, ok bool) {
	for _, part := range strings.Split(text, ",") {
		r, err := ParseRange(part)
		if err != nil {
			return nil, false
		}
		areas = append(areas, r)
	}
	return areas, true
}

func (s *shifter) mergeCells() []*etree.Element {
	mergeCells := s.sheet.SelectElement("mergeCells")
	if mergeCells == nil {
		return nil
	}
	return mergeCells.SelectElements("mergeCell")
}

func (s *shifter) hyperlinks() []*etree.Element {
	links := s.sheet.SelectElement("hyperlinks")
	if links == nil {
		return nil
	}
	return links.SelectElements("hyperlink")
}

// formatLike renders r in the same single-cell or range form as orig.
func formatLike(orig string, r Range) string {
	if IsRange(orig) {
		return r.String()
	}
	return r.Start.String()
}
