package xltemplate

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// insertCellValue writes val into cell and returns the text written.
//
//	"=..." strings  formula cell, no cached value
//	numbers, dates  numeric cell
//	booleans        t="b"
//	anything else   shared string
func insertCellValue(cell *etree.Element, val any, pool *SharedStrings) string {
	text := Stringify(val)
	removeElements(cell, "f")
	removeElements(cell, "v")
	removeElements(cell, "is")

	switch classify(val) {
	case kindFormula:
		cell.RemoveAttr("t")
		f := etree.NewElement("f")
		f.SetText(strings.TrimPrefix(text, "="))
		cell.InsertChildAt(0, f)
		return f.Text()
	case kindNumber:
		cell.RemoveAttr("t")
		cell.CreateElement("v").SetText(text)
	case kindBool:
		cell.CreateAttr("t", "b")
		cell.CreateElement("v").SetText(text)
	default:
		setSharedString(cell, text, pool)
	}
	return text
}

// setSharedString turns cell into a shared-string cell holding text.
func setSharedString(cell *etree.Element, text string, pool *SharedStrings) {
	removeElements(cell, "f")
	removeElements(cell, "v")
	removeElements(cell, "is")
	cell.CreateAttr("t", "s")
	cell.CreateElement("v").SetText(strconv.Itoa(pool.IndexOf(text)))
}

// clearCell empties a cell but keeps its address and style.
func clearCell(cell *etree.Element) {
	cell.RemoveAttr("t")
	replaceChildren(cell, nil)
}

// sharedStringIndex returns the pool index held by a t="s" cell.
func sharedStringIndex(cell *etree.Element) (int, bool) {
	if cell.SelectAttrValue("t", "") != "s" {
		return 0, false
	}
	v := cell.SelectElement("v")
	if v == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(v.Text()))
	if err != nil {
		return 0, false
	}
	return idx, true
}

// updateRowSpan widens the upper bound of a row's last spans range by n.
func updateRowSpan(row *etree.Element, n int) {
	spans := row.SelectAttrValue("spans", "")
	if n == 0 || spans == "" {
		return
	}
	parts := strings.Fields(spans)
	lo, hi, ok := strings.Cut(parts[len(parts)-1], ":")
	if !ok {
		return
	}
	end, err := strconv.Atoi(hi)
	if err != nil {
		return
	}
	parts[len(parts)-1] = lo + ":" + strconv.Itoa(end+n)
	row.CreateAttr("spans", strings.Join(parts, " "))
}
