package xltemplate

import (
	"fmt"
	"path"
	"strconv"

	"github.com/beevik/etree"
)

// CopySheet appends a copy of sheet name called newName. The copy shares
// every relationship target of the source except its tables. An empty
// newName becomes "SheetN", N being the first free number from the new
// sheet count up.
func (w *Workbook) CopySheet(name, newName string) error {
	src, err := w.sheetByName(name)
	if err != nil {
		return err
	}
	if newName == "" {
		for n := len(w.sheets) + 1; ; n++ {
			newName = "Sheet" + strconv.Itoa(n)
			if _, err := w.sheetByName(newName); err != nil {
				break
			}
		}
	}
	if _, err := w.sheetByName(newName); err == nil {
		return fmt.Errorf("copy sheet %q: sheet %q already exists", name, newName)
	}
	srcEl := w.sheetElement(src)
	if srcEl == nil {
		return &SheetNotFoundError{Sheet: name}
	}

	cs := newChangeset()
	part := w.freeSheetPart()

	doc, err := w.pkg.readXMLPart(src.Part)
	if err != nil {
		return err
	}
	removeElements(doc.Root(), "tableParts")
	if err := cs.put(part, doc); err != nil {
		return err
	}
	if srcRels := relsPartFor(src.Part); w.pkg.has(srcRels) {
		rels, err := w.pkg.readXMLPart(srcRels)
		if err != nil {
			return err
		}
		removeRelsByType(rels, relTypeTable)
		if len(relationships(rels)) > 0 {
			rebaseTargets(rels, src.Part, part)
			if err := cs.put(relsPartFor(part), rels); err != nil {
				return err
			}
		}
	}

	ct, err := w.pkg.contentTypes()
	if err != nil {
		return err
	}
	ct.addOverride(part, contentTypeWorksheet)
	if err := cs.put(contentTypesPart, ct.doc); err != nil {
		return err
	}

	wb := w.workbook.Copy()
	rels := w.workbookRels.Copy()
	id := addRelationship(rels, relTypeWorksheet, relativeTarget(w.workbookPart, part))
	el := cloneShallow(srcEl)
	el.CreateAttr("name", newName)
	if a := relIDAttr(el); a != nil {
		a.Value = id
	} else {
		el.CreateAttr("r:id", id)
	}
	wb.Root().SelectElement("sheets").AddChild(el)

	if err := w.commitDirectory(cs, wb, rels); err != nil {
		return err
	}
	w.log.Debug("sheet copied", "sheet", name, "copy", newName, "part", part)
	return nil
}

// DeleteSheet removes a sheet from the workbook. Its part stays in the
// package, unreferenced.
func (w *Workbook) DeleteSheet(name string) error {
	s, err := w.sheetByName(name)
	if err != nil {
		return err
	}
	if len(w.sheets) == 1 {
		return fmt.Errorf("delete sheet %q: a workbook needs at least one sheet", name)
	}
	pos := -1
	for i, other := range w.sheets {
		if other.RelID == s.RelID {
			pos = i
		}
	}

	wb := w.workbook.Copy()
	rels := w.workbookRels.Copy()
	sheets := wb.Root().SelectElement("sheets")
	for _, el := range sheets.SelectElements("sheet") {
		if relID(el) == s.RelID {
			sheets.RemoveChild(el)
		}
	}
	if rel := findRelByID(rels, s.RelID); rel != nil {
		rels.Root().RemoveChild(rel)
	}
	dropLocalNames(wb.Root(), pos)
	if views := wb.Root().SelectElement("bookViews"); views != nil {
		for _, v := range views.SelectElements("workbookView") {
			tab, ok := attrInt(v, "activeTab")
			if ok && (tab > pos || tab == pos && pos == len(w.sheets)-1) {
				v.CreateAttr("activeTab", strconv.Itoa(tab-1))
			}
		}
	}

	if err := w.commitDirectory(newChangeset(), wb, rels); err != nil {
		return err
	}
	w.log.Debug("sheet deleted", "sheet", name, "part", s.Part)
	return nil
}

// commitDirectory renumbers, stages the workbook and its relationships and
// reloads the sheet directory.
func (w *Workbook) commitDirectory(cs *changeset, wb, rels *etree.Document) error {
	renumber(wb, rels)
	if err := cs.put(w.workbookPart, wb); err != nil {
		return err
	}
	if err := cs.put(relsPartFor(w.workbookPart), rels); err != nil {
		return err
	}
	w.apply(cs)
	w.workbook, w.workbookRels = wb, rels
	return w.loadSheets()
}

// relPrecedence orders workbook relationships by type.
var relPrecedence = []string{"worksheet", "theme", "styles", "sharedStrings"}

// renumber orders the workbook relationships (worksheets in <sheets> order,
// then theme, styles, sharedStrings, then the rest), renames them rId1..rIdN,
// remaps every r:id of the workbook part and sets sheetIds to 1..N.
func renumber(wb, rels *etree.Document) {
	all := relationships(rels)
	rank := func(r *etree.Element) int {
		typ := path.Base(r.SelectAttrValue("Type", ""))
		for i, t := range relPrecedence {
			if typ == t {
				return i
			}
		}
		return len(relPrecedence)
	}

	var ordered []*etree.Element
	used := make(map[*etree.Element]bool)
	if sheets := wb.Root().SelectElement("sheets"); sheets != nil {
		for _, el := range sheets.SelectElements("sheet") {
			if r := findRelByID(rels, relID(el)); r != nil && !used[r] {
				ordered = append(ordered, r)
				used[r] = true
			}
		}
	}
	for k := 0; k <= len(relPrecedence); k++ {
		for _, r := range all {
			if !used[r] && rank(r) == k {
				ordered = append(ordered, r)
				used[r] = true
			}
		}
	}

	remap := make(map[string]string, len(ordered))
	for i, r := range ordered {
		id := "rId" + strconv.Itoa(i+1)
		remap[r.SelectAttrValue("Id", "")] = id
		r.CreateAttr("Id", id)
	}
	replaceChildren(rels.Root(), ordered)

	remapRelIDs(wb.Root(), remap)
	if sheets := wb.Root().SelectElement("sheets"); sheets != nil {
		for i, el := range sheets.SelectElements("sheet") {
			el.CreateAttr("sheetId", strconv.Itoa(i+1))
		}
	}
}

func remapRelIDs(e *etree.Element, remap map[string]string) {
	if a := relIDAttr(e); a != nil {
		if id, ok := remap[a.Value]; ok {
			a.Value = id
		}
	}
	for _, c := range e.ChildElements() {
		remapRelIDs(c, remap)
	}
}

// dropLocalNames removes defined names scoped to the sheet at pos and
// renumbers the localSheetId of names scoped to later sheets.
func dropLocalNames(wb *etree.Element, pos int) {
	names := wb.SelectElement("definedNames")
	if names == nil || pos < 0 {
		return
	}
	for _, dn := range names.SelectElements("definedName") {
		id, ok := attrInt(dn, "localSheetId")
		switch {
		case !ok:
		case id == pos:
			names.RemoveChild(dn)
		case id > pos:
			dn.CreateAttr("localSheetId", strconv.Itoa(id-1))
		}
	}
	if len(names.ChildElements()) == 0 {
		wb.RemoveChild(names)
	}
}

func (w *Workbook) sheetElement(s Sheet) *etree.Element {
	sheets := w.workbook.Root().SelectElement("sheets")
	if sheets == nil {
		return nil
	}
	for _, el := range sheets.SelectElements("sheet") {
		if relID(el) == s.RelID {
			return el
		}
	}
	return nil
}

// freeSheetPart returns the first worksheets/sheetN.xml name not in the package.
func (w *Workbook) freeSheetPart() string {
	dir := path.Join(path.Dir(w.workbookPart), "worksheets")
	for n := 1; ; n++ {
		part := path.Join(dir, "sheet"+strconv.Itoa(n)+".xml")
		if !w.pkg.has(part) {
			return part
		}
	}
}

// rebaseTargets rewrites relative internal targets of rels, written for
// from, so they resolve the same from to.
func rebaseTargets(rels *etree.Document, from, to string) {
	if path.Dir(from) == path.Dir(to) {
		return
	}
	for _, r := range relationships(rels) {
		target := r.SelectAttrValue("Target", "")
		if r.SelectAttrValue("TargetMode", "") == "External" || path.IsAbs(target) {
			continue
		}
		r.CreateAttr("Target", "/"+resolveTarget(from, target))
	}
}
