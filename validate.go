package xltemplate

import (
	"fmt"
)

// Severity indicates the severity of a validation issue.
type Severity int

const (
	SeverityError   Severity = iota // Substitution will fail
	SeverityWarning                 // Substitution may produce unexpected results
)

// ValidationIssue is a single problem found in a template.
type ValidationIssue struct {
	Severity Severity
	Sheet    string // empty for workbook-level issues
	Cell     string // cell address, table name or defined name
	Message  string
}

// String formats the issue as "[ERROR] Sheet1!A2: message" or "[WARN] ...".
func (v ValidationIssue) String() string {
	sev := "ERROR"
	if v.Severity == SeverityWarning {
		sev = "WARN"
	}
	loc := v.Cell
	if v.Sheet != "" {
		loc = v.Sheet + "!" + v.Cell
	}
	return fmt.Sprintf("[%s] %s: %s", sev, loc, v.Message)
}

// Validate checks the template against values without changing it.
// Malformed references that would abort a substitution are reported as
// errors; placeholders that would resolve unexpectedly as warnings. When
// values is nil only the structural checks run. A non-nil error means a
// part could not be read.
func (w *Workbook) Validate(values any) ([]ValidationIssue, error) {
	var issues []ValidationIssue
	issues = append(issues, w.validateDefinedNames()...)
	for _, s := range w.sheets {
		st, err := w.inspectSheet(s)
		if err != nil {
			return nil, fmt.Errorf("validate sheet %q: %w", s.Name, err)
		}
		issues = append(issues, st.validateStructure()...)
		if _, err := loadTables(w.pkg, s.Part, st.doc, st.rels); err != nil {
			issues = append(issues, ValidationIssue{
				Severity: SeverityError,
				Sheet:    s.Name,
				Message:  fmt.Sprintf("table cannot be loaded: %v", err),
			})
		}
		for _, c := range st.cells {
			issues = append(issues, validatePlaceholders(s.Name, c, values)...)
		}
	}
	return issues, nil
}

// Validate opens a template file and validates it against values.
func Validate(templatePath string, values any, opts ...Option) ([]ValidationIssue, error) {
	w, err := Open(templatePath, opts...)
	if err != nil {
		return nil, err
	}
	return w.Validate(values)
}

func (w *Workbook) validateDefinedNames() []ValidationIssue {
	names := w.workbook.Root().SelectElement("definedNames")
	if names == nil {
		return nil
	}
	var issues []ValidationIssue
	for _, dn := range names.SelectElements("definedName") {
		if _, ok := nameAreas(dn.Text()); !ok {
			issues = append(issues, ValidationIssue{
				Severity: SeverityWarning,
				Cell:     dn.SelectAttrValue("name", ""),
				Message:  fmt.Sprintf("defined name %q is not a cell reference; it is not moved when rows or columns are inserted", dn.Text()),
			})
		}
	}
	return issues
}

// validateStructure reports references the shifter would fail to parse.
func (st *sheetTemplate) validateStructure() []ValidationIssue {
	var issues []ValidationIssue
	bad := func(cell, what, ref string) {
		issues = append(issues, ValidationIssue{
			Severity: SeverityError,
			Sheet:    st.sheet.Name,
			Cell:     cell,
			Message:  fmt.Sprintf("malformed %s reference %q", what, ref),
		})
	}
	root := st.doc.Root()
	if dim := root.SelectElement("dimension"); dim != nil {
		if ref := dim.SelectAttrValue("ref", ""); !validRange(ref) {
			bad(ref, "dimension", ref)
		}
	}
	if mc := root.SelectElement("mergeCells"); mc != nil {
		for _, m := range mc.SelectElements("mergeCell") {
			if ref := m.SelectAttrValue("ref", ""); !validRange(ref) {
				bad(ref, "merge", ref)
			}
		}
	}
	if af := root.SelectElement("autoFilter"); af != nil {
		if ref := af.SelectAttrValue("ref", ""); !validRange(ref) {
			bad(ref, "autoFilter", ref)
		}
	}
	if sheetData := root.SelectElement("sheetData"); sheetData != nil {
		for _, row := range sheetData.SelectElements("row") {
			for _, c := range row.SelectElements("c") {
				if a := c.SelectAttr("r"); a != nil {
					if _, err := ParseRef(a.Value); err != nil {
						bad(a.Value, "cell", a.Value)
					}
				}
			}
		}
	}
	return issues
}

func validRange(ref string) bool {
	_, err := ParseRange(ref)
	return err == nil
}

func validatePlaceholders(sheet string, c templateCell, values any) []ValidationIssue {
	var issues []ValidationIssue
	warn := func(format string, args ...any) {
		issues = append(issues, ValidationIssue{
			Severity: SeverityWarning,
			Sheet:    sheet,
			Cell:     c.Ref,
			Message:  fmt.Sprintf(format, args...),
		})
	}
	for _, p := range c.Placeholders {
		if p.Type != TypeNormal && p.Type != TypeTable {
			warn("placeholder %s has unknown type %q and is substituted as %q", p.Raw, p.Type, TypeNormal)
		}
		if p.IsTable() {
			if p.Key == "" {
				warn("table placeholder %s has no key; every row receives the whole record", p.Raw)
			}
			if !p.Full {
				warn("table placeholder %s does not fill the cell and is substituted as text", p.Raw)
			}
		}
		if values == nil {
			continue
		}
		path := p.Path()
		if p.IsTable() && p.Full {
			path = p.Name
		}
		val, ok := Lookup(values, path)
		if !ok {
			warn("placeholder %s has no value and resolves to an empty cell", p.Raw)
			continue
		}
		if _, isSeq := AsSequence(val); p.IsTable() && p.Full && !isSeq {
			warn("table placeholder %s is bound to a %T, not a sequence; no rows are added", p.Raw, val)
		}
		if _, isSeq := AsSequence(val); isSeq && !p.Full {
			warn("placeholder %s is bound to a sequence but shares the cell with other text; it renders empty", p.Raw)
		}
	}
	return issues
}
