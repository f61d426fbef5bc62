package xltemplate

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/beevik/etree"
)

// Sheet is one entry of the workbook's sheet directory.
type Sheet struct {
	ID    int
	Name  string
	RelID string
	Part  string
}

// Workbook is an opened template package. It is not safe for concurrent use.
type Workbook struct {
	opts *Options
	log  *slog.Logger
	pkg  *opcPackage

	workbookPart string
	workbook     *etree.Document
	workbookRels *etree.Document

	stringsPart  string // empty when the package has no shared-strings part
	stringsBase  *etree.Document
	strings      *SharedStrings
	stringsDirty bool

	calcChainPart string
	sheets        []Sheet
}

// LoadFrom opens a template held in memory.
func LoadFrom(data []byte, opts ...Option) (*Workbook, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	pkg, err := readPackage(data)
	if err != nil {
		return nil, err
	}
	w := &Workbook{opts: o, log: o.logger, pkg: pkg}
	if err := w.load(); err != nil {
		return nil, err
	}
	return w, nil
}

// OpenReader reads a template from r.
func OpenReader(r io.Reader, opts ...Option) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return LoadFrom(data, opts...)
}

// Open reads a template file.
func Open(path string, opts ...Option) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open template %q: %w", path, err)
	}
	return LoadFrom(data, opts...)
}

func (w *Workbook) load() error {
	rootRels, err := w.pkg.readXMLPart(relsPartFor(""))
	if err != nil {
		return err
	}
	rel := findRelByType(rootRels, relTypeOfficeDocument)
	if rel == nil {
		return fmt.Errorf("no workbook relationship in %s: %w", relsPartFor(""), ErrMissingPart)
	}
	w.workbookPart = resolveTarget("", rel.SelectAttrValue("Target", ""))
	if w.workbook, err = w.pkg.readXMLPart(w.workbookPart); err != nil {
		return err
	}
	if w.workbookRels, err = w.pkg.readXMLPart(relsPartFor(w.workbookPart)); err != nil {
		return err
	}

	if rel := findRelByType(w.workbookRels, relTypeSharedStrings); rel != nil {
		w.stringsPart = resolveTarget(w.workbookPart, rel.SelectAttrValue("Target", ""))
		if w.stringsBase, err = w.pkg.readXMLPart(w.stringsPart); err != nil {
			return err
		}
		w.strings = loadSharedStrings(w.stringsBase)
	} else {
		w.strings = newSharedStrings()
	}

	if rel := findRelByType(w.workbookRels, relTypeCalcChain); rel != nil {
		w.calcChainPart = resolveTarget(w.workbookPart, rel.SelectAttrValue("Target", ""))
	}
	return w.loadSheets()
}

// loadSheets rebuilds the sheet directory from <sheets> and the workbook relationships.
func (w *Workbook) loadSheets() error {
	w.sheets = w.sheets[:0]
	sheets := w.workbook.Root().SelectElement("sheets")
	if sheets == nil {
		return nil
	}
	for _, el := range sheets.SelectElements("sheet") {
		s := Sheet{Name: el.SelectAttrValue("name", ""), RelID: relID(el)}
		s.ID, _ = strconv.Atoi(el.SelectAttrValue("sheetId", ""))
		rel := findRelByID(w.workbookRels, s.RelID)
		if rel == nil {
			return &MissingPartError{Part: relsPartFor(w.workbookPart) + "#" + s.RelID}
		}
		s.Part = resolveTarget(w.workbookPart, rel.SelectAttrValue("Target", ""))
		if !w.pkg.has(s.Part) {
			return &MissingPartError{Part: s.Part}
		}
		w.sheets = append(w.sheets, s)
	}
	return nil
}

// Sheets returns the sheet directory in workbook order.
func (w *Workbook) Sheets() []Sheet {
	return append([]Sheet(nil), w.sheets...)
}

// SharedStrings returns the workbook's shared-string pool.
func (w *Workbook) SharedStrings() *SharedStrings {
	return w.strings
}

// ReplaceString renames a pooled string in place and returns its index.
// Every cell referencing the old string shows the new one once the package
// is written.
func (w *Workbook) ReplaceString(oldValue, newValue string) int {
	w.stringsDirty = true
	return w.strings.Replace(oldValue, newValue)
}

func (w *Workbook) sheetByName(name string) (Sheet, error) {
	for _, s := range w.sheets {
		if s.Name == name {
			return s, nil
		}
	}
	return Sheet{}, &SheetNotFoundError{Sheet: name}
}

// sheetByIndex resolves a 1-based number: first as a sheetId, then as a position.
func (w *Workbook) sheetByIndex(index int) (Sheet, error) {
	for _, s := range w.sheets {
		if s.ID == index {
			return s, nil
		}
	}
	if index >= 1 && index <= len(w.sheets) {
		return w.sheets[index-1], nil
	}
	return Sheet{}, &SheetNotFoundError{Sheet: "#" + strconv.Itoa(index)}
}

// Generate returns the package as bytes.
func (w *Workbook) Generate() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the package to out.
func (w *Workbook) Write(out io.Writer) error {
	if w.stringsDirty {
		cs := newChangeset()
		if err := w.stageShared(cs, nil, w.strings, false); err != nil {
			return err
		}
		w.apply(cs)
	}
	return w.pkg.writeTo(out)
}

// SaveAs writes the package to a file.
func (w *Workbook) SaveAs(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file %q: %w", path, err)
	}
	if err := w.Write(out); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// Fill substitutes values into every sheet of the template file and writes
// the result to outputPath.
func Fill(templatePath, outputPath string, values any, opts ...Option) error {
	w, err := Open(templatePath, opts...)
	if err != nil {
		return err
	}
	if err := w.SubstituteAll(values); err != nil {
		return err
	}
	return w.SaveAs(outputPath)
}

// FillBytes substitutes values into every sheet of an in-memory template.
func FillBytes(template []byte, values any, opts ...Option) ([]byte, error) {
	w, err := LoadFrom(template, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.SubstituteAll(values); err != nil {
		return nil, err
	}
	return w.Generate()
}

// FillReader reads a template from r and writes the filled package to out.
func FillReader(template io.Reader, out io.Writer, values any, opts ...Option) error {
	w, err := OpenReader(template, opts...)
	if err != nil {
		return err
	}
	if err := w.SubstituteAll(values); err != nil {
		return err
	}
	return w.Write(out)
}
