package xltemplate

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// Relationship types used to locate parts.
const (
	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeWorksheet      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	relTypeSharedStrings  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
	relTypeCalcChain      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/calcChain"
	relTypeHyperlink      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	relTypeTable          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/table"
)

const (
	contentTypesPart     = "[Content_Types].xml"
	contentTypeWorksheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
)

// zipPart is one archive entry. Untouched entries are copied raw on write.
type zipPart struct {
	file     *zip.File
	data     []byte
	modified bool
}

// opcPackage is the zip container holding the workbook parts, in archive order.
type opcPackage struct {
	names []string
	parts map[string]*zipPart
}

// readPackage opens a zip archive held in memory.
func readPackage(data []byte) (*opcPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	p := &opcPackage{parts: make(map[string]*zipPart, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(f.Name, "/")
		if _, dup := p.parts[name]; dup {
			continue
		}
		p.names = append(p.names, name)
		p.parts[name] = &zipPart{file: f}
	}
	return p, nil
}

func (p *opcPackage) has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// readPart returns the current contents of a part.
func (p *opcPackage) readPart(name string) ([]byte, error) {
	part, ok := p.parts[name]
	if !ok {
		return nil, &MissingPartError{Part: name}
	}
	if part.modified || part.file == nil {
		return part.data, nil
	}
	rc, err := part.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", name, err)
	}
	return b, nil
}

// readXMLPart reads and parses a part.
func (p *opcPackage) readXMLPart(name string) (*etree.Document, error) {
	b, err := p.readPart(name)
	if err != nil {
		return nil, err
	}
	return parseXML(name, b)
}

// writePart replaces or adds a part.
func (p *opcPackage) writePart(name string, data []byte) {
	if part, ok := p.parts[name]; ok {
		part.data = data
		part.modified = true
		return
	}
	p.names = append(p.names, name)
	p.parts[name] = &zipPart{data: data, modified: true}
}

// removePart deletes a part; unknown names are ignored.
func (p *opcPackage) removePart(name string) {
	if _, ok := p.parts[name]; !ok {
		return
	}
	delete(p.parts, name)
	for i, n := range p.names {
		if n == name {
			p.names = append(p.names[:i], p.names[i+1:]...)
			break
		}
	}
}

// writeTo writes the archive. Parts never rewritten keep their original
// compressed bytes.
func (p *opcPackage) writeTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range p.names {
		part := p.parts[name]
		if !part.modified && part.file != nil {
			if err := zw.Copy(part.file); err != nil {
				return fmt.Errorf("copy part %s: %w", name, err)
			}
			continue
		}
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if part.file != nil {
			hdr.Modified = part.file.Modified
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("create part %s: %w", name, err)
		}
		if _, err := fw.Write(part.data); err != nil {
			return fmt.Errorf("write part %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close package: %w", err)
	}
	return nil
}

// relsPartFor returns the relationships part of a source part; the empty
// source is the package itself.
func relsPartFor(source string) string {
	if source == "" {
		return "_rels/.rels"
	}
	dir, base := path.Split(source)
	return dir + "_rels/" + base + ".rels"
}

// resolveTarget turns a relationship target into a part name.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

// relativeTarget is the inverse of resolveTarget for parts below the source directory.
func relativeTarget(source, part string) string {
	dir := path.Dir(source)
	if dir == "." {
		return part
	}
	return strings.TrimPrefix(part, dir+"/")
}

// relationships returns the Relationship elements of a rels document.
func relationships(rels *etree.Document) []*etree.Element {
	return rels.Root().SelectElements("Relationship")
}

// findRelByType returns the first relationship of the given type.
func findRelByType(rels *etree.Document, typ string) *etree.Element {
	for _, r := range relationships(rels) {
		if r.SelectAttrValue("Type", "") == typ {
			return r
		}
	}
	return nil
}

// findRelByID returns the relationship with the given Id.
func findRelByID(rels *etree.Document, id string) *etree.Element {
	for _, r := range relationships(rels) {
		if r.SelectAttrValue("Id", "") == id {
			return r
		}
	}
	return nil
}

// relID returns the namespaced id attribute (usually r:id) of an element.
func relID(e *etree.Element) string {
	if a := relIDAttr(e); a != nil {
		return a.Value
	}
	return ""
}

func relIDAttr(e *etree.Element) *etree.Attr {
	for i := range e.Attr {
		if a := &e.Attr[i]; a.Key == "id" && a.Space != "" {
			return a
		}
	}
	return nil
}

// contentTypes edits [Content_Types].xml overrides.
type contentTypes struct {
	doc *etree.Document
}

func (p *opcPackage) contentTypes() (*contentTypes, error) {
	doc, err := p.readXMLPart(contentTypesPart)
	if err != nil {
		return nil, err
	}
	return &contentTypes{doc: doc}, nil
}

// addOverride registers a content type for a part unless one already exists.
func (c *contentTypes) addOverride(part, contentType string) {
	name := "/" + part
	for _, o := range c.doc.Root().SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == name {
			return
		}
	}
	o := c.doc.Root().CreateElement("Override")
	o.CreateAttr("PartName", name)
	o.CreateAttr("ContentType", contentType)
}

// removeOverride drops the override of a part; it reports whether one was found.
func (c *contentTypes) removeOverride(part string) bool {
	name := "/" + part
	for _, o := range c.doc.Root().SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == name {
			c.doc.Root().RemoveChild(o)
			return true
		}
	}
	return false
}
