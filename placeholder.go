package xltemplate

import "regexp"

// Placeholder types with defined semantics. Any other explicit type is kept
// in Placeholder.Type but substituted as TypeNormal.
const (
	TypeNormal = "normal"
	TypeTable  = "table"
)

// Placeholder is one {{[TYPE:]NAME[.KEY]}} marker found in a text.
type Placeholder struct {
	Raw  string // the full marker text, braces included
	Type string // "normal" when no TYPE: prefix is present
	Name string
	Key  string // empty when there is no .KEY suffix
	Full bool   // the marker is the entire source text
}

// placeholderPattern matches {{[TYPE:]NAME[.KEY]}}. NAME stops at the first
// dot, everything after it up to the closing braces is the KEY.
var placeholderPattern = regexp.MustCompile(`\{\{(?:([^{}:.]+):)?([^{}:.]+?)(?:\.([^{}]+?))?\}\}`)

// ExtractPlaceholders returns the non-overlapping placeholders in text, left to right.
func ExtractPlaceholders(text string) []Placeholder {
	matches := placeholderPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		p := Placeholder{
			Raw:  text[m[0]:m[1]],
			Type: TypeNormal,
			Name: text[m[4]:m[5]],
			Full: m[1]-m[0] == len(text),
		}
		if m[2] >= 0 {
			p.Type = text[m[2]:m[3]]
		}
		if m[6] >= 0 {
			p.Key = text[m[6]:m[7]]
		}
		out = append(out, p)
	}
	return out
}

// Path returns the lookup path NAME or NAME.KEY.
func (p Placeholder) Path() string {
	if p.Key == "" {
		return p.Name
	}
	return p.Name + "." + p.Key
}

// IsTable reports whether the placeholder requests table expansion.
func (p Placeholder) IsTable() bool {
	return p.Type == TypeTable
}
