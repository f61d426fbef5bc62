package xltemplate

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// substituteHyperlinks resolves scalar placeholders in the targets of the
// sheet's hyperlink relationships. Targets are URI-decoded twice before
// matching and re-encoded afterwards. Unresolved placeholders stay as written.
func (s *sheetSubstitution) substituteHyperlinks() {
	if s.rels == nil {
		return
	}
	for _, rel := range relationships(s.rels) {
		if rel.SelectAttrValue("Type", "") != relTypeHyperlink {
			continue
		}
		target := decodeURI(decodeURI(rel.SelectAttrValue("Target", "")))
		out, ok := replacePlaceholders(target, s.values, false)
		if !ok {
			continue
		}
		rel.CreateAttr("Target", encodeURI(out))
		s.relsChanged = true
	}
}

// uriReserved are the characters decodeURI leaves escaped.
const uriReserved = ";/?:@&=+$,#"

// uriUnescaped are the characters encodeURI leaves as they are, besides
// ASCII letters and digits.
const uriUnescaped = ";,/?:@&=+$-_.!~*'()#"

// decodeURI decodes %XX escapes except those of reserved characters. A
// malformed input is returned unchanged.
func decodeURI(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return s
		}
		v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return s
		}
		if v < utf8.RuneSelf && strings.IndexByte(uriReserved, byte(v)) >= 0 {
			b.WriteString(s[i : i+3])
		} else {
			b.WriteByte(byte(v))
		}
		i += 2
	}
	out := b.String()
	if !utf8.ValidString(out) {
		return s
	}
	return out
}

// encodeURI percent-encodes the UTF-8 bytes of every character outside the
// URI unescaped set. Escapes left in place by decodeURI are kept.
func encodeURI(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
			strings.IndexByte(uriUnescaped, c) >= 0 || c == '%' && isEscape(s[i:]) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

// isEscape reports whether s starts with a %XX escape.
func isEscape(s string) bool {
	if len(s) < 3 || s[0] != '%' {
		return false
	}
	_, err := strconv.ParseUint(s[1:3], 16, 8)
	return err == nil
}
