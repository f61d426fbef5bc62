package xltemplate

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// segmentPattern splits one path segment into its name and trailing [i] indices.
var segmentPattern = regexp.MustCompile(`^([^\[\]]*)((?:\[\d+\])*)$`)

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// Lookup resolves a dotted path with optional bracket indices, such as
// "order.lines[0].qty", against a value tree built from maps, slices,
// arrays, structs and pointers. It reports false when any step is missing.
func Lookup(values any, path string) (any, bool) {
	cur := values
	for _, seg := range strings.Split(path, ".") {
		m := segmentPattern.FindStringSubmatch(seg)
		if m == nil {
			return nil, false
		}
		var ok bool
		if m[1] != "" {
			if cur, ok = member(cur, m[1]); !ok {
				return nil, false
			}
		}
		for _, idx := range indexPattern.FindAllStringSubmatch(m[2], -1) {
			i, err := strconv.Atoi(idx[1])
			if err != nil {
				return nil, false
			}
			if cur, ok = element(cur, i); !ok {
				return nil, false
			}
		}
	}
	return cur, true
}

// indirect unwraps pointers and interfaces.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// member returns a named entry of a map or struct. A numeric name also
// indexes into a sequence.
func member(item any, name string) (any, bool) {
	if m, ok := item.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}
	v := indirect(reflect.ValueOf(item))
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		e := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !e.IsValid() || !e.CanInterface() {
			return nil, false
		}
		return e.Interface(), true
	case reflect.Struct:
		f, ok := structField(v, name)
		if !ok {
			return nil, false
		}
		return f.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(name)
		if err != nil {
			return nil, false
		}
		return element(item, i)
	}
	return nil, false
}

// structField finds an exported field by Go name, json tag or
// case-insensitive name, in that order.
func structField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	if sf, ok := t.FieldByName(name); ok && sf.IsExported() {
		return v.FieldByIndex(sf.Index), true
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == name {
			return v.Field(i), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && strings.EqualFold(sf.Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// element returns item[i] for slices and arrays.
func element(item any, i int) (any, bool) {
	if s, ok := item.([]any); ok {
		if i < 0 || i >= len(s) {
			return nil, false
		}
		return s[i], true
	}
	v := indirect(reflect.ValueOf(item))
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, false
	}
	if i < 0 || i >= v.Len() {
		return nil, false
	}
	return v.Index(i).Interface(), true
}

// AsSequence reports whether val is a slice or array (strings and byte
// slices excluded) and returns its elements.
func AsSequence(val any) ([]any, bool) {
	switch s := val.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return s, true
	}
	v := indirect(reflect.ValueOf(val))
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}

// excelEpochDays is the serial day of 1970-01-01 in the 1900 date system.
const excelEpochDays = 25569

// DateSerial converts t to a spreadsheet serial day number.
func DateSerial(t time.Time) float64 {
	return float64(t.UnixMilli())/86400000 + excelEpochDays
}

// Stringify renders a value as cell text. Numbers use the shortest decimal
// form, booleans become 1 or 0 and dates their serial day number. Strings
// are returned as is; anything else yields "".
func Stringify(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return formatFloat(DateSerial(v))
	case *time.Time:
		if v == nil {
			return ""
		}
		return formatFloat(DateSerial(*v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return formatFloat(f)
		}
		return v.String()
	}
	rv := indirect(reflect.ValueOf(val))
	if !rv.IsValid() {
		return ""
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return Stringify(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return formatFloat(rv.Float())
	case reflect.Struct:
		if t, ok := rv.Interface().(time.Time); ok {
			return formatFloat(DateSerial(t))
		}
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// valueKind classifies a value for cell encoding.
type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindBool
	kindFormula
)

func classify(val any) valueKind {
	switch v := val.(type) {
	case string:
		if strings.HasPrefix(v, "=") {
			return kindFormula
		}
		return kindString
	case time.Time, *time.Time, json.Number:
		return kindNumber
	}
	rv := indirect(reflect.ValueOf(val))
	if !rv.IsValid() {
		return kindString
	}
	switch rv.Kind() {
	case reflect.Bool:
		return kindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return kindNumber
	case reflect.String:
		if strings.HasPrefix(rv.String(), "=") {
			return kindFormula
		}
	case reflect.Struct:
		if _, ok := rv.Interface().(time.Time); ok {
			return kindNumber
		}
	}
	return kindString
}
