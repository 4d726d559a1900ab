// Package format renders arbitrary values as the text a script console
// prints for them.
//
//	format.Format(nil)                       // null
//	format.Format([]any{1, "x"})             // [ 1, 'x' ]
//	format.Format(map[string]any{"a": 1})    // { a: 1 }
//
// Strings print as-is at the top level and single-quoted when nested.
// Maps print with their keys sorted; structs print their exported fields in
// declaration order. Format never panics.
package format

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// UndefinedValue is the type of Undefined.
type UndefinedValue struct{}

// Undefined stands for an absent value and renders as "undefined".
var Undefined UndefinedValue

// maxDepth bounds nesting so self-referencing values terminate.
const maxDepth = 16

// Format returns the console rendering of v.
func Format(v any) string {
	var b strings.Builder
	write(&b, v, false, 0)
	return b.String()
}

// Join formats each argument and separates them with a single space.
func Join(args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Format(a)
	}
	return strings.Join(parts, " ")
}

func write(b *strings.Builder, v any, quote bool, depth int) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
		return
	case UndefinedValue, *UndefinedValue:
		b.WriteString("undefined")
		return
	case string:
		writeString(b, x, quote)
		return
	case bool:
		b.WriteString(strconv.FormatBool(x))
		return
	case error:
		writeText(b, v, x.Error)
		return
	case fmt.Stringer:
		writeText(b, v, x.String)
		return
	}

	if depth >= maxDepth {
		b.WriteString("object")
		return
	}
	writeValue(b, reflect.ValueOf(v), quote, depth)
}

func writeValue(b *strings.Builder, rv reflect.Value, quote bool, depth int) {
	switch rv.Kind() {
	case reflect.String:
		writeString(b, rv.String(), quote)
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		b.WriteString(formatNumber(rv.Float(), 32))
	case reflect.Float64:
		b.WriteString(formatNumber(rv.Float(), 64))
	case reflect.Complex64, reflect.Complex128:
		b.WriteString(strconv.FormatComplex(rv.Complex(), 'g', -1, 128))
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		writeElem(b, rv.Elem(), quote, depth+1)
	case reflect.Slice, reflect.Array:
		b.WriteString("[ ")
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			writeElem(b, rv.Index(i), true, depth+1)
		}
		b.WriteString(" ]")
	case reflect.Map:
		writeMap(b, rv, depth)
	case reflect.Struct:
		writeStruct(b, rv, depth)
	case reflect.Func:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		b.WriteString("[Function ")
		b.WriteString(funcName(rv))
		b.WriteString("]")
	default:
		b.WriteString("object")
	}
}

// writeElem renders a nested value, going through the interface checks of
// write when the value can be surfaced.
func writeElem(b *strings.Builder, rv reflect.Value, quote bool, depth int) {
	if rv.CanInterface() {
		write(b, rv.Interface(), quote, depth)
		return
	}
	if depth >= maxDepth {
		b.WriteString("object")
		return
	}
	writeValue(b, rv, quote, depth)
}

func writeMap(b *strings.Builder, rv reflect.Value, depth int) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb strings.Builder
		writeElem(&kb, iter.Key(), false, depth+1)
		entries = append(entries, entry{key: kb.String(), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	b.WriteString("{ ")
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.key)
		b.WriteString(": ")
		writeElem(b, e.val, true, depth+1)
	}
	b.WriteString(" }")
}

func writeStruct(b *strings.Builder, rv reflect.Value, depth int) {
	t := rv.Type()
	b.WriteString("{ ")
	n := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if n > 0 {
			b.WriteString(", ")
		}
		n++
		b.WriteString(f.Name)
		b.WriteString(": ")
		writeElem(b, rv.Field(i), true, depth+1)
	}
	b.WriteString(" }")
}

func writeString(b *strings.Builder, s string, quote bool) {
	if quote {
		b.WriteByte('\'')
		b.WriteString(s)
		b.WriteByte('\'')
		return
	}
	b.WriteString(s)
}

// formatNumber prints floats the way a script number prints: integral values
// without a fraction, exponents only for very large or very small magnitudes.
func formatNumber(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, bitSize)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize)
}

func funcName(rv reflect.Value) string {
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "anonymous"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func writeText(b *strings.Builder, v any, text func() string) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		b.WriteString("null")
		return
	}
	b.WriteString(safeText(text))
}

// safeText calls a user-supplied text method, degrading to "object" if it
// panics.
func safeText(fn func() string) (s string) {
	defer func() {
		if recover() != nil {
			s = "object"
		}
	}()
	return fn()
}
