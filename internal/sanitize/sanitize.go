// Package sanitize converts arbitrary event payloads into trees that are safe
// to serialize and store as JSON. Trace persistence must never fail because a
// caller handed us a cyclic, non-serializable, or NUL-ridden value.
package sanitize

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"
)

// CircularMarker replaces any value that was already visited on the current
// path through the object graph.
const CircularMarker = "[Circular]"

// maxDepth bounds recursion for pathological (non-cyclic but very deep)
// structures.
const maxDepth = 64

// Sanitize converts v into a tree built only from nil, bool, float64, int64,
// string, []any, and map[string]any. It terminates on cyclic graphs, drops
// values that have no JSON representation (functions, channels), converts
// times to RFC 3339 strings, errors to {name, message} maps, and big integers
// to decimal strings. All strings have embedded NUL characters stripped.
//
// Sanitize never panics and never returns an error: any input produces some
// serializable output, or nil.
func Sanitize(v any) any {
	defer func() {
		// Reflection on exotic values can panic in edge cases; a sanitizer
		// that panics defeats its purpose.
		_ = recover()
	}()
	return sanitizeValue(reflect.ValueOf(v), make(map[uintptr]bool), 0)
}

func sanitizeValue(rv reflect.Value, seen map[uintptr]bool, depth int) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()

	if !rv.IsValid() {
		return nil
	}
	if depth > maxDepth {
		return CircularMarker
	}

	// Well-known types first, before generic kind handling.
	if rv.CanInterface() {
		switch x := rv.Interface().(type) {
		case time.Time:
			return x.UTC().Format(time.RFC3339Nano)
		case *time.Time:
			if x == nil {
				return nil
			}
			return x.UTC().Format(time.RFC3339Nano)
		case time.Duration:
			return x.String()
		case *big.Int:
			if x == nil {
				return nil
			}
			return x.String()
		case *big.Float:
			if x == nil {
				return nil
			}
			return x.Text('g', -1)
		case error:
			return sanitizeError(x, seen, depth)
		case fmt.Stringer:
			// Stringers with unexported internals (uuid.UUID and friends)
			// serialize better as their string form.
			if rv.Kind() == reflect.Struct && !hasExportedFields(rv.Type()) {
				return stripNUL(x.String())
			}
			if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
				return stripNUL(x.String())
			}
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprintf("%g", f)
		}
		return f
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%v", rv.Complex())
	case reflect.String:
		return stripNUL(rv.String())

	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem(), seen, depth)

	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return CircularMarker
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		return sanitizeValue(rv.Elem(), seen, depth+1)

	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// []byte: treat as text, not as an array of numbers.
			return stripNUL(string(rv.Bytes()))
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return CircularMarker
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		return sanitizeSequence(rv, seen, depth)

	case reflect.Array:
		return sanitizeSequence(rv, seen, depth)

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return CircularMarker
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		return sanitizeMap(rv, seen, depth)

	case reflect.Struct:
		return sanitizeStruct(rv, seen, depth)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// No JSON representation; drop rather than fail.
		return nil
	}

	return nil
}

func sanitizeSequence(rv reflect.Value, seen map[uintptr]bool, depth int) []any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = sanitizeValue(rv.Index(i), seen, depth+1)
	}
	return out
}

func sanitizeMap(rv reflect.Value, seen map[uintptr]bool, depth int) map[string]any {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := stringifyKey(iter.Key())
		out[key] = sanitizeValue(iter.Value(), seen, depth+1)
	}
	return out
}

func sanitizeStruct(rv reflect.Value, seen map[uintptr]bool, depth int) map[string]any {
	t := rv.Type()
	out := make(map[string]any)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		omitEmpty := false
		if tag, ok := field.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		out[name] = sanitizeValue(fv, seen, depth+1)
	}
	return out
}

// sanitizeError maps an error to {name, message}, preserving any exported
// fields the concrete type carries.
func sanitizeError(err error, seen map[uintptr]bool, depth int) map[string]any {
	out := map[string]any{
		"name":    fmt.Sprintf("%T", err),
		"message": stripNUL(err.Error()),
	}

	rv := reflect.ValueOf(err)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return out
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return out
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct && depth < maxDepth {
		for k, v := range sanitizeStruct(rv, seen, depth+1) {
			if k == "name" || k == "message" {
				continue
			}
			out[k] = v
		}
	}
	return out
}

func stringifyKey(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return stripNUL(key.String())
	}
	if key.CanInterface() {
		return stripNUL(fmt.Sprintf("%v", key.Interface()))
	}
	return fmt.Sprintf("%v", key)
}

func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

// stripNUL removes embedded NUL characters. Postgres rejects NUL bytes in
// text and jsonb columns.
func stripNUL(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}
