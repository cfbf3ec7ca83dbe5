package cardtree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/davidahmann/cardkit/pkg/types"
)

// ToDocument returns v in document form. The result never aliases v, so the
// caller may mutate it freely. It returns nil when v has no object form:
// scalars, non-object JSON and values that fail to marshal.
func ToDocument(v any) types.Document {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if t == nil {
			return nil
		}
		return cloneMap(t)
	case json.RawMessage:
		return parseObject(t)
	case []byte:
		return parseObject(t)
	case string:
		return parseObject([]byte(t))
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
	default:
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return parseObject(raw)
}

// FromDocument turns doc back into the shape of original. Struct originals are
// rebuilt into a fresh value; exported fields hidden from JSON are carried over
// from original since the document cannot hold them. When the original type
// has no room for some key of doc, such as the library data of a payload
// struct, doc itself is returned.
func FromDocument(original any, doc types.Document) (any, error) {
	switch original.(type) {
	case nil, map[string]any:
		return doc, nil
	case json.RawMessage:
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	case []byte:
		return json.Marshal(doc)
	case string:
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}

	rv := reflect.ValueOf(original)
	t := rv.Type()
	isPtr := t.Kind() == reflect.Pointer
	if isPtr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct && t.Kind() != reflect.Map {
		return nil, fmt.Errorf("cannot rebuild %s from a document", rv.Type())
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := reflect.New(t)
	if err := json.Unmarshal(raw, out.Interface()); err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", t, err)
	}
	if t.Kind() == reflect.Struct {
		src := rv
		if isPtr {
			src = rv.Elem()
		}
		if src.IsValid() {
			copyHiddenFields(out.Elem(), src)
		}
	}
	rebuilt := out.Elem().Interface()
	if isPtr {
		rebuilt = out.Interface()
	}
	if !sameJSON(rebuilt, doc) {
		return doc, nil
	}
	return rebuilt, nil
}

// sameJSON reports whether a and b encode to the same JSON object, ignoring
// key order and number spelling.
func sameJSON(a any, b types.Document) bool {
	rawA, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rawB, err := json.Marshal(b)
	if err != nil {
		return false
	}
	var docA, docB any
	if DecodeJSON(rawA, &docA) != nil || DecodeJSON(rawB, &docB) != nil {
		return false
	}
	return reflect.DeepEqual(docA, docB)
}

// DecodeJSON is json.Unmarshal with numbers kept as json.Number, so integers
// beyond float64 precision survive a rewrite.
func DecodeJSON(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid character after top-level value")
	}
	return nil
}

func copyHiddenFields(dst, src reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("json") != "-" {
			continue
		}
		dst.Field(i).Set(src.Field(i))
	}
}

func parseObject(raw []byte) types.Document {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var doc types.Document
	if err := DecodeJSON(raw, &doc); err != nil {
		return nil
	}
	return doc
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		return cloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case json.Number:
		return t
	case []map[string]any:
		if t == nil {
			return t
		}
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = cloneMap(e)
		}
		return out
	default:
		return v
	}
}

// shallow is the copy a rewrite handler edits before handing it upward.
func shallow(doc types.Document) types.Document {
	out := make(types.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	return out
}
