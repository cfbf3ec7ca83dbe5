package cardtree

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/cardkit/pkg/types"
)

type cardContent struct {
	Title   string `json:"title"`
	Secret  string `json:"-"`
	Actions []any  `json:"actions,omitempty"`
}

func TestToDocumentCopies(t *testing.T) {
	orig := types.Document{"nested": map[string]any{"k": "v"}, "list": []any{map[string]any{"a": 1}}}
	doc := ToDocument(orig)
	doc["nested"].(map[string]any)["k"] = "changed"
	doc["list"].([]any)[0].(map[string]any)["a"] = 2

	assert.Equal(t, "v", orig["nested"].(map[string]any)["k"])
	assert.Equal(t, 1, orig["list"].([]any)[0].(map[string]any)["a"])
}

func TestToDocumentShapes(t *testing.T) {
	assert.Equal(t, types.Document{"a": json.Number("1")}, ToDocument(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, types.Document{"a": json.Number("1")}, ToDocument([]byte(` {"a":1}`)))
	assert.Equal(t, types.Document{"a": "b"}, ToDocument(`{"a":"b"}`))
	assert.Equal(t, types.Document{"title": "t"}, ToDocument(cardContent{Title: "t"}))
	assert.Equal(t, types.Document{"title": "t"}, ToDocument(&cardContent{Title: "t"}))
	assert.Equal(t, types.Document{"x": "y"}, ToDocument(map[string]string{"x": "y"}))

	for _, v := range []any{nil, "plain text", `[1,2]`, 3, true, (*cardContent)(nil), map[int]string{1: "a"}, `{"broken"`} {
		assert.Nil(t, ToDocument(v), "%#v", v)
	}
}

func TestFromDocumentRestoresShape(t *testing.T) {
	doc := types.Document{"title": "new"}

	out, err := FromDocument(json.RawMessage(`{"title":"old"}`), doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"new"}`, string(out.(json.RawMessage)))

	out, err = FromDocument(`{"title":"old"}`, doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"new"}`, out.(string))

	out, err = FromDocument([]byte(`{}`), doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"new"}`, string(out.([]byte)))

	out, err = FromDocument(types.Document{"title": "old"}, doc)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestFromDocumentStructKeepsHiddenFields(t *testing.T) {
	orig := &cardContent{Title: "old", Secret: "s3cret"}
	out, err := FromDocument(orig, types.Document{"title": "new"})
	require.NoError(t, err)

	got := out.(*cardContent)
	if diff := cmp.Diff(&cardContent{Title: "new", Secret: "s3cret"}, got); diff != "" {
		t.Fatalf("rebuilt struct mismatch (-want +got):\n%s", diff)
	}
	assert.NotSame(t, orig, got)
	assert.Equal(t, "old", orig.Title)

	byValue, err := FromDocument(cardContent{Secret: "x"}, types.Document{"title": "v"})
	require.NoError(t, err)
	assert.Equal(t, cardContent{Title: "v", Secret: "x"}, byValue)
}

func TestFromDocumentRejectsScalars(t *testing.T) {
	_, err := FromDocument(42, types.Document{})
	require.Error(t, err)

	_, err = FromDocument(cardContent{}, types.Document{"title": []any{1}})
	require.Error(t, err)
}

func TestFromDocumentKeepsKeysTheStructCannotHold(t *testing.T) {
	doc := types.Document{"title": "t", "extra": types.Document{"k": "v"}}
	out, err := FromDocument(cardContent{Title: "old"}, doc)
	require.NoError(t, err)
	assert.Equal(t, doc, out)

	out, err = FromDocument(&cardContent{}, doc)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestDocumentNumbersKeepPrecision(t *testing.T) {
	doc := ToDocument(json.RawMessage(`{"orderId":9007199254740993,"ratio":0.1}`))
	assert.Equal(t, json.Number("9007199254740993"), doc["orderId"])

	out, err := FromDocument(json.RawMessage(`{}`), doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":9007199254740993,"ratio":0.1}`, string(out.(json.RawMessage)))

	type order struct {
		OrderID int64 `json:"orderId"`
	}
	rebuilt, err := FromDocument(order{}, types.Document{"orderId": json.Number("9007199254740993")})
	require.NoError(t, err)
	assert.Equal(t, order{OrderID: 9007199254740993}, rebuilt)
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	var v any
	require.Error(t, DecodeJSON([]byte(`{"a":1} x`), &v))
	require.NoError(t, DecodeJSON([]byte(` {"a":1} `), &v))
}
