package cardtree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/pkg/types"
)

func TestDecodeEntryTypes(t *testing.T) {
	batch, err := DecodeEntry(KindBatch, []byte(`[{"type":"message","text":"hi"}]`))
	require.NoError(t, err)
	assert.IsType(t, []types.Message{}, batch)

	action, err := DecodeEntry(KindCardAction, []byte(`{"type":"postBack","value":{"a":1}}`))
	require.NoError(t, err)
	assert.IsType(t, types.CardAction{}, action)

	payload, err := DecodeEntry(KindActionPayload, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, types.Document{"a": json.Number("1")}, payload)
}

func TestDecodeEntryErrors(t *testing.T) {
	_, err := DecodeEntry(KindInvalid, []byte(`{}`))
	require.ErrorIs(t, err, ErrConfig)
	_, err = DecodeEntry(KindIdentifier, []byte(`{}`))
	require.ErrorIs(t, err, ErrConfig)
	_, err = DecodeEntry(KindMessage, []byte(`[1,2]`))
	require.ErrorIs(t, err, ErrData)
}

func TestDecodedMessageRoundTripsIDs(t *testing.T) {
	raw := []byte(`{"type":"message","attachments":[
		{"contentType":"application/vnd.microsoft.card.hero","content":{"title":"t","buttons":[{"type":"messageBack","title":"b","value":{"k":"v"}}]}},
		{"contentType":"application/vnd.microsoft.card.adaptive","content":{"type":"AdaptiveCard","actions":[{"type":"Action.Submit","title":"go"}]}}
	]}`)
	entry, err := DecodeEntry(KindMessage, raw)
	require.NoError(t, err)

	out, err := AssignIDs(entry, KindMessage, dataid.NewOptions(dataid.ScopeAction, dataid.ScopeCarousel))
	require.NoError(t, err)
	ids, err := ExtractIDs(out, KindMessage)
	require.NoError(t, err)
	assert.Len(t, ids.Values(dataid.ScopeAction), 2)
	assert.Len(t, ids.Values(dataid.ScopeCarousel), 1)
}
