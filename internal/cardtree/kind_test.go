package cardtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/pkg/types"
)

func TestInfer(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want Kind
	}{
		{"batch", []types.Message{}, KindBatch},
		{"batch of pointers", []*types.Message{}, KindBatch},
		{"message", types.Message{}, KindMessage},
		{"message pointer", &types.Message{}, KindMessage},
		{"attachments", []types.Attachment{}, KindAttachmentList},
		{"attachment", types.Attachment{}, KindAttachment},
		{"card actions", []types.CardAction{}, KindCardActionList},
		{"card action", types.CardAction{}, KindCardAction},
		{"submit actions", []types.Document{}, KindSubmitActionList},
		{"id", dataid.DataID{}, KindIdentifier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Infer(tc.v)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInferAmbiguousOrUnknown(t *testing.T) {
	for _, v := range []any{types.Document{}, types.RichCard{}, &types.RichCard{}, 42, nil} {
		_, err := Infer(v)
		require.ErrorIs(t, err, ErrConfig, "%T", v)
		var cfg *ConfigError
		require.ErrorAs(t, err, &cfg)
	}
}

func TestScopeTags(t *testing.T) {
	want := map[Kind]dataid.Scope{
		KindBatch:            dataid.ScopeBatch,
		KindAttachmentList:   dataid.ScopeCarousel,
		KindSubmitActionList: dataid.ScopeCard,
		KindCardActionList:   dataid.ScopeCard,
	}
	for _, k := range Kinds() {
		scope, ok := ScopeOf(k)
		if expected, tagged := want[k]; tagged {
			assert.True(t, ok, k.String())
			assert.Equal(t, expected, scope)
		} else {
			assert.False(t, ok, k.String())
		}
	}
}

func TestReachable(t *testing.T) {
	assert.True(t, Reachable(KindBatch, KindIdentifier))
	assert.True(t, Reachable(KindAttachment, KindCardAction))
	assert.True(t, Reachable(KindHeroCard, KindActionPayload))
	assert.True(t, Reachable(KindMessage, KindMessage))
	assert.False(t, Reachable(KindHeroCard, KindSubmitAction))
	assert.False(t, Reachable(KindActionPayload, KindMessage))
	assert.False(t, Reachable(KindInvalid, KindMessage))
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("page")
	assert.False(t, ok)
}

func TestCardKind(t *testing.T) {
	k, ok := CardKind("Application/Vnd.Microsoft.Card.Hero")
	require.True(t, ok)
	assert.Equal(t, KindHeroCard, k)
	_, ok = CardKind("image/png")
	assert.False(t, ok)
}
