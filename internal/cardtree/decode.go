package cardtree

import (
	"github.com/davidahmann/cardkit/pkg/types"
)

// DecodeEntry decodes JSON into the Go value a traversal of kind expects:
// typed messages, attachments and card actions, and documents for the rest.
// A kind that is not recognized is a ConfigError; JSON that does not fit is a
// DataError.
func DecodeEntry(kind Kind, raw []byte) (any, error) {
	if !kind.Valid() {
		return nil, configErrorf(kind, "cannot decode into an unknown kind")
	}
	var err error
	var out any
	switch kind {
	case KindBatch:
		out, err = decodeInto[[]types.Message](raw)
	case KindMessage:
		out, err = decodeInto[types.Message](raw)
	case KindAttachmentList:
		out, err = decodeInto[[]types.Attachment](raw)
	case KindAttachment:
		out, err = decodeInto[types.Attachment](raw)
	case KindCardActionList:
		out, err = decodeInto[[]types.CardAction](raw)
	case KindCardAction:
		out, err = decodeInto[types.CardAction](raw)
	case KindSubmitActionList:
		out, err = decodeInto[[]any](raw)
	case KindIdentifier:
		return nil, configErrorf(kind, "identifiers are not decoded from JSON")
	default:
		out, err = decodeInto[types.Document](raw)
	}
	if err != nil {
		return nil, dataError(kind, err)
	}
	return out, nil
}

func decodeInto[T any](raw []byte) (T, error) {
	var v T
	err := DecodeJSON(raw, &v)
	return v, err
}
