package cardtree

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/pkg/types"
)

type handler func(w *walker, v any) (any, bool, error)

type node struct {
	// scope is non-empty when entering the node starts a new id scope.
	scope    dataid.Scope
	children []Kind
	// document nodes see their value in document form.
	document bool
	// shape is the strict matcher used for inference; accepts is the looser
	// check applied to an explicitly named kind.
	shape   func(any) bool
	accepts func(any) bool
	handle  handler
}

var richCardKinds = []Kind{
	KindAnimationCard, KindAudioCard, KindHeroCard, KindOAuthCard,
	KindReceiptCard, KindSigninCard, KindThumbnailCard, KindVideoCard,
}

var cardKinds = map[string]Kind{
	strings.ToLower(types.ContentTypeAdaptiveCard):  KindAdaptiveCard,
	strings.ToLower(types.ContentTypeAnimationCard): KindAnimationCard,
	strings.ToLower(types.ContentTypeAudioCard):     KindAudioCard,
	strings.ToLower(types.ContentTypeHeroCard):      KindHeroCard,
	strings.ToLower(types.ContentTypeOAuthCard):     KindOAuthCard,
	strings.ToLower(types.ContentTypeReceiptCard):   KindReceiptCard,
	strings.ToLower(types.ContentTypeSigninCard):    KindSigninCard,
	strings.ToLower(types.ContentTypeThumbnailCard): KindThumbnailCard,
	strings.ToLower(types.ContentTypeVideoCard):     KindVideoCard,
}

// CardKind maps an attachment content type to its card kind.
func CardKind(contentType string) (Kind, bool) {
	k, ok := cardKinds[strings.ToLower(strings.TrimSpace(contentType))]
	return k, ok
}

var schema [kindCount]node

// reach[a][b] reports whether b is a strict descendant kind of a.
var reach [kindCount][kindCount]bool

// Handlers refer back to the table through the walker, so the table is
// assembled here rather than in a composite literal.
func init() {
	schema[KindBatch] = node{
		scope:    dataid.ScopeBatch,
		children: []Kind{KindMessage},
		shape:    isBatch,
		accepts:  isBatch,
		handle:   handleBatch,
	}
	schema[KindMessage] = node{
		children: []Kind{KindAttachmentList},
		shape:    isMessage,
		accepts:  isMessage,
		handle:   handleMessage,
	}
	schema[KindAttachmentList] = node{
		scope:    dataid.ScopeCarousel,
		children: []Kind{KindAttachment},
		shape:    isAttachmentList,
		accepts:  isAttachmentList,
		handle:   handleAttachmentList,
	}
	schema[KindAttachment] = node{
		children: append([]Kind{KindAdaptiveCard}, richCardKinds...),
		shape:    isAttachment,
		accepts:  isAttachment,
		handle:   handleAttachment,
	}
	schema[KindAdaptiveCard] = node{
		children: []Kind{KindSubmitActionList},
		document: true,
		shape:    isDocument,
		accepts:  isDocumentLike,
		handle:   handleAdaptiveCard,
	}
	for _, k := range richCardKinds {
		schema[k] = node{
			children: []Kind{KindCardActionList},
			shape:    isRichCard,
			accepts:  func(v any) bool { return isRichCard(v) || isDocumentLike(v) },
			handle:   richCardHandler(k),
		}
	}
	schema[KindSubmitActionList] = node{
		scope:    dataid.ScopeCard,
		children: []Kind{KindSubmitAction},
		shape:    isDocumentList,
		accepts:  func(v any) bool { return isDocumentList(v) || isAnyList(v) },
		handle:   handleSubmitActionList,
	}
	schema[KindCardActionList] = node{
		scope:    dataid.ScopeCard,
		children: []Kind{KindCardAction},
		shape:    isCardActionList,
		accepts:  isCardActionList,
		handle:   handleCardActionList,
	}
	schema[KindSubmitAction] = node{
		children: []Kind{KindActionPayload},
		document: true,
		shape:    isDocument,
		accepts:  isDocumentLike,
		handle:   handleSubmitAction,
	}
	schema[KindCardAction] = node{
		children: []Kind{KindActionPayload},
		shape:    isCardAction,
		accepts:  isCardAction,
		handle:   handleCardAction,
	}
	schema[KindActionPayload] = node{
		children: []Kind{KindExtensionData},
		document: true,
		shape:    isDocument,
		accepts:  isDocumentLike,
		handle:   handleActionPayload,
	}
	schema[KindExtensionData] = node{
		children: []Kind{KindIdentifier},
		document: true,
		shape:    isDocument,
		accepts:  isDocumentLike,
		handle:   handleExtensionData,
	}
	schema[KindIdentifier] = node{
		shape:   isIdentifier,
		accepts: isIdentifier,
		handle:  func(_ *walker, v any) (any, bool, error) { return v, false, nil },
	}

	for k := KindBatch; k < kindCount; k++ {
		markReachable(k, k)
	}
}

func markReachable(from, at Kind) {
	for _, child := range schema[at].children {
		if reach[from][child] {
			continue
		}
		reach[from][child] = true
		markReachable(from, child)
	}
}

// Children lists the kinds a node of kind k may contain.
func Children(k Kind) []Kind {
	if !k.Valid() {
		return nil
	}
	return append([]Kind(nil), schema[k].children...)
}

// ScopeOf returns the id scope that entering a node of kind k begins, if any.
func ScopeOf(k Kind) (dataid.Scope, bool) {
	if !k.Valid() || schema[k].scope == "" {
		return "", false
	}
	return schema[k].scope, true
}

// Reachable reports whether exit can be found under a node of kind entry.
func Reachable(entry, exit Kind) bool {
	if !entry.Valid() || !exit.Valid() {
		return false
	}
	return entry == exit || reach[entry][exit]
}

// Infer returns the single kind whose shape matches v.
func Infer(v any) (Kind, error) {
	var matches []Kind
	for k := KindBatch; k < kindCount; k++ {
		if schema[k].shape(v) {
			matches = append(matches, k)
		}
	}
	switch len(matches) {
	case 0:
		return KindInvalid, configErrorf(KindInvalid, "no kind matches %T", v)
	case 1:
		return matches[0], nil
	default:
		return KindInvalid, configErrorf(KindInvalid, "%T matches %s; pass the kind explicitly", v, joinKinds(matches))
	}
}

func joinKinds(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}

func isBatch(v any) bool {
	switch v.(type) {
	case []types.Message, []*types.Message:
		return true
	}
	return false
}

func isMessage(v any) bool {
	switch v.(type) {
	case types.Message, *types.Message:
		return true
	}
	return false
}

func isAttachmentList(v any) bool {
	_, ok := v.([]types.Attachment)
	return ok
}

func isAttachment(v any) bool {
	switch v.(type) {
	case types.Attachment, *types.Attachment:
		return true
	}
	return false
}

func isRichCard(v any) bool {
	switch v.(type) {
	case types.RichCard, *types.RichCard:
		return true
	}
	return false
}

func isDocumentList(v any) bool {
	_, ok := v.([]map[string]any)
	return ok
}

func isAnyList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func isCardActionList(v any) bool {
	_, ok := v.([]types.CardAction)
	return ok
}

func isCardAction(v any) bool {
	switch v.(type) {
	case types.CardAction, *types.CardAction:
		return true
	}
	return false
}

func isIdentifier(v any) bool {
	_, ok := v.(dataid.DataID)
	return ok
}

func isDocument(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// isDocumentLike accepts anything ToDocument may turn into an object.
func isDocumentLike(v any) bool {
	switch v.(type) {
	case nil, map[string]any, json.RawMessage, []byte, string:
		return true
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct || (t.Kind() == reflect.Map && t.Key().Kind() == reflect.String)
}

func describe(v any) string {
	return fmt.Sprintf("%T", v)
}
