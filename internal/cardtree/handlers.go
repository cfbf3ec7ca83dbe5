package cardtree

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/pkg/types"
)

func handleBatch(w *walker, v any) (any, bool, error) {
	switch b := v.(type) {
	case []types.Message:
		return rewriteSlice(w, KindMessage, b)
	case []*types.Message:
		return rewriteSlice(w, KindMessage, b)
	}
	return v, false, nil
}

func handleMessage(w *walker, v any) (any, bool, error) {
	return byValue(v, func(m types.Message) (types.Message, bool, error) {
		out, changed, err := w.node(KindAttachmentList, m.Attachments)
		if err != nil || !changed {
			return m, false, err
		}
		m.Attachments = out.([]types.Attachment)
		return m, true, nil
	})
}

func handleAttachmentList(w *walker, v any) (any, bool, error) {
	list, ok := v.([]types.Attachment)
	if !ok {
		return v, false, nil
	}
	return rewriteSlice(w, KindAttachment, list)
}

// Attachments whose content type is not a known card are opaque.
func handleAttachment(w *walker, v any) (any, bool, error) {
	return byValue(v, func(a types.Attachment) (types.Attachment, bool, error) {
		kind, ok := CardKind(a.ContentType)
		if !ok {
			return a, false, nil
		}
		out, changed, err := w.node(kind, a.Content)
		if err != nil || !changed {
			return a, false, err
		}
		a.Content = out
		return a, true, nil
	})
}

type path []any

// submitSlot is the location of one submit action inside a card document.
type submitSlot struct {
	at     path
	action map[string]any
}

func handleAdaptiveCard(w *walker, v any) (any, bool, error) {
	card := v.(map[string]any)
	var slots []submitSlot
	collectSubmitActions(card, nil, &slots)
	if len(slots) == 0 {
		return v, false, nil
	}

	list := make([]map[string]any, len(slots))
	for i, s := range slots {
		list[i] = s.action
	}
	out, changed, err := w.node(KindSubmitActionList, list)
	if err != nil || !changed {
		return v, false, err
	}

	updated := out.([]map[string]any)
	var root any = card
	for i, s := range slots {
		if sameMap(updated[i], s.action) {
			continue
		}
		root = setPath(root, s.at, updated[i])
	}
	return root, true, nil
}

// collectSubmitActions finds submit actions in document order, skipping the
// data member of each one since it belongs to the action's payload.
func collectSubmitActions(v any, at path, out *[]submitSlot) {
	switch t := v.(type) {
	case map[string]any:
		submit := false
		if typ, ok := t[types.AdaptivePropType].(string); ok && typ == types.AdaptiveSubmitAction {
			submit = true
			*out = append(*out, submitSlot{at: slices.Clone(at), action: t})
		}
		for _, k := range cardKeys(t) {
			if submit && k == types.AdaptivePropData {
				continue
			}
			collectSubmitActions(t[k], append(at, k), out)
		}
	case []any:
		for i, e := range t {
			collectSubmitActions(e, append(at, i), out)
		}
	case []map[string]any:
		for i, e := range t {
			collectSubmitActions(e, append(at, i), out)
		}
	}
}

// setPath returns a copy of root with the value at p replaced, copying only
// the containers along p.
func setPath(root any, p path, value any) any {
	if len(p) == 0 {
		return value
	}
	switch c := root.(type) {
	case map[string]any:
		key := p[0].(string)
		out := shallow(c)
		out[key] = setPath(c[key], p[1:], value)
		return out
	case []any:
		i := p[0].(int)
		out := slices.Clone(c)
		out[i] = setPath(c[i], p[1:], value)
		return out
	case []map[string]any:
		i := p[0].(int)
		out := slices.Clone(c)
		if m, ok := setPath(c[i], p[1:], value).(map[string]any); ok {
			out[i] = m
		}
		return out
	}
	return root
}

func sameMap(a, b map[string]any) bool {
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

// cardKeys orders the members of a card object the way the Adaptive schema
// lays them out: content members sorted by name, then the actions, so body
// actions come before the card's own. A decoded map keeps no source order.
func cardKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ai, aj := keys[i] == adaptiveActionsKey, keys[j] == adaptiveActionsKey
		if ai != aj {
			return aj
		}
		return keys[i] < keys[j]
	})
	return keys
}

const adaptiveActionsKey = "actions"

// Rich card content may arrive typed or as decoded JSON; only its buttons are
// rewritten, every other member is kept from the original.
func richCardHandler(kind Kind) handler {
	return func(w *walker, v any) (any, bool, error) {
		return handleRichCard(w, kind, v)
	}
}

func handleRichCard(w *walker, kind Kind, v any) (any, bool, error) {
	if isRichCard(v) {
		return byValue(v, func(c types.RichCard) (types.RichCard, bool, error) {
			out, changed, err := w.node(KindCardActionList, c.Buttons)
			if err != nil || !changed {
				return c, false, err
			}
			c.Buttons = out.([]types.CardAction)
			return c, true, nil
		})
	}

	doc := ToDocument(v)
	if doc == nil {
		return v, false, nil
	}
	var card types.RichCard
	if err := decodeDocument(doc, &card); err != nil {
		return v, false, nil
	}
	out, changed, err := w.node(KindCardActionList, card.Buttons)
	if err != nil || !changed {
		return v, false, err
	}
	buttons := ToDocument(struct {
		Buttons []types.CardAction `json:"buttons"`
	}{out.([]types.CardAction)})
	doc["buttons"] = buttons["buttons"]
	rebuilt, err := FromDocument(v, doc)
	if err != nil {
		return v, false, dataError(kind, err)
	}
	return rebuilt, true, nil
}

func decodeDocument(doc map[string]any, dst any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return DecodeJSON(raw, dst)
}

func handleSubmitActionList(w *walker, v any) (any, bool, error) {
	switch list := v.(type) {
	case []map[string]any:
		return rewriteSlice(w, KindSubmitAction, list)
	case []any:
		return rewriteSlice(w, KindSubmitAction, list)
	}
	return v, false, nil
}

func handleCardActionList(w *walker, v any) (any, bool, error) {
	list, ok := v.([]types.CardAction)
	if !ok {
		return v, false, nil
	}
	return rewriteSlice(w, KindCardAction, list)
}

// A submit action's payload is its data object, created empty when a rewrite
// reaches an action without one.
func handleSubmitAction(w *walker, v any) (any, bool, error) {
	action := v.(map[string]any)
	data := action[types.AdaptivePropData]
	if data == nil {
		if w.mode != Rewrite {
			return v, false, nil
		}
		data = types.Document{}
	}
	if _, ok := data.(map[string]any); !ok {
		return v, false, nil
	}

	out, changed, err := w.node(KindActionPayload, data)
	if err != nil || !changed {
		return v, false, err
	}
	next := shallow(action)
	next[types.AdaptivePropData] = out
	return next, true, nil
}

// Only messageBack and postBack actions carry a payload: the value when it
// is an object, else the text when it holds a JSON object. A rewrite gives an
// action with neither a fresh object value.
func handleCardAction(w *walker, v any) (any, bool, error) {
	return byValue(v, func(a types.CardAction) (types.CardAction, bool, error) {
		if a.Type != types.ActionMessageBack && a.Type != types.ActionPostBack {
			return a, false, nil
		}

		switch {
		case ToDocument(a.Value) != nil:
			out, changed, err := w.node(KindActionPayload, a.Value)
			if err != nil || !changed {
				return a, false, err
			}
			a.Value = out
		case ToDocument(a.Text) != nil:
			out, changed, err := w.node(KindActionPayload, a.Text)
			if err != nil || !changed {
				return a, false, err
			}
			text, ok := out.(string)
			if !ok {
				return a, false, dataError(KindCardAction, fmt.Errorf("text rewritten to %s", describe(out)))
			}
			a.Text = text
		case w.mode == Rewrite && a.Value == nil:
			out, changed, err := w.node(KindActionPayload, types.Document{})
			if err != nil || !changed {
				return a, false, err
			}
			a.Value = out
		default:
			return a, false, nil
		}
		return a, true, nil
	})
}

func handleActionPayload(w *walker, v any) (any, bool, error) {
	payload := v.(map[string]any)
	lib := payload[dataid.LibraryDataKey]
	switch lib.(type) {
	case nil:
		if w.mode != Rewrite {
			return v, false, nil
		}
		lib = types.Document{}
	case map[string]any:
	default:
		if w.mode == Rewrite {
			return v, false, dataError(KindActionPayload, dataid.ErrInvalidLibraryData)
		}
		return v, false, nil
	}

	out, changed, err := w.node(KindExtensionData, lib)
	if err != nil || !changed {
		return v, false, err
	}
	next := shallow(payload)
	next[dataid.LibraryDataKey] = out
	return next, true, nil
}

func handleExtensionData(w *walker, v any) (any, bool, error) {
	lib := v.(map[string]any)
	var next map[string]any
	for _, id := range dataid.FromLibraryData(lib) {
		out, changed, err := w.node(KindIdentifier, id)
		if err != nil {
			return v, false, err
		}
		if !changed {
			continue
		}
		replaced, ok := out.(dataid.DataID)
		if !ok || !replaced.Scope.Valid() {
			return v, false, dataError(KindIdentifier, fmt.Errorf("rewritten to invalid id %v", out))
		}
		if next == nil {
			next = shallow(lib)
		}
		delete(next, string(id.Scope))
		next[string(replaced.Scope)] = replaced.Value
	}
	if next == nil {
		return v, false, nil
	}
	return next, true, nil
}
