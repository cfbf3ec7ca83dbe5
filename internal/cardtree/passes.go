package cardtree

import (
	"fmt"
	"reflect"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/pkg/types"
)

// AssignIDs stamps ids into every action payload under entry and returns the
// rebuilt entry. entry itself is left untouched. Pass KindInvalid to infer
// the entry kind from the value.
//
// A non-action scope gets one generated value per scope-bearing node, shared
// by every action beneath it; actions outside any such node are skipped for
// that scope. Every action without an inherited or explicit action value gets
// its own.
func AssignIDs[T any](entry T, kind Kind, opts dataid.Options) (T, error) {
	if err := opts.Validate(); err != nil {
		return entry, configErrorf(kind, "%v", err)
	}

	resolved := make(map[dataid.Scope]string)
	for _, scope := range opts.Requested() {
		if v, ok := opts.Explicit(scope); ok {
			resolved[scope] = v
		}
	}

	out, err := Traverse(entry, Walk{
		Entry: kind,
		Exit:  KindActionPayload,
		Mode:  Rewrite,
		Enter: func(_ Kind, scope dataid.Scope) func() {
			if !opts.Requests(scope) {
				return nil
			}
			if _, explicit := opts.Explicit(scope); explicit {
				return nil
			}
			prev, had := resolved[scope]
			resolved[scope] = dataid.NewValue(scope)
			return func() {
				if had {
					resolved[scope] = prev
				} else {
					delete(resolved, scope)
				}
			}
		},
		Visit: func(v any) (any, bool, error) {
			payload := v.(map[string]any)
			changed, err := dataid.ApplyToPayload(payload, opts, resolved)
			if err != nil {
				return v, false, dataError(KindActionPayload, err)
			}
			return payload, changed, nil
		},
	})
	return typed(entry, out, err)
}

// ExtractIDs collects every id found under entry. It never modifies entry.
func ExtractIDs(entry any, kind Kind) (dataid.Set, error) {
	ids := dataid.NewSet()
	_, err := Traverse(entry, Walk{
		Entry: kind,
		Exit:  KindIdentifier,
		Mode:  ReadOnly,
		Visit: func(v any) (any, bool, error) {
			ids.Add(v.(dataid.DataID))
			return v, false, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetBehavior writes a behavior value into the library data of every action
// payload under entry.
func SetBehavior[T any](entry T, kind Kind, name string, value any) (T, error) {
	if name == "" {
		return entry, configErrorf(kind, "behavior name is required")
	}
	if _, err := dataid.ParseScope(name); err == nil {
		return entry, configErrorf(kind, "behavior name %q is reserved for ids", name)
	}

	out, err := Traverse(entry, Walk{
		Entry: kind,
		Exit:  KindExtensionData,
		Mode:  Rewrite,
		Visit: func(v any) (any, bool, error) {
			lib := v.(map[string]any)
			if current, ok := lib[name]; ok && reflect.DeepEqual(current, value) {
				return v, false, nil
			}
			lib[name] = value
			return lib, true, nil
		},
	})
	return typed(entry, out, err)
}

// ConvertAdaptiveCards replaces the content of every Adaptive card attachment
// under entry with its document form.
func ConvertAdaptiveCards[T any](entry T, kind Kind) (T, error) {
	return RewriteEach(entry, kind, func(a types.Attachment) (types.Attachment, bool, error) {
		if k, ok := CardKind(a.ContentType); !ok || k != KindAdaptiveCard {
			return a, false, nil
		}
		if _, ok := a.Content.(map[string]any); ok || a.Content == nil {
			return a, false, nil
		}
		doc := ToDocument(a.Content)
		if doc == nil {
			return a, false, dataError(KindAdaptiveCard, fmt.Errorf("content of type %s is not a card", describe(a.Content)))
		}
		a.Content = doc
		return a, true, nil
	})
}

// VisitEach calls fn for every node under entry whose kind is inferred from
// N. Nodes present in another representation than N are skipped.
func VisitEach[N any](entry any, kind Kind, fn func(N) error) error {
	exit, err := exitKind[N]()
	if err != nil {
		return err
	}
	_, err = Traverse(entry, Walk{
		Entry: kind,
		Exit:  exit,
		Mode:  ReadOnly,
		Visit: func(v any) (any, bool, error) {
			if n, ok := v.(N); ok {
				return v, false, fn(n)
			}
			return v, false, nil
		},
	})
	return err
}

// RewriteEach is the rewrite counterpart of VisitEach.
func RewriteEach[T, N any](entry T, kind Kind, fn func(N) (N, bool, error)) (T, error) {
	exit, err := exitKind[N]()
	if err != nil {
		return entry, err
	}
	out, err := Traverse(entry, Walk{
		Entry: kind,
		Exit:  exit,
		Mode:  Rewrite,
		Visit: func(v any) (any, bool, error) {
			n, ok := v.(N)
			if !ok {
				return v, false, nil
			}
			return fn(n)
		},
	})
	return typed(entry, out, err)
}

// IncomingPayload returns the action payload carried by an incoming click:
// the message value as a document, else its text when that is a JSON object.
func IncomingPayload(msg types.Message) types.Document {
	if doc := ToDocument(msg.Value); doc != nil {
		return doc
	}
	return ToDocument(msg.Text)
}

func exitKind[N any]() (Kind, error) {
	var zero N
	return Infer(zero)
}

func typed[T any](entry T, out any, err error) (T, error) {
	if err != nil {
		return entry, err
	}
	if out == nil {
		var zero T
		return zero, nil
	}
	t, ok := out.(T)
	if !ok {
		return entry, dataError(KindInvalid, fmt.Errorf("rebuilt %s, want %T", describe(out), entry))
	}
	return t, nil
}
