package cardtree

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/davidahmann/cardkit/internal/dataid"
)

// Mode selects whether a walk may rebuild the values it passes through.
type Mode int

const (
	// ReadOnly never rebuilds anything; visitor results are ignored.
	ReadOnly Mode = iota
	// Rewrite threads changed values back up to the entry. Nodes off the path
	// of a change keep their identity and the input is never mutated.
	Rewrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case Rewrite:
		return "rewrite"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Visitor is called for every node of the exit kind. Document kinds arrive
// in document form. In Rewrite mode the visitor reports whether it changed
// the value; a rewrite visitor owns the document it receives and may edit it
// in place. In ReadOnly mode the visitor must not mutate its argument.
type Visitor func(v any) (any, bool, error)

// Walk configures one traversal.
type Walk struct {
	// Entry is the kind of the entry value; KindInvalid infers it.
	Entry Kind
	// Exit is the kind whose nodes are visited.
	Exit  Kind
	Mode  Mode
	Visit Visitor
	// Enter, if set, is called when a scope-bearing node is entered. The
	// returned func, if any, runs when the node is left.
	Enter func(kind Kind, scope dataid.Scope) func()
}

type walker struct {
	exit  Kind
	mode  Mode
	visit Visitor
	enter func(Kind, dataid.Scope) func()
}

// Traverse walks entry down to every node of w.Exit. It returns entry itself
// unless a rewrite changed something, in which case it returns the rebuilt
// value in entry's own shape.
func Traverse(entry any, w Walk) (any, error) {
	kind, err := w.resolve(entry)
	if err != nil {
		return entry, err
	}
	if isNil(entry) {
		return entry, nil
	}

	wk := &walker{exit: w.Exit, mode: w.Mode, visit: w.Visit, enter: w.Enter}
	out, changed, err := wk.node(kind, entry)
	if err != nil {
		return entry, err
	}
	if !changed {
		return entry, nil
	}
	return out, nil
}

func (w Walk) resolve(entry any) (Kind, error) {
	if w.Visit == nil {
		return KindInvalid, configErrorf(KindInvalid, "visitor is required")
	}
	if w.Mode != ReadOnly && w.Mode != Rewrite {
		return KindInvalid, configErrorf(KindInvalid, "unknown %s", w.Mode)
	}
	if !w.Exit.Valid() {
		return KindInvalid, configErrorf(KindInvalid, "exit kind is required")
	}

	kind := w.Entry
	if kind == KindInvalid {
		inferred, err := Infer(entry)
		if err != nil {
			return KindInvalid, err
		}
		kind = inferred
	} else if !kind.Valid() {
		return KindInvalid, configErrorf(KindInvalid, "unknown entry %s", kind)
	} else if !isNil(entry) && !schema[kind].accepts(entry) {
		return KindInvalid, configErrorf(kind, "cannot hold a value of type %s", describe(entry))
	}

	if !Reachable(kind, w.Exit) {
		return KindInvalid, configErrorf(kind, "%s is not reachable", w.Exit)
	}
	return kind, nil
}

func (w *walker) node(k Kind, v any) (any, bool, error) {
	if isNil(v) {
		return v, false, nil
	}
	if k != w.exit && !reach[k][w.exit] {
		return v, false, nil
	}

	n := &schema[k]
	if n.scope != "" && w.enter != nil {
		if leave := w.enter(k, n.scope); leave != nil {
			defer leave()
		}
	}

	if n.document {
		return w.document(k, v)
	}
	if k == w.exit {
		return w.call(v)
	}
	return n.handle(w, v)
}

// document runs a document node: convert, dispatch, and on change rebuild
// the value in its original shape.
func (w *walker) document(k Kind, v any) (any, bool, error) {
	doc := w.asDocument(k, v)
	if doc == nil {
		return v, false, nil
	}

	var (
		out     any
		changed bool
		err     error
	)
	if k == w.exit {
		out, changed, err = w.call(doc)
	} else {
		out, changed, err = schema[k].handle(w, doc)
	}
	if err != nil || !changed {
		return v, false, err
	}

	next, ok := out.(map[string]any)
	if !ok {
		return v, false, dataError(k, fmt.Errorf("rewritten to %s, want a document", describe(out)))
	}
	rebuilt, err := FromDocument(v, next)
	if err != nil {
		return v, false, dataError(k, err)
	}
	return rebuilt, true, nil
}

// asDocument hands the visitor of a rewrite its own deep copy. Everywhere
// else an existing map is used as is, since handlers copy before editing.
func (w *walker) asDocument(k Kind, v any) map[string]any {
	if m, ok := v.(map[string]any); ok && !(k == w.exit && w.mode == Rewrite) {
		return m
	}
	return ToDocument(v)
}

func (w *walker) call(v any) (any, bool, error) {
	out, changed, err := w.visit(v)
	if err != nil {
		return v, false, err
	}
	if w.mode != Rewrite || !changed {
		return v, false, nil
	}
	return out, true, nil
}

// rewriteSlice visits every element and copies the slice only once an
// element changes.
func rewriteSlice[E any](w *walker, child Kind, items []E) (any, bool, error) {
	var out []E
	for i, item := range items {
		next, changed, err := w.node(child, item)
		if err != nil {
			return items, false, err
		}
		if !changed {
			continue
		}
		e, ok := next.(E)
		if !ok {
			return items, false, dataError(child, fmt.Errorf("rewritten to %s, want %T", describe(next), item))
		}
		if out == nil {
			out = slices.Clone(items)
		}
		out[i] = e
	}
	if out == nil {
		return items, false, nil
	}
	return out, true, nil
}

// byValue runs fn over a struct node given either by value or by pointer and
// returns the result in the same form. fn works on a copy.
func byValue[T any](v any, fn func(T) (T, bool, error)) (any, bool, error) {
	switch t := v.(type) {
	case T:
		out, changed, err := fn(t)
		if err != nil || !changed {
			return v, false, err
		}
		return out, true, nil
	case *T:
		out, changed, err := fn(*t)
		if err != nil || !changed {
			return v, false, err
		}
		return &out, true, nil
	}
	return v, false, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
