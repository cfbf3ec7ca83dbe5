package dataid

import (
	"errors"

	"github.com/davidahmann/cardkit/pkg/types"
)

// LibraryDataKey is the reserved member of an action payload that holds ids
// and behaviors owned by this library.
const LibraryDataKey = "cardkitLibraryData"

// BehaviorAutoDeactivate overrides per click whether the action is deactivated.
const BehaviorAutoDeactivate = "autoDeactivate"

var ErrInvalidLibraryData = errors.New("library data is not an object")

// ApplyToPayload stamps ids into the payload's library data. inherited holds the
// values resolved for the enclosing scopes; an action id is generated when none
// is inherited, while other scopes without a value are skipped.
func ApplyToPayload(payload types.Document, opts Options, inherited map[Scope]string) (bool, error) {
	requested := opts.Requested()
	if len(requested) == 0 {
		return false, nil
	}

	var lib types.Document
	switch existing := payload[LibraryDataKey].(type) {
	case nil:
	case map[string]any:
		lib = existing
	default:
		return false, ErrInvalidLibraryData
	}

	changed := false
	for _, scope := range requested {
		if !opts.Overwrite && lib[scope.key()] != nil {
			continue
		}
		value := inherited[scope]
		if value == "" {
			value, _ = opts.Explicit(scope)
		}
		if value == "" {
			if scope != ScopeAction {
				continue
			}
			value = NewValue(ScopeAction)
		}
		if lib == nil {
			lib = types.Document{}
			payload[LibraryDataKey] = lib
		}
		if current, _ := lib[scope.key()].(string); current == value {
			continue
		}
		lib[scope.key()] = value
		changed = true
	}
	return changed, nil
}

// FromLibraryData reads every scope id present in a library data document.
func FromLibraryData(lib types.Document) []DataID {
	var out []DataID
	for _, scope := range scopes {
		if v, ok := lib[scope.key()].(string); ok && v != "" {
			out = append(out, DataID{Scope: scope, Value: v})
		}
	}
	return out
}

// FromPayload reads the ids of a single action payload.
func FromPayload(payload types.Document) []DataID {
	lib, ok := payload[LibraryDataKey].(map[string]any)
	if !ok {
		return nil
	}
	return FromLibraryData(lib)
}

// Behavior returns a boolean behavior from the payload's library data, or nil
// when it is unset or not a boolean.
func Behavior(payload types.Document, name string) *bool {
	lib, ok := payload[LibraryDataKey].(map[string]any)
	if !ok {
		return nil
	}
	v, ok := lib[name].(bool)
	if !ok {
		return nil
	}
	return &v
}

func (s Scope) key() string {
	return string(s)
}
