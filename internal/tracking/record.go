package tracking

import (
	"slices"
	"sort"
	"time"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/pkg/types"
)

// SavedMessage describes a message sent earlier in the conversation so it can
// be updated or deleted later.
type SavedMessage struct {
	ID      string          `json:"id"`
	Digest  string          `json:"digest"`
	IDs     []dataid.DataID `json:"ids,omitempty"`
	SavedAt time.Time       `json:"saved_at"`
	Message types.Message   `json:"message"`
}

// Tagged reports whether the message carried id.
func (m SavedMessage) Tagged(id dataid.DataID) bool {
	return slices.Contains(m.IDs, id)
}

// Record is the tracking state of one conversation. Revision is maintained
// by the Store and must be passed back unchanged on Set.
type Record struct {
	Revision int64                     `json:"revision"`
	Live     map[dataid.Scope][]string `json:"live,omitempty"`
	Messages []SavedMessage            `json:"messages,omitempty"`
}

func (r Record) IsLive(id dataid.DataID) bool {
	_, found := slices.BinarySearch(r.Live[id.Scope], id.Value)
	return found
}

// LiveIDs returns every live id as a set.
func (r Record) LiveIDs() dataid.Set {
	out := dataid.NewSet()
	for scope, values := range r.Live {
		for _, v := range values {
			out.Add(dataid.DataID{Scope: scope, Value: v})
		}
	}
	return out
}

// Enable adds ids to the live sets and reports whether anything was added.
func (r *Record) Enable(ids ...dataid.DataID) bool {
	changed := false
	for _, id := range ids {
		values := r.Live[id.Scope]
		i, found := slices.BinarySearch(values, id.Value)
		if found {
			continue
		}
		if r.Live == nil {
			r.Live = make(map[dataid.Scope][]string)
		}
		r.Live[id.Scope] = slices.Insert(values, i, id.Value)
		changed = true
	}
	return changed
}

// Disable removes ids from the live sets. Absent ids are ignored.
func (r *Record) Disable(ids ...dataid.DataID) bool {
	changed := false
	for _, id := range ids {
		values := r.Live[id.Scope]
		i, found := slices.BinarySearch(values, id.Value)
		if !found {
			continue
		}
		values = slices.Delete(values, i, i+1)
		if len(values) == 0 {
			delete(r.Live, id.Scope)
		} else {
			r.Live[id.Scope] = values
		}
		changed = true
	}
	return changed
}

// Clear empties the live sets of the given scopes, or all of them when none
// are given.
func (r *Record) Clear(scopes ...dataid.Scope) bool {
	if len(scopes) == 0 {
		changed := len(r.Live) > 0
		r.Live = nil
		return changed
	}
	changed := false
	for _, s := range scopes {
		if _, ok := r.Live[s]; ok {
			delete(r.Live, s)
			changed = true
		}
	}
	return changed
}

func (r Record) Message(id string) (SavedMessage, bool) {
	for _, m := range r.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return SavedMessage{}, false
}

// SaveMessage replaces the descriptor with the same ID or appends a new one.
func (r *Record) SaveMessage(m SavedMessage) bool {
	for i, existing := range r.Messages {
		if existing.ID != m.ID {
			continue
		}
		if existing.Digest == m.Digest && slices.Equal(existing.IDs, m.IDs) {
			return false
		}
		r.Messages[i] = m
		return true
	}
	r.Messages = append(r.Messages, m)
	return true
}

func (r *Record) RemoveMessage(id string) bool {
	n := len(r.Messages)
	r.Messages = slices.DeleteFunc(r.Messages, func(m SavedMessage) bool { return m.ID == id })
	return len(r.Messages) != n
}

// RemoveTagged drops every descriptor that carried id and returns them in log order.
func (r *Record) RemoveTagged(id dataid.DataID) []SavedMessage {
	var removed, kept []SavedMessage
	for _, m := range r.Messages {
		if m.Tagged(id) {
			removed = append(removed, m)
		} else {
			kept = append(kept, m)
		}
	}
	if len(removed) > 0 {
		r.Messages = kept
	}
	return removed
}

// Clone returns a copy that shares no slices or maps with r.
func (r Record) Clone() Record {
	out := Record{Revision: r.Revision}
	if r.Live != nil {
		out.Live = make(map[dataid.Scope][]string, len(r.Live))
		for s, values := range r.Live {
			out.Live[s] = slices.Clone(values)
		}
	}
	if r.Messages != nil {
		out.Messages = make([]SavedMessage, len(r.Messages))
		for i, m := range r.Messages {
			m.IDs = slices.Clone(m.IDs)
			out.Messages[i] = m
		}
	}
	return out
}

// normalize sorts live values so lookups can binary search; stores call it
// after decoding.
func (r *Record) normalize() {
	for s, values := range r.Live {
		if !sort.StringsAreSorted(values) {
			sort.Strings(values)
		}
		r.Live[s] = slices.Compact(values)
	}
}
