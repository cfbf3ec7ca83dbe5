package dataid

import (
	"sort"

	"github.com/google/uuid"
)

// DataID is one identifier stamped into an action payload.
type DataID struct {
	Scope Scope  `json:"scope"`
	Value string `json:"value"`
}

func (d DataID) String() string {
	return string(d.Scope) + ":" + d.Value
}

// NewValue generates a random id value for the scope.
func NewValue(scope Scope) string {
	return string(scope) + "-" + uuid.NewString()
}

// Set is an unordered collection of ids; duplicates by (scope, value) collapse.
type Set map[DataID]struct{}

func NewSet(ids ...DataID) Set {
	s := make(Set, len(ids))
	s.Add(ids...)
	return s
}

func (s Set) Add(ids ...DataID) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s Set) Contains(id DataID) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Values returns the values recorded for one scope, sorted.
func (s Set) Values(scope Scope) []string {
	var out []string
	for id := range s {
		if id.Scope == scope {
			out = append(out, id.Value)
		}
	}
	sort.Strings(out)
	return out
}

// Slice returns the ids ordered by scope breadth, then value.
func (s Set) Slice() []DataID {
	out := make([]DataID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Scope.Rank(), out[j].Scope.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Value < out[j].Value
	})
	return out
}
