package dataid

import (
	"fmt"
	"strings"
)

// Scope is a level of the containment hierarchy at which one id value is
// shared by every action nested inside it.
type Scope string

const (
	// ScopeAction ids are unique per action.
	ScopeAction Scope = "action"
	// ScopeCard ids are shared by every action on one card.
	ScopeCard Scope = "card"
	// ScopeCarousel ids are shared by every action across the attachments of one message.
	ScopeCarousel Scope = "carousel"
	// ScopeBatch ids are shared by every action in one batch of messages.
	ScopeBatch Scope = "batch"
)

// ordered from narrowest to broadest
var scopes = [...]Scope{ScopeAction, ScopeCard, ScopeCarousel, ScopeBatch}

// Scopes returns every scope, narrowest first.
func Scopes() []Scope {
	out := make([]Scope, len(scopes))
	copy(out, scopes[:])
	return out
}

// Rank is the position of s in the breadth order, or -1 for an unknown scope.
func (s Scope) Rank() int {
	for i, known := range scopes {
		if known == s {
			return i
		}
	}
	return -1
}

func (s Scope) Valid() bool {
	return s.Rank() >= 0
}

func ParseScope(raw string) (Scope, error) {
	s := Scope(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown id scope %q", raw)
	}
	return s, nil
}

// Broadest returns the id with the broadest scope. Ties keep the first one.
func Broadest(ids []DataID) (DataID, bool) {
	best := -1
	var out DataID
	for _, id := range ids {
		if r := id.Scope.Rank(); r > best {
			best = r
			out = id
		}
	}
	return out, best >= 0
}
