package dataid

import "fmt"

// Options describes one assignment request: which scopes to stamp, explicit
// values for some of them, and whether existing values may be replaced.
type Options struct {
	Scopes    []Scope          `json:"scopes" yaml:"scopes" validate:"dive,oneof=action card carousel batch"`
	Values    map[Scope]string `json:"values,omitempty" yaml:"values,omitempty"`
	Overwrite bool             `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
}

// NewOptions requests generated values for the given scopes.
func NewOptions(scopes ...Scope) Options {
	return Options{Scopes: scopes}
}

// WithValue returns a copy of o that requests scope with an explicit value.
func (o Options) WithValue(scope Scope, value string) Options {
	out := o.Clone()
	if !out.Requests(scope) {
		out.Scopes = append(out.Scopes, scope)
	}
	if out.Values == nil {
		out.Values = make(map[Scope]string)
	}
	out.Values[scope] = value
	return out
}

func (o Options) Requests(scope Scope) bool {
	for _, s := range o.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Explicit returns the caller-supplied value for scope, if any.
func (o Options) Explicit(scope Scope) (string, bool) {
	v, ok := o.Values[scope]
	return v, ok && v != ""
}

// Requested returns the requested scopes in breadth order without duplicates.
func (o Options) Requested() []Scope {
	out := make([]Scope, 0, len(o.Scopes))
	for _, s := range scopes {
		if o.Requests(s) {
			out = append(out, s)
		}
	}
	return out
}

func (o Options) Clone() Options {
	out := Options{Overwrite: o.Overwrite}
	out.Scopes = append([]Scope(nil), o.Scopes...)
	if o.Values != nil {
		out.Values = make(map[Scope]string, len(o.Values))
		for k, v := range o.Values {
			out.Values[k] = v
		}
	}
	return out
}

func (o Options) Validate() error {
	for _, s := range o.Scopes {
		if !s.Valid() {
			return fmt.Errorf("unknown id scope %q", s)
		}
	}
	for s := range o.Values {
		if !o.Requests(s) {
			return fmt.Errorf("value given for scope %q that is not requested", s)
		}
	}
	return nil
}
