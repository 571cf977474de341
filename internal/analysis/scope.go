package analysis

import "github.com/tavgar/endpointfinder/internal/symbolic"

// Scope maps surface identifiers to qualified symbols. Nested scopes start
// from a copy of their parent, so declarations never leak outward.
type Scope struct {
	names map[string]string
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{names: make(map[string]string)}
}

// Child returns a copy of s that can be extended independently.
func (s *Scope) Child() *Scope {
	c := &Scope{names: make(map[string]string, len(s.names))}
	for k, v := range s.names {
		c.names[k] = v
	}
	return c
}

// Lookup returns the qualified symbol bound to name.
func (s *Scope) Lookup(name string) (string, bool) {
	q, ok := s.names[name]
	return q, ok
}

// Declare binds name to the qualified symbol q in this scope only.
func (s *Scope) Declare(name, q string) {
	s.names[name] = q
}

// Len returns the number of visible names.
func (s *Scope) Len() int { return len(s.names) }

// scopeContext is the state threaded through one lexical scope: the visible
// names and the prefix used to mint symbols declared here.
type scopeContext struct {
	scope *Scope
	name  string
}

func (c *scopeContext) qualify(name string) string {
	return symbolic.Qualify(c.name, name)
}
