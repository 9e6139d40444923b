// Package watch implements the viewer's watch registers: named regex
// matchers that highlight or substitute text in the rendered line stream.
package watch

import (
	"fmt"
	"regexp"

	appErrors "logwatch/internal/app/errors"
)

const lastMatchesCapacity = 10

// Watch is one compiled regex bound to a register, with an optional
// substitution template (Go regexp `$1`-style capture references). A watch
// whose pattern fails to compile is kept, not rejected: InvalidRegex is set
// and Apply always reports no match, per the invalid-regex error policy —
// the failure surfaces as a status-line message, never a crash.
type Watch struct {
	Register    string
	Pattern     string
	Replacement string
	Enabled     bool
	LastMatches []string

	InvalidRegex bool

	re *regexp.Regexp
}

// New compiles pattern and binds it to register. An empty replacement
// means "match only" — Apply then reports whether the line matched without
// altering it. A Watch is always returned, even when pattern fails to
// compile; callers that need to surface the compile failure should check
// the returned error, but should still keep (and may still Add) the Watch.
func New(register, pattern, replacement string) (*Watch, error) {
	w := &Watch{Register: register, Pattern: pattern, Replacement: replacement, Enabled: true}

	re, err := regexp.Compile(pattern)
	if err != nil {
		w.InvalidRegex = true
		return w, appErrors.ErrInvalidWatchRegex
	}

	w.re = re

	return w, nil
}

// Apply matches line against the watch, returning the (possibly
// substituted) line and whether it matched at all. A disabled or
// invalid-regex watch never matches.
func (w *Watch) Apply(line string) (string, bool) {
	if !w.Enabled || w.InvalidRegex {
		return line, false
	}

	if !w.re.MatchString(line) {
		return line, false
	}

	out := line
	if w.Replacement != "" {
		out = w.re.ReplaceAllString(line, w.Replacement)
	}

	w.recordMatch(line)

	return out, true
}

func (w *Watch) recordMatch(line string) {
	w.LastMatches = append(w.LastMatches, line)
	if len(w.LastMatches) > lastMatchesCapacity {
		w.LastMatches = w.LastMatches[len(w.LastMatches)-lastMatchesCapacity:]
	}
}

// Registry tracks the set of active watches by register, so interactive
// commands can add/remove/list them without the caller tracking a map.
type Registry struct {
	watches map[string]*Watch
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{watches: make(map[string]*Watch)}
}

// Add binds w.Register, failing if that register is already in use.
func (r *Registry) Add(w *Watch) error {
	if _, exists := r.watches[w.Register]; exists {
		return fmt.Errorf("%w: %s", appErrors.ErrRegisterInUse, w.Register)
	}

	r.watches[w.Register] = w

	return nil
}

// Remove frees register, failing if nothing is bound to it.
func (r *Registry) Remove(register string) error {
	if _, exists := r.watches[register]; !exists {
		return fmt.Errorf("%w: %s", appErrors.ErrWatchNotFound, register)
	}

	delete(r.watches, register)

	return nil
}

// Get returns the watch bound to register, if any.
func (r *Registry) Get(register string) (*Watch, bool) {
	w, ok := r.watches[register]
	return w, ok
}

// All returns every active watch, in no particular order.
func (r *Registry) All() []*Watch {
	out := make([]*Watch, 0, len(r.watches))
	for _, w := range r.watches {
		out = append(out, w)
	}

	return out
}

// NextFreeRegister returns the first register in candidates not already
// bound, or ErrNoFreeRegister if all are in use.
func (r *Registry) NextFreeRegister(candidates string) (string, error) {
	for _, c := range candidates {
		reg := string(c)
		if _, exists := r.watches[reg]; !exists {
			return reg, nil
		}
	}

	return "", appErrors.ErrNoFreeRegister
}
