package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Registry is the closed set of adapters known to the process.
// It is built once at startup and only read afterwards.
type Registry struct {
	adapters map[Name]Adapter
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[Name]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, errors.New("registry: nil adapter")
		}
		if _, dup := r.adapters[a.Name()]; dup {
			return nil, fmt.Errorf("registry: duplicate provider %q", a.Name())
		}
		r.adapters[a.Name()] = a
	}
	return r, nil
}

func (r *Registry) Get(n Name) (Adapter, bool) {
	a, ok := r.adapters[n]
	return a, ok
}

// Names returns every registered provider, sorted.
func (r *Registry) Names() []Name {
	out := make([]Name, 0, len(r.adapters))
	for n := range r.adapters {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve maps names to adapters. Duplicates collapse; any unknown name fails the whole call.
func (r *Registry) Resolve(names []Name) ([]Adapter, error) {
	seen := make(map[Name]struct{}, len(names))
	out := make([]Adapter, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		a, ok := r.adapters[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, n)
		}
		seen[n] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// Subset returns a registry restricted to names. Used at startup to apply
// ENABLED_PROVIDERS; an unresolvable name is a boot error.
func (r *Registry) Subset(names []Name) (*Registry, error) {
	adapters, err := r.Resolve(names)
	if err != nil {
		return nil, err
	}
	return NewRegistry(adapters...)
}

// ParseNames normalizes raw provider names (trim, lowercase).
func ParseNames(raw []string) []Name {
	out := make([]Name, 0, len(raw))
	for _, s := range raw {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, Name(s))
		}
	}
	return out
}
