package feed

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yegors/co-track/pkg/logger"
)

// Factory creates an unconfigured decoder
type Factory func(log *logger.Logger) Decoder

// Registration binds a format name to a factory
type Registration struct {
	Format  string
	Factory Factory
}

// Registry maps format names to factories. It is built once and never
// modified afterwards, so it is safe to share.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds a registry from the given registrations. Format names
// are case-insensitive and must be unique.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{factories: make(map[string]Factory, len(regs))}
	for _, reg := range regs {
		name := strings.ToLower(strings.TrimSpace(reg.Format))
		if name == "" {
			return nil, fmt.Errorf("feed registration without a format name")
		}
		if reg.Factory == nil {
			return nil, fmt.Errorf("feed format %q has no factory", name)
		}
		if _, exists := r.factories[name]; exists {
			return nil, fmt.Errorf("feed format %q registered twice", name)
		}
		r.factories[name] = reg.Factory
	}
	return r, nil
}

// New creates a decoder for the given format
func (r *Registry) New(format string, log *logger.Logger) (Decoder, error) {
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("unknown feed format %q (known: %s)", format, strings.Join(r.Formats(), ", "))
	}
	return factory(log), nil
}

// Formats lists the registered format names in sorted order
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
