// Package registry provides a global registry for sink factories.
// Sinks register themselves in init() functions, allowing the commands
// to discover and open sinks by kind without hardcoded dependencies.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/serialpong/internal/config"
)

// Sink is the byte transport the display task writes rows to.
// It mirrors serial.Sink so that package can register itself here.
type Sink interface {
	// Send transmits p exactly as given.
	Send(ctx context.Context, p []byte) error
}

// SinkInfo contains metadata about a registered sink kind.
type SinkInfo struct {
	Kind  string
	Title string
}

// Factory opens a sink from its configuration.
type Factory func(ctx context.Context, cfg config.SinkConfig, logger *log.Logger) (Sink, error)

var (
	factories = make(map[string]Factory)
	titles    = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds a sink factory to the registry.
// Typically called from an init() function.
// Panics if a sink with the same kind is already registered.
func Register(kind, title string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("registry: sink %q already registered", kind))
	}

	factories[kind] = f
	titles[kind] = title
}

// List returns information about all registered sinks, sorted by kind.
func List() []SinkInfo {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]SinkInfo, 0, len(factories))
	for kind := range factories {
		result = append(result, SinkInfo{
			Kind:  kind,
			Title: titles[kind],
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})

	return result
}

// Open creates the sink configured by cfg.Kind.
// Returns an error if the kind is not registered.
func Open(ctx context.Context, cfg config.SinkConfig, logger *log.Logger) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("registry: unknown sink %q", cfg.Kind)
	}
	return f(ctx, cfg, logger)
}

// Exists checks if a sink with the given kind is registered.
func Exists(kind string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := factories[kind]
	return ok
}
