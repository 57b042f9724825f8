package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hindsightlab/hindsight/internal/core"
	"go.uber.org/zap"
)

// Engine is a registry of signal generators
type Engine struct {
	mu         sync.RWMutex
	generators map[string]Generator
	logger     *zap.Logger
}

// NewEngine creates a new generator registry
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		generators: make(map[string]Generator),
		logger:     l,
	}
}

// Register adds a generator to the engine
func (e *Engine) Register(g Generator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generators[g.Name()] = g
}

// Get retrieves a generator by name
func (e *Engine) Get(name string) (Generator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.generators[name]
	return g, ok
}

// List returns all registered generators sorted by name.
func (e *Engine) List() []Generator {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Generator, 0, len(e.generators))
	for _, g := range e.generators {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Annotate runs the named generator over a bar series.
func (e *Engine) Annotate(name string, bars []core.Bar) ([]core.Bar, error) {
	g, ok := e.Get(name)
	if !ok {
		return nil, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
	}
	return g.Annotate(bars)
}

// AnnotateAll runs every named generator over the same series and
// returns one annotated copy per generator that succeeded. A failing
// generator is logged and skipped so one bad strategy never blocks
// the rest of a run.
func (e *Engine) AnnotateAll(names []string, bars []core.Bar) map[string][]core.Bar {
	result := make(map[string][]core.Bar, len(names))
	for _, name := range names {
		annotated, err := e.Annotate(name, bars)
		if err != nil {
			e.logger.Warn("signal generation failed",
				zap.String("strategy", name),
				zap.Error(err),
			)
			continue
		}
		result[name] = annotated
	}
	return result
}
