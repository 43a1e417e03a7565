package mining

import (
	"context"
	"sync"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
)

// Declaration is one module's registered contribution to the manifest.
type Declaration struct {
	Module        string
	Actions       []manifest.Action
	Entities      []manifest.Entity
	ErrorHandlers []manifest.ErrorHandler
}

// Registry is an in-process module registry acting as both Source and
// Miner. App components register their declarations at startup instead of
// being discovered through runtime introspection. Enumeration order is
// registration order.
type Registry struct {
	mu      sync.RWMutex
	decls   []Declaration
	byName  map[string]int
	started bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a module declaration. Module names must be unique.
func (r *Registry) Register(d Declaration) error {
	if d.Module == "" {
		return errors.New(errors.CodeInvalidInput, "module name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[d.Module]; ok {
		return errors.New(errors.CodeInvalidInput, "module already registered", nil).
			WithContext("module", d.Module)
	}
	r.byName[d.Module] = len(r.decls)
	r.decls = append(r.decls, d)
	return nil
}

type registeredModule struct {
	name string
}

func (m registeredModule) Name() string { return m.name }

// TargetModules implements Source. Modules are returned in registration
// order.
func (r *Registry) TargetModules(ctx context.Context) ([]Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modules := make([]Module, 0, len(r.decls))
	for _, d := range r.decls {
		modules = append(modules, registeredModule{name: d.Module})
	}
	return modules, nil
}

// Initialize implements Miner. The registry has no per-generation state
// beyond marking itself started.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

// ExtractActions implements Miner.
func (r *Registry) ExtractActions(ctx context.Context, m Module) ([]manifest.Action, error) {
	d, err := r.lookup(m)
	if err != nil {
		return nil, err
	}
	return d.Actions, nil
}

// ExtractEntities implements Miner.
func (r *Registry) ExtractEntities(ctx context.Context, m Module) ([]manifest.Entity, error) {
	d, err := r.lookup(m)
	if err != nil {
		return nil, err
	}
	return d.Entities, nil
}

// ExtractErrorHandlers implements Miner. A module that registered no error
// handlers fails with a mining error, matching the behavior of modules
// whose handler declarations cannot be resolved.
func (r *Registry) ExtractErrorHandlers(ctx context.Context, m Module) ([]manifest.ErrorHandler, error) {
	d, err := r.lookup(m)
	if err != nil {
		return nil, err
	}
	if len(d.ErrorHandlers) == 0 {
		return nil, errors.New(errors.CodeMining, "no resolvable error-handler declarations", nil).
			WithContext("module", m.Name())
	}
	return d.ErrorHandlers, nil
}

// lookup resolves a module handle back to its declaration. A handle the
// registry does not recognize is a malformed module, reported as a mining
// error on first use.
func (r *Registry) lookup(m Module) (Declaration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m == nil {
		return Declaration{}, errors.New(errors.CodeMining, "nil module handle", nil)
	}
	idx, ok := r.byName[m.Name()]
	if !ok {
		return Declaration{}, errors.New(errors.CodeMining, "unknown module handle", nil).
			WithContext("module", m.Name())
	}
	return r.decls[idx], nil
}
