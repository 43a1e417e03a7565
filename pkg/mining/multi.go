package mining

import (
	"context"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
)

// Provider couples a Source with the Miner that understands its modules.
type Provider interface {
	Source
	Miner
}

// Multi aggregates providers in order, presenting them as one Source and
// Miner pair. Enumeration concatenates each provider's modules in provider
// order; extraction routes every module back to the provider that
// enumerated it.
type Multi struct {
	providers []Provider
}

// NewMulti creates a Multi from providers in priority order. Nil providers
// are skipped.
func NewMulti(providers ...Provider) (*Multi, error) {
	filtered := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		filtered = append(filtered, p)
	}
	if len(filtered) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "no providers configured", nil)
	}
	return &Multi{providers: filtered}, nil
}

// taggedModule remembers which provider enumerated the wrapped module.
type taggedModule struct {
	Module
	owner Provider
}

// TargetModules implements Source.
func (m *Multi) TargetModules(ctx context.Context) ([]Module, error) {
	var modules []Module
	for _, p := range m.providers {
		mods, err := p.TargetModules(ctx)
		if err != nil {
			return nil, err
		}
		for _, mod := range mods {
			modules = append(modules, taggedModule{Module: mod, owner: p})
		}
	}
	return modules, nil
}

// Initialize implements Miner by initializing every provider.
func (m *Multi) Initialize(ctx context.Context) error {
	for _, p := range m.providers {
		if err := p.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ExtractActions implements Miner.
func (m *Multi) ExtractActions(ctx context.Context, mod Module) ([]manifest.Action, error) {
	tagged, err := m.route(mod)
	if err != nil {
		return nil, err
	}
	return tagged.owner.ExtractActions(ctx, tagged.Module)
}

// ExtractEntities implements Miner.
func (m *Multi) ExtractEntities(ctx context.Context, mod Module) ([]manifest.Entity, error) {
	tagged, err := m.route(mod)
	if err != nil {
		return nil, err
	}
	return tagged.owner.ExtractEntities(ctx, tagged.Module)
}

// ExtractErrorHandlers implements Miner.
func (m *Multi) ExtractErrorHandlers(ctx context.Context, mod Module) ([]manifest.ErrorHandler, error) {
	tagged, err := m.route(mod)
	if err != nil {
		return nil, err
	}
	return tagged.owner.ExtractErrorHandlers(ctx, tagged.Module)
}

func (m *Multi) route(mod Module) (taggedModule, error) {
	tagged, ok := mod.(taggedModule)
	if !ok {
		name := "<nil>"
		if mod != nil {
			name = mod.Name()
		}
		return taggedModule{}, errors.New(errors.CodeMining, "module handle not enumerated by this source", nil).
			WithContext("module", name)
	}
	return tagged, nil
}
