// Package modfile loads module declarations from a YAML file and exposes
// them as a mining.Source and mining.Miner pair. It serves apps that
// declare their actions statically instead of registering them in process.
package modfile

import (
	"context"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
	"github.com/piligrim-code/manifesto/pkg/mining"
)

type document struct {
	Modules []moduleDecl `yaml:"modules"`
}

type moduleDecl struct {
	Name          string                   `yaml:"name"`
	Actions       []actionDecl             `yaml:"actions"`
	Entities      []entityDecl             `yaml:"entities"`
	ErrorHandlers []map[string]interface{} `yaml:"error_handlers"`
}

type actionDecl struct {
	Name       string      `yaml:"name"`
	Parameters []paramDecl `yaml:"parameters"`
}

type paramDecl struct {
	Name   string `yaml:"name"`
	Entity string `yaml:"entity"`
}

type entityDecl struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// File is a parsed module declaration file. It implements both
// mining.Source and mining.Miner; module order is file order.
type File struct {
	mu      sync.RWMutex
	modules []moduleDecl
	byName  map[string]int
}

// Load reads and parses a module declaration file. Duplicate module names
// are rejected at load time; per-module declaration problems surface as
// mining errors on first use, like any other malformed module.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeEnumeration, "read module file", err).
			WithContext("path", path)
	}
	return Parse(raw)
}

// Parse parses module declarations from YAML.
func Parse(raw []byte) (*File, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.New(errors.CodeEnumeration, "parse module file", err)
	}

	f := &File{modules: doc.Modules, byName: make(map[string]int, len(doc.Modules))}
	for i, m := range doc.Modules {
		if m.Name == "" {
			return nil, errors.New(errors.CodeInvalidInput, "module name is required", nil)
		}
		if _, ok := f.byName[m.Name]; ok {
			return nil, errors.New(errors.CodeInvalidInput, "duplicate module name", nil).
				WithContext("module", m.Name)
		}
		f.byName[m.Name] = i
	}
	return f, nil
}

type fileModule struct {
	name string
}

func (m fileModule) Name() string { return m.name }

// TargetModules implements mining.Source.
func (f *File) TargetModules(ctx context.Context) ([]mining.Module, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	modules := make([]mining.Module, 0, len(f.modules))
	for _, m := range f.modules {
		modules = append(modules, fileModule{name: m.Name})
	}
	return modules, nil
}

// Initialize implements mining.Miner. Parsing already happened in Load, so
// there is nothing to set up; the call is idempotent by construction.
func (f *File) Initialize(ctx context.Context) error { return nil }

// ExtractActions implements mining.Miner.
func (f *File) ExtractActions(ctx context.Context, m mining.Module) ([]manifest.Action, error) {
	decl, err := f.lookup(m)
	if err != nil {
		return nil, err
	}
	actions := make([]manifest.Action, 0, len(decl.Actions))
	for _, a := range decl.Actions {
		if a.Name == "" {
			return nil, errors.New(errors.CodeMining, "action without a name", nil).
				WithContext("module", decl.Name)
		}
		params := make([]manifest.Parameter, 0, len(a.Parameters))
		for _, p := range a.Parameters {
			params = append(params, manifest.Parameter{Name: p.Name, EntityType: p.Entity})
		}
		actions = append(actions, manifest.Action{Name: a.Name, Parameters: params})
	}
	return actions, nil
}

// ExtractEntities implements mining.Miner.
func (f *File) ExtractEntities(ctx context.Context, m mining.Module) ([]manifest.Entity, error) {
	decl, err := f.lookup(m)
	if err != nil {
		return nil, err
	}
	entities := make([]manifest.Entity, 0, len(decl.Entities))
	for _, e := range decl.Entities {
		if e.ID == "" {
			return nil, errors.New(errors.CodeMining, "entity without an id", nil).
				WithContext("module", decl.Name)
		}
		entities = append(entities, manifest.Entity{ID: e.ID, Name: e.Name, Values: e.Values})
	}
	return entities, nil
}

// ExtractErrorHandlers implements mining.Miner.
func (f *File) ExtractErrorHandlers(ctx context.Context, m mining.Module) ([]manifest.ErrorHandler, error) {
	decl, err := f.lookup(m)
	if err != nil {
		return nil, err
	}
	if len(decl.ErrorHandlers) == 0 {
		return nil, errors.New(errors.CodeMining, "no resolvable error-handler declarations", nil).
			WithContext("module", decl.Name)
	}
	handlers := make([]manifest.ErrorHandler, 0, len(decl.ErrorHandlers))
	for _, h := range decl.ErrorHandlers {
		handlers = append(handlers, manifest.ErrorHandler(h))
	}
	return handlers, nil
}

func (f *File) lookup(m mining.Module) (moduleDecl, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if m == nil {
		return moduleDecl{}, errors.New(errors.CodeMining, "nil module handle", nil)
	}
	idx, ok := f.byName[m.Name()]
	if !ok {
		return moduleDecl{}, errors.New(errors.CodeMining, "unknown module handle", nil).
			WithContext("module", m.Name())
	}
	return f.modules[idx], nil
}
