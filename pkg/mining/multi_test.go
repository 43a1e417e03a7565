package mining

import (
	"context"
	"testing"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
)

func registryWith(t *testing.T, decls ...Declaration) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, d := range decls {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Module, err)
		}
	}
	return r
}

func TestMultiConcatenatesInProviderOrder(t *testing.T) {
	first := registryWith(t,
		Declaration{Module: "canvas", Actions: []manifest.Action{{Name: "Draw"}}},
	)
	second := registryWith(t,
		Declaration{Module: "gallery", Actions: []manifest.Action{{Name: "Open"}}},
	)
	multi, err := NewMulti(first, nil, second)
	if err != nil {
		t.Fatalf("new multi: %v", err)
	}

	ctx := context.Background()
	if err := multi.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	modules, err := multi.TargetModules(ctx)
	if err != nil {
		t.Fatalf("target modules: %v", err)
	}
	if len(modules) != 2 || modules[0].Name() != "canvas" || modules[1].Name() != "gallery" {
		t.Fatalf("unexpected enumeration: %+v", modules)
	}

	actions, err := multi.ExtractActions(ctx, modules[1])
	if err != nil || len(actions) != 1 || actions[0].Name != "Open" {
		t.Fatalf("routing failed: %+v, err=%v", actions, err)
	}
}

func TestMultiRoutesAllCategories(t *testing.T) {
	r := registryWith(t, Declaration{
		Module:        "canvas",
		Entities:      []manifest.Entity{{ID: "color"}},
		ErrorHandlers: []manifest.ErrorHandler{{"Reporter": "toast"}},
	})
	multi, _ := NewMulti(r)
	ctx := context.Background()
	modules, _ := multi.TargetModules(ctx)

	entities, err := multi.ExtractEntities(ctx, modules[0])
	if err != nil || len(entities) != 1 {
		t.Fatalf("entities: %+v, err=%v", entities, err)
	}
	handlers, err := multi.ExtractErrorHandlers(ctx, modules[0])
	if err != nil || len(handlers) != 1 {
		t.Fatalf("handlers: %+v, err=%v", handlers, err)
	}
}

func TestMultiRejectsForeignHandles(t *testing.T) {
	multi, _ := NewMulti(registryWith(t, Declaration{Module: "canvas"}))
	_, err := multi.ExtractActions(context.Background(), registeredModule{name: "canvas"})
	if !errors.IsCode(err, errors.CodeMining) {
		t.Fatalf("expected mining error for unwrapped handle, got %v", err)
	}
}

func TestNewMultiRequiresProviders(t *testing.T) {
	if _, err := NewMulti(nil, nil); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
