package generator

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
	"github.com/piligrim-code/manifesto/pkg/mining"
)

type fakeModule string

func (m fakeModule) Name() string { return string(m) }

type moduleData struct {
	actions     []manifest.Action
	entities    []manifest.Entity
	handlers    []manifest.ErrorHandler
	actionsErr  error
	entitiesErr error
	handlersErr error
}

type fakeSource struct {
	order []string
	err   error
}

func (s *fakeSource) TargetModules(ctx context.Context) ([]mining.Module, error) {
	if s.err != nil {
		return nil, s.err
	}
	modules := make([]mining.Module, 0, len(s.order))
	for _, name := range s.order {
		modules = append(modules, fakeModule(name))
	}
	return modules, nil
}

type fakeMiner struct {
	data      map[string]moduleData
	initErr   error
	initCalls int
}

func (m *fakeMiner) Initialize(ctx context.Context) error {
	m.initCalls++
	return m.initErr
}

func (m *fakeMiner) ExtractActions(ctx context.Context, mod mining.Module) ([]manifest.Action, error) {
	d := m.data[mod.Name()]
	return d.actions, d.actionsErr
}

func (m *fakeMiner) ExtractEntities(ctx context.Context, mod mining.Module) ([]manifest.Entity, error) {
	d := m.data[mod.Name()]
	return d.entities, d.entitiesErr
}

func (m *fakeMiner) ExtractErrorHandlers(ctx context.Context, mod mining.Module) ([]manifest.ErrorHandler, error) {
	d := m.data[mod.Name()]
	return d.handlers, d.handlersErr
}

func newGenerator(t *testing.T, source *fakeSource, miner *fakeMiner) *Generator {
	t.Helper()
	g, err := New(source, miner)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func TestGenerateManifestPrunesUnreachableEntities(t *testing.T) {
	source := &fakeSource{order: []string{"canvas"}}
	miner := &fakeMiner{data: map[string]moduleData{
		"canvas": {
			actions:  []manifest.Action{{Name: "Do", Parameters: []manifest.Parameter{{Name: "p", EntityType: "E1"}}}},
			entities: []manifest.Entity{{ID: "E1"}, {ID: "E2"}},
			handlers: []manifest.ErrorHandler{{"Reporter": "toast"}},
		},
	}}
	g := newGenerator(t, source, miner)

	m, payload, err := g.GenerateManifest(context.Background(), "painting", "app-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected wire payload")
	}
	if !reflect.DeepEqual(m.Entities, []manifest.Entity{{ID: "E1"}}) {
		t.Fatalf("expected only E1 to survive, got %+v", m.Entities)
	}

	// Reachability invariant: every remaining entity ID is referenced by
	// some action parameter.
	referenced := map[string]bool{}
	for _, a := range m.Actions {
		for _, p := range a.Parameters {
			referenced[p.EntityType] = true
		}
	}
	for _, e := range m.Entities {
		if !referenced[e.ID] {
			t.Fatalf("entity %s not referenced by any action", e.ID)
		}
	}
}

func TestActionsConcatenateInEnumerationOrder(t *testing.T) {
	source := &fakeSource{order: []string{"canvas", "gallery"}}
	miner := &fakeMiner{data: map[string]moduleData{
		"canvas":  {actions: []manifest.Action{{Name: "Draw"}, {Name: "Clear"}}},
		"gallery": {actions: []manifest.Action{{Name: "Open"}}},
	}}
	g := newGenerator(t, source, miner)

	m, _, err := g.GenerateManifest(context.Background(), "painting", "app-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var names []string
	for _, a := range m.Actions {
		names = append(names, a.Name)
	}
	want := []string{"Draw", "Clear", "Open"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("actions reordered or filtered: got %v, want %v", names, want)
	}
}

func TestVersionStableAcrossCalls(t *testing.T) {
	g := newGenerator(t, &fakeSource{}, &fakeMiner{})
	a, _, err := g.GenerateManifest(context.Background(), "painting", "app-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _, err := g.GenerateManifest(context.Background(), "music", "app-2")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a.Version != b.Version || a.Version != manifest.Version {
		t.Fatalf("version must be constant per build: %q vs %q", a.Version, b.Version)
	}
}

func TestGenerateEmptyManifest(t *testing.T) {
	g := newGenerator(t, &fakeSource{order: []string{"never-mined"}}, &fakeMiner{
		data: map[string]moduleData{
			"never-mined": {actionsErr: stderrors.New("must not be called")},
		},
	})

	m, payload, err := g.GenerateEmptyManifest(context.Background(), "painting", "app-1")
	if err != nil {
		t.Fatalf("generate empty: %v", err)
	}
	if m.Domain != "painting" || m.ID != "app-1" || m.Version != manifest.Version {
		t.Fatalf("unexpected envelope: %+v", m)
	}
	if len(m.Entities)+len(m.Actions)+len(m.ErrorHandlers) != 0 {
		t.Fatalf("expected empty sequences: %+v", m)
	}

	round, err := manifest.Unmarshal(payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(m, round) {
		t.Fatalf("round trip mismatch: %+v vs %+v", m, round)
	}
}

func TestErrorHandlerFailureIsIsolatedPerModule(t *testing.T) {
	source := &fakeSource{order: []string{"canvas", "gallery"}}
	miner := &fakeMiner{data: map[string]moduleData{
		"canvas": {
			actions:     []manifest.Action{{Name: "Draw", Parameters: []manifest.Parameter{{EntityType: "color"}}}},
			entities:    []manifest.Entity{{ID: "color"}},
			handlersErr: errors.New(errors.CodeMining, "no resolvable error-handler declarations", nil),
		},
		"gallery": {
			actions:  []manifest.Action{{Name: "Open"}},
			handlers: []manifest.ErrorHandler{{"Module": "gallery"}},
		},
	}}
	g := newGenerator(t, source, miner)

	m, _, err := g.GenerateManifest(context.Background(), "painting", "app-1")
	if err != nil {
		t.Fatalf("handler failure must not abort generation: %v", err)
	}
	if len(m.Actions) != 2 || len(m.Entities) != 1 {
		t.Fatalf("canvas data must survive its handler failure: %+v", m)
	}
	if len(m.ErrorHandlers) != 1 || m.ErrorHandlers[0]["Module"] != "gallery" {
		t.Fatalf("expected only gallery handlers, got %+v", m.ErrorHandlers)
	}
}

func TestEntityMiningFailureIsFatal(t *testing.T) {
	cause := stderrors.New("reflection exploded")
	source := &fakeSource{order: []string{"canvas", "gallery"}}
	miner := &fakeMiner{data: map[string]moduleData{
		"canvas":  {entitiesErr: cause},
		"gallery": {actions: []manifest.Action{{Name: "Open"}}},
	}}
	g := newGenerator(t, source, miner)

	m, payload, err := g.GenerateManifest(context.Background(), "painting", "app-1")
	if err == nil {
		t.Fatal("expected entity mining failure to propagate")
	}
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected original cause in chain, got %v", err)
	}
	if !errors.IsCode(err, errors.CodeMining) {
		t.Fatalf("expected mining code, got %v", err)
	}
	if payload != nil || len(m.Actions) != 0 {
		t.Fatalf("no partial manifest on fatal failure: %+v / %s", m, payload)
	}
}

func TestActionMiningFailureIsFatal(t *testing.T) {
	cause := errors.New(errors.CodeMining, "extract actions", stderrors.New("boom"))
	g := newGenerator(t,
		&fakeSource{order: []string{"canvas"}},
		&fakeMiner{data: map[string]moduleData{"canvas": {actionsErr: cause}}},
	)

	_, _, err := g.GenerateManifest(context.Background(), "painting", "app-1")
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected the miner's error, got %v", err)
	}
}

func TestEnumerationFailure(t *testing.T) {
	g := newGenerator(t, &fakeSource{err: stderrors.New("no sources")}, &fakeMiner{})
	_, _, err := g.GenerateManifest(context.Background(), "painting", "app-1")
	if !errors.IsCode(err, errors.CodeEnumeration) {
		t.Fatalf("expected enumeration code, got %v", err)
	}
}

func TestInitializeRunsOncePerGeneration(t *testing.T) {
	miner := &fakeMiner{}
	g := newGenerator(t, &fakeSource{}, miner)

	if _, _, err := g.GenerateManifest(context.Background(), "d", "i"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if miner.initCalls != 1 {
		t.Fatalf("expected one Initialize per call, got %d", miner.initCalls)
	}

	if _, err := g.ExtractManifestData(context.Background()); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if miner.initCalls != 2 {
		t.Fatalf("each generation call initializes the miner: got %d", miner.initCalls)
	}

	miner.initErr = stderrors.New("bad setup")
	if _, _, err := g.GenerateManifest(context.Background(), "d", "i"); err == nil {
		t.Fatal("initialize failure must be fatal")
	}
}

func TestExtractManifestDataDistinctNonEmptyNames(t *testing.T) {
	source := &fakeSource{order: []string{"canvas", "gallery"}}
	miner := &fakeMiner{data: map[string]moduleData{
		"canvas":  {actions: []manifest.Action{{Name: "A"}, {Name: ""}, {Name: "B"}}},
		"gallery": {actions: []manifest.Action{{Name: "A"}}},
	}}
	g := newGenerator(t, source, miner)

	names, err := g.ExtractManifestData(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"A", "B"}) {
		t.Fatalf("expected {A, B}, got %v", names)
	}
}

func TestExtractManifestDataSharesFailureSemantics(t *testing.T) {
	// Handler failures are tolerated on the read-only path too.
	g := newGenerator(t,
		&fakeSource{order: []string{"canvas"}},
		&fakeMiner{data: map[string]moduleData{
			"canvas": {
				actions:     []manifest.Action{{Name: "Draw"}},
				handlersErr: errors.New(errors.CodeMining, "none", nil),
			},
		}},
	)
	names, err := g.ExtractManifestData(context.Background())
	if err != nil || len(names) != 1 {
		t.Fatalf("expected tolerated handler failure, got names=%v err=%v", names, err)
	}

	// Entity failures are fatal even though the result only reads names.
	g = newGenerator(t,
		&fakeSource{order: []string{"canvas"}},
		&fakeMiner{data: map[string]moduleData{
			"canvas": {entitiesErr: stderrors.New("boom")},
		}},
	)
	if _, err := g.ExtractManifestData(context.Background()); err == nil {
		t.Fatal("expected entity mining failure to propagate")
	}
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New(nil, &fakeMiner{}); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for nil source, got %v", err)
	}
	if _, err := New(&fakeSource{}, nil); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for nil miner, got %v", err)
	}
}
