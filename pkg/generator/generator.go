// Package generator assembles action manifests from mined module
// declarations.
//
// A generation call is a single synchronous pipeline: enumerate modules,
// mine each one, prune unreachable entities, build the manifest, and
// serialize it. Failure policy differs by category: actions and entities
// are load-bearing, so a mining failure there aborts the call; error
// handlers are advisory, so a failing module just contributes none.
package generator

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
	"github.com/piligrim-code/manifesto/pkg/mining"
	"github.com/piligrim-code/manifesto/pkg/telemetry"
)

// Generator runs the manifest pipeline over an injected module source and
// declaration miner. It owns the miner for the duration of each call;
// concurrent calls against a shared miner need external synchronization.
type Generator struct {
	source  mining.Source
	miner   mining.Miner
	logger  *slog.Logger
	metrics *telemetry.MiningMetrics
	tracer  trace.Tracer
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the diagnostics logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics enables mining metrics. Nil metrics are a no-op.
func WithMetrics(metrics *telemetry.MiningMetrics) Option {
	return func(g *Generator) {
		g.metrics = metrics
	}
}

// New creates a Generator.
func New(source mining.Source, miner mining.Miner, opts ...Option) (*Generator, error) {
	if source == nil {
		return nil, errors.New(errors.CodeInvalidInput, "module source is required", nil)
	}
	if miner == nil {
		return nil, errors.New(errors.CodeInvalidInput, "declaration miner is required", nil)
	}
	g := &Generator{
		source: source,
		miner:  miner,
		logger: slog.Default(),
		tracer: otel.Tracer("manifesto/generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateManifest runs the full pipeline and returns the built manifest
// together with its wire form. On any action or entity mining failure the
// error propagates and no manifest is produced.
func (g *Generator) GenerateManifest(ctx context.Context, domain, id string) (manifest.Manifest, []byte, error) {
	entities, actions, handlers, err := g.aggregate(ctx)
	if err != nil {
		g.metrics.RecordGeneration(ctx, "error")
		return manifest.Manifest{}, nil, err
	}

	m := manifest.Build(entities, actions, handlers, domain, id)
	payload, err := manifest.Marshal(m)
	if err != nil {
		g.metrics.RecordGeneration(ctx, "error")
		return manifest.Manifest{}, nil, err
	}

	g.metrics.RecordGeneration(ctx, "ok")
	g.logger.InfoContext(ctx, "manifest generated",
		"domain", domain,
		"id", id,
		"version", m.Version,
		"actions", len(m.Actions),
		"entities", len(m.Entities),
		"error_handlers", len(m.ErrorHandlers),
	)
	return m, payload, nil
}

// GenerateEmptyManifest builds and serializes a schema-valid manifest with
// no declarations, for apps that have not declared any actions yet. It
// carries the same Version and the given Domain and ID.
func (g *Generator) GenerateEmptyManifest(ctx context.Context, domain, id string) (manifest.Manifest, []byte, error) {
	m := manifest.Build(nil, nil, nil, domain, id)
	payload, err := manifest.Marshal(m)
	if err != nil {
		g.metrics.RecordGeneration(ctx, "error")
		return manifest.Manifest{}, nil, err
	}
	g.metrics.RecordGeneration(ctx, "ok")
	return m, payload, nil
}

// ExtractManifestData runs the same aggregation pipeline and returns the
// distinct, non-empty action names. The result is sorted; callers must not
// rely on input order.
func (g *Generator) ExtractManifestData(ctx context.Context) ([]string, error) {
	_, actions, _, err := g.aggregate(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(actions))
	names := make([]string, 0, len(actions))
	for _, action := range actions {
		if action.Name == "" {
			continue
		}
		if _, ok := seen[action.Name]; ok {
			continue
		}
		seen[action.Name] = struct{}{}
		names = append(names, action.Name)
	}
	sort.Strings(names)
	return names, nil
}

// aggregate mines every module in enumeration order and returns the three
// concatenated sequences, with entities already pruned to the set
// referenced by action parameters.
func (g *Generator) aggregate(ctx context.Context) ([]manifest.Entity, []manifest.Action, []manifest.ErrorHandler, error) {
	generationID := uuid.NewString()
	ctx, span := g.tracer.Start(ctx, "manifesto.extract",
		trace.WithAttributes(attribute.String("generation.id", generationID)))
	defer span.End()

	fail := func(err error) ([]manifest.Entity, []manifest.Action, []manifest.ErrorHandler, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, nil, err
	}

	if err := g.miner.Initialize(ctx); err != nil {
		return fail(err)
	}

	modules, err := g.source.TargetModules(ctx)
	if err != nil {
		if !errors.IsCode(err, errors.CodeEnumeration) {
			err = errors.New(errors.CodeEnumeration, "list target modules", err)
		}
		return fail(err)
	}
	g.logger.DebugContext(ctx, "mining modules", "generation_id", generationID, "modules", len(modules))

	var (
		entities []manifest.Entity
		actions  []manifest.Action
		handlers []manifest.ErrorHandler
	)
	for _, module := range modules {
		moduleActions, err := g.miner.ExtractActions(ctx, module)
		if err != nil {
			return fail(miningFailure("extract actions", module, err))
		}
		actions = append(actions, moduleActions...)

		moduleEntities, err := g.miner.ExtractEntities(ctx, module)
		if err != nil {
			return fail(miningFailure("extract entities", module, err))
		}
		entities = append(entities, moduleEntities...)

		moduleHandlers, err := g.miner.ExtractErrorHandlers(ctx, module)
		if err != nil {
			// Error handlers are advisory: log, count, move on.
			g.logger.WarnContext(ctx, "error-handler extraction failed, module contributes none",
				"module", module.Name(), "error", err)
			g.metrics.RecordHandlerFailure(ctx, module.Name())
			moduleHandlers = nil
		}
		handlers = append(handlers, moduleHandlers...)

		g.metrics.RecordModule(ctx, module.Name(), len(moduleActions), len(moduleEntities), len(moduleHandlers))
		g.logger.DebugContext(ctx, "module mined",
			"module", module.Name(),
			"actions", len(moduleActions),
			"entities", len(moduleEntities),
			"error_handlers", len(moduleHandlers),
		)
	}

	mined := len(entities)
	entities = manifest.Prune(entities, actions)
	g.metrics.RecordPruned(ctx, mined-len(entities))
	span.SetAttributes(
		attribute.Int("mining.actions", len(actions)),
		attribute.Int("mining.entities", len(entities)),
		attribute.Int("mining.entities_pruned", mined-len(entities)),
		attribute.Int("mining.error_handlers", len(handlers)),
	)

	return entities, actions, handlers, nil
}

func miningFailure(op string, module mining.Module, err error) error {
	if errors.IsCode(err, errors.CodeMining) {
		return err
	}
	return errors.New(errors.CodeMining, op, err).WithContext("module", module.Name())
}
