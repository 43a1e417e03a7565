// Package mining defines the module enumeration and declaration-mining
// capabilities the generator consumes.
//
// The original discovery mechanism scanned loaded assemblies for marker
// attributes at runtime. Here both halves are explicit, injectable
// interfaces: a Source lists the modules eligible for scanning, and a
// Miner extracts the raw declarations from one module. Failures are
// ordinary error returns; the generator decides per category whether a
// failure is fatal.
package mining

import (
	"context"

	"github.com/piligrim-code/manifesto/pkg/manifest"
)

// Module is an opaque handle for a scannable unit. The generator only ever
// passes it back to the Miner that understands it; Name is used for
// diagnostics.
type Module interface {
	Name() string
}

// Source enumerates the modules eligible for declaration mining.
// The returned sequence must be deterministic per call; its order fixes
// the aggregation order of the generated manifest.
type Source interface {
	TargetModules(ctx context.Context) ([]Module, error)
}

// Miner extracts raw declarations from a single module.
//
// Initialize is called exactly once per generation call, before any
// extraction, and must be idempotent. The generator assumes single-call
// ownership of the miner for the duration of one generation; concurrent
// generations need separate miners or external synchronization.
//
// ExtractErrorHandlers fails with a mining error when the module has no
// resolvable error-handling declarations; the generator treats that as
// advisory and continues. Action and entity extraction errors abort the
// whole generation.
type Miner interface {
	Initialize(ctx context.Context) error
	ExtractActions(ctx context.Context, m Module) ([]manifest.Action, error)
	ExtractEntities(ctx context.Context, m Module) ([]manifest.Entity, error)
	ExtractErrorHandlers(ctx context.Context, m Module) ([]manifest.ErrorHandler, error)
}
