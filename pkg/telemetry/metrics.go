// Copyright 2026 © The Manifesto Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MiningMetrics tracks extraction volume and failure patterns per
// generation call.
type MiningMetrics struct {
	actionsMined    metric.Int64Counter
	entitiesMined   metric.Int64Counter
	handlersMined   metric.Int64Counter
	entitiesPruned  metric.Int64Counter
	handlerFailures metric.Int64Counter
	generations     metric.Int64Counter
}

// NewMiningMetrics creates mining metrics on the global meter provider.
func NewMiningMetrics() (*MiningMetrics, error) {
	meter := otel.Meter("manifesto/mining")

	actionsMined, err := meter.Int64Counter(
		"manifesto.mining.actions",
		metric.WithDescription("Actions mined, by module"),
	)
	if err != nil {
		return nil, err
	}

	entitiesMined, err := meter.Int64Counter(
		"manifesto.mining.entities",
		metric.WithDescription("Entities mined, by module"),
	)
	if err != nil {
		return nil, err
	}

	handlersMined, err := meter.Int64Counter(
		"manifesto.mining.error_handlers",
		metric.WithDescription("Error handlers mined, by module"),
	)
	if err != nil {
		return nil, err
	}

	entitiesPruned, err := meter.Int64Counter(
		"manifesto.mining.entities_pruned",
		metric.WithDescription("Entities dropped by reachability pruning"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter(
		"manifesto.mining.handler_failures",
		metric.WithDescription("Error-handler extractions swallowed per module"),
	)
	if err != nil {
		return nil, err
	}

	generations, err := meter.Int64Counter(
		"manifesto.generations",
		metric.WithDescription("Generation calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &MiningMetrics{
		actionsMined:    actionsMined,
		entitiesMined:   entitiesMined,
		handlersMined:   handlersMined,
		entitiesPruned:  entitiesPruned,
		handlerFailures: handlerFailures,
		generations:     generations,
	}, nil
}

// RecordModule records the per-module extraction volume.
func (m *MiningMetrics) RecordModule(ctx context.Context, module string, actions, entities, handlers int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("module", module))
	m.actionsMined.Add(ctx, int64(actions), attrs)
	m.entitiesMined.Add(ctx, int64(entities), attrs)
	m.handlersMined.Add(ctx, int64(handlers), attrs)
}

// RecordHandlerFailure counts a swallowed error-handler extraction.
func (m *MiningMetrics) RecordHandlerFailure(ctx context.Context, module string) {
	if m == nil {
		return
	}
	m.handlerFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("module", module)))
}

// RecordPruned counts entities removed by reachability pruning.
func (m *MiningMetrics) RecordPruned(ctx context.Context, dropped int) {
	if m == nil || dropped == 0 {
		return
	}
	m.entitiesPruned.Add(ctx, int64(dropped))
}

// RecordGeneration counts a generation call by outcome ("ok" or "error").
func (m *MiningMetrics) RecordGeneration(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.generations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
