package parsing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telescan/telescan/internal/domain/events"
	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

// CapacityEnforcer keeps a collection's result count under a fixed maximum
// by deleting the single oldest item before a new parse starts. Enforcement
// is best-effort: a failed read or delete is logged and the start proceeds,
// since a capacity overshoot is preferred over blocking the user's action.
type CapacityEnforcer struct {
	inventory parsing.ItemInventory
	maxItems  int
	publisher events.DomainEventPublisher
	metrics   ParsingMetrics

	logger *logger.Logger
	tracer trace.Tracer
}

// NewCapacityEnforcer creates an enforcer that caps each collection at
// maxItems stored results.
func NewCapacityEnforcer(
	inventory parsing.ItemInventory,
	maxItems int,
	publisher events.DomainEventPublisher,
	metrics ParsingMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *CapacityEnforcer {
	logger = logger.With("component", "capacity_enforcer")
	return &CapacityEnforcer{
		inventory: inventory,
		maxItems:  maxItems,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		tracer:    tracer,
	}
}

// EnsureCapacity deletes the oldest stored item for the collection when the
// collection is at or over its maximum. It evicts at most one item per call;
// the controller's re-entrancy rule serializes calls per collection.
func (e *CapacityEnforcer) EnsureCapacity(ctx context.Context, collection parsing.Collection) {
	logger := e.logger.With("operation", "ensure_capacity", "collection", collection)
	ctx, span := e.tracer.Start(ctx, "capacity_enforcer.ensure_capacity",
		trace.WithAttributes(
			attribute.String("collection", collection.String()),
			attribute.Int("max_items", e.maxItems),
		),
	)
	defer span.End()

	items, err := e.inventory.ListAll(ctx, collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list items")
		logger.Warn(ctx, "capacity check skipped, item listing failed", "error", err)
		return
	}
	span.SetAttributes(attribute.Int("item_count", len(items)))

	if len(items) < e.maxItems {
		span.AddEvent("capacity_available")
		span.SetStatus(codes.Ok, "capacity available")
		return
	}

	oldest := items[0]
	for _, item := range items[1:] {
		if parsing.Older(item, oldest) {
			oldest = item
		}
	}

	if err := e.inventory.DeleteItem(ctx, collection, oldest.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to evict oldest item")
		e.metrics.IncEvictionFailures(ctx, collection)
		logger.Warn(ctx, "eviction failed, proceeding with start anyway",
			"item_id", oldest.ID, "error", err)
		return
	}

	e.metrics.IncEvictions(ctx, collection)
	logger.Info(ctx, "evicted oldest item to make room",
		"item_id", oldest.ID, "parsed_at", oldest.ParsedAt)
	span.AddEvent("oldest_item_evicted", trace.WithAttributes(
		attribute.Int64("item_id", oldest.ID),
	))
	span.SetStatus(codes.Ok, "oldest item evicted")

	evt := parsing.NewItemEvictedEvent(collection, oldest)
	if err := e.publisher.PublishDomainEvent(ctx, evt, events.WithKey(collection.String())); err != nil {
		logger.Warn(ctx, "failed to publish item evicted event", "error", err)
	}
}
