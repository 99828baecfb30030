package parsing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

func newCapacityEnforcer(inventory *mockInventory, publisher *mockPublisher, maxItems int) *CapacityEnforcer {
	return NewCapacityEnforcer(
		inventory,
		maxItems,
		publisher,
		noopMetrics{},
		logger.Noop(),
		noop.NewTracerProvider().Tracer("test"),
	)
}

func itemsWithParsedAt(times ...time.Time) []parsing.ResultItem {
	items := make([]parsing.ResultItem, 0, len(times))
	for i, ts := range times {
		items = append(items, parsing.ResultItem{ID: int64(i + 1), Name: "group", ParsedAt: ts})
	}
	return items
}

func TestCapacityEnforcer(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("under capacity deletes nothing", func(t *testing.T) {
		inventory := new(mockInventory)
		publisher := new(mockPublisher)
		inventory.On("ListAll", mock.Anything, parsing.CollectionGroups).
			Return(itemsWithParsedAt(base, base.Add(time.Hour)), nil).Once()

		enforcer := newCapacityEnforcer(inventory, publisher, 3)
		enforcer.EnsureCapacity(context.Background(), parsing.CollectionGroups)

		inventory.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything, mock.Anything)
		publisher.AssertNotCalled(t, "PublishDomainEvent", mock.Anything, mock.Anything)
	})

	t.Run("at capacity evicts exactly the oldest item", func(t *testing.T) {
		inventory := new(mockInventory)
		publisher := new(mockPublisher)
		items := itemsWithParsedAt(base.Add(2*time.Hour), base, base.Add(time.Hour))
		inventory.On("ListAll", mock.Anything, parsing.CollectionGroups).Return(items, nil).Once()
		inventory.On("DeleteItem", mock.Anything, parsing.CollectionGroups, items[1].ID).Return(nil).Once()
		publisher.On("PublishDomainEvent", mock.Anything, mock.AnythingOfType("parsing.ItemEvictedEvent")).
			Return(nil).Once()

		enforcer := newCapacityEnforcer(inventory, publisher, 3)
		enforcer.EnsureCapacity(context.Background(), parsing.CollectionGroups)

		inventory.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("equal timestamps break the tie by lowest id", func(t *testing.T) {
		inventory := new(mockInventory)
		publisher := new(mockPublisher)
		items := []parsing.ResultItem{
			{ID: 7, ParsedAt: base},
			{ID: 3, ParsedAt: base},
			{ID: 9, ParsedAt: base.Add(time.Minute)},
		}
		inventory.On("ListAll", mock.Anything, parsing.CollectionChannels).Return(items, nil).Once()
		inventory.On("DeleteItem", mock.Anything, parsing.CollectionChannels, int64(3)).Return(nil).Once()
		publisher.On("PublishDomainEvent", mock.Anything, mock.Anything).Return(nil).Once()

		enforcer := newCapacityEnforcer(inventory, publisher, 3)
		enforcer.EnsureCapacity(context.Background(), parsing.CollectionChannels)

		inventory.AssertExpectations(t)
	})

	t.Run("listing failure skips enforcement silently", func(t *testing.T) {
		inventory := new(mockInventory)
		publisher := new(mockPublisher)
		inventory.On("ListAll", mock.Anything, parsing.CollectionGroups).
			Return(nil, errors.New("service unavailable")).Once()

		enforcer := newCapacityEnforcer(inventory, publisher, 1)
		enforcer.EnsureCapacity(context.Background(), parsing.CollectionGroups)

		inventory.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete failure publishes nothing", func(t *testing.T) {
		inventory := new(mockInventory)
		publisher := new(mockPublisher)
		items := itemsWithParsedAt(base)
		inventory.On("ListAll", mock.Anything, parsing.CollectionGroups).Return(items, nil).Once()
		inventory.On("DeleteItem", mock.Anything, parsing.CollectionGroups, items[0].ID).
			Return(errors.New("conflict")).Once()

		enforcer := newCapacityEnforcer(inventory, publisher, 1)
		enforcer.EnsureCapacity(context.Background(), parsing.CollectionGroups)

		publisher.AssertNotCalled(t, "PublishDomainEvent", mock.Anything, mock.Anything)
	})

	t.Run("over capacity still evicts a single item per call", func(t *testing.T) {
		inventory := new(mockInventory)
		publisher := new(mockPublisher)
		items := itemsWithParsedAt(base, base.Add(time.Hour), base.Add(2*time.Hour), base.Add(3*time.Hour))
		inventory.On("ListAll", mock.Anything, parsing.CollectionGroups).Return(items, nil).Once()
		inventory.On("DeleteItem", mock.Anything, parsing.CollectionGroups, items[0].ID).Return(nil).Once()
		publisher.On("PublishDomainEvent", mock.Anything, mock.Anything).Return(nil).Once()

		enforcer := newCapacityEnforcer(inventory, publisher, 2)
		enforcer.EnsureCapacity(context.Background(), parsing.CollectionGroups)

		inventory.AssertNumberOfCalls(t, "DeleteItem", 1)
		assert.True(t, inventory.AssertExpectations(t))
	})
}
