package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/event"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

func TestUpdateStatus_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	cache := new(mockProductCache)
	pub := &fakePublisher{}
	svc := NewOrderService(repo, cache, newTestProducer(pub), newTestLogger())
	ctx := context.Background()

	repo.On("UpdateStatus", ctx, "o-1", domain.OrderStatusShipped).Return(domain.OrderStatusProcessing, nil)
	repo.On("GetByID", ctx, "o-1").Return(&domain.Order{ID: "o-1", Status: domain.OrderStatusShipped}, nil)

	order, err := svc.UpdateStatus(ctx, "o-1", domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, []string{event.TypeOrderStatusChanged}, pub.types())
	cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := NewOrderService(repo, new(mockProductCache), newTestProducer(&fakePublisher{}), newTestLogger())

	_, err := svc.UpdateStatus(context.Background(), "o-1", "teleported")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	repo := new(mockOrderRepository)
	pub := &fakePublisher{}
	svc := NewOrderService(repo, new(mockProductCache), newTestProducer(pub), newTestLogger())
	ctx := context.Background()

	repo.On("UpdateStatus", ctx, "o-1", domain.OrderStatusPending).
		Return("", apperrors.Conflict("INVALID_STATUS_TRANSITION", "cannot move order from shipped to pending"))

	_, err := svc.UpdateStatus(ctx, "o-1", domain.OrderStatusPending)
	assertConflictCode(t, err, "INVALID_STATUS_TRANSITION")
	assert.Empty(t, pub.types())
}

func TestCancelOrder(t *testing.T) {
	repo := new(mockOrderRepository)
	cache := new(mockProductCache)
	svc := NewOrderService(repo, cache, newTestProducer(&fakePublisher{}), newTestLogger())
	ctx := context.Background()

	repo.On("UpdateStatus", ctx, "o-1", domain.OrderStatusCancelled).Return(domain.OrderStatusPending, nil)
	repo.On("GetByID", ctx, "o-1").Return(&domain.Order{
		ID:     "o-1",
		Status: domain.OrderStatusCancelled,
		Items: []domain.OrderItem{
			{ProductID: "tea", ProductSlug: "da-hong-pao"},
			{ProductID: "tea", ProductSlug: "da-hong-pao"},
			{ProductID: "p-1", ProductSlug: "fox-sticker"},
		},
	}, nil)
	cache.On("Invalidate", ctx, []string{"da-hong-pao", "fox-sticker"}).Return(nil)

	order, err := svc.CancelOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestCancelOrder_CacheFailureIsNotReturned(t *testing.T) {
	repo := new(mockOrderRepository)
	cache := new(mockProductCache)
	svc := NewOrderService(repo, cache, newTestProducer(&fakePublisher{}), newTestLogger())
	ctx := context.Background()

	repo.On("UpdateStatus", ctx, "o-1", domain.OrderStatusCancelled).Return(domain.OrderStatusProcessing, nil)
	repo.On("GetByID", ctx, "o-1").Return(&domain.Order{
		ID:     "o-1",
		Status: domain.OrderStatusCancelled,
		Items:  []domain.OrderItem{{ProductID: "p-1", ProductSlug: "fox-sticker"}},
	}, nil)
	cache.On("Invalidate", ctx, []string{"fox-sticker"}).Return(errors.New("redis down"))

	_, err := svc.CancelOrder(ctx, "o-1")
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestListOrders(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := NewOrderService(repo, new(mockProductCache), newTestProducer(&fakePublisher{}), newTestLogger())
	ctx := context.Background()

	filter := repository.OrderFilter{Status: strPtr(domain.OrderStatusPending), Page: 1, PerPage: 20}
	repo.On("List", ctx, filter).Return([]domain.Order{{ID: "o-1"}}, 1, nil)

	orders, total, err := svc.ListOrders(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, total)

	_, _, err = svc.ListOrders(ctx, repository.OrderFilter{Status: strPtr("lost")})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestGetOrder_NotFound(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := NewOrderService(repo, new(mockProductCache), newTestProducer(&fakePublisher{}), newTestLogger())
	ctx := context.Background()

	repo.On("GetByID", ctx, "nope").Return(nil, apperrors.NotFound("order", "nope"))

	_, err := svc.GetOrder(ctx, "nope")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
