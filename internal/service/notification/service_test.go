package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/internal/repository/memory"
	apperrors "github.com/evura/portal-api/pkg/errors"
	"github.com/evura/portal-api/pkg/logger"
	memorybroker "github.com/evura/portal-api/pkg/messaging/memory"
	"github.com/evura/portal-api/pkg/metrics"
)

func newService(t *testing.T) (*Service, *repository.Store, *memorybroker.Broker) {
	t.Helper()
	store := memory.NewStore()
	broker := memorybroker.NewBroker(4)
	svc := NewService(store.Notifications, broker, Config{EnqueueTimeout: 100 * time.Millisecond}, logger.Nop(), metrics.Nop())
	return svc, store, broker
}

func TestNotifyPersistsAndEnqueues(t *testing.T) {
	svc, store, broker := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := broker.Subscribe(ctx, DefaultChannel)
	require.NoError(t, err)

	n := &model.Notification{
		Event:     model.EventAppointmentRequest,
		Recipient: "house@example.com",
		Data:      model.StringMap{"patient_name": "alice"},
	}
	require.NoError(t, svc.Notify(ctx, n))

	got, err := store.Notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusPending, got.Status)
	assert.Equal(t, "E-Vura Healthcare: New Appointment Request", got.Subject)

	select {
	case payload := <-msgs:
		var queued model.Notification
		require.NoError(t, json.Unmarshal(payload, &queued))
		assert.Equal(t, n.ID, queued.ID)
		assert.Equal(t, "alice", queued.Data["patient_name"])
	case <-time.After(time.Second):
		t.Fatal("nothing enqueued")
	}
}

func TestNotifyRejectsMissingRecipient(t *testing.T) {
	svc, _, _ := newService(t)
	err := svc.Notify(context.Background(), &model.Notification{Event: model.EventAppointmentCompleted})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotification))
}

func TestNotifyMarksRowFailedWhenQueueIsDown(t *testing.T) {
	svc, store, broker := newService(t)
	require.NoError(t, broker.Close())

	n := &model.Notification{Event: model.EventAppointmentRejected, Recipient: "alice@example.com"}
	err := svc.Notify(context.Background(), n)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotification))

	got, err := store.Notifications.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "enqueue failed")
}
