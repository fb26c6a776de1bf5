package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAsynqNotifierEnqueuesTask(t *testing.T) {
	mr := miniredis.RunT(t)
	redisOpt := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := asynq.NewClient(redisOpt)
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zap.InfoLevel)
	n := NewAsynqNotifier(client, zap.New(core))
	require.NoError(t, n.Notify(context.Background(), "offer-1", "owner-9"))
	assert.Equal(t, 1, logs.FilterMessage("offer notification enqueued").Len())

	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() { _ = inspector.Close() })
	tasks, err := inspector.ListPendingTasks(QueueDefault)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTypeSendOffer, tasks[0].Type)
	assert.Equal(t, 0, tasks[0].MaxRetry)

	var payload SendOfferPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &payload))
	assert.Equal(t, SendOfferPayload{OfferID: "offer-1", OwnerID: "owner-9"}, payload)
}

type failingEnqueuer struct{}

func (failingEnqueuer) EnqueueContext(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
	return nil, errors.New("redis down")
}

func TestAsynqNotifierErrors(t *testing.T) {
	n := NewAsynqNotifier(failingEnqueuer{}, nil)
	err := n.Notify(context.Background(), "offer-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")

	err = n.Notify(context.Background(), "", "owner")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestHandlerProcessTask(t *testing.T) {
	var got SendOfferPayload
	h := &Handler{Deliver: func(_ context.Context, p SendOfferPayload) error {
		got = p
		return nil
	}}
	task, err := NewSendOfferTask(SendOfferPayload{OfferID: "o1", OwnerID: "u1"})
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, "o1", got.OfferID)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TaskTypeSendOffer, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	boom := errors.New("smtp down")
	h.Deliver = func(context.Context, SendOfferPayload) error { return boom }
	assert.ErrorIs(t, h.ProcessTask(context.Background(), task), boom)

	mux := asynq.NewServeMux()
	(&Handler{}).Register(mux)
	assert.NoError(t, mux.ProcessTask(context.Background(), task))
}

func TestNoopAndFunc(t *testing.T) {
	assert.NoError(t, Noop{}.Notify(context.Background(), "a", "b"))
	called := false
	var n Notifier = NotifierFunc(func(context.Context, string, string) error { called = true; return nil })
	require.NoError(t, n.Notify(context.Background(), "a", "b"))
	assert.True(t, called)
}
