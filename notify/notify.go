// Package notify dispatches "offer ready" notifications after a successful publish.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TaskTypeSendOffer is the asynq task type carrying a SendOfferPayload.
	TaskTypeSendOffer = "offer:send"
	// QueueDefault is the queue used for offer notifications.
	QueueDefault = "default"
)

// ErrInvalidPayload marks tasks that can never succeed.
var ErrInvalidPayload = errors.New("notify: invalid payload")

// Notifier is invoked with (offerID, ownerID) once the snapshot is stored.
type Notifier interface {
	Notify(ctx context.Context, offerID, ownerID string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, offerID, ownerID string) error

func (f NotifierFunc) Notify(ctx context.Context, offerID, ownerID string) error {
	return f(ctx, offerID, ownerID)
}

// Noop discards notifications.
type Noop struct{}

func (Noop) Notify(context.Context, string, string) error { return nil }

// SendOfferPayload is the JSON body of an offer:send task.
type SendOfferPayload struct {
	OfferID string `json:"offerId"`
	OwnerID string `json:"ownerId"`
}

// NewSendOfferTask builds the task. Retries are left to the worker, so the
// task itself is enqueued with MaxRetry(0).
func NewSendOfferTask(payload SendOfferPayload) (*asynq.Task, error) {
	if payload.OfferID == "" {
		return nil, fmt.Errorf("%w: empty offer id", ErrInvalidPayload)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendOffer, data, asynq.MaxRetry(0), asynq.Queue(QueueDefault)), nil
}

// Enqueuer is the subset of *asynq.Client used by AsynqNotifier.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier enqueues offer:send tasks.
type AsynqNotifier struct {
	client Enqueuer
	log    *zap.Logger
}

var _ Notifier = (*AsynqNotifier)(nil)

func NewAsynqNotifier(client Enqueuer, log *zap.Logger) *AsynqNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &AsynqNotifier{client: client, log: log}
}

func (n *AsynqNotifier) Notify(ctx context.Context, offerID, ownerID string) error {
	task, err := NewSendOfferTask(SendOfferPayload{OfferID: offerID, OwnerID: ownerID})
	if err != nil {
		return err
	}
	info, err := n.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", TaskTypeSendOffer, err)
	}
	n.log.Info("offer notification enqueued",
		zap.String("offer_id", offerID),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue))
	return nil
}

// Handler processes offer:send tasks on the worker side.
type Handler struct {
	// Deliver performs the actual dispatch (mail, webhook, ...).
	Deliver func(ctx context.Context, payload SendOfferPayload) error
	Log     *zap.Logger
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}
	var payload SendOfferPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OfferID == "" {
		log.Warn("drop malformed offer task", zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("%w: %w", ErrInvalidPayload, asynq.SkipRetry)
	}
	if h.Deliver == nil {
		log.Info("offer ready", zap.String("offer_id", payload.OfferID), zap.String("owner_id", payload.OwnerID))
		return nil
	}
	if err := h.Deliver(ctx, payload); err != nil {
		log.Error("offer delivery failed", zap.String("offer_id", payload.OfferID), zap.Error(err))
		return err
	}
	return nil
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskTypeSendOffer, h)
}
