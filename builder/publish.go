package builder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/offerpress/notify"
	"github.com/ByLCY/offerpress/store"
)

var (
	// ErrPersistence 包装快照存储的失败。
	ErrPersistence = errors.New("builder: persisting snapshot failed")
	// ErrNotification 包装通知失败。
	ErrNotification = errors.New("builder: notification failed")
)

// PublishReport 记录产物生成之后各步骤的结果，这些错误不会导致产物被丢弃。
type PublishReport struct {
	OfferID    string `json:"offerId,omitempty"`
	PersistErr error  `json:"-"`
	NotifyErr  error  `json:"-"`
}

// OK 表示保存与通知均成功。
func (r PublishReport) OK() bool { return r.PersistErr == nil && r.NotifyErr == nil }

// Publisher 以已发送状态保存快照并通知负责人。
type Publisher struct {
	Store    store.SnapshotStore
	Notifier notify.Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

// Publish 将快照标记为已发送并保存（按 offer id 新建或更新），然后通知。
// 保存失败时产物保持原状态；新报价没有 id，因此跳过通知。
func (p *Publisher) Publish(ctx context.Context, art *Artifact) PublishReport {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if art == nil {
		return PublishReport{PersistErr: fmt.Errorf("%w: no artifact", ErrPersistence)}
	}

	// 先在副本上标记已发送，保存成功后才写回产物。
	snap := art.Snapshot
	snap.MarkSent(now())
	report := PublishReport{OfferID: snap.OfferID}
	log = log.With(zap.String("offer_number", snap.Document.OfferNumber))

	if p.Store == nil {
		report.PersistErr = fmt.Errorf("%w: no store configured", ErrPersistence)
	} else if id, err := p.Store.Save(ctx, snap.OfferID, &snap); err != nil {
		report.PersistErr = fmt.Errorf("%w: %w", ErrPersistence, err)
	} else {
		report.OfferID = id
		snap.OfferID = id
		snap.Document.OfferID = id
		art.Snapshot = snap
	}
	if report.PersistErr != nil {
		log.Error("snapshot not persisted", zap.Error(report.PersistErr))
	}

	switch {
	case p.Notifier == nil:
	case report.OfferID == "":
		report.NotifyErr = fmt.Errorf("%w: snapshot has no offer id", ErrNotification)
	default:
		if err := p.Notifier.Notify(ctx, report.OfferID, art.Snapshot.Document.OwnerID); err != nil {
			report.NotifyErr = fmt.Errorf("%w: %w", ErrNotification, err)
		}
	}
	if report.NotifyErr != nil {
		log.Error("offer notification failed", zap.Error(report.NotifyErr))
	}
	return report
}
