// Package store 为发布步骤持久化报价快照。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ByLCY/offerpress/offer"
)

// ErrNotFound 表示该 id 没有对应的快照。
var ErrNotFound = errors.New("store: snapshot not found")

// SnapshotStore 采用新建或更新语义：id 为空时新建记录并返回 id，否则覆盖该记录。
type SnapshotStore interface {
	Save(ctx context.Context, id string, snap *offer.Snapshot) (string, error)
	Get(ctx context.Context, id string) (*offer.Snapshot, error)
	MarkViewed(ctx context.Context, id string, at time.Time) (*offer.Snapshot, error)
}

func newID() string { return uuid.NewString() }

// prepare 在缺少 id 时分配新 id 并写回快照。
func prepare(id string, snap *offer.Snapshot) (string, *offer.Snapshot) {
	if id == "" {
		id = newID()
	}
	cp := *snap
	cp.OfferID = id
	cp.Document.OfferID = id
	return id, &cp
}
