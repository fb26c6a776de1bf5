package builder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ByLCY/offerpress/notify"
	"github.com/ByLCY/offerpress/offer"
	"github.com/ByLCY/offerpress/store"
)

type failingStore struct{ store.SnapshotStore }

func (failingStore) Save(context.Context, string, *offer.Snapshot) (string, error) {
	return "", errors.New("disk full")
}

func draftArtifact() *Artifact {
	return &Artifact{
		PDF: []byte("%PDF-1.7"),
		Snapshot: Snapshot{
			Document: offer.Document{ClientName: "Muster GmbH", OfferNumber: "AN-1", OwnerID: "u-1"},
			Status:   offer.StatusDraft,
		},
	}
}

func TestPublishPersistsAndNotifies(t *testing.T) {
	mem := store.NewMemory()
	var notified []string
	sentAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	p := &Publisher{
		Store: mem,
		Notifier: notify.NotifierFunc(func(_ context.Context, offerID, ownerID string) error {
			notified = append(notified, offerID+"/"+ownerID)
			return nil
		}),
		Now: func() time.Time { return sentAt },
	}

	art := draftArtifact()
	report := p.Publish(context.Background(), art)
	require.True(t, report.OK())
	require.NotEmpty(t, report.OfferID)
	assert.Equal(t, []string{report.OfferID + "/u-1"}, notified)
	assert.Equal(t, report.OfferID, art.Snapshot.OfferID)
	assert.Equal(t, offer.StatusSent, art.Snapshot.Status)

	saved, err := mem.Get(context.Background(), report.OfferID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusSent, saved.Status)
	require.NotNil(t, saved.SentAt)
	assert.Equal(t, sentAt, *saved.SentAt)
	assert.Equal(t, report.OfferID, saved.Document.OfferID)

	// 再次发布同一个 id 覆盖原记录
	again := p.Publish(context.Background(), art)
	require.True(t, again.OK())
	assert.Equal(t, report.OfferID, again.OfferID)
}

func TestPublishStoreFailureKeepsArtifact(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	called := false
	p := &Publisher{
		Store: failingStore{},
		Notifier: notify.NotifierFunc(func(context.Context, string, string) error {
			called = true
			return nil
		}),
		Logger: zap.New(core),
	}
	art := draftArtifact()
	report := p.Publish(context.Background(), art)

	assert.ErrorIs(t, report.PersistErr, ErrPersistence)
	assert.Contains(t, report.PersistErr.Error(), "disk full")
	assert.ErrorIs(t, report.NotifyErr, ErrNotification)
	assert.False(t, called)
	assert.Equal(t, []byte("%PDF-1.7"), art.PDF)
	assert.Equal(t, offer.StatusDraft, art.Snapshot.Status, "未保存时不能显示为已发送")
	assert.Nil(t, art.Snapshot.SentAt)
	assert.Equal(t, 2, logs.Len())
}

func TestPublishNotifyFailure(t *testing.T) {
	boom := errors.New("queue down")
	p := &Publisher{
		Store:    store.NewMemory(),
		Notifier: notify.NotifierFunc(func(context.Context, string, string) error { return boom }),
	}
	report := p.Publish(context.Background(), draftArtifact())
	assert.NoError(t, report.PersistErr)
	assert.NotEmpty(t, report.OfferID)
	assert.ErrorIs(t, report.NotifyErr, boom)
	assert.ErrorIs(t, report.NotifyErr, ErrNotification)
	assert.False(t, report.OK())
}

func TestPublishWithoutStore(t *testing.T) {
	report := (&Publisher{}).Publish(context.Background(), draftArtifact())
	assert.ErrorIs(t, report.PersistErr, ErrPersistence)
	assert.NoError(t, report.NotifyErr)

	report = (&Publisher{}).Publish(context.Background(), nil)
	assert.ErrorIs(t, report.PersistErr, ErrPersistence)
}
