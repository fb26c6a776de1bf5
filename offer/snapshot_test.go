package offer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotTransitions(t *testing.T) {
	snap := &Snapshot{Status: StatusDraft}
	assert.ErrorIs(t, snap.MarkViewed(time.Now()), ErrNotSent)

	sent := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	snap.MarkSent(sent)
	assert.Equal(t, StatusSent, snap.Status)
	require.NotNil(t, snap.SentAt)
	assert.Equal(t, time.UTC, snap.SentAt.Location())

	first := sent.Add(time.Hour)
	require.NoError(t, snap.MarkViewed(first))
	require.NoError(t, snap.MarkViewed(first.Add(time.Hour)))
	assert.Equal(t, StatusViewed, snap.Status)
	assert.True(t, snap.ViewedAt.Equal(first))
}
