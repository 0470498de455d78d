package projector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

var (
	alice   = domain.User{Id: "u1", Name: "alice"}
	general = domain.TargetContext{Channel: "general"}
)

func record(id string, target domain.TargetContext, createdAt time.Time) domain.Message {
	return domain.Message{
		Id:            id,
		Channel:       target.Channel,
		ParentMessage: target.ParentMessage,
		Author:        alice,
		Text:          "message " + id,
		CreatedAt:     createdAt,
	}
}

func TestSpliceInsertsOptimisticRecordAtHead(t *testing.T) {
	p := New(nil, nil)
	now := time.Now()
	p.Apply(record("old", general, now.Add(-time.Minute)))

	m := p.Splice(alice, general, "corr-1", "hello *world*", nil)

	assert.NotEmpty(t, m.Id)
	assert.Equal(t, domain.StatusCreated, m.Optimistic)
	assert.Contains(t, m.Html, "<em>world</em>")
	assert.True(t, p.Pending("corr-1"))

	snap := p.Snapshot(general)
	require.Len(t, snap, 2)
	assert.Equal(t, m.Id, snap[0].Id)
	assert.Equal(t, "old", snap[1].Id)
}

func TestApplySupersedesOptimisticExactlyOnce(t *testing.T) {
	p := New(nil, nil)
	optimistic := p.Splice(alice, general, "corr-1", "hello", nil)

	authoritative := record("srv-1", general, time.Now())
	authoritative.Correlation = "corr-1"
	p.Apply(authoritative)

	snap := p.Snapshot(general)
	require.Len(t, snap, 1, "optimistic record must be replaced, not duplicated")
	assert.Equal(t, "srv-1", snap[0].Id)
	assert.NotEqual(t, optimistic.Id, snap[0].Id)
	assert.False(t, p.Pending("corr-1"))

	// The same record arriving again (list refresh after the live feed)
	// must not remove anything else.
	p.Apply(authoritative)
	snap = p.Snapshot(general)
	require.Len(t, snap, 1)
	assert.Equal(t, "srv-1", snap[0].Id)
}

func TestApplyUpdatesKnownRecordInPlace(t *testing.T) {
	p := New(nil, nil)
	now := time.Now()
	p.Apply(record("m1", general, now))

	edited := record("m1", general, now)
	edited.Text = "edited"
	p.Apply(edited)

	snap := p.Snapshot(general)
	require.Len(t, snap, 1)
	assert.Equal(t, "edited", snap[0].Text)
}

func TestOrderingByCreationTimeNotArrival(t *testing.T) {
	p := New(nil, nil)
	now := time.Now()

	p.Apply(record("middle", general, now.Add(-time.Minute)))
	p.Apply(record("newest", general, now))
	p.Apply(record("oldest", general, now.Add(-time.Hour)))

	snap := p.Snapshot(general)
	require.Len(t, snap, 3)
	assert.Equal(t, "newest", snap[0].Id)
	assert.Equal(t, "middle", snap[1].Id)
	assert.Equal(t, "oldest", snap[2].Id)
}

func TestRollbackRemovesOptimisticRecord(t *testing.T) {
	p := New(nil, nil)
	p.Apply(record("keep", general, time.Now().Add(-time.Minute)))
	p.Splice(alice, general, "corr-1", "doomed", nil)

	assert.True(t, p.Rollback(general, "corr-1"))
	assert.False(t, p.Pending("corr-1"))

	snap := p.Snapshot(general)
	require.Len(t, snap, 1)
	assert.Equal(t, "keep", snap[0].Id)

	assert.False(t, p.Rollback(general, "corr-1"), "second rollback finds nothing")
}

func TestTargetsAreIsolated(t *testing.T) {
	p := New(nil, nil)
	thread := domain.TargetContext{Channel: "general", ParentMessage: "m1"}

	p.Splice(alice, general, "corr-top", "top level", nil)
	p.Splice(alice, thread, "corr-thread", "in thread", nil)

	assert.Len(t, p.Snapshot(general), 1)
	assert.Len(t, p.Snapshot(thread), 1)
	assert.NotEqual(t, p.Snapshot(general)[0].Id, p.Snapshot(thread)[0].Id)
}

func TestSeedPageReplacesCache(t *testing.T) {
	p := New(nil, nil)
	now := time.Now()
	p.Apply(record("stale", general, now.Add(-time.Hour)))

	p.SeedPage(general, api.MessagePage{
		Messages: []domain.Message{
			record("m2", general, now),
			record("m1", general, now.Add(-time.Minute)),
		},
		Cursor:  "cursor-1",
		HasMore: true,
	})

	snap := p.Snapshot(general)
	require.Len(t, snap, 2)
	assert.Equal(t, "m2", snap[0].Id)

	cursor, hasMore := p.HasMore(general)
	assert.Equal(t, "cursor-1", cursor)
	assert.True(t, hasMore)
}

func TestSeedPageReconcilesOverlay(t *testing.T) {
	p := New(nil, nil)
	p.Splice(alice, general, "corr-1", "hello", nil)

	authoritative := record("srv-1", general, time.Now())
	authoritative.Correlation = "corr-1"
	p.SeedPage(general, api.MessagePage{Messages: []domain.Message{authoritative}})

	snap := p.Snapshot(general)
	require.Len(t, snap, 1)
	assert.Equal(t, "srv-1", snap[0].Id)
	assert.False(t, p.Pending("corr-1"))
}

func TestAppendPageExtendsCache(t *testing.T) {
	p := New(nil, nil)
	now := time.Now()
	p.SeedPage(general, api.MessagePage{
		Messages: []domain.Message{record("new", general, now)},
		Cursor:   "c1",
		HasMore:  true,
	})

	p.AppendPage(general, api.MessagePage{
		Messages: []domain.Message{record("older", general, now.Add(-time.Hour))},
		HasMore:  false,
	})

	snap := p.Snapshot(general)
	require.Len(t, snap, 2)
	assert.Equal(t, "new", snap[0].Id)
	assert.Equal(t, "older", snap[1].Id)

	_, hasMore := p.HasMore(general)
	assert.False(t, hasMore)
}
