package storeapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openteam-dev/openteam-go/internal/storetest"
	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

var alice = domain.User{Id: "u1", Name: "alice"}

func newTestStore(t *testing.T) (*storetest.Server, *Client) {
	t.Helper()
	store := storetest.New()
	ts := httptest.NewServer(store.Handler())
	t.Cleanup(ts.Close)
	return store, New(ts.URL, store.TokenFor(alice))
}

func TestCurrentUser(t *testing.T) {
	_, client := newTestStore(t)

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice, *user)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	store := storetest.New()
	ts := httptest.NewServer(store.Handler())
	t.Cleanup(ts.Close)

	client := New(ts.URL, "")
	_, err := client.CurrentUser(context.Background())
	assert.Error(t, err)

	client = New(ts.URL, "not-a-token")
	_, err = client.CurrentUser(context.Background())
	assert.Error(t, err)
}

func TestTwoPhaseUpload(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	remoteId, err := client.RegisterAttachment(ctx, api.RegisterAttachmentRequest{
		Name:        "notes.txt",
		ContentType: "text/plain",
		Correlation: "corr-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, remoteId)
	assert.True(t, store.HasFile(remoteId))

	uploadUrl, err := client.RequestUploadTarget(ctx)
	require.NoError(t, err)

	ref, err := client.UploadBytes(ctx, uploadUrl, "text/plain", []byte("the payload"))
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	require.NoError(t, client.ConfirmAttachment(ctx, remoteId, ref))
}

func TestUploadTargetIsOneTime(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()

	uploadUrl, err := client.RequestUploadTarget(ctx)
	require.NoError(t, err)

	_, err = client.UploadBytes(ctx, uploadUrl, "text/plain", []byte("first"))
	require.NoError(t, err)

	_, err = client.UploadBytes(ctx, uploadUrl, "text/plain", []byte("second"))
	assert.Error(t, err, "spent upload URL must be rejected")
}

func TestRegisterRequiresCorrelation(t *testing.T) {
	_, client := newTestStore(t)

	_, err := client.RegisterAttachment(context.Background(), api.RegisterAttachmentRequest{
		Name: "notes.txt",
	})
	assert.Error(t, err)
}

func TestConfirmUnknownStorageRefFails(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()

	remoteId, err := client.RegisterAttachment(ctx, api.RegisterAttachmentRequest{
		Name:        "notes.txt",
		Correlation: "corr-1",
	})
	require.NoError(t, err)

	assert.Error(t, client.ConfirmAttachment(ctx, remoteId, "storage/bogus"))
}

func TestRemoveAttachment(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	remoteId, err := client.RegisterAttachment(ctx, api.RegisterAttachmentRequest{
		Name:        "discarded.txt",
		Correlation: "corr-1",
	})
	require.NoError(t, err)

	require.NoError(t, client.RemoveAttachment(ctx, remoteId))
	assert.False(t, store.HasFile(remoteId))
	assert.Error(t, client.RemoveAttachment(ctx, remoteId))
}

func TestSendMessageEchoesCorrelation(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()

	msg, err := client.SendMessage(ctx, api.SendMessageRequest{
		Channel:     "general",
		Text:        "hello *there*",
		Correlation: "corr-42",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.Id)
	assert.Equal(t, "corr-42", msg.Correlation)
	assert.Equal(t, alice, msg.Author)
	assert.Contains(t, msg.Html, "<em>there</em>", "store renders the body")
	assert.Empty(t, msg.Optimistic, "authoritative records carry no optimistic status")
}

func TestSendMessageRejectsUnstoredAttachment(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()

	remoteId, err := client.RegisterAttachment(ctx, api.RegisterAttachmentRequest{
		Name:        "pending.txt",
		Correlation: "corr-1",
	})
	require.NoError(t, err)

	_, err = client.SendMessage(ctx, api.SendMessageRequest{
		Channel:       "general",
		Text:          "with attachment",
		AttachmentIds: []string{remoteId},
		Correlation:   "corr-1",
	})
	assert.Error(t, err, "placeholder without storage ref must be rejected")
}

func TestSendMessageWithStoredAttachment(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()

	remoteId, err := client.RegisterAttachment(ctx, api.RegisterAttachmentRequest{
		Name:        "photo.png",
		ContentType: "image/png",
		Correlation: "corr-1",
	})
	require.NoError(t, err)

	uploadUrl, err := client.RequestUploadTarget(ctx)
	require.NoError(t, err)
	ref, err := client.UploadBytes(ctx, uploadUrl, "image/png", []byte("png bytes"))
	require.NoError(t, err)
	require.NoError(t, client.ConfirmAttachment(ctx, remoteId, ref))

	msg, err := client.SendMessage(ctx, api.SendMessageRequest{
		Channel:       "general",
		AttachmentIds: []string{remoteId},
		Correlation:   "corr-1",
	})
	require.NoError(t, err)

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, remoteId, msg.Attachments[0].Id)
	assert.Equal(t, "photo.png", msg.Attachments[0].Name)
	assert.Equal(t, ref, msg.Attachments[0].StorageRef)

	// The preview URL on the record must resolve to the uploaded bytes.
	req, err := http.NewRequest("GET", client.BaseURL+msg.Attachments[0].PreviewUrl, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: client.AccessToken})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), payload)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestListMessagesPagination(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()
	target := domain.TargetContext{Channel: "general"}

	var lastId domain.MessageId
	for i := 0; i < 5; i++ {
		msg, err := client.SendMessage(ctx, api.SendMessageRequest{
			Channel:     "general",
			Text:        "message",
			Correlation: "corr",
		})
		require.NoError(t, err)
		lastId = msg.Id
		time.Sleep(2 * time.Millisecond) // distinct creation times
	}

	page, err := client.ListMessages(ctx, target, "", 3)
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	assert.True(t, page.HasMore)
	assert.Equal(t, lastId, page.Messages[0].Id, "newest first")

	older, err := client.ListMessages(ctx, target, page.Cursor, 3)
	require.NoError(t, err)
	require.Len(t, older.Messages, 2)
	assert.False(t, older.HasMore)

	// No overlap between pages.
	seen := make(map[domain.MessageId]bool)
	for _, m := range append(page.Messages, older.Messages...) {
		assert.False(t, seen[m.Id])
		seen[m.Id] = true
	}
}

func TestThreadsAreSeparateTargets(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()

	_, err := client.SendMessage(ctx, api.SendMessageRequest{
		Channel: "general", Text: "top level", Correlation: "c1",
	})
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, api.SendMessageRequest{
		Channel: "general", ParentMessage: "m1", Text: "in thread", Correlation: "c2",
	})
	require.NoError(t, err)

	top, err := client.ListMessages(ctx, domain.TargetContext{Channel: "general"}, "", 0)
	require.NoError(t, err)
	thread, err := client.ListMessages(ctx, domain.TargetContext{Channel: "general", ParentMessage: "m1"}, "", 0)
	require.NoError(t, err)

	require.Len(t, top.Messages, 1)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "top level", top.Messages[0].Text)
	assert.Equal(t, "in thread", thread.Messages[0].Text)
}

func TestSubscribeDeliversLiveRecords(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()
	target := domain.TargetContext{Channel: "general"}

	sub, err := client.Subscribe(ctx, target)
	require.NoError(t, err)
	defer sub.Close()

	sent, err := client.SendMessage(ctx, api.SendMessageRequest{
		Channel: "general", Text: "live one", Correlation: "corr-live",
	})
	require.NoError(t, err)

	select {
	case record := <-sub.Records():
		assert.Equal(t, sent.Id, record.Id)
		assert.Equal(t, "corr-live", record.Correlation)
	case <-time.After(2 * time.Second):
		t.Fatal("no live record arrived")
	}
}

func TestSubscribeIsScopedToTarget(t *testing.T) {
	_, client := newTestStore(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, domain.TargetContext{Channel: "general"})
	require.NoError(t, err)
	defer sub.Close()

	_, err = client.SendMessage(ctx, api.SendMessageRequest{
		Channel: "random", Text: "elsewhere", Correlation: "c1",
	})
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, api.SendMessageRequest{
		Channel: "general", Text: "here", Correlation: "c2",
	})
	require.NoError(t, err)

	select {
	case record := <-sub.Records():
		assert.Equal(t, "here", record.Text, "records from other targets must not leak in")
	case <-time.After(2 * time.Second):
		t.Fatal("no live record arrived")
	}
}

func TestFailureInjection(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	store.FailSends(true)
	_, err := client.SendMessage(ctx, api.SendMessageRequest{
		Channel: "general", Text: "doomed", Correlation: "c1",
	})
	assert.Error(t, err)
	store.FailSends(false)

	store.FailUploads(true)
	uploadUrl, err := client.RequestUploadTarget(ctx)
	require.NoError(t, err)
	_, err = client.UploadBytes(ctx, uploadUrl, "text/plain", []byte("x"))
	assert.Error(t, err)
	store.FailUploads(false)
}
