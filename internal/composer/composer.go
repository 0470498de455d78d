// Package composer is the top-level coordinator of message composition:
// it owns the draft text and attachment state for one target context,
// enforces submit preconditions, and sequences the optimistic splice and
// the authoritative send.
package composer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/openteam-dev/openteam-go/internal/draft"
	"github.com/openteam-dev/openteam-go/internal/projector"
	"github.com/openteam-dev/openteam-go/internal/recorder"
	"github.com/openteam-dev/openteam-go/internal/upload"
	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

// ErrNotSubmittable is returned when Submit is called while the
// precondition does not hold. Reachable only through disabled
// affordances, so it is never surfaced to the user.
var ErrNotSubmittable = errors.New("draft is not submittable")

// ErrTooManyAttachments rejects sources beyond the per-draft cap.
var ErrTooManyAttachments = errors.New("attachment limit reached")

// Store is the slice of the store contract the composer needs directly.
// Attachment uploads go through the upload orchestrator instead.
type Store interface {
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*domain.Message, error)
	RemoveAttachment(ctx context.Context, id domain.RemoteId) error
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// Uploader starts upload batches for freshly attached drafts.
type Uploader interface {
	UploadBatch(ctx context.Context, correlation domain.CorrelationToken, drafts []domain.AttachmentDraft) *upload.Batch
}

// Composer owns the DraftMessage and the attachment draft store for its
// lifetime. All entry points are safe for concurrent use; network calls
// never run under the lock, so typing and removal stay responsive while
// uploads and sends are in flight.
type Composer struct {
	store     Store
	uploader  Uploader
	projector *projector.Projector
	recorder  *recorder.Recorder
	notify    domain.Notifier
	logger    *slog.Logger

	mu          sync.Mutex
	target      domain.TargetContext
	text        string
	correlation domain.CorrelationToken
	drafts      *draft.Store
	editing     domain.MessageId
	user        *domain.User

	maxAttachments int
	newDrafts      func() *draft.Store
}

// Options configures composer construction.
type Options struct {
	Store        Store
	Uploader     Uploader
	Projector    *projector.Projector
	Notifier     domain.Notifier
	Logger       *slog.Logger
	Target       domain.TargetContext
	// MaxAttachments caps the drafts pending on one message; zero means
	// no cap.
	MaxAttachments int
	// NewDraftStore builds the per-context attachment store; switching
	// targets discards the old one and starts blank.
	NewDraftStore func() *draft.Store
}

func New(opts Options) *Composer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	newDrafts := opts.NewDraftStore
	if newDrafts == nil {
		newDrafts = func() *draft.Store { return draft.NewStore(nil, 0) }
	}
	return &Composer{
		store:          opts.Store,
		uploader:       opts.Uploader,
		projector:      opts.Projector,
		notify:         opts.Notifier,
		logger:         log.With(slog.String("component", "composer")),
		target:         opts.Target,
		correlation:    uuid.New().String(),
		maxAttachments: opts.MaxAttachments,
		drafts:         newDrafts(),
		newDrafts:      newDrafts,
	}
}

// AttachRecorder wires an audio capture machine whose finished recordings
// enter the attachment pipeline like dropped files.
func (c *Composer) AttachRecorder(device recorder.Device, preferredTypes []string) *recorder.Recorder {
	rec := recorder.New(device, preferredTypes, func(src domain.BinarySource) {
		if err := c.Attach(context.Background(), src); err != nil {
			c.logger.Warn("failed to attach recording", slog.Any("error", err))
		}
	}, c.notify, c.logger)

	c.mu.Lock()
	c.recorder = rec
	c.mu.Unlock()
	return rec
}

// SetText replaces the draft body.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

// Text returns the current draft body.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Target returns the current composition context.
func (c *Composer) Target() domain.TargetContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Attachments returns the pending drafts in insertion order.
func (c *Composer) Attachments() []domain.AttachmentDraft {
	c.mu.Lock()
	drafts := c.drafts
	c.mu.Unlock()
	return drafts.List()
}

// Attach validates the sources, adds them to the draft store and starts
// their uploads. The drafts are visible (with previews) before any
// network call; sources failing validation or exceeding the attachment
// cap are skipped with a warning.
func (c *Composer) Attach(ctx context.Context, sources ...domain.BinarySource) error {
	c.mu.Lock()
	drafts := c.drafts
	correlation := c.correlation
	c.mu.Unlock()

	var added []domain.AttachmentDraft
	var rejected error
	for _, src := range sources {
		if c.maxAttachments > 0 && drafts.Len() >= c.maxAttachments {
			c.logger.Warn("rejected attachment",
				slog.String("name", src.SuggestedName), slog.Any("error", ErrTooManyAttachments))
			rejected = ErrTooManyAttachments
			continue
		}
		d, err := drafts.AddPending(src)
		if err != nil {
			c.logger.Warn("rejected attachment",
				slog.String("name", src.SuggestedName), slog.Any("error", err))
			rejected = err
			continue
		}
		added = append(added, d)
	}

	if rejected != nil && c.notify != nil {
		c.notify.Warning("Some files could not be attached")
	}
	if len(added) > 0 {
		c.uploader.UploadBatch(ctx, correlation, added)
	}
	return rejected
}

// MarkRegistered routes a placeholder id from the upload pipeline into
// the current draft store. Completions for a context that was switched
// away from land in a discarded store and change nothing.
func (c *Composer) MarkRegistered(id domain.LocalId, remoteId domain.RemoteId) {
	c.mu.Lock()
	drafts := c.drafts
	c.mu.Unlock()
	drafts.MarkRegistered(id, remoteId)
}

// MarkStored routes a storage reference into the current draft store.
func (c *Composer) MarkStored(id domain.LocalId, ref domain.StorageRef) {
	c.mu.Lock()
	drafts := c.drafts
	c.mu.Unlock()
	drafts.MarkStored(id, ref)
}

// RemoveAttachment drops a pending draft. The preview reference is
// released immediately; if the store already holds a placeholder record
// it is deleted in the background. An upload still in flight for this id
// completes as a no-op.
func (c *Composer) RemoveAttachment(ctx context.Context, id domain.LocalId) {
	c.mu.Lock()
	drafts := c.drafts
	c.mu.Unlock()

	remoteId, ok := drafts.Remove(id)
	if !ok {
		return
	}
	if remoteId == "" {
		return
	}
	go func() {
		if err := c.store.RemoveAttachment(ctx, remoteId); err != nil {
			c.logger.Warn("failed to remove attachment placeholder",
				slog.String("remote_id", remoteId), slog.Any("error", err))
		}
	}()
}

// CanSubmit reports the submit precondition: trimmed text or at least one
// attachment, and no attachment missing its storage reference.
func (c *Composer) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitLocked()
}

func (c *Composer) canSubmitLocked() bool {
	if strings.TrimSpace(c.text) == "" && c.drafts.Len() == 0 {
		return false
	}
	return c.drafts.AllStored()
}

// Submit sends the current draft. The composer state is cleared
// synchronously so the input is immediately ready for the next message;
// the optimistic record is spliced before the authoritative send is
// issued. If the precondition does not hold Submit is a silent no-op
// (ErrNotSubmittable, nothing surfaced). On send failure the optimistic
// record is rolled back and the user notified; the draft is not restored.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	if !c.canSubmitLocked() {
		c.mu.Unlock()
		return ErrNotSubmittable
	}

	text := strings.TrimSpace(c.text)
	target := c.target
	correlation := c.correlation
	batch := c.drafts.Drain()
	c.text = ""
	user := c.user
	c.mu.Unlock()

	if user == nil {
		u, err := c.store.CurrentUser(ctx)
		if err != nil {
			c.logger.Error("failed to resolve current user", slog.Any("error", err))
			batch.Release()
			if c.notify != nil {
				c.notify.Error("Failed to send message")
			}
			return err
		}
		c.mu.Lock()
		c.user = u
		c.mu.Unlock()
		user = u
	}

	drafts := batch.Drafts()
	records := make([]domain.AttachmentRecord, 0, len(drafts))
	attachmentIds := make([]string, 0, len(drafts))
	for _, d := range drafts {
		records = append(records, d.Record())
		attachmentIds = append(attachmentIds, d.RemoteId)
	}

	c.projector.Splice(*user, target, correlation, text, records)

	_, err := c.store.SendMessage(ctx, api.SendMessageRequest{
		Channel:       target.Channel,
		ParentMessage: target.ParentMessage,
		Text:          text,
		AttachmentIds: attachmentIds,
		Correlation:   correlation,
	})

	batch.Release()

	if err != nil {
		c.logger.Error("send failed", slog.String("channel", target.Channel), slog.Any("error", err))
		c.projector.Rollback(target, correlation)
		if c.notify != nil {
			c.notify.Error("Failed to send message")
		}
		return err
	}

	// A fresh correlation token only after a successful send: a failed
	// send may be retried by the user under the same token without
	// double-registering placeholders.
	c.mu.Lock()
	c.correlation = uuid.New().String()
	c.mu.Unlock()
	return nil
}

// StartRecording arms the attached audio capture machine.
func (c *Composer) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	rec := c.recorder
	c.mu.Unlock()
	if rec == nil {
		return errors.New("no recorder attached")
	}
	return rec.Start(ctx)
}

// StopRecording finalizes (or cancels) the active capture session.
func (c *Composer) StopRecording() {
	c.mu.Lock()
	rec := c.recorder
	c.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

// Editing returns the message currently being edited, if any.
func (c *Composer) Editing() domain.MessageId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

// EditLastMessage enters edit mode for the user's last message. Mirrors
// the arrow-up affordance: only available while the draft text is empty.
func (c *Composer) EditLastMessage(lastMessageId domain.MessageId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lastMessageId == "" || c.text != "" {
		return false
	}
	c.editing = lastMessageId
	return true
}

// ClearEditing leaves edit mode.
func (c *Composer) ClearEditing() {
	c.mu.Lock()
	c.editing = ""
	c.mu.Unlock()
}

// SwitchTarget moves composition to a different channel or thread. The
// composer always resets to a blank draft: text, attachments and edit
// mode are discarded, and a fresh correlation token isolates the new
// context from stale upload completions, which no-op against the
// discarded draft store.
func (c *Composer) SwitchTarget(target domain.TargetContext) {
	c.mu.Lock()
	if c.target == target {
		c.mu.Unlock()
		return
	}
	old := c.drafts
	c.target = target
	c.text = ""
	c.editing = ""
	c.correlation = uuid.New().String()
	c.drafts = c.newDrafts()
	c.mu.Unlock()

	old.Clear()
}

// Close tears the composer down: the recorder is stopped with output
// discarded and every preview reference is released.
func (c *Composer) Close() {
	c.mu.Lock()
	rec := c.recorder
	drafts := c.drafts
	c.mu.Unlock()

	if rec != nil {
		rec.Close()
	}
	drafts.Clear()
}
