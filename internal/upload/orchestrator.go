// Package upload drives the two-phase attachment upload protocol:
// register a placeholder, push the bytes to a one-time target, confirm
// the storage reference. Attachments in a batch upload independently and
// concurrently; one failing never aborts its siblings.
package upload

import (
	"context"
	"log/slog"
	"sync"

	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

// Store is the slice of the store contract the orchestrator needs.
type Store interface {
	RegisterAttachment(ctx context.Context, req api.RegisterAttachmentRequest) (domain.RemoteId, error)
	RequestUploadTarget(ctx context.Context) (string, error)
	UploadBytes(ctx context.Context, uploadUrl, contentType string, payload []byte) (domain.StorageRef, error)
	ConfirmAttachment(ctx context.Context, id domain.RemoteId, ref domain.StorageRef) error
}

// DraftTracker receives per-attachment state transitions. Implementations
// must treat unknown local ids as no-ops: the user may have removed the
// attachment while its upload was in flight.
type DraftTracker interface {
	MarkRegistered(id domain.LocalId, remoteId domain.RemoteId)
	MarkStored(id domain.LocalId, ref domain.StorageRef)
}

// Orchestrator uploads attachment batches against the store.
type Orchestrator struct {
	store  Store
	drafts DraftTracker
	notify domain.Notifier
	logger *slog.Logger
}

func New(store Store, drafts DraftTracker, notify domain.Notifier, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:  store,
		drafts: drafts,
		notify: notify,
		logger: log.With(slog.String("component", "upload")),
	}
}

// Batch tracks one in-flight upload batch.
type Batch struct {
	done chan struct{}

	mu     sync.Mutex
	failed []domain.LocalId
}

// Done is closed once every attachment in the batch reached a terminal
// state (stored or failed).
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Failed returns the local ids whose upload failed, in no particular order.
func (b *Batch) Failed() []domain.LocalId {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.LocalId, len(b.failed))
	copy(out, b.failed)
	return out
}

func (b *Batch) recordFailure(id domain.LocalId) {
	b.mu.Lock()
	b.failed = append(b.failed, id)
	b.mu.Unlock()
}

// UploadBatch starts the register/transfer/confirm pipeline for every
// draft concurrently and returns immediately. Stage order is strict per
// attachment; across attachments stages interleave freely. If any
// attachment fails, a single aggregate warning is surfaced once the
// batch settles; failed attachments keep blocking submission until the
// user removes them. There is no automatic retry.
func (o *Orchestrator) UploadBatch(ctx context.Context, correlation domain.CorrelationToken, drafts []domain.AttachmentDraft) *Batch {
	batch := &Batch{done: make(chan struct{})}

	var wg sync.WaitGroup
	for _, d := range drafts {
		wg.Add(1)
		go func(d domain.AttachmentDraft) {
			defer wg.Done()
			if err := o.uploadOne(ctx, correlation, d); err != nil {
				o.logger.Warn("attachment upload failed",
					slog.String("local_id", d.LocalId),
					slog.String("name", d.Source.SuggestedName),
					slog.Any("error", err))
				batch.recordFailure(d.LocalId)
			}
		}(d)
	}

	go func() {
		wg.Wait()
		if len(batch.Failed()) > 0 && o.notify != nil {
			o.notify.Warning("Some files failed to upload")
		}
		close(batch.done)
	}()

	return batch
}

func (o *Orchestrator) uploadOne(ctx context.Context, correlation domain.CorrelationToken, d domain.AttachmentDraft) error {
	remoteId, err := o.store.RegisterAttachment(ctx, api.RegisterAttachmentRequest{
		Name:        d.Source.SuggestedName,
		ContentType: d.Source.ContentType,
		PreviewUrl:  d.PreviewUrl,
		Correlation: correlation,
	})
	if err != nil {
		return err
	}
	o.drafts.MarkRegistered(d.LocalId, remoteId)

	uploadUrl, err := o.store.RequestUploadTarget(ctx)
	if err != nil {
		return err
	}

	ref, err := o.store.UploadBytes(ctx, uploadUrl, d.Source.ContentType, d.Source.Bytes)
	if err != nil {
		return err
	}

	if err := o.store.ConfirmAttachment(ctx, remoteId, ref); err != nil {
		return err
	}

	// If the draft was removed while the upload ran this is a no-op.
	o.drafts.MarkStored(d.LocalId, ref)
	return nil
}
