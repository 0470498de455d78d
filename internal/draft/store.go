// Package draft holds the composer's pending attachments: an ordered,
// mutex-guarded collection keyed by client-generated local ids. Upload
// completions arriving after an attachment was removed are no-ops here,
// never errors.
package draft

import (
	"sync"

	"github.com/google/uuid"
	"github.com/openteam-dev/openteam-go/shared/domain"
	"github.com/openteam-dev/openteam-go/shared/validation"
)

type entry struct {
	draft   *domain.AttachmentDraft
	release func()
}

// Store is the in-memory collection of attachment drafts for one open
// composer. Insertion order is preserved and significant: it determines
// the display order of the sent message's attachments, regardless of the
// order uploads complete in.
type Store struct {
	mu           sync.Mutex
	order        []domain.LocalId
	entries      map[domain.LocalId]*entry
	previews     *PreviewRegistry
	maxFileBytes int64
}

func NewStore(previews *PreviewRegistry, maxFileBytes int64) *Store {
	if previews == nil {
		previews = NewPreviewRegistry()
	}
	return &Store{
		entries:      make(map[domain.LocalId]*entry),
		previews:     previews,
		maxFileBytes: maxFileBytes,
	}
}

// AddPending validates the source, allocates a fresh local identity and a
// preview reference, and appends the draft to the collection. Returns the
// draft synchronously, before any network activity.
func (s *Store) AddPending(src domain.BinarySource) (domain.AttachmentDraft, error) {
	normalized, err := validation.NormalizeSource(src, s.maxFileBytes)
	if err != nil {
		return domain.AttachmentDraft{}, err
	}

	previewUrl, release := s.previews.Create(normalized)
	width, height := validation.ImageDimensions(normalized)

	d := &domain.AttachmentDraft{
		LocalId:       uuid.New().String(),
		Source:        normalized,
		PreviewUrl:    previewUrl,
		PreviewWidth:  width,
		PreviewHeight: height,
	}

	s.mu.Lock()
	s.order = append(s.order, d.LocalId)
	s.entries[d.LocalId] = &entry{draft: d, release: release}
	s.mu.Unlock()

	return *d, nil
}

// MarkRegistered records the placeholder id assigned by the store.
// Idempotent; unknown local ids (attachment already removed) are no-ops.
func (s *Store) MarkRegistered(id domain.LocalId, remoteId domain.RemoteId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.draft.RemoteId = remoteId
	}
}

// MarkStored records the storage reference, transitioning the attachment
// to submittable. Idempotent; unknown local ids are no-ops.
func (s *Store) MarkStored(id domain.LocalId, ref domain.StorageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.draft.StorageRef = ref
	}
}

// Remove deletes the draft and releases its preview reference. It returns
// the remote placeholder id (if one was assigned) so the caller can clean
// up store-side, and false if the id was not present. Safe to call while
// an upload for the id is still in flight.
func (s *Store) Remove(id domain.LocalId) (domain.RemoteId, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		for i, lid := range s.order {
			if lid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		return "", false
	}
	e.release()
	return e.draft.RemoteId, true
}

// Contains reports whether the local id is still part of the collection.
func (s *Store) Contains(id domain.LocalId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// List returns copies of the drafts in insertion order.
func (s *Store) List() []domain.AttachmentDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AttachmentDraft, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entries[id].draft)
	}
	return out
}

// Len returns the number of pending drafts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// AllStored reports whether every pending draft has a storage reference.
// True for an empty collection.
func (s *Store) AllStored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if !s.entries[id].draft.Stored() {
			return false
		}
	}
	return true
}

// Drain removes every draft from the collection and returns them as a
// consumed batch. Preview references stay live until the batch is
// released: the optimistic message keeps rendering them while the
// authoritative send is in flight.
func (s *Store) Drain() *Batch {
	s.mu.Lock()
	drafts := make([]domain.AttachmentDraft, 0, len(s.order))
	releases := make([]func(), 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		drafts = append(drafts, *e.draft)
		releases = append(releases, e.release)
	}
	s.order = nil
	s.entries = make(map[domain.LocalId]*entry)
	s.mu.Unlock()

	return &Batch{drafts: drafts, releases: releases}
}

// Clear removes and releases everything, the teardown path.
func (s *Store) Clear() {
	s.Drain().Release()
}

// Batch is a set of drafts consumed from the store at submit time.
type Batch struct {
	drafts   []domain.AttachmentDraft
	releases []func()
	once     sync.Once
}

// Drafts returns the consumed drafts in their original insertion order.
func (b *Batch) Drafts() []domain.AttachmentDraft {
	return b.drafts
}

// Release revokes the preview references of the batch. Idempotent.
func (b *Batch) Release() {
	b.once.Do(func() {
		for _, release := range b.releases {
			release()
		}
	})
}
