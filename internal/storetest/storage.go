package storetest

import (
	"sort"
	"sync"
	"time"

	"github.com/openteam-dev/openteam-go/shared/domain"
)

// fileRecord is a placeholder attachment record: registered before the
// bytes exist, completed by the confirm step.
type fileRecord struct {
	Id          domain.RemoteId
	Name        string
	ContentType string
	PreviewUrl  string
	Correlation domain.CorrelationToken
	StorageRef  domain.StorageRef
}

// storage is the in-memory state behind the fake store endpoints.
type storage struct {
	mu sync.Mutex

	files        map[domain.RemoteId]*fileRecord
	uploadTokens map[string]bool
	blobs        map[domain.StorageRef][]byte
	blobTypes    map[domain.StorageRef]string
	messages     map[string][]domain.Message // by target key
}

func newStorage() *storage {
	return &storage{
		files:        make(map[domain.RemoteId]*fileRecord),
		uploadTokens: make(map[string]bool),
		blobs:        make(map[domain.StorageRef][]byte),
		blobTypes:    make(map[domain.StorageRef]string),
		messages:     make(map[string][]domain.Message),
	}
}

func (s *storage) putFile(f *fileRecord) {
	s.mu.Lock()
	s.files[f.Id] = f
	s.mu.Unlock()
}

func (s *storage) file(id domain.RemoteId) (*fileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	return f, ok
}

func (s *storage) deleteFile(id domain.RemoteId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return false
	}
	delete(s.files, id)
	return true
}

func (s *storage) issueUploadToken(token string) {
	s.mu.Lock()
	s.uploadTokens[token] = true
	s.mu.Unlock()
}

// consumeUploadToken marks a one-time token used; false when unknown or
// already spent.
func (s *storage) consumeUploadToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.uploadTokens[token] {
		return false
	}
	delete(s.uploadTokens, token)
	return true
}

func (s *storage) putBlob(ref domain.StorageRef, contentType string, payload []byte) {
	s.mu.Lock()
	s.blobs[ref] = payload
	s.blobTypes[ref] = contentType
	s.mu.Unlock()
}

func (s *storage) blob(ref domain.StorageRef) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[ref]
	return b, s.blobTypes[ref], ok
}

func (s *storage) appendMessage(m domain.Message) {
	key := m.Target().Key()
	s.mu.Lock()
	s.messages[key] = append(s.messages[key], m)
	s.mu.Unlock()
}

// page returns a newest-first page of messages for the target, starting
// strictly after the cursor (a creation timestamp).
func (s *storage) page(target domain.TargetContext, cursor time.Time, limit int) (msgs []domain.Message, nextCursor time.Time, hasMore bool) {
	s.mu.Lock()
	all := make([]domain.Message, len(s.messages[target.Key()]))
	copy(all, s.messages[target.Key()])
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if !cursor.IsZero() {
		filtered := all[:0]
		for _, m := range all {
			if m.CreatedAt.Before(cursor) {
				filtered = append(filtered, m)
			}
		}
		all = filtered
	}

	if limit <= 0 {
		limit = 50
	}
	hasMore = len(all) > limit
	if hasMore {
		all = all[:limit]
	}
	if len(all) > 0 {
		nextCursor = all[len(all)-1].CreatedAt
	}
	return all, nextCursor, hasMore
}
