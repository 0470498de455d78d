package draft

import (
	"sync"

	"github.com/google/uuid"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

// PreviewRegistry hands out revocable local references to attachment
// payloads, the stand-in for browser object URLs: a preview is usable for
// rendering until released, and releasing twice is harmless.
type PreviewRegistry struct {
	mu    sync.Mutex
	blobs map[string]domain.BinarySource
}

func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{blobs: make(map[string]domain.BinarySource)}
}

// Create registers the payload and returns its preview URL together with
// a release func. The release func is idempotent.
func (r *PreviewRegistry) Create(src domain.BinarySource) (string, func()) {
	url := "blob:" + uuid.New().String()

	r.mu.Lock()
	r.blobs[url] = src
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.blobs, url)
			r.mu.Unlock()
		})
	}
	return url, release
}

// Resolve returns the payload behind a preview URL, if still live.
func (r *PreviewRegistry) Resolve(url string) (domain.BinarySource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.blobs[url]
	return src, ok
}

// Len reports the number of live previews.
func (r *PreviewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}
