// Package projector maintains the locally cached, newest-first message
// lists and the optimistic overlay on top of them. A submitted draft is
// spliced in as a locally-synthesized record immediately; the eventual
// authoritative record supersedes it by correlation token, exactly once.
package projector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openteam-dev/openteam-go/internal/markdown"
	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

// Projector owns optimistic records until reconciliation; reconciled
// records belong to the cached lists like any other store record.
type Projector struct {
	renderer *markdown.TextProcessor
	logger   *slog.Logger

	mu      sync.Mutex
	lists   map[string]*list
	overlay map[domain.CorrelationToken]domain.MessageId
}

// list is one pagination-aware, newest-first cached message sequence.
type list struct {
	messages []domain.Message
	cursor   string
	hasMore  bool
}

func New(renderer *markdown.TextProcessor, log *slog.Logger) *Projector {
	if renderer == nil {
		renderer = markdown.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Projector{
		renderer: renderer,
		logger:   log.With(slog.String("component", "projector")),
		lists:    make(map[string]*list),
		overlay:  make(map[domain.CorrelationToken]domain.MessageId),
	}
}

func (p *Projector) list(target domain.TargetContext) *list {
	key := target.Key()
	l, ok := p.lists[key]
	if !ok {
		l = &list{}
		p.lists[key] = l
	}
	return l
}

// insert places the record at the position dictated by strict
// reverse-chronological ordering on creation time, never by arrival
// order.
func (l *list) insert(m domain.Message) {
	pos := len(l.messages)
	for i, existing := range l.messages {
		if m.CreatedAt.After(existing.CreatedAt) {
			pos = i
			break
		}
	}
	l.messages = append(l.messages, domain.Message{})
	copy(l.messages[pos+1:], l.messages[pos:])
	l.messages[pos] = m
}

func (l *list) removeById(id domain.MessageId) bool {
	for i, m := range l.messages {
		if m.Id == id {
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			return true
		}
	}
	return false
}

func (l *list) indexById(id domain.MessageId) int {
	for i, m := range l.messages {
		if m.Id == id {
			return i
		}
	}
	return -1
}

// Splice synthesizes the optimistic record for a submitted draft and
// inserts it into the target's cached list, before any network round
// trip. The record denormalizes the cached sender identity and the
// attachment info known at submit time.
func (p *Projector) Splice(user domain.User, target domain.TargetContext, correlation domain.CorrelationToken, text string, attachments []domain.AttachmentRecord) domain.Message {
	html, _ := p.renderer.ProcessMessage(text)

	record := domain.Message{
		Id:            uuid.New().String(),
		Channel:       target.Channel,
		ParentMessage: target.ParentMessage,
		Author:        user,
		Text:          text,
		Html:          html,
		Attachments:   attachments,
		CreatedAt:     time.Now(),
		Correlation:   correlation,
		Optimistic:    domain.StatusCreated,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.list(target).insert(record)
	p.overlay[correlation] = record.Id
	return record
}

// Apply folds one authoritative record into the cache. If an optimistic
// record with the same correlation token is present it is superseded:
// removed exactly once, replaced by the real record at its sorted
// position. Records already known by id are updated in place (edits).
func (p *Projector) Apply(record domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.list(record.Target())

	if record.Correlation != "" {
		if optimisticId, ok := p.overlay[record.Correlation]; ok {
			l.removeById(optimisticId)
			delete(p.overlay, record.Correlation)
		}
	}

	if i := l.indexById(record.Id); i >= 0 {
		l.messages[i] = record
		return
	}
	l.insert(record)
}

// Rollback removes the optimistic record for a failed send. The draft is
// not restored; the caller surfaces the failure to the user.
func (p *Projector) Rollback(target domain.TargetContext, correlation domain.CorrelationToken) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	optimisticId, ok := p.overlay[correlation]
	if !ok {
		return false
	}
	delete(p.overlay, correlation)
	return p.list(target).removeById(optimisticId)
}

// Pending reports whether an optimistic record for the token is still
// awaiting its authoritative counterpart.
func (p *Projector) Pending(correlation domain.CorrelationToken) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.overlay[correlation]
	return ok
}

// SeedPage resets the target's cache to the given first page. Records
// whose correlation token is overlaid supersede their optimistic entries
// just like live updates do.
func (p *Projector) SeedPage(target domain.TargetContext, page api.MessagePage) {
	p.mu.Lock()
	l := p.list(target)
	l.messages = nil
	l.cursor = page.Cursor
	l.hasMore = page.HasMore
	p.mu.Unlock()

	for _, m := range page.Messages {
		p.Apply(m)
	}
}

// AppendPage extends the target's cache with an older page.
func (p *Projector) AppendPage(target domain.TargetContext, page api.MessagePage) {
	p.mu.Lock()
	l := p.list(target)
	l.cursor = page.Cursor
	l.hasMore = page.HasMore
	p.mu.Unlock()

	for _, m := range page.Messages {
		p.Apply(m)
	}
}

// Snapshot returns a newest-first copy of the target's cached list.
func (p *Projector) Snapshot(target domain.TargetContext) []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.list(target)
	out := make([]domain.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasMore reports whether older pages remain for the target.
func (p *Projector) HasMore(target domain.TargetContext) (cursor string, hasMore bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.list(target)
	return l.cursor, l.hasMore
}
