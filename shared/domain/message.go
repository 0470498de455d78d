package domain

import "time"

// TargetContext identifies where a message is composed to: a channel,
// optionally narrowed to a thread under a parent message.
type TargetContext struct {
	Channel       ChannelId `json:"channel"`
	ParentMessage MessageId `json:"parent_message,omitempty"`
}

// Key returns a stable map key for the context. Top-level and threaded
// composition in the same channel are distinct targets.
func (t TargetContext) Key() string {
	if t.ParentMessage == "" {
		return t.Channel
	}
	return t.Channel + "/" + t.ParentMessage
}

// OptimisticStatus marks locally-synthesized records. Authoritative
// records from the store carry an empty status.
type OptimisticStatus string

const (
	StatusCreated OptimisticStatus = "created"
	StatusPending OptimisticStatus = "pending"
	StatusFailed  OptimisticStatus = "failed"
)

// AttachmentRecord is the denormalized attachment info carried on a
// message. On optimistic records StorageRef may still be empty and
// PreviewUrl points at the local revocable preview.
type AttachmentRecord struct {
	Id          RemoteId   `json:"id"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	PreviewUrl  string     `json:"preview_url,omitempty"`
	StorageRef  StorageRef `json:"storage_ref,omitempty"`
}

// Message is one message record, either authoritative (from the store)
// or optimistic (synthesized by the projector before the send returns).
type Message struct {
	Id            MessageId          `json:"id"`
	Channel       ChannelId          `json:"channel"`
	ParentMessage MessageId          `json:"parent_message,omitempty"`
	Author        User               `json:"author"`
	Text          string             `json:"text"`
	// Html is the rendered, sanitized body. The store renders it for
	// authoritative records; the projector renders it the same way for
	// optimistic ones so reconciliation does not change the visible body.
	Html          string             `json:"html,omitempty"`
	Attachments   []AttachmentRecord `json:"attachments,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	Correlation   CorrelationToken   `json:"correlation,omitempty"`
	Optimistic    OptimisticStatus   `json:"optimistic_status,omitempty"`
}

// Target returns the context this message belongs to.
func (m *Message) Target() TargetContext {
	return TargetContext{Channel: m.Channel, ParentMessage: m.ParentMessage}
}
