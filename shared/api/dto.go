// Package api holds the wire DTOs of the store contract, shared by the
// client in internal/storeapi and the fake store in internal/storetest.
package api

import "github.com/openteam-dev/openteam-go/shared/domain"

// Request DTOs

// RegisterAttachmentRequest asks the store to allocate a placeholder
// attachment record before the bytes are uploaded.
type RegisterAttachmentRequest struct {
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"content_type"`
	PreviewUrl  string `json:"preview_url,omitempty"`
	Correlation string `json:"correlation" validate:"required"`
}

// ConfirmAttachmentRequest completes a placeholder with the storage
// reference returned by the byte upload.
type ConfirmAttachmentRequest struct {
	StorageRef string `json:"storage_ref" validate:"required"`
}

type SendMessageRequest struct {
	Channel       string   `json:"channel" validate:"required"`
	ParentMessage string   `json:"parent_message,omitempty"`
	Text          string   `json:"text,omitempty"`
	AttachmentIds []string `json:"attachment_ids,omitempty"`
	Correlation   string   `json:"correlation" validate:"required"`
}

// Response DTOs

type RegisterAttachmentResponse struct {
	Id string `json:"id"`
}

type UploadTargetResponse struct {
	UploadUrl string `json:"upload_url"`
}

// UploadResponse is the body of a successful byte upload to the one-time
// upload URL.
type UploadResponse struct {
	StorageRef string `json:"storage_ref"`
}

type MessageResponse struct {
	domain.Message
}

// MessagePage is one page of a newest-first message listing.
type MessagePage struct {
	Messages []domain.Message `json:"messages"`
	Cursor   string           `json:"cursor,omitempty"`
	HasMore  bool             `json:"has_more"`
}
