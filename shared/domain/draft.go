package domain

import "strings"

// BinarySource is one file-like payload entering the attachment pipeline.
// Dropped files and finished audio recordings both produce one; from here
// on the pipeline does not care where the bytes came from.
type BinarySource struct {
	Bytes         []byte
	ContentType   string
	SuggestedName string
}

// Size returns the payload size in bytes.
func (b BinarySource) Size() int64 {
	return int64(len(b.Bytes))
}

// AttachmentDraft is one attachment en route to becoming part of a sent
// message. It is created synchronously at drop/recording-stop time and
// mutated in place as the upload protocol assigns remote identities.
type AttachmentDraft struct {
	LocalId     LocalId
	Source      BinarySource
	PreviewUrl  string
	// PreviewWidth/PreviewHeight are set for decodable images, 0 otherwise.
	PreviewWidth  int
	PreviewHeight int

	// RemoteId is assigned once the store registered a placeholder record;
	// it may arrive before the bytes finished uploading.
	RemoteId RemoteId

	// StorageRef is assigned only after the bytes are durably stored.
	// Empty means upload in flight, not started, or failed.
	StorageRef StorageRef
}

// Stored reports whether the attachment is eligible for submission.
func (d *AttachmentDraft) Stored() bool {
	return d.StorageRef != ""
}

// Record converts the draft into the denormalized form carried on an
// optimistic message.
func (d *AttachmentDraft) Record() AttachmentRecord {
	return AttachmentRecord{
		Id:          d.RemoteId,
		Name:        d.Source.SuggestedName,
		ContentType: d.Source.ContentType,
		SizeBytes:   d.Source.Size(),
		PreviewUrl:  d.PreviewUrl,
		StorageRef:  d.StorageRef,
	}
}

// DraftMessage is the in-progress composer state for one target context.
type DraftMessage struct {
	Text        string
	Attachments []*AttachmentDraft
	Target      TargetContext
}

// Submittable reports whether the draft may be sent: some content must
// exist and every attachment must have reached durable storage.
func (d *DraftMessage) Submittable() bool {
	if strings.TrimSpace(d.Text) == "" && len(d.Attachments) == 0 {
		return false
	}
	for _, a := range d.Attachments {
		if !a.Stored() {
			return false
		}
	}
	return true
}
