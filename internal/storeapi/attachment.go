package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openteam-dev/openteam-go/shared/api"
	"github.com/openteam-dev/openteam-go/shared/domain"
)

// RegisterAttachment allocates a placeholder attachment record for a
// not-yet-sent message identified by the correlation token.
func (c *Client) RegisterAttachment(ctx context.Context, req api.RegisterAttachmentRequest) (domain.RemoteId, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode register request: %w", err)
	}

	resp, err := c.do(ctx, "POST", "/v1/files", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", readError("register attachment", resp)
	}

	var out api.RegisterAttachmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse register response: %w", err)
	}
	return out.Id, nil
}

// RequestUploadTarget asks the store for a one-time upload URL.
func (c *Client) RequestUploadTarget(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, "POST", "/v1/files/upload-url", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readError("request upload target", resp)
	}

	var out api.UploadTargetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse upload target response: %w", err)
	}
	return out.UploadUrl, nil
}

// UploadBytes pushes the raw payload to a one-time upload URL with the
// declared content type. Any 2xx is success; the response body carries
// the storage reference.
func (c *Client) UploadBytes(ctx context.Context, uploadUrl, contentType string, payload []byte) (domain.StorageRef, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", uploadUrl, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload target unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", readError("upload file", resp)
	}

	var out api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	return out.StorageRef, nil
}

// ConfirmAttachment attaches the storage reference to the placeholder
// record, completing the two-phase upload.
func (c *Client) ConfirmAttachment(ctx context.Context, id domain.RemoteId, ref domain.StorageRef) error {
	payload, err := json.Marshal(api.ConfirmAttachmentRequest{StorageRef: ref})
	if err != nil {
		return fmt.Errorf("failed to encode confirm request: %w", err)
	}

	resp, err := c.do(ctx, "PATCH", "/v1/files/"+id, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readError("confirm attachment", resp)
	}
	return nil
}

// RemoveAttachment deletes a placeholder record the user discarded.
func (c *Client) RemoveAttachment(ctx context.Context, id domain.RemoteId) error {
	resp, err := c.do(ctx, "DELETE", "/v1/files/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return readError("remove attachment", resp)
	}
	return nil
}
