package farmapi

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// UploadRequest describes one queued recording to submit.
type UploadRequest struct {
	ID             string
	Filename       string
	Payload        []byte
	MetadataJSON   string
	IdempotencyKey string
}

// Upload submits a recording as a multipart POST. A nil return means the
// server acknowledged receipt; only then may the caller drop the local copy.
func (c *Client) Upload(ctx context.Context, req UploadRequest) error {
	callCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	r := c.http.R().
		SetContext(callCtx).
		SetFileReader("recording", req.Filename, bytes.NewReader(req.Payload)).
		SetMultipartFormData(map[string]string{
			"recording_id": req.ID,
			"metadata":     req.MetadataJSON,
		}).
		SetHeader("Idempotency-Key", req.IdempotencyKey)

	resp, err := r.Post("/v1/recordings")
	if err != nil {
		return fmt.Errorf("upload %s: %w", req.Filename, err)
	}
	if resp.IsError() {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(resp.String()),
		}
	}
	return nil
}
