package lens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// StorageClient uploads content to the protocol's content-addressed
// storage service and returns the resulting URI.
type StorageClient struct {
	BaseURL string

	HTTPClient *http.Client
}

// NewStorageClient creates a storage client for the given endpoint.
func NewStorageClient(baseURL string) *StorageClient {
	return &StorageClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadJSON uploads an arbitrary JSON document (post metadata) and
// returns its content URI.
func (s *StorageClient) UploadJSON(ctx context.Context, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return s.UploadFile(ctx, "metadata.json", "application/json", bytes.NewReader(data))
}

// UploadFile uploads a file-like payload and returns its content URI.
func (s *StorageClient) UploadFile(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("storage upload failed: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode storage response: %w", err)
	}

	if out.URI == "" {
		return "", fmt.Errorf("storage upload returned no uri")
	}

	return out.URI, nil
}
