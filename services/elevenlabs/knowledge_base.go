package elevenlabs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// KnowledgeBaseDocument represents an uploaded knowledge-base document
type KnowledgeBaseDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UploadDocument uploads a file to the knowledge base and returns its id.
// Uploads bypass the JSON request path: the endpoint takes multipart form
// data and uses the longer upload timeout.
func (c *Client) UploadDocument(ctx context.Context, name string, content []byte, mimeType string) (*KnowledgeBaseDocument, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := writer.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("failed to write name field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := c.baseURL + "/v1/convai/knowledge-base/file"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == 429 {
			c.rateLimiter.SetBackoffMultiplier(2.0)
		}
		apiErr := &APIError{StatusCode: resp.StatusCode}
		apiErr.Detail.Message = string(respBody)
		return nil, apiErr
	}

	var doc KnowledgeBaseDocument
	if err := decodeJSON(respBody, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument deletes a knowledge-base document
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	endpoint := fmt.Sprintf("/v1/convai/knowledge-base/%s", documentID)
	return c.doRequest(ctx, "DELETE", endpoint, nil, nil)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
