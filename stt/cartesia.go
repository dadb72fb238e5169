package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Client uploads audio to the Cartesia STT API and returns recognized text.
// One blocking request per call; no retries.
type Client struct {
	apiURL   string
	apiKey   string
	version  string
	model    string
	language string
	http     *http.Client
}

// NewClient creates a new Cartesia STT client
func NewClient(apiURL, apiKey, version, model, language string, timeout time.Duration) *Client {
	return &Client{
		apiURL:   apiURL,
		apiKey:   apiKey,
		version:  version,
		model:    model,
		language: language,
		http:     &http.Client{Timeout: timeout},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Transcribe sends the audio bytes as a multipart upload and extracts the
// "text" field of the provider's JSON response. A missing field yields empty
// text, not an error.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := mw.WriteField("language", c.language); err != nil {
		return "", fmt.Errorf("failed to write language field: %w", err)
	}

	// CreateFormFile hardcodes application/octet-stream, carry the caller's
	// content type through instead
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", c.version)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result transcriptionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Text, nil
}
