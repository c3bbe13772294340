// Package featureapi talks to the feature extraction microservice:
// POST {base}/extract with a multipart "image" field, answering
// {"features":[...]} or {"error":"..."}.
package featureapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/velora/visearch/internal/domain"
)

const (
	extractPath = "/extract"
	healthPath  = "/health"

	// maxResponseBytes bounds the decoded response (2048 floats as JSON is ~40KB).
	maxResponseBytes = 4 << 20
)

// Config holds the client settings.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// HealthCheck enables GET {base}/health probing.
	HealthCheck bool
	HTTPClient  *http.Client
}

// Client is a domain.Extractor backed by the extraction microservice.
type Client struct {
	baseURL     string
	model       string
	healthCheck bool
	http        *http.Client
}

// New creates a feature API client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		healthCheck: cfg.HealthCheck,
		http:        hc,
	}
}

type extractResponse struct {
	Features []float32 `json:"features"`
	Error    string    `json:"error"`
}

// Extract uploads the image and decodes the returned vector.
func (c *Client) Extract(ctx context.Context, img domain.Image) (domain.Features, error) {
	body, contentType, err := encodeImage(img)
	if err != nil {
		return domain.Features{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractPath, body)
	if err != nil {
		return domain.Features{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Features{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Features{}, fmt.Errorf("read response: %w", err)
	}

	var parsed extractResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != "" {
			return domain.Features{}, fmt.Errorf("feature API status %d: %s", resp.StatusCode, parsed.Error)
		}
		return domain.Features{}, fmt.Errorf("feature API status %d: %s", resp.StatusCode, snippet(raw))
	}
	if decodeErr != nil {
		return domain.Features{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if parsed.Error != "" {
		return domain.Features{}, errors.New(parsed.Error)
	}

	return domain.Features{Vector: parsed.Features, Model: c.model}, nil
}

// HealthCheck probes GET {base}/health when enabled.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.healthCheck {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("feature API health: status %d", resp.StatusCode)
	}
	return nil
}

func encodeImage(img domain.Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = "upload"
	}
	ct := img.ContentType
	if ct == "" {
		ct = http.DetectContentType(img.Data)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
