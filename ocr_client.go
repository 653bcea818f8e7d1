package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-id-register/metrics"
	"go-id-register/models"
)

// OcrFieldMap maps the provider-specific response schema onto the normalized
// document shape. Paths may be dotted to reach nested objects, so switching
// providers is a configuration change only.
type OcrFieldMap struct {
	NameField           string `json:"name_field"`
	IdentityNumberField string `json:"identity_number_field"`
}

// OcrClient extracts the printed fields of an identity document image.
type OcrClient interface {
	Extract(ctx context.Context, imageBytes []byte, mimeType string) (models.ExtractedDocument, error)
}

// RestOcrClient implements OcrClient against an HTTP OCR provider
type RestOcrClient struct {
	endpoint   string
	credential string
	fieldMap   OcrFieldMap
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewRestOcrClient creates a client for the provider at endpoint. The timeout
// bounds the whole call, so a hanging provider surfaces as an extraction
// failure instead of a stuck request.
func NewRestOcrClient(endpoint, credential string, fieldMap OcrFieldMap, timeout time.Duration, m *metrics.Metrics) *RestOcrClient {
	return &RestOcrClient{
		endpoint:   endpoint,
		credential: credential,
		fieldMap:   fieldMap,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: m,
	}
}

// Extract forwards the raw image bytes to the OCR provider and maps the
// response body into an ExtractedDocument.
func (c *RestOcrClient) Extract(ctx context.Context, imageBytes []byte, mimeType string) (models.ExtractedDocument, error) {
	doc, err := c.extract(ctx, imageBytes, mimeType)
	if err != nil {
		c.metrics.RecordExtraction("failure")
		return models.ExtractedDocument{}, err
	}
	c.metrics.RecordExtraction("ok")
	return doc, nil
}

func (c *RestOcrClient) extract(ctx context.Context, imageBytes []byte, mimeType string) (models.ExtractedDocument, error) {
	if len(imageBytes) == 0 {
		return models.ExtractedDocument{}, fmt.Errorf("no image bytes to extract")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(imageBytes))
	if err != nil {
		return models.ExtractedDocument{}, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.credential))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ExtractedDocument{}, fmt.Errorf("failed to execute extraction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.ExtractedDocument{}, fmt.Errorf("extraction failed with status %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.ExtractedDocument{}, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	name, err := lookupField(payload, c.fieldMap.NameField)
	if err != nil {
		return models.ExtractedDocument{}, fmt.Errorf("failed to map provider response: %w", err)
	}
	number, err := lookupField(payload, c.fieldMap.IdentityNumberField)
	if err != nil {
		return models.ExtractedDocument{}, fmt.Errorf("failed to map provider response: %w", err)
	}

	slog.Debug("OCR extraction completed", "name_present", name != "", "number_present", number != "")
	return models.ExtractedDocument{
		Name:           name,
		IdentityNumber: number,
	}, nil
}

// lookupField resolves a dotted path like "data.full_name" inside the
// decoded provider response.
func lookupField(payload map[string]any, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("field mapping path is empty")
	}

	parts := strings.Split(path, ".")
	current := payload
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return "", fmt.Errorf("field %q not found in provider response", path)
		}
		if i == len(parts)-1 {
			s, ok := value.(string)
			if !ok {
				return "", fmt.Errorf("field %q in provider response is not a string", path)
			}
			return s, nil
		}
		current, ok = value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("field %q in provider response is not an object", strings.Join(parts[:i+1], "."))
		}
	}
	return "", fmt.Errorf("field %q not found in provider response", path)
}

// SimulatedOcrClient substitutes a fixed placeholder document when the inner
// client fails. It exists for deployments without a live OCR credential and
// is selected once at startup; it must never wrap a client that talks to a
// real provider in production.
type SimulatedOcrClient struct {
	inner       OcrClient
	placeholder models.ExtractedDocument
	metrics     *metrics.Metrics
}

func NewSimulatedOcrClient(inner OcrClient, placeholder models.ExtractedDocument, m *metrics.Metrics) *SimulatedOcrClient {
	return &SimulatedOcrClient{
		inner:       inner,
		placeholder: placeholder,
		metrics:     m,
	}
}

func (c *SimulatedOcrClient) Extract(ctx context.Context, imageBytes []byte, mimeType string) (models.ExtractedDocument, error) {
	doc, err := c.inner.Extract(ctx, imageBytes, mimeType)
	if err != nil {
		slog.Warn("OCR extraction failed, returning simulated placeholder", "error", err)
		c.metrics.RecordExtraction("simulated")
		return c.placeholder, nil
	}
	return doc, nil
}
