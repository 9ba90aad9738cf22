package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/chuckfinca/image-collector/pkg/models"
	"github.com/chuckfinca/image-collector/pkg/tracing"
)

const (
	// PipelineID identifies the contact extraction pipeline on the server
	PipelineID = "extract-contact"

	// DefaultTimeout is the default extraction request timeout
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Config holds extraction client configuration
type Config struct {
	Endpoint string
	APIKey   string
	ModelID  string
	Timeout  time.Duration
}

// Client calls the contact extraction pipeline over HTTP
type Client struct {
	client   *http.Client
	endpoint string
	apiKey   string
	modelID  string
	logger   ectologger.Logger
}

// NewClient creates a new extraction client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		modelID:  cfg.ModelID,
		logger:   logger,
	}
}

// Result is the outcome of one extraction call
type Result struct {
	Fields   models.ContactFields
	Metadata models.ExtractionMetadata
}

type pipelineRequest struct {
	Request pipelinePayload `json:"request"`
}

type pipelinePayload struct {
	PipelineID string            `json:"pipeline_id"`
	Content    string            `json:"content"`
	MediaType  string            `json:"media_type"`
	Params     map[string]string `json:"params"`
}

type serverResponse struct {
	Success  bool            `json:"success"`
	Data     *contactPayload `json:"data"`
	Error    string          `json:"error"`
	Metadata map[string]any  `json:"metadata"`
}

type contactPayload struct {
	Name    map[string]string `json:"name"`
	Work    map[string]string `json:"work"`
	Contact struct {
		PhoneNumbers    []string        `json:"phone_numbers"`
		EmailAddresses  []string        `json:"email_addresses"`
		URLAddresses    []string        `json:"url_addresses"`
		PostalAddresses []postalPayload `json:"postal_addresses"`
	} `json:"contact"`
	Metadata *struct {
		ExecutionInfo map[string]any `json:"execution_info"`
	} `json:"metadata"`
}

type postalPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Extract sends the image to the extraction pipeline and returns the
// contact fields with the provenance metadata describing which model
// produced them.
func (c *Client) Extract(ctx context.Context, imageData []byte) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "extraction.Extract")
	defer span.End()

	body := pipelineRequest{
		Request: pipelinePayload{
			PipelineID: PipelineID,
			Content:    base64.StdEncoding.EncodeToString(imageData),
			MediaType:  "image",
			Params:     map[string]string{"model_id": c.modelID},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("Extraction request failed: %s", c.endpoint)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(raw) > MaxResponseSize {
		return nil, fmt.Errorf("response body too large: %d bytes (max %d)", len(raw), MaxResponseSize)
	}

	c.logger.WithContext(ctx).Debugf("Extraction POST %s -> %d (%s)", c.endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("extraction server returned %d: %s", resp.StatusCode, string(raw))
	}

	var envelope serverResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse server response: %w", err)
	}

	if !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("extraction server error: %s", msg)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("extraction server returned no data")
	}

	return &Result{
		Fields:   mapFields(envelope.Data),
		Metadata: mapMetadata(&envelope, envelope.Data),
	}, nil
}

func mapFields(data *contactPayload) models.ContactFields {
	out := models.ContactFields{
		NamePrefix:       optional(data.Name["prefix"]),
		GivenName:        optional(data.Name["given_name"]),
		MiddleName:       optional(data.Name["middle_name"]),
		FamilyName:       optional(data.Name["family_name"]),
		NameSuffix:       optional(data.Name["suffix"]),
		JobTitle:         optional(data.Work["job_title"]),
		Department:       optional(data.Work["department"]),
		OrganizationName: optional(data.Work["organization_name"]),
		PhoneNumbers:     data.Contact.PhoneNumbers,
		EmailAddresses:   data.Contact.EmailAddresses,
		URLAddresses:     data.Contact.URLAddresses,
	}

	for _, addr := range data.Contact.PostalAddresses {
		out.PostalAddresses = append(out.PostalAddresses, models.PostalAddress{
			Street:     addr.Street,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		})
	}

	return out
}

// mapMetadata merges the envelope metadata with the nested execution info.
// Execution info wins on key collisions.
func mapMetadata(envelope *serverResponse, data *contactPayload) models.ExtractionMetadata {
	merged := make(map[string]any, len(envelope.Metadata))
	for k, v := range envelope.Metadata {
		merged[k] = v
	}
	if data.Metadata != nil {
		for k, v := range data.Metadata.ExecutionInfo {
			merged[k] = v
		}
	}

	meta := models.ExtractionMetadata{
		ModelID:        stringValue(merged, "model_id", "unknown-model"),
		ProgramID:      stringValue(merged, "program_id", "unknown-program"),
		ProgramName:    stringValue(merged, "program_name", "Contact Extractor"),
		ProgramVersion: stringValue(merged, "program_version", "0.0.0"),
		ExecutionID:    stringValue(merged, "execution_id", ""),
		ExtractedAt:    time.Now().UTC(),
	}

	if modelInfo, ok := merged["model_info"].(map[string]any); ok {
		meta.Provider = stringValue(modelInfo, "provider", "")
		meta.BaseModel = stringValue(modelInfo, "base_model", "")
	}

	return meta
}

func stringValue(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
