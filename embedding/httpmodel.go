package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coderag.evalgo.org/internal/errs"
)

// HTTPModel is a Model that delegates to an external embedding service over
// HTTP, the deployment shape spec.md's "opaque collaborator" note leaves to
// the operator: the embedding model itself is never trained or bundled by
// this service, only called. Grounded on the teacher's CouchDB REST client
// in cli/consumer.go (http.Client with a fixed timeout, http.NewRequest +
// json.Marshal/Unmarshal, wrapped errors).
type HTTPModel struct {
	endpoint  string
	modelName string
	dim       int
	client    *http.Client
}

// HTTPModelConfig configures a new HTTPModel.
type HTTPModelConfig struct {
	Endpoint  string // POST {"text": "..."} -> {"vector": [...]}
	ModelName string
	Dim       int
	Timeout   time.Duration // default 30s
}

// NewHTTPModel creates an HTTPModel.
func NewHTTPModel(cfg HTTPModelConfig) *HTTPModel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPModel{
		endpoint:  cfg.Endpoint,
		modelName: cfg.ModelName,
		dim:       cfg.Dim,
		client:    &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// Embed posts text to the configured endpoint and returns its vector.
func (m *HTTPModel) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, errs.Embedding("embedding", "http_embed", "marshal request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Embedding("embedding", "http_embed", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errs.Embedding("embedding", "http_embed", "call embedding service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Embedding("embedding", "http_embed", fmt.Sprintf("embedding service returned status %d", resp.StatusCode), nil)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errs.Embedding("embedding", "http_embed", "decode response body", err)
	}
	return decoded.Vector, nil
}

// Dim returns the model's configured vector dimensionality.
func (m *HTTPModel) Dim() int { return m.dim }

// ModelName returns the model's configured name.
func (m *HTTPModel) ModelName() string { return m.modelName }
