// Package openai implements the embedding service against the OpenAI
// embeddings API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

const defaultBaseURL = "https://api.openai.com/v1"

// modelDimensions maps known embedding models to their output size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds the service settings.
type Config struct {
	// APIKey authenticates requests.
	APIKey string

	// Model is the embedding model identifier.
	Model string

	// BaseURL overrides the API endpoint, for proxies and tests.
	BaseURL string

	// Dimensions overrides the model's output size for models that
	// support shortened embeddings; zero uses the model default.
	Dimensions int
}

// Service calls the OpenAI embeddings endpoint.
type Service struct {
	config Config
	client *http.Client
	dims   int
}

var _ driven.EmbeddingService = (*Service)(nil)

// New creates an embedding service from config.
func New(config Config) (*Service, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("api key is required: %w", domain.ErrInvalidInput)
	}
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	dims := config.Dimensions
	if dims == 0 {
		known, ok := modelDimensions[config.Model]
		if !ok {
			return nil, fmt.Errorf("unknown model %q, set dimensions explicitly: %w",
				config.Model, domain.ErrInvalidInput)
		}
		dims = known
	}

	return &Service{
		config: config,
		client: &http.Client{Timeout: 60 * time.Second},
		dims:   dims,
	}, nil
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed generates an embedding for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call. The
// API may return items out of order, so results are reassembled by
// index before returning.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Model: s.config.Model, Input: texts}
	if s.config.Dimensions > 0 {
		reqBody.Dimensions = s.config.Dimensions
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("embedding api returned status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vectors := make([][]float32, len(texts))
	for i, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding api returned out-of-range index %d", item.Index)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// Dimensions returns the vector length this service produces.
func (s *Service) Dimensions() int {
	return s.dims
}

// ModelName returns the model identifier.
func (s *Service) ModelName() string {
	return s.config.Model
}

// Ping verifies the API is reachable and the key is valid.
func (s *Service) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinging embedding api: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding api ping returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *Service) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
