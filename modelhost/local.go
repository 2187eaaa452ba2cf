package modelhost

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Local talks to a self-hosted inference server over HTTP, in the style of
// an Ollama /api/generate endpoint: base64 image bytes plus a fixed prompt,
// one JSON object back.
type Local struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLocal constructs a Local host pointed at baseURL (e.g.
// "http://localhost:11434") using model for both captioning and embedding
// calls.
func NewLocal(baseURL, model string) *Local {
	return &Local{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type localGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
}

const captionPrompt = "Describe this image in one concise sentence."

// CaptionLocal always succeeds unless the local server is unreachable,
// returns a status other than 200, or sends a body that cannot be read or
// decoded; it never consumes the rate limiter or breaker.
func (l *Local) CaptionLocal(ctx context.Context, imageBytes []byte) (CaptionOutcome, error) {
	reqBody := localGenerateRequest{
		Model:  l.model,
		Prompt: captionPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(imageBytes)},
		Stream: false,
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return CaptionOutcome{}, fmt.Errorf("encode local request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/generate", bytes.NewReader(raw))
	if err != nil {
		return CaptionOutcome{}, fmt.Errorf("build local request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return CaptionOutcome{}, fmt.Errorf("call local model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CaptionOutcome{}, fmt.Errorf("local model returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CaptionOutcome{}, fmt.Errorf("read local response: %w", err)
	}

	var parsed localGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return CaptionOutcome{}, fmt.Errorf("decode local response: %w", err)
	}

	return CaptionOutcome{Caption: parsed.Response}, nil
}

// CaptionCloud is not supported by the local host; the executor never
// routes the Cloud tier to it.
func (l *Local) CaptionCloud(ctx context.Context, imageBytes []byte) (CaptionOutcome, error) {
	return CaptionOutcome{}, fmt.Errorf("modelhost: local host does not support caption_cloud")
}

type localEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (l *Local) embed(ctx context.Context, input string) ([]float32, error) {
	raw, err := json.Marshal(localEmbedRequest{Model: l.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/embeddings", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call local embedding model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local embedding model returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	var parsed localEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return parsed.Embedding, nil
}

// EmbedImage sends the base64 image as the embedding input; the local
// server is expected to accept an image prompt on the same endpoint used
// for text.
func (l *Local) EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	return l.embed(ctx, base64.StdEncoding.EncodeToString(imageBytes))
}

// EmbedText embeds a plain text query.
func (l *Local) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return l.embed(ctx, text)
}

// ModelName returns the configured local model identifier.
func (l *Local) ModelName() string {
	return l.model
}
