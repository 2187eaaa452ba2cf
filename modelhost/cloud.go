package modelhost

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Cloud calls the Gemini vision API for captioning and embedding, using the
// same genai.Client.Chats.Create/SendMessage flow the teacher's studio
// provider uses for chat completions.
type Cloud struct {
	client     *genai.Client
	model      string
	embedModel string
}

// NewCloud constructs a Cloud host against the Gemini Studio backend.
func NewCloud(ctx context.Context, apiKey, model, embedModel string) (*Cloud, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Cloud{client: client, model: model, embedModel: embedModel}, nil
}

const cloudCaptionPrompt = "Describe this image in one concise, factual sentence."

// CaptionCloud sends imageBytes inline to Gemini and returns the caption
// plus token usage for cost accounting.
func (c *Cloud) CaptionCloud(ctx context.Context, imageBytes []byte) (CaptionOutcome, error) {
	chat, err := c.client.Chats.Create(ctx, c.model, &genai.GenerateContentConfig{}, nil)
	if err != nil {
		return CaptionOutcome{}, fmt.Errorf("create gemini chat: %w", err)
	}

	parts := []genai.Part{
		{Text: cloudCaptionPrompt},
		{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: imageBytes}},
	}

	resp, err := chat.SendMessage(ctx, parts...)
	if err != nil {
		return CaptionOutcome{}, fmt.Errorf("gemini caption call: %w", err)
	}

	caption := extractText(resp)
	if caption == "" {
		return CaptionOutcome{}, fmt.Errorf("gemini returned an empty caption")
	}

	outcome := CaptionOutcome{Caption: caption}
	if resp.UsageMetadata != nil {
		outcome.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		outcome.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return outcome, nil
}

// CaptionLocal is not supported by the cloud host; the executor never
// routes the Local tier to it.
func (c *Cloud) CaptionLocal(ctx context.Context, imageBytes []byte) (CaptionOutcome, error) {
	return CaptionOutcome{}, fmt.Errorf("modelhost: cloud host does not support caption_local")
}

// EmbedImage asks Gemini's embedding model for an image embedding via the
// same inline-blob technique used for captioning.
func (c *Cloud) EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, c.embedModel, []*genai.Content{{
		Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: imageBytes}}},
	}}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed image: %w", err)
	}
	return extractEmbedding(resp)
}

// EmbedText embeds a plain text query for the search planner.
func (c *Cloud) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, c.embedModel, []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
	}}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed text: %w", err)
	}
	return extractEmbedding(resp)
}

// ModelName returns the configured cloud captioning model identifier, which
// the executor passes to cost.Estimate.
func (c *Cloud) ModelName() string {
	return c.model
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}

func extractEmbedding(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini returned no embeddings")
	}
	return resp.Embeddings[0].Values, nil
}
