// Package gemini implements the embedding, vision and reasoning providers on Gemini.
package gemini

import (
	"context"
	_ "embed"
	"strings"

	"github.com/crossinsure/crossinsure/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/describe.md
var describePrompt string

// Embedder embeds claim narratives directly and photos through a vision description
type Embedder struct {
	client     adapter.Gemini
	dimensions int
}

func NewEmbedder(client adapter.Gemini, dimensions int) *Embedder {
	return &Embedder{
		client:     client,
		dimensions: dimensions,
	}
}

func (x *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	v, err := x.client.Embedding(ctx, text, x.dimensions)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text")
	}
	return v, nil
}

func (x *Embedder) EmbedImage(ctx context.Context, data []byte, contentType string) ([]float32, error) {
	desc, err := x.DescribeImage(ctx, data, contentType)
	if err != nil {
		return nil, err
	}
	v, err := x.client.Embedding(ctx, desc, x.dimensions)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed image description")
	}
	return v, nil
}

// DescribeImage summarizes damage visible in a photo in a few sentences
func (x *Embedder) DescribeImage(ctx context.Context, data []byte, contentType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(strings.TrimSpace(describePrompt)),
			genai.NewPartFromBytes(data, contentType),
		}, genai.RoleUser),
	}

	resp, err := x.client.GenerateVisionContent(ctx, contents, nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to describe image")
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", goerr.New("empty image description")
	}
	return text, nil
}

func (x *Embedder) ModelVersion() string {
	return x.client.EmbeddingModel()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
