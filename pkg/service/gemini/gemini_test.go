package gemini_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/crossinsure/crossinsure/pkg/adapter"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/service/gemini"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	generateText string
	generateErr  error
	visionText   string
	embedErr     error

	lastConfig   *genai.GenerateContentConfig
	lastContents []*genai.Content
	embedInputs  []string
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func (x *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	x.lastContents = contents
	x.lastConfig = config
	if x.generateErr != nil {
		return nil, x.generateErr
	}
	return textResponse(x.generateText), nil
}

func (x *mockGemini) GenerateVisionContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	x.lastContents = contents
	return textResponse(x.visionText), nil
}

func (x *mockGemini) Embedding(ctx context.Context, text string, dimensions int) ([]float32, error) {
	x.embedInputs = append(x.embedInputs, text)
	if x.embedErr != nil {
		return nil, x.embedErr
	}
	v := make([]float32, dimensions)
	v[0] = 1
	return v, nil
}

func (x *mockGemini) EmbeddingModel() string {
	return "gemini-embedding-001"
}

func newEvidence() *model.Evidence {
	return &model.Evidence{
		Claim: &model.Claim{
			ReferenceID:       "CLM-0000abcd",
			IncidentType:      model.IncidentTypeCollision,
			LocationZone:      model.LocationZoneC,
			DamageDescription: "Front bumper crushed after a collision at an intersection.",
		},
		Matches: []*model.Match{
			{
				ClaimReferenceID: "CLM-1111aaaa",
				Organization:     "Acme Mutual",
				IncidentType:     model.IncidentTypeCollision,
				LocationZone:     model.LocationZoneC,
				IncidentDate:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
				Scores:           model.Scores{Image: 0.91, Temporal: 0.75, Spatial: 1},
				Overall:          0.88,
			},
		},
		ImageDescriptions: []string{"Crumpled front bumper, headlight broken."},
	}
}

func TestPrompt(t *testing.T) {
	prompt, err := gemini.Prompt(newEvidence())
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("Incident Type: collision")
	gt.S(t, prompt).Contains("Location Zone: zone_c")
	gt.S(t, prompt).Contains("Image 1: Crumpled front bumper")
	gt.S(t, prompt).Contains("Temporal Pattern Score: 0.75")
	gt.S(t, prompt).Contains("Spatial Cluster Score: 1.00")
	gt.S(t, prompt).Contains("Company: Acme Mutual")
	gt.S(t, prompt).Contains("Overall Similarity: 88.00%")
	gt.S(t, prompt).Contains("Date: 2025-01-10")

	t.Run("no matches", func(t *testing.T) {
		ev := newEvidence()
		ev.Matches = nil
		ev.ImageDescriptions = nil
		prompt, err := gemini.Prompt(ev)
		gt.NoError(t, err)
		gt.S(t, prompt).Contains("No similar incidents found")
		gt.S(t, prompt).Contains("No image analysis available")
	})
}

func TestReasoner(t *testing.T) {
	ctx := context.Background()

	t.Run("structured answer", func(t *testing.T) {
		client := &mockGemini{generateText: `{"fraud_risk_level":"HIGH","fraud_score":0.7,"confidence":0.85,"reasoning":"same damage at Acme Mutual","red_flags":["cross-company"]}`}
		j, err := gemini.NewReasoner(client).Reason(ctx, newEvidence())
		gt.NoError(t, err)
		gt.Equal(t, j.RiskLevel, model.RiskLevelHigh)
		gt.Equal(t, j.Score, 0.7)
		gt.Equal(t, j.Source, model.ScoredByGemini)

		gt.Equal(t, client.lastConfig.ResponseMIMEType, "application/json")
		gt.Equal(t, *client.lastConfig.Temperature, float32(0.7))
		gt.A(t, client.lastConfig.ResponseSchema.Required).Length(3)
	})

	t.Run("malformed answer", func(t *testing.T) {
		client := &mockGemini{generateText: `{"fraud_score":0.7}`}
		_, err := gemini.NewReasoner(client).Reason(ctx, newEvidence())
		gt.Error(t, err)
	})

	t.Run("provider error", func(t *testing.T) {
		client := &mockGemini{generateErr: errors.New("unavailable")}
		_, err := gemini.NewReasoner(client).Reason(ctx, newEvidence())
		gt.Error(t, err)
	})
}

func TestEmbedder(t *testing.T) {
	ctx := context.Background()
	client := &mockGemini{visionText: "  Dented rear door.  "}
	embedder := gemini.NewEmbedder(client, 768)

	v, err := embedder.EmbedText(ctx, "narrative")
	gt.NoError(t, err)
	gt.A(t, v).Length(768)

	v, err = embedder.EmbedImage(ctx, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	gt.NoError(t, err)
	gt.A(t, v).Length(768)
	gt.Equal(t, client.embedInputs, []string{"narrative", "Dented rear door."})
	gt.Equal(t, embedder.ModelVersion(), "gemini-embedding-001")

	t.Run("embedding failure surfaces", func(t *testing.T) {
		embedder := gemini.NewEmbedder(&mockGemini{embedErr: errors.New("quota")}, 768)
		_, err := embedder.EmbedText(ctx, "narrative")
		gt.Error(t, err)
	})

	t.Run("empty description is an error", func(t *testing.T) {
		embedder := gemini.NewEmbedder(&mockGemini{visionText: ""}, 768)
		_, err := embedder.DescribeImage(ctx, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
		gt.Error(t, err)
	})
}

func TestReasonerWithGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	j, err := gemini.NewReasoner(client).Reason(ctx, newEvidence())
	gt.NoError(t, err)
	gt.NoError(t, j.RiskLevel.Validate())
	t.Log("judgment:", j.RiskLevel, j.Score, j.Reasoning)
}
