package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrMalformedJudgment = goerr.New("malformed judgment")

const defaultConfidence = 0.8

type rawJudgment struct {
	FraudRiskLevel  *string  `json:"fraud_risk_level"`
	FraudScore      any      `json:"fraud_score"`
	Confidence      any      `json:"confidence"`
	RedFlags        []string `json:"red_flags"`
	Reasoning       *string  `json:"reasoning"`
	Recommendations []string `json:"recommendations"`
}

// ParseJudgment validates a reasoning provider's JSON answer. Markdown code
// fences around the JSON are tolerated.
func ParseJudgment(text string) (*model.Judgment, error) {
	cleaned := stripCodeFence(text)

	var raw rawJudgment
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, goerr.Wrap(ErrMalformedJudgment, "not a JSON object",
			goerr.V("cause", err.Error()),
			goerr.V("text", text),
		)
	}

	if raw.FraudRiskLevel == nil {
		return nil, goerr.Wrap(ErrMalformedJudgment, "missing required field", goerr.V("field", "fraud_risk_level"))
	}
	if raw.FraudScore == nil {
		return nil, goerr.Wrap(ErrMalformedJudgment, "missing required field", goerr.V("field", "fraud_score"))
	}
	if raw.Reasoning == nil {
		return nil, goerr.Wrap(ErrMalformedJudgment, "missing required field", goerr.V("field", "reasoning"))
	}

	level, err := model.ParseRiskLevel(*raw.FraudRiskLevel)
	if err != nil {
		return nil, goerr.Wrap(ErrMalformedJudgment, "unknown risk tier", goerr.V("fraud_risk_level", *raw.FraudRiskLevel))
	}

	score, err := toFloat(raw.FraudScore)
	if err != nil {
		return nil, goerr.Wrap(ErrMalformedJudgment, "fraud_score is not numeric", goerr.V("fraud_score", raw.FraudScore))
	}

	confidence := defaultConfidence
	if raw.Confidence != nil {
		if c, err := toFloat(raw.Confidence); err == nil {
			confidence = c
		}
	}

	return &model.Judgment{
		RiskLevel:       level,
		Score:           clamp(score),
		Confidence:      clamp(confidence),
		RedFlags:        nonNil(raw.RedFlags),
		Reasoning:       *raw.Reasoning,
		Recommendations: nonNil(raw.Recommendations),
		Source:          model.ScoredByGemini,
	}, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, goerr.Wrap(err, "not a number")
		}
		return f, nil
	}
	return 0, goerr.New("unsupported type")
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		body := text[i+3:]
		body = strings.TrimPrefix(body, "json")
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	return text
}
