package similarity

import (
	"math"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = goerr.New("invalid similarity config")

const (
	DefaultThreshold = 0.30
	DefaultTopK      = 10
)

type RetrieverName string

const (
	RetrieverFullScan       RetrieverName = "full_scan"
	RetrieverByIncidentType RetrieverName = "by_incident_type"
)

// Config tunes matching. Values are fixed for the lifetime of an Engine.
type Config struct {
	Weights   Weights       `yaml:"weights"`
	Threshold float64       `yaml:"threshold"`
	TopK      int           `yaml:"top_k"`
	Retriever RetrieverName `yaml:"retriever"`
}

func DefaultConfig() Config {
	return Config{
		Weights:   DefaultWeights(),
		Threshold: DefaultThreshold,
		TopK:      DefaultTopK,
		Retriever: RetrieverFullScan,
	}
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"text":     c.Weights.Text,
		"image":    c.Weights.Image,
		"spatial":  c.Weights.Spatial,
		"temporal": c.Weights.Temporal,
	} {
		if v < 0 {
			return goerr.Wrap(ErrInvalidConfig, "negative weight", goerr.V("axis", name), goerr.V("weight", v))
		}
	}
	if math.Abs(c.Weights.Sum()-1.0) > 1e-6 {
		return goerr.Wrap(ErrInvalidConfig, "weights must sum to 1", goerr.V("sum", c.Weights.Sum()))
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		return goerr.Wrap(ErrInvalidConfig, "threshold must be in [0,1)", goerr.V("threshold", c.Threshold))
	}
	if c.TopK <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "top_k must be positive", goerr.V("top_k", c.TopK))
	}
	switch c.Retriever {
	case RetrieverFullScan, RetrieverByIncidentType:
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown retriever", goerr.V("retriever", c.Retriever))
	}
	return nil
}

// LoadConfig reads a YAML file. Keys missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to read similarity config", goerr.V("path", path))
	}

	file := struct {
		Similarity Config `yaml:"similarity"`
	}{Similarity: cfg}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, goerr.Wrap(err, "failed to parse similarity config", goerr.V("path", path))
	}
	cfg = file.Similarity

	if err := cfg.Validate(); err != nil {
		return cfg, goerr.Wrap(err, "similarity config rejected", goerr.V("path", path))
	}
	return cfg, nil
}

// Retriever builds the candidate strategy named by the config
func (c Config) NewRetriever() Retriever {
	if c.Retriever == RetrieverByIncidentType {
		return &ByIncidentType{}
	}
	return &FullScan{}
}
