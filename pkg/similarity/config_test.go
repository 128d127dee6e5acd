package similarity_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/crossinsure/crossinsure/pkg/similarity"
	"github.com/m-mizutani/gt"
)

func TestLoadConfig(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := similarity.LoadConfig("")
		gt.NoError(t, err)
		gt.Equal(t, cfg, similarity.DefaultConfig())
	})

	t.Run("partial file keeps remaining defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yaml")
		gt.NoError(t, os.WriteFile(path, []byte(`similarity:
  threshold: 0.45
  retriever: by_incident_type
`), 0644))

		cfg, err := similarity.LoadConfig(path)
		gt.NoError(t, err)
		gt.Equal(t, cfg.Threshold, 0.45)
		gt.Equal(t, cfg.Retriever, similarity.RetrieverByIncidentType)
		gt.Equal(t, cfg.TopK, similarity.DefaultTopK)
		gt.Equal(t, cfg.Weights, similarity.DefaultWeights())
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yaml")
		gt.NoError(t, os.WriteFile(path, []byte(`similarity:
  weights:
    text: 0.5
    image: 0.5
    spatial: 0.5
    temporal: 0.5
`), 0644))

		_, err := similarity.LoadConfig(path)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, similarity.ErrInvalidConfig))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := similarity.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		gt.Error(t, err)
	})
}
