package cli

import (
	"context"
	"os"

	"github.com/crossinsure/crossinsure/pkg/adapter"
	"github.com/crossinsure/crossinsure/pkg/embedding"
	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/policy"
	"github.com/crossinsure/crossinsure/pkg/repository"
	"github.com/crossinsure/crossinsure/pkg/scoring"
	"github.com/crossinsure/crossinsure/pkg/service/gemini"
	"github.com/crossinsure/crossinsure/pkg/similarity"
	"github.com/crossinsure/crossinsure/pkg/usecase/claim"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel string
	auditLog string

	// Repository
	dsn string

	// Adapters
	geminiProject  string
	geminiLocation string
	geminiAPIKey   string
	embeddingDims  int64

	// Pipeline
	scoringConfig string
	policyDir     string

	// Image archive
	bucket         string
	minioEndpoint  string
	minioAccessKey string
	minioSecretKey string
	minioUseSSL    bool
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Usage:       "Database DSN (sqlite path, postgres://..., firestore://<project>/<database>)",
			Value:       "crossinsure.db",
			Sources:     cli.EnvVars("CROSSINSURE_DB"),
			Destination: &cfg.dsn,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("CROSSINSURE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "audit-log",
			Usage:       "Append audit trail to this file",
			Sources:     cli.EnvVars("CROSSINSURE_AUDIT_LOG"),
			Destination: &cfg.auditLog,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key, used when no project is given",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding vector dimensions",
			Value:       embedding.DefaultDimensions,
			Sources:     cli.EnvVars("CROSSINSURE_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDims,
		},
	}
}

// pipelineFlags returns flags for scoring, policy and image archive
func pipelineFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "scoring-config",
			Usage:       "YAML file with similarity weights, threshold and top-k",
			Sources:     cli.EnvVars("CROSSINSURE_SCORING_CONFIG"),
			Destination: &cfg.scoringConfig,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of triage rego policies",
			Sources:     cli.EnvVars("CROSSINSURE_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "image-bucket",
			Usage:       "Bucket to archive submitted images (GCS, or MinIO when an endpoint is set)",
			Sources:     cli.EnvVars("CROSSINSURE_IMAGE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "minio-endpoint",
			Usage:       "S3 compatible endpoint for the image archive",
			Sources:     cli.EnvVars("MINIO_ENDPOINT"),
			Destination: &cfg.minioEndpoint,
		},
		&cli.StringFlag{
			Name:        "minio-access-key",
			Usage:       "Access key for the image archive",
			Sources:     cli.EnvVars("MINIO_ACCESS_KEY"),
			Destination: &cfg.minioAccessKey,
		},
		&cli.StringFlag{
			Name:        "minio-secret-key",
			Usage:       "Secret key for the image archive",
			Sources:     cli.EnvVars("MINIO_SECRET_KEY"),
			Destination: &cfg.minioSecretKey,
		},
		&cli.BoolFlag{
			Name:        "minio-use-ssl",
			Usage:       "Use TLS for the image archive endpoint",
			Sources:     cli.EnvVars("MINIO_USE_SSL"),
			Destination: &cfg.minioUseSSL,
		},
	}
}

// setupLogging attaches the configured logger and audit trail to ctx. The
// returned function closes the audit file.
func (cfg *config) setupLogging(ctx context.Context) (context.Context, func(), error) {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	ctx = logging.With(ctx, logger)

	if cfg.auditLog == "" {
		return ctx, func() {}, nil
	}

	f, err := os.OpenFile(cfg.auditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to open audit log", goerr.V("path", cfg.auditLog))
	}
	ctx = logging.WithAudit(ctx, logging.NewAudit(f))
	return ctx, func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close audit log", "error", err)
		}
	}, nil
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (interfaces.Repository, error) {
	repo, err := repository.New(ctx, cfg.dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a Gemini client, or returns nil when none is configured
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	switch {
	case cfg.geminiProject != "":
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
	case cfg.geminiAPIKey != "":
		return adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey)
	}
	return nil, nil
}

// newImageStore creates the image archive, or returns nil when no bucket is configured
func (cfg *config) newImageStore(ctx context.Context) (interfaces.ImageStore, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	var (
		store adapter.Storage
		err   error
	)
	if cfg.minioEndpoint != "" {
		store, err = adapter.NewMinIO(ctx, adapter.MinIOConfig{
			Endpoint:        cfg.minioEndpoint,
			AccessKeyID:     cfg.minioAccessKey,
			SecretAccessKey: cfg.minioSecretKey,
			Bucket:          cfg.bucket,
			UseSSL:          cfg.minioUseSSL,
		})
	} else {
		store, err = adapter.NewStorage(ctx, cfg.bucket, "")
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image store")
	}
	return store, nil
}

func (cfg *config) newSimilarity() (*similarity.Engine, error) {
	simCfg := similarity.DefaultConfig()
	if cfg.scoringConfig != "" {
		loaded, err := similarity.LoadConfig(cfg.scoringConfig)
		if err != nil {
			return nil, err
		}
		simCfg = loaded
	}
	return similarity.New(simCfg)
}

// newUseCase wires the claim pipeline. Read-only commands pass withProviders=false
// and skip every external provider.
func (cfg *config) newUseCase(ctx context.Context, repo interfaces.Repository, withProviders bool) (*claim.UseCase, error) {
	if !withProviders {
		return claim.New(repo, embedding.New(nil), scoring.New(nil)), nil
	}

	engine, err := cfg.newSimilarity()
	if err != nil {
		return nil, err
	}
	opts := []claim.Option{claim.WithSimilarity(engine)}

	var (
		embedder interfaces.Embedder
		reasoner interfaces.Reasoner
	)
	client, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	if client != nil {
		e := gemini.NewEmbedder(client, int(cfg.embeddingDims))
		embedder = e
		reasoner = gemini.NewReasoner(client)
		opts = append(opts, claim.WithDescriber(e))
	} else {
		logging.From(ctx).Warn("no Gemini configuration, using fallback embeddings and heuristic scoring")
	}

	if cfg.policyDir != "" {
		p, err := policy.New(ctx, cfg.policyDir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load triage policy")
		}
		opts = append(opts, claim.WithPolicy(p))
	}

	store, err := cfg.newImageStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, claim.WithImageStore(store))
	}

	gateway := embedding.New(embedder, embedding.WithDimensions(int(cfg.embeddingDims)))
	return claim.New(repo, gateway, scoring.New(reasoner), opts...), nil
}
