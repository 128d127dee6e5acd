// Package embedding converts claim narratives and photos into vectors. When
// no provider is configured, or the provider fails, a deterministic digest
// based vector is produced instead so that processing never stops here.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/crossinsure/crossinsure/pkg/interfaces"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDimensions = 768
	DefaultCacheTTL   = 10 * time.Minute

	// FallbackModelVersion tags fingerprints whose vectors came from the digest fallback
	FallbackModelVersion = "fallback-sha256-v1"

	placeholderValue = 0.5
	maxParallel      = 4
)

// Vector is an embedding plus how it was obtained
type Vector struct {
	Values      []float32
	Fallback    bool
	Placeholder bool
}

type Gateway struct {
	provider   interfaces.Embedder
	dimensions int
	cacheTTL   time.Duration
	cache      *gocache.Cache
}

type Option func(*Gateway)

func WithDimensions(n int) Option {
	return func(g *Gateway) {
		g.dimensions = n
	}
}

// WithCacheTTL sets how long provider text embeddings are reused. Zero disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		g.cacheTTL = ttl
	}
}

// New creates a gateway. provider may be nil, in which case every vector is a fallback.
func New(provider interfaces.Embedder, opts ...Option) *Gateway {
	g := &Gateway{
		provider:   provider,
		dimensions: DefaultDimensions,
		cacheTTL:   DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cacheTTL > 0 {
		g.cache = gocache.New(g.cacheTTL, 2*g.cacheTTL)
	}
	return g
}

func (g *Gateway) Dimensions() int {
	return g.dimensions
}

// ModelVersion returns the version tag stored with a fingerprint built from vectors
func (g *Gateway) ModelVersion(fallback bool) string {
	if fallback || g.provider == nil {
		return FallbackModelVersion
	}
	return g.provider.ModelVersion()
}

// Fallback derives a deterministic vector from data: byte i%32 of its
// SHA-256 digest, scaled to [0,1].
func Fallback(data []byte, dimensions int) []float32 {
	sum := sha256.Sum256(data)
	v := make([]float32, dimensions)
	for i := range v {
		v[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return v
}

// Placeholder is the image vector used for claims submitted without photos
func Placeholder(dimensions int) []float32 {
	v := make([]float32, dimensions)
	for i := range v {
		v[i] = placeholderValue
	}
	return v
}

// EmbedText embeds a damage narrative. It never fails.
func (g *Gateway) EmbedText(ctx context.Context, text string) *Vector {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])

	if g.cache != nil {
		if v, found := g.cache.Get(key); found {
			return &Vector{Values: v.([]float32)}
		}
	}

	if g.provider != nil {
		values, err := g.provider.EmbedText(ctx, text)
		if err == nil {
			err = g.checkDimensions(values)
		}
		if err == nil {
			if g.cache != nil {
				g.cache.SetDefault(key, values)
			}
			return &Vector{Values: values}
		}
		logging.From(ctx).Warn("text embedding provider failed, using fallback", "error", err)
	} else {
		logging.From(ctx).Warn("no text embedding provider, using fallback")
	}

	return &Vector{Values: Fallback([]byte(text), g.dimensions), Fallback: true}
}

// EmbedImage embeds one photo. It never fails.
func (g *Gateway) EmbedImage(ctx context.Context, img *model.ImagePayload) *Vector {
	if g.provider != nil {
		values, err := g.provider.EmbedImage(ctx, img.Data, img.ContentType)
		if err == nil {
			err = g.checkDimensions(values)
		}
		if err == nil {
			return &Vector{Values: values}
		}
		logging.From(ctx).Warn("image embedding provider failed, using fallback",
			"error", err,
			"filename", img.Filename,
		)
	} else {
		logging.From(ctx).Warn("no image embedding provider, using fallback", "filename", img.Filename)
	}

	return &Vector{Values: Fallback(img.Data, g.dimensions), Fallback: true}
}

// EmbedImages embeds every photo and returns their element-wise mean. Without
// photos the placeholder vector is returned. Only cancellation of ctx fails.
func (g *Gateway) EmbedImages(ctx context.Context, images []model.ImagePayload) (*Vector, error) {
	if len(images) == 0 {
		return &Vector{Values: Placeholder(g.dimensions), Placeholder: true}, nil
	}

	vectors := make([]*Vector, len(images))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallel)
	for i := range images {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			vectors[i] = g.EmbedImage(egCtx, &images[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "image embedding interrupted")
	}

	mean := make([]float32, g.dimensions)
	result := &Vector{Values: mean}
	for _, v := range vectors {
		if v.Fallback {
			result.Fallback = true
		}
		for j := range mean {
			mean[j] += v.Values[j]
		}
	}
	n := float32(len(vectors))
	for j := range mean {
		mean[j] /= n
	}
	return result, nil
}

func (g *Gateway) checkDimensions(values []float32) error {
	if len(values) != g.dimensions {
		return goerr.New("unexpected embedding dimensions",
			goerr.V("expected", g.dimensions),
			goerr.V("actual", len(values)),
		)
	}
	return nil
}
