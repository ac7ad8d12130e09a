package service

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"genstudio/internal/cache"
	apperrors "genstudio/internal/errors"
	"genstudio/internal/metrics"
	"genstudio/internal/model"
	"genstudio/internal/repository"
	"genstudio/internal/storage"
)

const (
	// RecentGenerationsLimit caps the listing endpoint.
	RecentGenerationsLimit = 5
	// DefaultImageURL is recorded when no image was uploaded.
	DefaultImageURL = "/static/mock.png"
	// DefaultArtifactExt is used for uploads whose filename has no extension.
	DefaultArtifactExt = ".png"
	// DefaultOverloadProbability is the share of requests rejected with 429.
	DefaultOverloadProbability = 0.2

	minSimulatedLatency = 1000 * time.Millisecond
	maxSimulatedLatency = 2000 * time.Millisecond
	recentCacheTTL      = 30 * time.Second
)

// OverloadPolicy reports whether the current request should be rejected as
// overloaded.
type OverloadPolicy func() bool

// NeverOverloaded accepts every request.
func NeverOverloaded() bool { return false }

// AlwaysOverloaded rejects every request.
func AlwaysOverloaded() bool { return true }

// ProbabilisticOverload rejects each request independently with probability p.
func ProbabilisticOverload(p float64) OverloadPolicy {
	if p <= 0 {
		return NeverOverloaded
	}
	return func() bool { return rand.Float64() < p }
}

// LatencyFunc returns the simulated processing time for one request.
type LatencyFunc func() time.Duration

// NoLatency disables the simulated delay.
func NoLatency() time.Duration { return 0 }

// UniformLatency draws uniformly from [min, max).
func UniformLatency(min, max time.Duration) LatencyFunc {
	if max <= min {
		return func() time.Duration { return min }
	}
	return func() time.Duration { return min + time.Duration(rand.Int63n(int64(max-min))) }
}

// Upload is an attached file. Open is only called once the request has passed
// backpressure and latency, so rejected requests never open the stream.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

func (u *Upload) present() bool {
	return u != nil && u.Size > 0 && u.Open != nil
}

// CreateGenerationInput is a validated generation request.
type CreateGenerationInput struct {
	Prompt string
	Style  string
	Upload *Upload
}

// GenerationOptions tunes the simulated backend. Zero values select the
// production behaviour.
type GenerationOptions struct {
	Overload OverloadPolicy
	Latency  LatencyFunc
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// GenerationService creates and lists generations.
type GenerationService interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateGenerationInput) (*model.Generation, error)
	ListRecent(ctx context.Context, userID uuid.UUID) ([]model.Generation, error)
}

type generationService struct {
	userRepo       repository.UserRepository
	generationRepo repository.GenerationRepository
	artifacts      storage.ArtifactStore
	cache          *cache.Client
	overload       OverloadPolicy
	latency        LatencyFunc
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewGenerationService creates a new generation service.
func NewGenerationService(
	userRepo repository.UserRepository,
	generationRepo repository.GenerationRepository,
	artifacts storage.ArtifactStore,
	cache *cache.Client,
	opts GenerationOptions,
) GenerationService {
	s := &generationService{
		userRepo:       userRepo,
		generationRepo: generationRepo,
		artifacts:      artifacts,
		cache:          cache,
		overload:       opts.Overload,
		latency:        opts.Latency,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
	}
	if s.overload == nil {
		s.overload = ProbabilisticOverload(DefaultOverloadProbability)
	}
	if s.latency == nil {
		s.latency = UniformLatency(minSimulatedLatency, maxSimulatedLatency)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func recentVersionKey(userID uuid.UUID) string {
	return fmt.Sprintf("generations:recent:%s:version", userID.String())
}

// recentCacheKey names the cached listing for the user's current version.
// Create bumps the version, so a listing filled from a read that raced a
// create lands under a key nobody reads any more.
func (s *generationService) recentCacheKey(ctx context.Context, userID uuid.UUID) string {
	version := "0"
	if data, _ := s.cache.Get(ctx, recentVersionKey(userID)); data != nil {
		version = string(data)
	}
	return fmt.Sprintf("generations:recent:%s:v%s", userID.String(), version)
}

// Create runs the simulated generation: backpressure, latency, ownership
// re-check, artifact write and persistence, in that order.
func (s *generationService) Create(ctx context.Context, userID uuid.UUID, in CreateGenerationInput) (*model.Generation, error) {
	log := s.logger.With(zap.String("user_id", userID.String()))

	if s.overload() {
		s.metrics.Generation(metrics.OutcomeOverloaded)
		log.Info("generation rejected: simulated overload")
		return nil, apperrors.ErrModelOverloaded
	}

	if err := s.simulateLatency(ctx); err != nil {
		s.metrics.Generation(metrics.OutcomeCancelled)
		log.Info("generation abandoned during processing", zap.Error(err))
		return nil, fmt.Errorf("simulate latency: %w", err)
	}

	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			s.metrics.Generation(metrics.OutcomeNotFound)
			log.Warn("user not found when creating generation")
			return nil, apperrors.ErrUserNotFound
		}
		s.metrics.Generation(metrics.OutcomeFailed)
		return nil, fmt.Errorf("find user: %w", err)
	}

	imageURL := DefaultImageURL
	if in.Upload.present() {
		url, err := s.saveArtifact(ctx, in.Upload)
		if err != nil {
			s.metrics.Generation(metrics.OutcomeFailed)
			log.Error("failed to save uploaded image", zap.Error(err))
			return nil, apperrors.ErrArtifactWrite
		}
		s.metrics.Upload()
		imageURL = url
	}

	gen := &model.Generation{
		UserID:   userID,
		Prompt:   in.Prompt,
		Style:    in.Style,
		ImageURL: imageURL,
		Status:   model.GenerationStatusSucceeded,
	}
	if err := s.generationRepo.Create(ctx, gen); err != nil {
		s.metrics.Generation(metrics.OutcomeFailed)
		return nil, fmt.Errorf("create generation: %w", err)
	}

	_ = s.cache.Incr(ctx, recentVersionKey(userID))
	s.metrics.Generation(metrics.OutcomeSucceeded)
	log.Info("generation created", zap.String("generation_id", gen.ID.String()))
	return gen, nil
}

// ListRecent returns the user's newest generations, at most
// RecentGenerationsLimit.
func (s *generationService) ListRecent(ctx context.Context, userID uuid.UUID) ([]model.Generation, error) {
	key := s.recentCacheKey(ctx, userID)

	var cached []model.Generation
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	gens, err := s.generationRepo.ListRecentByUser(ctx, userID, RecentGenerationsLimit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	if gens == nil {
		gens = []model.Generation{}
	}

	_ = s.cache.SetJSON(ctx, key, gens, recentCacheTTL)
	return gens, nil
}

func (s *generationService) simulateLatency(ctx context.Context) error {
	d := s.latency()
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		s.metrics.Latency(d.Seconds())
		return nil
	}
}

func (s *generationService) saveArtifact(ctx context.Context, upload *Upload) (string, error) {
	body, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer body.Close()

	ext := filepath.Ext(upload.Filename)
	if ext == "" || ext == "." {
		ext = DefaultArtifactExt
	}
	return s.artifacts.Save(ctx, uuid.NewString()+ext, body)
}
