// Package picture runs the randomized media fetch pipeline: throttle gate,
// candidate selection, download, response composition — strictly in that
// order, scoped to one request.
package picture

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"booru-bot/internal/booru"
	"booru-bot/internal/compose"
	"booru-bot/internal/download"
	"booru-bot/internal/picker"
	"booru-bot/pkg/ratelimiter"
)

// Catalog is the full catalog surface the pipeline needs.
type Catalog interface {
	picker.Catalog
	QueryDetail(ctx context.Context, id int) ([]booru.Source, error)
}

// Fetcher downloads resolved sources into inline blobs.
type Fetcher interface {
	Fetch(ctx context.Context, sources []booru.Source) ([]download.Blob, error)
}

// RateLimitedError rejects a request before any network work happens.
type RateLimitedError struct {
	Seconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", e.Seconds)
}

// Deps is a carrier of dependencies for Service.
type Deps struct {
	Catalog Catalog
	Fetcher Fetcher
	Limiter *ratelimiter.Limiter
	Log     *zap.Logger
}

// Opts is a carrier of options for Service.
type Opts struct {
	// Rating is derived once from configuration; booru.RatingAll when NSFW
	// filtering is disabled.
	Rating booru.Rating

	ShowSafeModeMark bool
	ShowImageInfo    bool
	SuccessTemplate  string
}

// Service is the request pipeline. One call, one composed response or one
// typed error; nothing here is fatal to the process.
type Service struct {
	catalog Catalog
	picker  *picker.Picker
	fetcher Fetcher
	limiter *ratelimiter.Limiter
	opts    Opts
	log     *zap.Logger
}

// NewService wires the pipeline together.
func NewService(deps Deps, opts Opts) *Service {
	return &Service{
		catalog: deps.Catalog,
		picker:  picker.New(deps.Catalog, deps.Log),
		fetcher: deps.Fetcher,
		limiter: deps.Limiter,
		opts:    opts,
		log:     deps.Log,
	}
}

// RandomPicture serves one request: admit, select, download, compose.
// Failures come back as *RateLimitedError, booru.ErrNoCandidates,
// booru.ErrCatalogUnavailable or download.ErrNoUsableMedia for the caller to
// translate into a user-facing message.
func (s *Service) RandomPicture(ctx context.Context, userID, tag string) (*compose.Response, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("empty tag: %w", booru.ErrNoCandidates)
	}

	if verdict := s.limiter.CheckAndRecord(userID); !verdict.Allowed {
		s.log.Info("request throttled", zap.String("user", userID), zap.Int("retry_sec", verdict.Seconds()))
		return nil, &RateLimitedError{Seconds: verdict.Seconds()}
	}

	candidate, err := s.picker.Pick(ctx, tag, s.opts.Rating)
	if err != nil {
		return nil, err
	}

	sources, err := s.catalog.QueryDetail(ctx, candidate.ID)
	if err != nil {
		return nil, err
	}

	blobs, err := s.fetcher.Fetch(ctx, sources)
	if err != nil {
		return nil, err
	}

	resp := compose.Compose(compose.Input{
		Rating:           s.opts.Rating,
		Tag:              tag,
		CandidateID:      candidate.ID,
		Blobs:            blobs,
		ShowSafeModeMark: s.opts.ShowSafeModeMark,
		ShowImageInfo:    s.opts.ShowImageInfo,
		SuccessTemplate:  s.opts.SuccessTemplate,
	})

	s.log.Info("composed response",
		zap.String("user", userID),
		zap.String("tag", tag),
		zap.Int("post_id", candidate.ID),
		zap.Int("images", len(blobs)),
	)
	return &resp, nil
}
