// Package picker selects one random candidate for a tag.
package picker

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"booru-bot/internal/booru"
)

// Catalog is the slice of the catalog client the picker needs.
type Catalog interface {
	DiscoverPageCount(ctx context.Context, tag string, rating booru.Rating) (int, error)
	QueryPage(ctx context.Context, tag string, rating booru.Rating, page int) ([]booru.Candidate, error)
}

// Picker samples a candidate in two stages: a page uniform over the
// discovered page range, then an item uniform within that page. The last page
// is usually shorter, so the overall draw is slightly biased toward its
// items. That matches the deployed behavior and stays as is.
type Picker struct {
	catalog Catalog
	intn    func(n int) int
	log     *zap.Logger
}

// New returns a Picker backed by the given catalog.
func New(catalog Catalog, log *zap.Logger) *Picker {
	return &Picker{
		catalog: catalog,
		intn:    rand.Intn,
		log:     log,
	}
}

// Pick chooses one candidate for (tag, rating). The page count is discovered
// fresh on every call. A page that turns out empty is reported as
// booru.ErrNoCandidates without retrying other pages.
func (p *Picker) Pick(ctx context.Context, tag string, rating booru.Rating) (booru.Candidate, error) {
	pages, err := p.catalog.DiscoverPageCount(ctx, tag, rating)
	if err != nil {
		return booru.Candidate{}, fmt.Errorf("discover page count: %w", err)
	}

	page := p.intn(pages) + 1
	candidates, err := p.catalog.QueryPage(ctx, tag, rating, page)
	if err != nil {
		return booru.Candidate{}, fmt.Errorf("query page %d: %w", page, err)
	}
	if len(candidates) == 0 {
		return booru.Candidate{}, fmt.Errorf("page %d of %d: %w", page, pages, booru.ErrNoCandidates)
	}

	chosen := candidates[p.intn(len(candidates))]
	p.log.Info("picked candidate",
		zap.String("tag", tag),
		zap.Int("page", page),
		zap.Int("pages", pages),
		zap.Int("post_id", chosen.ID),
		zap.String("post_rating", chosen.Rating),
	)
	return chosen, nil
}
