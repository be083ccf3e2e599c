// Package booru implements the client for a moebooru-style image catalog.
//
// Listing pages embed their post data as JSON inside a
// `script.js-preload-posts` tag; detail pages embed the full source list in a
// `Post.register_resp({...})` call. The client extracts both and exposes them
// as typed candidates, keeping the HTML shape out of the rest of the bot.
package booru

import "errors"

var (
	// ErrCatalogUnavailable covers transport failures and payloads the
	// catalog markup parser cannot make sense of.
	ErrCatalogUnavailable = errors.New("booru: catalog unavailable")

	// ErrNoCandidates means the query itself worked but matched nothing.
	ErrNoCandidates = errors.New("booru: no candidates found")
)

// Rating is the content-maturity tier used to filter catalog queries.
type Rating string

const (
	RatingAll          Rating = ""
	RatingSafe         Rating = "s"
	RatingQuestionable Rating = "q"
	RatingExplicit     Rating = "e"
	RatingExplicitPlus Rating = "e+"
)

// Valid reports whether r is one of the rating tiers accepted in config.
func (r Rating) Valid() bool {
	switch r {
	case RatingSafe, RatingQuestionable, RatingExplicit, RatingExplicitPlus:
		return true
	}
	return false
}

// Clause returns the search clause appended to catalog queries for this tier.
func (r Rating) Clause() string {
	switch r {
	case RatingSafe:
		return "rating:s"
	case RatingQuestionable:
		return "rating:q"
	case RatingExplicit:
		return "rating:e"
	case RatingExplicitPlus:
		return "rating:e score:>=50"
	}
	return ""
}

// Label is the banner mark shown when safe-mode marking is enabled.
func (r Rating) Label() string {
	switch r {
	case RatingSafe:
		return "【全年龄】"
	case RatingQuestionable:
		return "【微敏感】"
	case RatingExplicit:
		return "【R18】"
	case RatingExplicitPlus:
		return "【R18+】"
	}
	return ""
}

// Candidate is one catalog entry eligible for selection.
type Candidate struct {
	ID         int
	Rating     string
	PreviewURL string
	FileURL    string
}

// Source is one downloadable item resolved from a candidate's detail page.
// The preview variant is preferred when present since it is typically smaller.
type Source struct {
	PreviewURL string
	FileURL    string
}
