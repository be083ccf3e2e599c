// Package compose assembles the outbound response from downloaded media.
// It is a pure function of its input: no network, no shared state.
package compose

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"booru-bot/internal/booru"
	"booru-bot/internal/download"
)

// Kind discriminates response parts.
type Kind int

const (
	KindText Kind = iota
	KindImage
)

// Part is one segment of the outbound response.
type Part struct {
	Kind Kind
	Text string
	Blob download.Blob
}

// Response is the ordered outbound message: optional rating banner, all
// images in download order, optional info footer.
type Response struct {
	Parts []Part
}

// Input carries everything Compose needs.
type Input struct {
	Rating      booru.Rating
	Tag         string
	CandidateID int
	Blobs       []download.Blob

	ShowSafeModeMark bool
	ShowImageInfo    bool
	SuccessTemplate  string
}

// Compose builds the response. Identical inputs always produce an identical
// part sequence.
func Compose(in Input) Response {
	var parts []Part

	if in.ShowSafeModeMark {
		if label := in.Rating.Label(); label != "" {
			parts = append(parts, Part{Kind: KindText, Text: label})
		}
	}

	parts = append(parts, lo.Map(in.Blobs, func(b download.Blob, _ int) Part {
		return Part{Kind: KindImage, Blob: b}
	})...)

	if in.ShowImageInfo {
		footer := Expand(in.SuccessTemplate, in.Tag)
		parts = append(parts, Part{
			Kind: KindText,
			Text: fmt.Sprintf("%s | id: %d", footer, in.CandidateID),
		})
	}

	return Response{Parts: parts}
}

// Expand substitutes {tag} in a message template.
func Expand(template, tag string) string {
	return strings.ReplaceAll(template, "{tag}", tag)
}
