// Package identity decides whether two playback descriptors describe the
// same watch. These predicates are the only place descriptor identity fields
// are compared.
package identity

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sharetube/watchsync/internal/domain"
)

// SameContent reports whether a and b are the same title. A canonical id on
// both sides is decisive. Otherwise titles must match and release years must
// match unless either side omits it. Missing titles never match.
func SameContent(a, b domain.Descriptor) bool {
	if a.CanonicalID != "" && b.CanonicalID != "" {
		return a.CanonicalID == b.CanonicalID
	}

	titleA, titleB := normalizeTitle(a.Title), normalizeTitle(b.Title)
	if titleA == "" || titleB == "" || titleA != titleB {
		return false
	}

	yearA, yearB := strings.TrimSpace(a.ReleaseYear), strings.TrimSpace(b.ReleaseYear)
	return yearA == "" || yearB == "" || yearA == yearB
}

func SameContentAndSource(a, b domain.Descriptor) bool {
	return SameContent(a, b) && a.Source == b.Source
}

func SameContentAndEpisode(a, b domain.Descriptor) bool {
	return SameContentAndSource(a, b) && a.EpisodeIndex == b.EpisodeIndex
}

func SameContentDifferentSource(a, b domain.Descriptor) bool {
	return SameContent(a, b) && a.Source != b.Source
}

func normalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}
