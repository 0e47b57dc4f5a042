package content

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
)

// maxSlugProbes bounds the incrementing-suffix search before switching to a
// randomized fallback slug.
const maxSlugProbes = 50

// Slugify lowercases a title and reduces it to hyphen-separated
// alphanumeric runs. Titles with no usable characters become "untitled".
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// allocateSlug finds a slug unique within the owner's slug space by probing
// the base slug and then numbered variants (base-2, base-3, ...). The probe
// is advisory; the UNIQUE constraint is the real arbiter and callers retry
// with fallbackSlug on a lost race.
func (s *Service) allocateSlug(ctx context.Context, ownerID ksid.ID, title string) (string, error) {
	base := Slugify(title)
	for i := 0; i < maxSlugProbes; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i+1)
		}
		exists, err := s.store.SlugExists(ctx, ownerID, candidate)
		if err != nil {
			return "", models.InternalWithError("checking slug", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return fallbackSlug(base), nil
}

// fallbackSlug appends a timestamp and random suffix, making a collision
// practically impossible.
func fallbackSlug(base string) string {
	return fmt.Sprintf("%s-%d-%04x", base, time.Now().Unix(), rand.Uint32N(0x10000))
}
