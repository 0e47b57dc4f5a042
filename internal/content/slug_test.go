package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Meeting Notes", "meeting-notes"},
		{"  Hello,   World!  ", "hello-world"},
		{"Q3/2026 - Budget (final)", "q3-2026-budget-final"},
		{"CamelCase", "camelcase"},
		{"éclair au café", "éclair-au-café"},
		{"日本語のタイトル", "日本語のタイトル"},
		{"---", "untitled"},
		{"!!!", "untitled"},
		{"", "untitled"},
		{"a", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestFallbackSlug(t *testing.T) {
	a := fallbackSlug("report")
	b := fallbackSlug("report")
	assert.True(t, strings.HasPrefix(a, "report-"))
	// The random suffix makes same-second collisions practically impossible.
	assert.NotEqual(t, a, b)
}
