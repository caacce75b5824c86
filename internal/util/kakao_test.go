package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeeMore(t *testing.T) {
	out := SeeMore("📜 최근 대국", "📜 최근 대국\n\nline1\nline2")
	assert.True(t, strings.HasPrefix(out, "📜 최근 대국"+KakaoZeroWidthSpace))
	assert.Equal(t, KakaoSeeMorePadding, strings.Count(out, KakaoZeroWidthSpace))
	assert.True(t, strings.HasSuffix(out, "\nline1\nline2"))
	assert.Equal(t, 1, strings.Count(out, "📜 최근 대국"))
}

func TestSeeMoreEmptyBody(t *testing.T) {
	assert.Equal(t, "  ", SeeMore("h", "  "))
}
