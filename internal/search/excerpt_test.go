package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExcerpt_ShortContent(t *testing.T) {
	got := buildExcerpt("Haake Beck is brewed in Bremen", "Beck", "<em>", "</em>")
	assert.Equal(t, "Haake <em>Beck</em> is brewed in Bremen", got)
}

func TestBuildExcerpt_CaseInsensitiveMatch(t *testing.T) {
	got := buildExcerpt("haake beck pilsner", "Beck", "<em>", "</em>")
	assert.Equal(t, "haake <em>beck</em> pilsner", got)
}

func TestBuildExcerpt_NoMatchReturnsHead(t *testing.T) {
	content := strings.Repeat("a", 300)
	got := buildExcerpt(content, "Beck", "<em>", "</em>")
	assert.Equal(t, strings.Repeat("a", 200)+"…", got)
	assert.NotContains(t, got, "<em>")
}

func TestBuildExcerpt_NoMatchShortContent(t *testing.T) {
	got := buildExcerpt("short", "Beck", "<em>", "</em>")
	assert.Equal(t, "short", got)
}

func TestBuildExcerpt_WindowsAroundMatch(t *testing.T) {
	content := strings.Repeat("x", 150) + "Beck" + strings.Repeat("y", 150)
	got := buildExcerpt(content, "Beck", "<em>", "</em>")

	assert.True(t, strings.HasPrefix(got, "…"))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Contains(t, got, strings.Repeat("x", 100)+"<em>Beck</em>"+strings.Repeat("y", 100))
}

func TestBuildExcerpt_MatchAtStart(t *testing.T) {
	content := "Beck" + strings.Repeat("y", 150)
	got := buildExcerpt(content, "Beck", "<em>", "</em>")

	assert.True(t, strings.HasPrefix(got, "<em>Beck</em>"))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestBuildExcerpt_EmptyContent(t *testing.T) {
	assert.Equal(t, "", buildExcerpt("", "Beck", "<em>", "</em>"))
}

func TestBuildExcerpt_EmptyTerm(t *testing.T) {
	got := buildExcerpt("Haake Beck", "", "<em>", "</em>")
	assert.Equal(t, "Haake Beck", got)
}

func TestBuildExcerpt_RuneBoundaries(t *testing.T) {
	// multi-byte runes surround the match; the window must not split them
	content := strings.Repeat("ä", 120) + "Beck" + strings.Repeat("ö", 120)
	got := buildExcerpt(content, "Beck", "<em>", "</em>")
	assert.True(t, strings.Contains(got, "<em>Beck</em>"))
	assert.True(t, strings.HasPrefix(got, "…"))
	assert.True(t, strings.HasSuffix(got, "…"))
	for _, r := range got {
		assert.NotEqual(t, '�', r)
	}
}

func TestBuildExcerpt_CaseMappingShrinksBytes(t *testing.T) {
	// "İ" lowers to a shorter encoding; match offsets must come from the
	// original text, not a lowered copy
	content := strings.Repeat("İ", 100) + "beck"
	got := buildExcerpt(content, "beck", "<em>", "</em>")
	assert.Contains(t, got, "<em>beck</em>")
	assert.NotContains(t, got, "<em>İ")
}

func TestBuildExcerpt_CaseMappingGrowsBytes(t *testing.T) {
	// "Ⱥ" lowers to a longer encoding; a lowered-copy offset would point
	// past the end of the original content
	content := strings.Repeat("Ⱥ", 300) + "beck"
	got := buildExcerpt(content, "beck", "<em>", "</em>")
	assert.Contains(t, got, "<em>beck</em>")
	assert.True(t, strings.HasPrefix(got, "…"))
}

func TestBuildExcerpt_FoldMatchAmidLengthChangingRunes(t *testing.T) {
	content := strings.Repeat("Ⱥ", 150) + "BECK" + strings.Repeat("İ", 150)
	got := buildExcerpt(content, "beck", "<em>", "</em>")
	assert.Contains(t, got, "<em>BECK</em>")
	for _, r := range got {
		assert.NotEqual(t, '�', r)
	}
}

func TestIndexFold(t *testing.T) {
	idx, n := indexFold("Haake Beck", "beck")
	assert.Equal(t, 6, idx)
	assert.Equal(t, 4, n)

	idx, n = indexFold("İİbeck", "BECK")
	assert.Equal(t, 4, idx)
	assert.Equal(t, 4, n)

	idx, _ = indexFold("Haake Beck", "pilsner")
	assert.Equal(t, -1, idx)

	idx, _ = indexFold("Haake Beck", "")
	assert.Equal(t, -1, idx)
}

func TestClampToRune(t *testing.T) {
	assert.Equal(t, 5, clampToRune("hello", 10))
	assert.Equal(t, 3, clampToRune("hello", 3))
	// "ä" is two bytes; clamping inside it walks back to the boundary
	assert.Equal(t, 0, clampToRune("äbc", 1))
}
