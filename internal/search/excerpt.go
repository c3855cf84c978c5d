package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// excerptContext is the number of bytes of context kept on either side of
// the matched term, adjusted outward to rune boundaries.
const excerptContext = 100

// buildExcerpt returns a snippet of content surrounding the first
// case-insensitive occurrence of term, with the occurrence wrapped in the
// given highlight tags. When the term does not occur the head of the
// content is returned untagged.
func buildExcerpt(content, term, startTag, endTag string) string {
	if content == "" {
		return ""
	}

	idx, matchLen := indexFold(content, term)
	if idx < 0 {
		end := clampToRune(content, 2*excerptContext)
		snippet := content[:end]
		if end < len(content) {
			snippet += "…"
		}
		return snippet
	}

	start := idx - excerptContext
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	end := idx + matchLen + excerptContext
	if end > len(content) {
		end = len(content)
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	b.WriteString(content[start:idx])
	b.WriteString(startTag)
	b.WriteString(content[idx : idx+matchLen])
	b.WriteString(endTag)
	b.WriteString(content[idx+matchLen : end])
	if end < len(content) {
		b.WriteString("…")
	}
	return b.String()
}

// indexFold returns the byte offset and byte length of the first
// case-insensitive occurrence of term in content, or (-1, 0). The scan works
// on content itself: case mapping can change a rune's encoded length, so
// offsets found on a lowered copy would not line up with the original.
func indexFold(content, term string) (int, int) {
	if term == "" || content == "" {
		return -1, 0
	}
	if i := strings.Index(content, term); i >= 0 {
		return i, len(term)
	}
	termRunes := []rune(term)
	for i := 0; i < len(content); {
		if end, ok := foldMatchAt(content, i, termRunes); ok {
			return i, end - i
		}
		_, size := utf8.DecodeRuneInString(content[i:])
		i += size
	}
	return -1, 0
}

// foldMatchAt reports whether term matches content at byte offset start,
// ignoring case, and returns the byte offset just past the match.
func foldMatchAt(content string, start int, term []rune) (int, bool) {
	j := start
	for _, tr := range term {
		if j >= len(content) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(content[j:])
		if r != tr && unicode.ToLower(r) != unicode.ToLower(tr) {
			return 0, false
		}
		j += size
	}
	return j, true
}

// clampToRune caps n to the content length and walks back to a rune
// boundary so slicing never splits a character.
func clampToRune(content string, n int) int {
	if n >= len(content) {
		return len(content)
	}
	for n > 0 && !utf8.RuneStart(content[n]) {
		n--
	}
	return n
}
