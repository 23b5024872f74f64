package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Clause is one contiguous span of the document, addressed by byte offsets.
// Clauses partition the document: every byte of the input belongs to exactly
// one clause, so concatenating the clause texts in order reproduces the
// document without loss.
type Clause struct {
	Index int
	Start int
	End   int
}

// Segmenter splits raw document text into clause candidates. Splits happen
// at sentence-ending punctuation and at line breaks; fragments shorter than
// minTokens words are merged with the following fragment so single-word
// scraps never become clauses of their own.
type Segmenter struct {
	minTokens int
}

func NewSegmenter(minTokens int) *Segmenter {
	if minTokens < 1 {
		minTokens = 1
	}
	return &Segmenter{minTokens: minTokens}
}

// Segment returns the ordered clause sequence for text. Empty or
// whitespace-only input yields an empty sequence, not an error.
func (s *Segmenter) Segment(text string) []Clause {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	fragments := splitFragments(text)

	// Merge fragments below the minimum token count into the following
	// fragment; a trailing short fragment merges backwards instead.
	var spans [][2]int
	carry := -1
	for _, frag := range fragments {
		start := frag[0]
		if carry >= 0 {
			start = carry
		}
		if tokenCount(text[start:frag[1]]) < s.minTokens {
			carry = start
			continue
		}
		spans = append(spans, [2]int{start, frag[1]})
		carry = -1
	}
	if carry >= 0 {
		if len(spans) > 0 {
			spans[len(spans)-1][1] = len(text)
		} else {
			spans = append(spans, [2]int{carry, len(text)})
		}
	}

	clauses := make([]Clause, len(spans))
	for i, span := range spans {
		clauses[i] = Clause{Index: i, Start: span[0], End: span[1]}
	}
	return clauses
}

// splitFragments cuts text after sentence-ending punctuation (when followed
// by whitespace or end of input, so dates like 01.01.2023 stay intact) and
// after line breaks. Each fragment absorbs the whitespace that follows its
// terminator, keeping the fragments contiguous.
func splitFragments(text string) [][2]int {
	var fragments [][2]int
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		switch r {
		case '.', '!', '?':
			if i < len(text) {
				next, _ := utf8.DecodeRuneInString(text[i:])
				if !unicode.IsSpace(next) {
					continue
				}
			}
			i = absorbSpace(text, i)
			fragments = append(fragments, [2]int{start, i})
			start = i
		case '\n':
			i = absorbSpace(text, i)
			fragments = append(fragments, [2]int{start, i})
			start = i
		}
	}
	if start < len(text) {
		// Trailing text without terminal punctuation is its own fragment
		fragments = append(fragments, [2]int{start, len(text)})
	}
	return fragments
}

func absorbSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			return i
		}
		i += size
	}
	return i
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}
