package ir

import "iter"

// MaxSuggestions is the upper bound on candidates returned for a miss.
const MaxSuggestions = 5

// Suggester proposes nearby references after a lookup miss. It only ever
// returns references stored in its index, so it never invents book names.
type Suggester struct {
	idx   *VerseIndex
	limit int
}

// NewSuggester returns a Suggester over idx. A limit outside 1..MaxSuggestions
// is replaced by MaxSuggestions.
func NewSuggester(idx *VerseIndex, limit int) *Suggester {
	if limit < 1 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}
	return &Suggester{idx: idx, limit: limit}
}

// Seq yields the candidates for book and chapter in the index's natural order.
// The book is matched without regard to case. A chapter of 0 means the chapter
// is unknown and walks the whole book; a chapter that is not stored yields
// nothing. The sequence keeps no state between iterations.
func (s *Suggester) Seq(book string, chapter int) iter.Seq[VerseRef] {
	return func(yield func(VerseRef) bool) {
		bv, ok := s.idx.book(book)
		if !ok {
			return
		}
		chapters := bv.chapterKeys
		if chapter != 0 {
			if _, ok := bv.verseKeys[chapter]; !ok {
				return
			}
			chapters = []int{chapter}
		}
		for _, c := range chapters {
			for _, v := range bv.verseKeys[c] {
				if !yield(VerseRef{Book: bv.name, Chapter: c, Verse: v}) {
					return
				}
			}
		}
	}
}

// Suggest returns at most the configured limit of candidates from Seq.
func (s *Suggester) Suggest(book string, chapter int) []VerseRef {
	out := make([]VerseRef, 0, s.limit)
	for ref := range s.Seq(book, chapter) {
		out = append(out, ref)
		if len(out) == s.limit {
			break
		}
	}
	return out
}
