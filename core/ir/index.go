package ir

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/FocuswithJustin/worship-direct/core/errors"
)

// bookVerses holds every verse of one book: chapter -> verse -> text.
type bookVerses struct {
	name     string
	chapters map[int]map[int]string

	// Filled by Builder.Build; ascending.
	chapterKeys []int
	verseKeys   map[int][]int
}

// VerseIndex is the canonical book -> chapter -> verse -> text structure.
//
// A VerseIndex is produced by Builder.Build and never changes afterwards, so
// any number of goroutines may read it without locking. To reload data,
// build a new index and swap the reference held by the reader.
type VerseIndex struct {
	reg    *Registry
	books  map[string]*bookVerses // keyed by FoldName
	order  []*bookVerses
	verses int
}

// Builder accumulates verses for a VerseIndex. Duplicate (book, chapter, verse)
// keys follow a last-write-wins policy. A Builder is not safe for concurrent use.
type Builder struct {
	reg        *Registry
	books      map[string]*bookVerses
	verses     int
	duplicates int
}

// NewBuilder returns an empty Builder that resolves book names through reg.
func NewBuilder(reg *Registry) *Builder {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Builder{reg: reg, books: make(map[string]*bookVerses)}
}

// Insert stores text under ref, creating intermediate levels on demand.
// Books known to the registry are stored under their registry spelling;
// other books keep the spelling of their first insertion. It reports whether
// an existing verse was replaced.
func (b *Builder) Insert(ref VerseRef, text string) (replaced bool, err error) {
	if ref.Chapter < 1 || ref.Verse < 1 {
		return false, errors.NewRecord(errors.KindRecordMalformed, ref.String(),
			fmt.Sprintf("chapter and verse must be positive, got %d:%d", ref.Chapter, ref.Verse))
	}
	key := FoldName(ref.Book)
	if key == "" {
		return false, errors.NewRecord(errors.KindRecordMalformed, ref.String(), "empty book name")
	}

	bv, ok := b.books[key]
	if !ok {
		name, known := b.reg.Canonical(ref.Book)
		if !known {
			name = collapseSpaces(ref.Book)
		}
		bv = &bookVerses{name: name, chapters: make(map[int]map[int]string)}
		b.books[key] = bv
	}
	chapter, ok := bv.chapters[ref.Chapter]
	if !ok {
		chapter = make(map[int]string)
		bv.chapters[ref.Chapter] = chapter
	}
	if _, replaced = chapter[ref.Verse]; replaced {
		b.duplicates++
	} else {
		b.verses++
	}
	chapter[ref.Verse] = text
	return replaced, nil
}

// Len returns the number of distinct verses inserted so far.
func (b *Builder) Len() int { return b.verses }

// Duplicates returns how many inserts replaced an existing verse.
func (b *Builder) Duplicates() int { return b.duplicates }

// Build freezes the accumulated verses into a VerseIndex and resets the Builder.
func (b *Builder) Build() *VerseIndex {
	idx := &VerseIndex{
		reg:    b.reg,
		books:  b.books,
		verses: b.verses,
	}
	for _, bv := range b.books {
		bv.chapterKeys = slices.Sorted(maps.Keys(bv.chapters))
		bv.verseKeys = make(map[int][]int, len(bv.chapters))
		for c, vs := range bv.chapters {
			bv.verseKeys[c] = slices.Sorted(maps.Keys(vs))
		}
		idx.order = append(idx.order, bv)
	}
	slices.SortFunc(idx.order, func(x, y *bookVerses) int {
		return compareBooks(b.reg, x.name, y.name)
	})

	b.books = make(map[string]*bookVerses)
	b.verses = 0
	b.duplicates = 0
	return idx
}

// Registry returns the registry the index resolves book names with.
func (x *VerseIndex) Registry() *Registry { return x.reg }

// Len returns the number of verses in the index.
func (x *VerseIndex) Len() int { return x.verses }

// book resolves a book name case-insensitively.
func (x *VerseIndex) book(name string) (*bookVerses, bool) {
	bv, ok := x.books[FoldName(name)]
	return bv, ok
}

// Lookup returns the text stored for book chapter:verse. The book name is
// matched without regard to case.
func (x *VerseIndex) Lookup(book string, chapter, verse int) (string, bool) {
	bv, ok := x.book(book)
	if !ok {
		return "", false
	}
	text, ok := bv.chapters[chapter][verse]
	return text, ok
}

// LookupRef is Lookup for a parsed reference.
func (x *VerseIndex) LookupRef(ref VerseRef) (string, bool) {
	return x.Lookup(ref.Book, ref.Chapter, ref.Verse)
}

// HasBook reports whether any verse of book is stored.
func (x *VerseIndex) HasBook(book string) bool {
	_, ok := x.book(book)
	return ok
}

// BookName returns the stored spelling of book.
func (x *VerseIndex) BookName(book string) (string, bool) {
	bv, ok := x.book(book)
	if !ok {
		return "", false
	}
	return bv.name, true
}

// Books returns the stored book names, registry books first in canonical order.
func (x *VerseIndex) Books() []string {
	out := make([]string, 0, len(x.order))
	for _, bv := range x.order {
		out = append(out, bv.name)
	}
	return out
}

// Chapters returns the chapter numbers stored for book, ascending.
func (x *VerseIndex) Chapters(book string) []int {
	bv, ok := x.book(book)
	if !ok {
		return nil
	}
	return slices.Clone(bv.chapterKeys)
}

// Verses returns the verse numbers stored for book chapter, ascending.
func (x *VerseIndex) Verses(book string, chapter int) []int {
	bv, ok := x.book(book)
	if !ok {
		return nil
	}
	return slices.Clone(bv.verseKeys[chapter])
}

// All yields every verse in canonical order: books, then chapters, then verses.
func (x *VerseIndex) All() iter.Seq2[VerseRef, string] {
	return func(yield func(VerseRef, string) bool) {
		for _, bv := range x.order {
			for _, c := range bv.chapterKeys {
				for _, v := range bv.verseKeys[c] {
					if !yield(VerseRef{Book: bv.name, Chapter: c, Verse: v}, bv.chapters[c][v]) {
						return
					}
				}
			}
		}
	}
}

// Equal reports whether x and other hold the same books, chapters, verses and texts.
func (x *VerseIndex) Equal(other *VerseIndex) bool {
	if x == nil || other == nil {
		return x == other
	}
	if x.verses != other.verses || len(x.order) != len(other.order) {
		return false
	}
	for i, bv := range x.order {
		ov := other.order[i]
		if bv.name != ov.name || len(bv.chapters) != len(ov.chapters) {
			return false
		}
		for c, vs := range bv.chapters {
			ovs, ok := ov.chapters[c]
			if !ok || !maps.Equal(vs, ovs) {
				return false
			}
		}
	}
	return true
}

// collapseSpaces trims s and collapses internal whitespace runs to one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
