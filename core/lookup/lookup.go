// Package lookup answers verse queries against a loaded index.
//
// A Service holds the current index behind an atomic pointer. Reloading
// data means building a new index and calling Swap; readers never see a
// partially built index and never block.
package lookup

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
)

// Result is the outcome of one query. A miss is not an error: Found is
// false and Suggestions holds nearby stored references, possibly none.
type Result struct {
	Ref         ir.VerseRef   `json:"ref"`
	Found       bool          `json:"found"`
	Text        string        `json:"text,omitempty"`
	Suggestions []ir.VerseRef `json:"suggestions,omitempty"`
}

// Service routes queries to the current index and misses to a Suggester.
type Service struct {
	idx   atomic.Pointer[ir.VerseIndex]
	limit int
}

// New returns a Service over idx, which may be nil until the first Swap.
// limit bounds the suggestions per miss; see ir.NewSuggester.
func New(idx *ir.VerseIndex, limit int) *Service {
	s := &Service{limit: limit}
	if idx != nil {
		s.idx.Store(idx)
	}
	return s
}

// Swap installs idx for all subsequent queries and returns the previous index.
func (s *Service) Swap(idx *ir.VerseIndex) *ir.VerseIndex {
	return s.idx.Swap(idx)
}

// Index returns the index queries currently run against.
func (s *Service) Index() *ir.VerseIndex {
	return s.idx.Load()
}

// Lookup parses a "Book Chapter:Verse" query and resolves it. Invalid
// syntax is returned as an ErrReferenceMalformed error for the caller to
// show the user.
func (s *Service) Lookup(query string) (*Result, error) {
	ref, err := ir.ParseRef(query)
	if err != nil {
		return nil, err
	}
	return s.resolve(*ref)
}

// LookupParts resolves a reference given as separate fields, as a form would
// submit them.
func (s *Service) LookupParts(book string, chapter, verse int) (*Result, error) {
	book = strings.Join(strings.Fields(book), " ")
	if book == "" {
		return nil, errors.NewReference(book, "book is required")
	}
	if chapter < 1 || verse < 1 {
		return nil, errors.NewReference(fmt.Sprintf("%s %d:%d", book, chapter, verse),
			"chapter and verse must be positive")
	}
	return s.resolve(ir.VerseRef{Book: book, Chapter: chapter, Verse: verse})
}

// Suggest lists stored references for book and chapter without a lookup.
// A chapter of 0 walks the whole book.
func (s *Service) Suggest(book string, chapter int) ([]ir.VerseRef, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, errNoIndex()
	}
	return ir.NewSuggester(idx, s.limit).Suggest(book, chapter), nil
}

func (s *Service) resolve(ref ir.VerseRef) (*Result, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, errNoIndex()
	}

	if name, ok := idx.BookName(ref.Book); ok {
		ref.Book = name
	}
	if text, ok := idx.LookupRef(ref); ok {
		return &Result{Ref: ref, Found: true, Text: text}, nil
	}
	return &Result{
		Ref:         ref,
		Suggestions: ir.NewSuggester(idx, s.limit).Suggest(ref.Book, ref.Chapter),
	}, nil
}

func errNoIndex() error {
	return errors.NewNotFound("verse index", "")
}
