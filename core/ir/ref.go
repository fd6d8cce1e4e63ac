package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/worship-direct/core/errors"
)

// VerseRef identifies exactly one verse: "Book Chapter:Verse".
type VerseRef struct {
	// Book is the book name as written, or its registry spelling once canonicalized.
	Book string `json:"book"`

	// Chapter is the chapter number (1-indexed).
	Chapter int `json:"chapter"`

	// Verse is the verse number (1-indexed).
	Verse int `json:"verse"`
}

// refGrammar is the participle grammar for "Book Chapter:Verse" references.
// Examples: "Genesis 1:1", "1 Samuel 2:3", "Song of Solomon 2:1"
//
//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	Book     []string `@(Word | Int)+`
	Location string   `@Location`
}

// refLexer defines the lexer for verse references.
// Rule order matters: Location must win over Int so "3:16" is one token,
// which keeps every number before it on the book side ("1 Samuel").
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Location", Pattern: `[0-9]+:[0-9]+`},
	{Name: "Word", Pattern: `[0-9]*[^\s:0-9][^\s:]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// refParser is the participle parser for verse references.
var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// ParseRef parses a "Book Chapter:Verse" reference.
// The trailing chapter:verse pair is anchored at the end of the trimmed input;
// everything before it is the book name, which may hold spaces and a leading
// numeral. The book is not checked against a Registry.
func ParseRef(s string) (*VerseRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.NewReference(s, "empty reference string")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrReferenceMalformed, &errors.ParseError{
			Format:  "reference",
			Input:   s,
			Message: "expected \"<book> <chapter>:<verse>\"",
			Err:     err,
		})
	}

	chapterText, verseText, _ := strings.Cut(parsed.Location, ":")
	chapter, err := parsePositive(chapterText)
	if err != nil {
		return nil, errors.NewReference(s, "chapter "+err.Error())
	}
	verse, err := parsePositive(verseText)
	if err != nil {
		return nil, errors.NewReference(s, "verse "+err.Error())
	}

	book := strings.Join(parsed.Book, " ")
	if book == "" {
		return nil, errors.NewReference(s, "missing book name")
	}

	return &VerseRef{Book: book, Chapter: chapter, Verse: verse}, nil
}

// parsePositive parses a decimal string as an integer >= 1.
func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("%q must be at least 1", s)
	}
	return n, nil
}

// String returns the reference as "Book Chapter:Verse".
func (r VerseRef) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(r.Chapter))
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(r.Verse))
	return sb.String()
}

// Canonicalize returns a copy of r whose book carries the registry spelling.
func (r VerseRef) Canonicalize(reg *Registry) (VerseRef, error) {
	name, ok := reg.Canonical(r.Book)
	if !ok {
		return r, fmt.Errorf("%w: %w", errors.ErrUnknownBook, errors.NewNotFound("book", r.Book))
	}
	r.Book = name
	return r, nil
}

// Less orders references by registry position, then chapter, then verse.
// Books unknown to reg sort after known ones, by folded name.
func (r VerseRef) Less(reg *Registry, other VerseRef) bool {
	if c := compareBooks(reg, r.Book, other.Book); c != 0 {
		return c < 0
	}
	if r.Chapter != other.Chapter {
		return r.Chapter < other.Chapter
	}
	return r.Verse < other.Verse
}

// compareBooks orders two book names by registry position; unknown names
// come after all registry books and compare by folded name.
func compareBooks(reg *Registry, a, b string) int {
	ia, okA := reg.IDOf(a)
	ib, okB := reg.IDOf(b)
	switch {
	case okA && okB:
		return int(ia) - int(ib)
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(FoldName(a), FoldName(b))
}
