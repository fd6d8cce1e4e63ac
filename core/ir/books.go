package ir

import (
	"slices"
	"strings"
	"sync"

	"github.com/tchap/go-patricia/v2/patricia"
	"golang.org/x/text/cases"
)

// BookID is the canonical position of a book, 1 (Genesis) through 66 (Revelation).
type BookID int

// Testament identifies the half of the canon a book belongs to.
type Testament string

// Testament values.
const (
	OldTestament Testament = "OT"
	NewTestament Testament = "NT"
)

// BookCount is the number of books in the registry.
const BookCount = 66

// Book is one entry of the canonical book catalogue.
type Book struct {
	ID        BookID    `json:"id"`
	Name      string    `json:"name"`
	OSIS      string    `json:"osis"`
	Testament Testament `json:"testament"`
}

// canon lists the books in canonical order. Index i holds BookID i+1.
var canon = [BookCount]struct{ name, osis string }{
	// Old Testament
	{"Genesis", "Gen"}, {"Exodus", "Exod"}, {"Leviticus", "Lev"}, {"Numbers", "Num"},
	{"Deuteronomy", "Deut"}, {"Joshua", "Josh"}, {"Judges", "Judg"}, {"Ruth", "Ruth"},
	{"1 Samuel", "1Sam"}, {"2 Samuel", "2Sam"}, {"1 Kings", "1Kgs"}, {"2 Kings", "2Kgs"},
	{"1 Chronicles", "1Chr"}, {"2 Chronicles", "2Chr"}, {"Ezra", "Ezra"}, {"Nehemiah", "Neh"},
	{"Esther", "Esth"}, {"Job", "Job"}, {"Psalms", "Ps"}, {"Proverbs", "Prov"},
	{"Ecclesiastes", "Eccl"}, {"Song of Solomon", "Song"}, {"Isaiah", "Isa"}, {"Jeremiah", "Jer"},
	{"Lamentations", "Lam"}, {"Ezekiel", "Ezek"}, {"Daniel", "Dan"}, {"Hosea", "Hos"},
	{"Joel", "Joel"}, {"Amos", "Amos"}, {"Obadiah", "Obad"}, {"Jonah", "Jonah"},
	{"Micah", "Mic"}, {"Nahum", "Nah"}, {"Habakkuk", "Hab"}, {"Zephaniah", "Zeph"},
	{"Haggai", "Hag"}, {"Zechariah", "Zech"}, {"Malachi", "Mal"},
	// New Testament
	{"Matthew", "Matt"}, {"Mark", "Mark"}, {"Luke", "Luke"}, {"John", "John"},
	{"Acts", "Acts"}, {"Romans", "Rom"}, {"1 Corinthians", "1Cor"}, {"2 Corinthians", "2Cor"},
	{"Galatians", "Gal"}, {"Ephesians", "Eph"}, {"Philippians", "Phil"}, {"Colossians", "Col"},
	{"1 Thessalonians", "1Thess"}, {"2 Thessalonians", "2Thess"}, {"1 Timothy", "1Tim"},
	{"2 Timothy", "2Tim"}, {"Titus", "Titus"}, {"Philemon", "Phlm"}, {"Hebrews", "Heb"},
	{"James", "Jas"}, {"1 Peter", "1Pet"}, {"2 Peter", "2Pet"}, {"1 John", "1John"},
	{"2 John", "2John"}, {"3 John", "3John"}, {"Jude", "Jude"}, {"Revelation", "Rev"},
}

// firstNTBook is the id of Matthew.
const firstNTBook BookID = 40

// Registry is the immutable catalogue of canonical books.
// A Registry is safe for concurrent use; it has no mutating methods.
type Registry struct {
	books  []Book
	byName map[string]BookID
	byOSIS map[string]BookID
	trie   *patricia.Trie
}

// NewRegistry builds the canonical 66-book registry.
func NewRegistry() *Registry {
	r := &Registry{
		books:  make([]Book, 0, BookCount),
		byName: make(map[string]BookID, BookCount),
		byOSIS: make(map[string]BookID, BookCount),
		trie:   patricia.NewTrie(),
	}
	for i, c := range canon {
		id := BookID(i + 1)
		t := OldTestament
		if id >= firstNTBook {
			t = NewTestament
		}
		r.books = append(r.books, Book{ID: id, Name: c.name, OSIS: c.osis, Testament: t})
		key := FoldName(c.name)
		r.byName[key] = id
		r.byOSIS[FoldName(c.osis)] = id
		r.trie.Insert(patricia.Prefix(key), id)
	}
	return r
}

// DefaultRegistry returns a shared registry built on first use.
var DefaultRegistry = sync.OnceValue(NewRegistry)

// FoldName returns the comparison key for a book name: Unicode case folded,
// trimmed, with internal whitespace runs collapsed to one space.
func FoldName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// IDOf resolves a book name to its id, ignoring case.
func (r *Registry) IDOf(name string) (BookID, bool) {
	id, ok := r.byName[FoldName(name)]
	return id, ok
}

// NameOf returns the canonical name for id.
func (r *Registry) NameOf(id BookID) (string, bool) {
	b, ok := r.Book(id)
	if !ok {
		return "", false
	}
	return b.Name, true
}

// Book returns the entry for id.
func (r *Registry) Book(id BookID) (Book, bool) {
	if id < 1 || int(id) > len(r.books) {
		return Book{}, false
	}
	return r.books[id-1], true
}

// Canonical returns the registry spelling of name, ignoring case.
func (r *Registry) Canonical(name string) (string, bool) {
	id, ok := r.IDOf(name)
	if !ok {
		return "", false
	}
	return r.books[id-1].Name, true
}

// ByOSIS resolves an OSIS book code such as "1Sam" or "Song", ignoring case.
func (r *Registry) ByOSIS(code string) (Book, bool) {
	id, ok := r.byOSIS[FoldName(code)]
	if !ok {
		return Book{}, false
	}
	return r.books[id-1], true
}

// Books returns the catalogue in canonical order.
func (r *Registry) Books() []Book {
	return slices.Clone(r.books)
}

// Complete returns the books whose names start with prefix, ignoring case,
// in canonical order. An empty prefix returns nothing.
func (r *Registry) Complete(prefix string) []Book {
	key := FoldName(prefix)
	if key == "" {
		return nil
	}
	var ids []BookID
	_ = r.trie.VisitSubtree(patricia.Prefix(key), func(_ patricia.Prefix, item patricia.Item) error {
		ids = append(ids, item.(BookID))
		return nil
	})
	slices.Sort(ids)
	out := make([]Book, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.books[id-1])
	}
	return out
}
