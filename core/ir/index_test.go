package ir

import (
	"slices"
	"sync"
	"testing"

	"github.com/FocuswithJustin/worship-direct/core/errors"
)

// buildIndex inserts "Book C:V" -> text pairs in order.
func buildIndex(t *testing.T, pairs ...string) *VerseIndex {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("buildIndex needs reference/text pairs")
	}
	b := NewBuilder(NewRegistry())
	for i := 0; i < len(pairs); i += 2 {
		ref, err := ParseRef(pairs[i])
		if err != nil {
			t.Fatalf("ParseRef(%q): %v", pairs[i], err)
		}
		if _, err := b.Insert(*ref, pairs[i+1]); err != nil {
			t.Fatalf("Insert(%q): %v", pairs[i], err)
		}
	}
	return b.Build()
}

func TestVerseIndexLookup(t *testing.T) {
	idx := buildIndex(t,
		"John 3:16", "For God so loved the world...",
		"John 3:17", "For God sent not his Son...",
		"1 Samuel 2:3", "Talk no more so exceeding proudly;",
		"Song of Solomon 2:1", "I am the rose of Sharon,",
	)

	tests := []struct {
		book    string
		chapter int
		verse   int
		want    string
		wantOK  bool
	}{
		{"John", 3, 16, "For God so loved the world...", true},
		{"john", 3, 16, "For God so loved the world...", true},
		{"JOHN", 3, 17, "For God sent not his Son...", true},
		{"1 samuel", 2, 3, "Talk no more so exceeding proudly;", true},
		{"song of solomon", 2, 1, "I am the rose of Sharon,", true},
		{"john", 3, 9999, "", false},
		{"john", 4, 1, "", false},
		{"Genesis", 1, 1, "", false},
		{"Jhn", 3, 16, "", false},
	}

	for _, tt := range tests {
		got, ok := idx.Lookup(tt.book, tt.chapter, tt.verse)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Lookup(%q, %d, %d) = %q, %v; want %q, %v", tt.book, tt.chapter, tt.verse, got, ok, tt.want, tt.wantOK)
		}
	}

	if got, ok := idx.LookupRef(VerseRef{Book: "John", Chapter: 3, Verse: 16}); !ok || got == "" {
		t.Errorf("LookupRef() = %q, %v", got, ok)
	}
}

func TestBuilderCanonicalBookNames(t *testing.T) {
	idx := buildIndex(t,
		"john 3:16", "a",
		"JOHN 3:17", "b",
		"Enoch 1:1", "c",
		"enoch 1:2", "d",
	)
	want := []string{"John", "Enoch"}
	if got := idx.Books(); !slices.Equal(got, want) {
		t.Errorf("Books() = %v, want %v", got, want)
	}
	if idx.Len() != 4 {
		t.Errorf("Len() = %d, want 4", idx.Len())
	}
	if name, ok := idx.BookName("ENOCH"); !ok || name != "Enoch" {
		t.Errorf("BookName(ENOCH) = %q, %v", name, ok)
	}
}

func TestBuilderLastWriteWins(t *testing.T) {
	b := NewBuilder(nil)
	ref := VerseRef{Book: "John", Chapter: 3, Verse: 16}

	replaced, err := b.Insert(ref, "first")
	if err != nil || replaced {
		t.Fatalf("first Insert() = %v, %v", replaced, err)
	}
	replaced, err = b.Insert(VerseRef{Book: "john", Chapter: 3, Verse: 16}, "second")
	if err != nil || !replaced {
		t.Fatalf("second Insert() = %v, %v; want replaced", replaced, err)
	}
	if b.Len() != 1 || b.Duplicates() != 1 {
		t.Errorf("Len() = %d, Duplicates() = %d; want 1, 1", b.Len(), b.Duplicates())
	}

	idx := b.Build()
	if got, _ := idx.Lookup("John", 3, 16); got != "second" {
		t.Errorf("Lookup() = %q, want %q", got, "second")
	}
}

func TestBuilderRejectsInvalid(t *testing.T) {
	b := NewBuilder(nil)
	tests := []VerseRef{
		{Book: "John", Chapter: 0, Verse: 1},
		{Book: "John", Chapter: 1, Verse: -1},
		{Book: "   ", Chapter: 1, Verse: 1},
	}
	for _, ref := range tests {
		if _, err := b.Insert(ref, "x"); !errors.Is(err, errors.ErrRecordMalformed) {
			t.Errorf("Insert(%+v) error = %v, want ErrRecordMalformed", ref, err)
		}
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after rejected inserts", b.Len())
	}
}

func TestBuilderBuildResets(t *testing.T) {
	b := NewBuilder(nil)
	b.Insert(VerseRef{Book: "John", Chapter: 1, Verse: 1}, "In the beginning was the Word")
	first := b.Build()

	b.Insert(VerseRef{Book: "John", Chapter: 1, Verse: 2}, "The same was in the beginning")
	second := b.Build()

	if first.Len() != 1 {
		t.Errorf("first.Len() = %d, want 1 (later inserts must not leak in)", first.Len())
	}
	if _, ok := first.Lookup("John", 1, 2); ok {
		t.Error("first index changed after Build")
	}
	if second.Len() != 1 {
		t.Errorf("second.Len() = %d, want 1", second.Len())
	}
}

func TestVerseIndexOrdering(t *testing.T) {
	idx := buildIndex(t,
		"Revelation 22:21", "z",
		"Genesis 10:1", "c",
		"Genesis 2:10", "b",
		"Genesis 2:9", "a",
		"Genesis 1:1", "0",
		"Apocrypha 1:1", "x",
	)

	if got, want := idx.Books(), []string{"Genesis", "Revelation", "Apocrypha"}; !slices.Equal(got, want) {
		t.Errorf("Books() = %v, want %v", got, want)
	}
	if got, want := idx.Chapters("genesis"), []int{1, 2, 10}; !slices.Equal(got, want) {
		t.Errorf("Chapters() = %v, want %v", got, want)
	}
	if got, want := idx.Verses("Genesis", 2), []int{9, 10}; !slices.Equal(got, want) {
		t.Errorf("Verses() = %v, want %v", got, want)
	}
	if idx.Chapters("Exodus") != nil || idx.Verses("Genesis", 3) != nil {
		t.Error("missing book/chapter should return nil")
	}

	var refs []string
	for ref := range idx.All() {
		refs = append(refs, ref.String())
	}
	want := []string{"Genesis 1:1", "Genesis 2:9", "Genesis 2:10", "Genesis 10:1", "Revelation 22:21", "Apocrypha 1:1"}
	if !slices.Equal(refs, want) {
		t.Errorf("All() = %v, want %v", refs, want)
	}
}

func TestVerseIndexAllStopsEarly(t *testing.T) {
	idx := buildIndex(t, "Genesis 1:1", "a", "Genesis 1:2", "b", "Genesis 1:3", "c")
	n := 0
	for range idx.All() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d times, want 2", n)
	}
}

func TestVerseIndexEqual(t *testing.T) {
	a := buildIndex(t, "John 3:16", "x", "Genesis 1:1", "y")
	b := buildIndex(t, "genesis 1:1", "y", "JOHN 3:16", "x")
	c := buildIndex(t, "John 3:16", "x", "Genesis 1:1", "different")
	d := buildIndex(t, "John 3:16", "x")

	if !a.Equal(b) {
		t.Error("indexes with the same verses should be equal regardless of insert order or case")
	}
	if a.Equal(c) {
		t.Error("indexes with different text should differ")
	}
	if a.Equal(d) {
		t.Error("indexes with different verse counts should differ")
	}
	if a.Equal(nil) {
		t.Error("index should not equal nil")
	}
}

func TestVerseIndexConcurrentReads(t *testing.T) {
	idx := buildIndex(t, "John 3:16", "For God so loved the world...")
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if _, ok := idx.Lookup("john", 3, 16); !ok {
					t.Error("concurrent Lookup missed")
					return
				}
				_ = idx.Chapters("John")
			}
		}()
	}
	wg.Wait()
}
