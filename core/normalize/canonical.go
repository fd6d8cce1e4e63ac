package normalize

import (
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
)

// canonical re-reads book -> "chapter" -> "verse" -> text. Every verse leaf
// counts as one record; a level that is not an object is one malformed record.
func (n *Normalizer) canonical(b *ir.Builder, data []byte, r *Report) error {
	books, err := objectMembers(data)
	if err != nil {
		return errors.NewMalformed("canonical JSON", err.Error(), err)
	}

	for i, book := range books {
		chapters, err := objectMembers(book.value)
		if err != nil {
			r.Examined++
			r.skip(book.key, errors.KindRecordMalformed, "book value is not an object")
			continue
		}
		for _, ch := range chapters {
			label := book.key + " " + ch.key
			chapter, err := strconv.Atoi(ch.key)
			if err != nil || chapter < 1 {
				r.Examined++
				r.skip(label, errors.KindRecordMalformed, fmt.Sprintf("chapter key %q is not a positive integer", ch.key))
				continue
			}
			verses, err := objectMembers(ch.value)
			if err != nil {
				r.Examined++
				r.skip(label, errors.KindRecordMalformed, "chapter value is not an object")
				continue
			}
			for _, v := range verses {
				r.Examined++
				label := fmt.Sprintf("%s %s:%s", book.key, ch.key, v.key)
				verse, err := strconv.Atoi(v.key)
				if err != nil || verse < 1 {
					r.skip(label, errors.KindRecordMalformed, fmt.Sprintf("verse key %q is not a positive integer", v.key))
					continue
				}
				text, ok := decodeString(v.value)
				if !ok {
					r.skip(label, errors.KindRecordMalformed, "verse text is not a string")
					continue
				}
				n.insert(b, r, label, ir.VerseRef{Book: book.key, Chapter: chapter, Verse: verse}, text)
			}
		}
		n.tick(i+1, len(books))
	}
	return nil
}
