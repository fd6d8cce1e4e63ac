package ir

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
)

// canonicalIndent is the indentation of the persisted canonical form.
const canonicalIndent = "  "

// MarshalJSON encodes the index in the canonical nested schema:
// book -> "chapter" -> "verse" -> text. Books follow registry order,
// chapters and verses ascend numerically, and HTML characters are not escaped.
func (x *VerseIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := x.encode(&buf, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCanonical writes the pretty-printed canonical form to w. Equal
// indexes always produce identical bytes.
func (x *VerseIndex) WriteCanonical(w io.Writer) error {
	var buf bytes.Buffer
	if err := x.encode(&buf, canonicalIndent); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// CanonicalBytes returns the pretty-printed canonical form.
func (x *VerseIndex) CanonicalBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := x.WriteCanonical(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// canonicalEncoder writes nested objects by hand so key order is fixed.
type canonicalEncoder struct {
	buf     *bytes.Buffer
	indent  string
	scratch bytes.Buffer
	enc     *json.Encoder
}

func (x *VerseIndex) encode(buf *bytes.Buffer, indent string) error {
	e := &canonicalEncoder{buf: buf, indent: indent}
	e.enc = json.NewEncoder(&e.scratch)
	e.enc.SetEscapeHTML(false)

	if len(x.order) == 0 {
		buf.WriteString("{}")
		return nil
	}

	buf.WriteByte('{')
	for i, bv := range x.order {
		e.separator(i, 1)
		if err := e.key(bv.name); err != nil {
			return err
		}
		buf.WriteByte('{')
		for j, c := range bv.chapterKeys {
			e.separator(j, 2)
			if err := e.key(strconv.Itoa(c)); err != nil {
				return err
			}
			buf.WriteByte('{')
			for k, v := range bv.verseKeys[c] {
				e.separator(k, 3)
				if err := e.key(strconv.Itoa(v)); err != nil {
					return err
				}
				if err := e.str(bv.chapters[c][v]); err != nil {
					return err
				}
			}
			e.newline(2)
			buf.WriteByte('}')
		}
		e.newline(1)
		buf.WriteByte('}')
	}
	e.newline(0)
	buf.WriteByte('}')
	return nil
}

// separator writes the comma (after the first member) and the line break
// preceding a member at the given depth.
func (e *canonicalEncoder) separator(i, depth int) {
	if i > 0 {
		e.buf.WriteByte(',')
	}
	e.newline(depth)
}

func (e *canonicalEncoder) newline(depth int) {
	if e.indent == "" {
		return
	}
	e.buf.WriteByte('\n')
	for range depth {
		e.buf.WriteString(e.indent)
	}
}

func (e *canonicalEncoder) key(s string) error {
	if err := e.str(s); err != nil {
		return err
	}
	e.buf.WriteByte(':')
	if e.indent != "" {
		e.buf.WriteByte(' ')
	}
	return nil
}

func (e *canonicalEncoder) str(s string) error {
	e.scratch.Reset()
	if err := e.enc.Encode(s); err != nil {
		return err
	}
	e.buf.Write(bytes.TrimSuffix(e.scratch.Bytes(), []byte("\n")))
	return nil
}
