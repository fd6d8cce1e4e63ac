// Package normalize converts raw Bible text sources into the canonical
// ir.VerseIndex.
//
// Two raw schemas are supported, plus two supplementary ones:
//
//   - flat: {"Genesis 1:1": "In the beginning..."}
//   - tabular: {"resultset": {"row": [{"field": [id, book, chapter, verse, text]}]}}
//   - tabular XML: the same rows as a MySQL --xml dump
//   - canonical: the nested output of a previous conversion
//
// Structural problems with the input as a whole are fatal and no index is
// returned. Problems with individual records are recorded in the Report and
// the record is skipped.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
)

// Format identifies a raw input schema.
type Format string

const (
	FormatAuto       Format = "auto"
	FormatFlat       Format = "flat"
	FormatTabular    Format = "tabular"
	FormatTabularXML Format = "tabular-xml"
	FormatCanonical  Format = "canonical"
)

// Formats lists every concrete format, for help text and validation.
var Formats = []Format{FormatFlat, FormatTabular, FormatTabularXML, FormatCanonical}

// DefaultMarker is the stray prefix stripped from flat verse text.
const DefaultMarker = "# "

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat resolves a format name as accepted on the command line.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" || f == FormatAuto {
		return FormatAuto, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.NewUnsupported("format "+s, "expected auto, flat, tabular, tabular-xml or canonical")
}

// Normalizer converts raw input into a VerseIndex. A Normalizer holds only
// configuration and may be shared between goroutines.
type Normalizer struct {
	reg          *ir.Registry
	marker       string
	unregistered bool
	every        int
	progress     func(done, total int)
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithProgress calls fn after every `every` records with the number of
// records handled so far and the total in the current input. Canonical input
// is counted in books rather than verses.
func WithProgress(every int, fn func(done, total int)) Option {
	return func(n *Normalizer) {
		n.every = every
		n.progress = fn
	}
}

// WithMarker replaces the prefix stripped from flat verse text. An empty
// marker disables stripping.
func WithMarker(marker string) Option {
	return func(n *Normalizer) {
		n.marker = marker
	}
}

// WithUnregisteredBooks keeps flat and canonical records whose book name has
// no registry entry instead of skipping them as UnknownBook.
func WithUnregisteredBooks() Option {
	return func(n *Normalizer) {
		n.unregistered = true
	}
}

// New returns a Normalizer resolving books through reg, or the default
// registry when reg is nil.
func New(reg *ir.Registry, opts ...Option) *Normalizer {
	if reg == nil {
		reg = ir.DefaultRegistry()
	}
	n := &Normalizer{reg: reg, marker: DefaultMarker}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Registry returns the registry books are resolved with.
func (n *Normalizer) Registry() *ir.Registry { return n.reg }

// FromFlat normalizes the flat "reference -> text" schema.
func (n *Normalizer) FromFlat(data []byte) (*ir.VerseIndex, *Report, error) {
	return n.Normalize(data, FormatFlat)
}

// FromTabular normalizes the tabular resultset schema.
func (n *Normalizer) FromTabular(data []byte) (*ir.VerseIndex, *Report, error) {
	return n.Normalize(data, FormatTabular)
}

// FromTabularXML normalizes a tabular resultset exported as XML.
func (n *Normalizer) FromTabularXML(data []byte) (*ir.VerseIndex, *Report, error) {
	return n.Normalize(data, FormatTabularXML)
}

// FromCanonical re-reads the nested canonical schema.
func (n *Normalizer) FromCanonical(data []byte) (*ir.VerseIndex, *Report, error) {
	return n.Normalize(data, FormatCanonical)
}

// Normalize converts data in format f into a new VerseIndex. FormatAuto
// detects the format first. On a fatal error no index is returned.
func (n *Normalizer) Normalize(data []byte, f Format) (*ir.VerseIndex, *Report, error) {
	b := ir.NewBuilder(n.reg)
	report, err := n.Append(b, data, f)
	if err != nil {
		return nil, report, err
	}
	return b.Build(), report, nil
}

// Append feeds one chunk of input into b. Feeding a source in several chunks
// and building once yields the same index as normalizing it in one call.
// The input is checked structurally before any record reaches b, so a fatal
// error leaves b untouched.
func (n *Normalizer) Append(b *ir.Builder, data []byte, f Format) (*Report, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if f == "" || f == FormatAuto {
		f = Detect(data)
	}
	report := &Report{Format: f}

	var err error
	switch f {
	case FormatFlat:
		err = n.flat(b, data, report)
	case FormatTabular:
		err = n.tabular(b, data, report)
	case FormatTabularXML:
		err = n.tabularXML(b, data, report)
	case FormatCanonical:
		err = n.canonical(b, data, report)
	default:
		err = errors.NewUnsupported("format "+string(f), "no normalizer registered")
	}
	return report, err
}

// Detect guesses the format of data. It never fails: input that matches no
// other schema is reported as flat and left for FromFlat to reject.
func Detect(data []byte) Format {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) > 0 && data[0] == '<' {
		return FormatTabularXML
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return FormatFlat
	}
	if _, ok := top["resultset"]; ok {
		return FormatTabular
	}
	if len(top) == 0 {
		return FormatFlat
	}
	for _, v := range top {
		if v = bytes.TrimSpace(v); len(v) == 0 || v[0] != '{' {
			return FormatFlat
		}
	}
	return FormatCanonical
}

// insert stores one record and accounts for it in r.
func (n *Normalizer) insert(b *ir.Builder, r *Report, record string, ref ir.VerseRef, text string) {
	if _, known := n.reg.IDOf(ref.Book); !known && !n.unregistered {
		r.skip(record, errors.KindUnknownBook, fmt.Sprintf("book %q has no registry entry", ref.Book))
		return
	}
	replaced, err := b.Insert(ref, text)
	if err != nil {
		r.skipErr(record, err)
		return
	}
	r.Inserted++
	if replaced {
		r.Duplicates++
	}
}

// tick reports progress after record done of total.
func (n *Normalizer) tick(done, total int) {
	if n.progress != nil && n.every > 0 && done%n.every == 0 {
		n.progress(done, total)
	}
}
