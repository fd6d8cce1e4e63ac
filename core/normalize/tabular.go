package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
)

// tabularFields is the row width: id, book, chapter, verse, text.
const tabularFields = 5

// tabularRow is one row of either tabular encoding. JSON fields decode to
// json.Number, string, or other JSON values; XML fields are always strings.
type tabularRow struct {
	label  string
	fields []any
}

var (
	resultsetExpr = xpath.MustCompile("/resultset")
	rowExpr       = xpath.MustCompile("row")
	fieldExpr     = xpath.MustCompile("field")
)

func (n *Normalizer) tabular(b *ir.Builder, data []byte, r *Report) error {
	var doc struct {
		Resultset *struct {
			Row json.RawMessage `json:"row"`
		} `json:"resultset"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.NewMalformed("tabular JSON", err.Error(), err)
	}
	if doc.Resultset == nil {
		return errors.NewMalformed("tabular JSON", "missing resultset", nil)
	}
	if doc.Resultset.Row == nil {
		return errors.NewMalformed("tabular JSON", "missing resultset.row", nil)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(doc.Resultset.Row, &raws); err != nil || raws == nil {
		return errors.NewMalformed("tabular JSON", "resultset.row is not an array", err)
	}

	for i, raw := range raws {
		r.Examined++
		label := fmt.Sprintf("row %d", i)
		fields, reason := jsonRowFields(raw)
		if reason != "" {
			r.skip(label, errors.KindRecordMalformed, reason)
		} else {
			n.tabularRecord(b, r, tabularRow{label: label, fields: fields})
		}
		n.tick(i+1, len(raws))
	}
	return nil
}

// jsonRowFields extracts the field list of a JSON row, or the reason it has none.
func jsonRowFields(raw json.RawMessage) ([]any, string) {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil || row == nil {
		return nil, "row is not an object"
	}
	field, ok := row["field"]
	if !ok {
		return nil, "row has no field property"
	}
	dec := json.NewDecoder(bytes.NewReader(field))
	dec.UseNumber()
	var fields []any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, "field is not an array"
	}
	return fields, ""
}

func (n *Normalizer) tabularXML(b *ir.Builder, data []byte, r *Report) error {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return errors.NewMalformed("tabular XML", err.Error(), err)
	}
	resultset := xmlquery.QuerySelector(doc, resultsetExpr)
	if resultset == nil {
		return errors.NewMalformed("tabular XML", "missing resultset element", nil)
	}

	rows := xmlquery.QuerySelectorAll(resultset, rowExpr)
	for i, row := range rows {
		r.Examined++
		cells := xmlquery.QuerySelectorAll(row, fieldExpr)
		fields := make([]any, len(cells))
		for j, c := range cells {
			fields[j] = c.InnerText()
		}
		n.tabularRecord(b, r, tabularRow{label: fmt.Sprintf("row %d", i), fields: fields})
		n.tick(i+1, len(rows))
	}
	return nil
}

func (n *Normalizer) tabularRecord(b *ir.Builder, r *Report, row tabularRow) {
	if len(row.fields) != tabularFields {
		r.skip(row.label, errors.KindRecordMalformed,
			fmt.Sprintf("field has %d elements, want %d", len(row.fields), tabularFields))
		return
	}

	bookNum, ok := intValue(row.fields[1])
	if !ok {
		r.skip(row.label, errors.KindRecordMalformed, fmt.Sprintf("book number %v is not an integer", row.fields[1]))
		return
	}
	book, ok := n.reg.NameOf(ir.BookID(bookNum))
	if !ok {
		r.skip(row.label, errors.KindUnknownBook, fmt.Sprintf("unknown book number %d", bookNum))
		return
	}
	chapter, ok := intValue(row.fields[2])
	if !ok || chapter < 1 {
		r.skip(row.label, errors.KindRecordMalformed, fmt.Sprintf("chapter %v is not a positive integer", row.fields[2]))
		return
	}
	verse, ok := intValue(row.fields[3])
	if !ok || verse < 1 {
		r.skip(row.label, errors.KindRecordMalformed, fmt.Sprintf("verse %v is not a positive integer", row.fields[3]))
		return
	}
	text, ok := row.fields[4].(string)
	if !ok {
		r.skip(row.label, errors.KindRecordMalformed, "verse text is not a string")
		return
	}

	n.insert(b, r, row.label, ir.VerseRef{Book: book, Chapter: chapter, Verse: verse}, text)
}

// intValue accepts a JSON integer or a string holding one.
func intValue(v any) (int, bool) {
	var s string
	switch v := v.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return 0, false
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return i, true
}
