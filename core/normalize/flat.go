package normalize

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
)

// member is one key/value pair of a JSON object, in document order.
type member struct {
	key   string
	value json.RawMessage
}

// objectMembers decodes a JSON object into its members without reordering
// them, so later duplicates deterministically win.
func objectMembers(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return members, nil
}

var (
	errNotObject    = errors.New("top level is not a JSON object")
	errTrailingData = errors.New("unexpected data after top-level value")
)

// decodeString decodes a JSON string value.
func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (n *Normalizer) flat(b *ir.Builder, data []byte, r *Report) error {
	members, err := objectMembers(data)
	if err != nil {
		return errors.NewMalformed("flat JSON", err.Error(), err)
	}

	for i, m := range members {
		r.Examined++
		n.flatRecord(b, r, m)
		n.tick(i+1, len(members))
	}
	return nil
}

func (n *Normalizer) flatRecord(b *ir.Builder, r *Report, m member) {
	ref, err := ir.ParseRef(m.key)
	if err != nil {
		r.skipErr(m.key, err)
		return
	}
	text, ok := decodeString(m.value)
	if !ok {
		r.skip(m.key, errors.KindRecordMalformed, "verse text is not a string")
		return
	}
	if n.marker != "" {
		text = strings.TrimPrefix(text, n.marker)
	}
	n.insert(b, r, m.key, *ref, text)
}
