package ir

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestCanonicalBytes(t *testing.T) {
	idx := buildIndex(t,
		"John 3:17", "For God sent not his Son...",
		"John 3:16", "For God so loved the world...",
		"Genesis 1:1", "In the beginning God created the heaven and the earth.",
	)

	got, err := idx.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes() error: %v", err)
	}

	want := `{
  "Genesis": {
    "1": {
      "1": "In the beginning God created the heaven and the earth."
    }
  },
  "John": {
    "3": {
      "16": "For God so loved the world...",
      "17": "For God sent not his Son..."
    }
  }
}`
	if string(got) != want {
		t.Errorf("CanonicalBytes() =\n%s\nwant\n%s", got, want)
	}
}

func TestMarshalJSONCompact(t *testing.T) {
	idx := buildIndex(t, "John 3:16", "For God so loved the world...", "John 1:1", "In the beginning was the Word")

	got, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}
	want := `{"John":{"1":{"1":"In the beginning was the Word"},"3":{"16":"For God so loved the world..."}}}`
	if string(got) != want {
		t.Errorf("json.Marshal() = %s, want %s", got, want)
	}
}

func TestCanonicalEmpty(t *testing.T) {
	idx := NewBuilder(nil).Build()
	got, err := idx.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes() error: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("CanonicalBytes() = %q, want {}", got)
	}
}

func TestCanonicalNoHTMLEscape(t *testing.T) {
	text := `<i>Behold</i> & "lo", né "café"`
	idx := buildIndex(t, "Psalms 23:1", text)

	got, err := idx.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes() error: %v", err)
	}
	if !bytes.Contains(got, []byte(`<i>Behold</i> & \"lo\", né \"café\"`)) {
		t.Errorf("CanonicalBytes() escaped text: %s", got)
	}

	var decoded map[string]map[string]map[string]string
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("canonical bytes are not valid JSON: %v", err)
	}
	if decoded["Psalms"]["23"]["1"] != text {
		t.Errorf("decoded text = %q, want %q", decoded["Psalms"]["23"]["1"], text)
	}
}

func TestWriteCanonicalNoTrailingNewline(t *testing.T) {
	idx := buildIndex(t, "Jude 1:25", "Amen.")
	var sb strings.Builder
	if err := idx.WriteCanonical(&sb); err != nil {
		t.Fatalf("WriteCanonical() error: %v", err)
	}
	if strings.HasSuffix(sb.String(), "\n") {
		t.Error("canonical form must not end with a newline")
	}
}

func TestHashBytes(t *testing.T) {
	data := []byte("In the beginning God created the heaven and the earth.")
	hash := HashBytes(data)

	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if hash != HashBytes(data) {
		t.Error("same data produced different hashes")
	}
	if hash == HashBytes([]byte("Different content")) {
		t.Error("different data produced same hash")
	}
}

func TestDigest(t *testing.T) {
	a := buildIndex(t, "John 3:16", "x", "Genesis 1:1", "y")
	b := buildIndex(t, "genesis 1:1", "y", "john 3:16", "x")
	c := buildIndex(t, "John 3:16", "x", "Genesis 1:1", "z")

	da, err := a.Digest()
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	db, _ := b.Digest()
	dc, _ := c.Digest()

	if da != db {
		t.Errorf("equal indexes have different digests: %s vs %s", da, db)
	}
	if da == dc {
		t.Error("different indexes share a digest")
	}
}
