package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/worship-direct/core/cache"
	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/normalize"
	"github.com/FocuswithJustin/worship-direct/internal/source"
	"github.com/FocuswithJustin/worship-direct/internal/store"
)

const (
	flatKJV    = `{"John 3:16": "# For God so loved the world..."}`
	tabularASV = `{"resultset":{"row":[{"field":[1, 43, 3, 16, "For God so loved the world, that he gave..."]}]}}`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionName(t *testing.T) {
	tests := []struct {
		file string
		want string
		ok   bool
	}{
		{"kjv.json", "kjv", true},
		{"kjv_nested.json", "kjv", true},
		{"kjv.json.xz", "kjv", true},
		{"KJV_nested.JSON.GZ", "KJV", true},
		{"asv.db", "asv", true},
		{"web.xml", "web", true},
		{"_nested.json", "", false},
		{"notes.txt", "", false},
		{"config.toml", "", false},
	}
	for _, tt := range tests {
		got, ok := VersionName(tt.file)
		if got != tt.want || ok != tt.ok {
			t.Errorf("VersionName(%q) = %q, %v; want %q, %v", tt.file, got, ok, tt.want, tt.ok)
		}
	}
}

func TestVersions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kjv.json", flatKJV)
	writeFile(t, dir, "kjv_nested.json", `{"John": {"3": {"16": "For God so loved the world..."}}}`)
	writeFile(t, dir, "asv.json", tabularASV)
	writeFile(t, dir, "README.txt", "not a version")
	os.Mkdir(filepath.Join(dir, "web.json"), 0755)

	versions, err := New(dir, nil, cache.DefaultConfig()).Versions()
	if err != nil {
		t.Fatalf("Versions() error: %v", err)
	}
	want := []Version{
		{Name: "asv", Path: filepath.Join(dir, "asv.json")},
		{Name: "kjv", Path: filepath.Join(dir, "kjv_nested.json")},
	}
	if len(versions) != len(want) {
		t.Fatalf("Versions() = %+v, want %+v", versions, want)
	}
	for i := range want {
		if versions[i] != want[i] {
			t.Errorf("Versions()[%d] = %+v, want %+v", i, versions[i], want[i])
		}
	}

	if _, err := New(filepath.Join(dir, "missing"), nil, cache.DefaultConfig()).Versions(); !errors.Is(err, errors.ErrInputUnreadable) {
		t.Errorf("missing dir: error = %v, want ErrInputUnreadable", err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	kjv := writeFile(t, dir, "kjv.json", flatKJV)
	if err := source.WriteAtomic(filepath.Join(dir, "asv.json.xz"), []byte(tabularASV)); err != nil {
		t.Fatal(err)
	}
	lib := New(dir, nil, cache.DefaultConfig())

	tests := []struct {
		name    string
		src     string
		want    string
		wantErr error
	}{
		{"path", kjv, kjv, nil},
		{"version name", "kjv", kjv, nil},
		{"compressed version", "asv", filepath.Join(dir, "asv.json.xz"), nil},
		{"unknown version", "web", "", errors.ErrNotFound},
		{"missing path", filepath.Join(dir, "sub", "web.json"), "", errors.ErrInputUnreadable},
		{"empty", "", "", errors.ErrInputUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lib.Resolve(tt.src)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve(%q) error = %v, want %v", tt.src, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Resolve(%q) = %q, %v; want %q", tt.src, got, err, tt.want)
			}
		})
	}
}

func TestOpenCaches(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "kjv.json", flatKJV)
	lib := New(dir, nil, cache.DefaultConfig())
	ctx := context.Background()

	first, err := lib.Open(ctx, "kjv")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if text, ok := first.Index.Lookup("John", 3, 16); !ok || text != "For God so loved the world..." {
		t.Errorf("John 3:16 = %q, %v", text, ok)
	}
	if first.Report.Format != normalize.FormatFlat {
		t.Errorf("Report.Format = %q, want flat", first.Report.Format)
	}

	second, err := lib.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("opening the same unchanged file should hit the cache")
	}

	// Rewriting the file with a new size and time invalidates the entry.
	writeFile(t, dir, "kjv.json", `{"John 3:16": "changed", "John 3:17": "For God sent not his Son..."}`)
	later := time.Now().Add(time.Hour)
	os.Chtimes(path, later, later)

	third, err := lib.Open(ctx, "kjv")
	if err != nil {
		t.Fatal(err)
	}
	if third == first || third.Index.Len() != 2 {
		t.Errorf("changed file should reload, got %d verses", third.Index.Len())
	}
	if s := lib.Stats(); s.Loads != 2 || s.Hits != 1 {
		t.Errorf("Stats() = %+v, want 2 loads and 1 hit", s)
	}
}

func TestOpenErrorsNotCached(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `[1, 2, 3]`)
	lib := New(dir, nil, cache.DefaultConfig())

	if _, err := lib.Open(context.Background(), "bad"); !errors.Is(err, errors.ErrInputMalformed) {
		t.Errorf("Open(bad) error = %v, want ErrInputMalformed", err)
	}
	if n := lib.Stats().Size; n != 0 {
		t.Errorf("failed load cached: size %d", n)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	n := normalize.New(nil)

	asv := writeFile(t, dir, "asv.json", tabularASV)
	idx, report, err := Load(ctx, asv, n, normalize.FormatAuto)
	if err != nil {
		t.Fatalf("Load(tabular) error: %v", err)
	}
	if report.Format != normalize.FormatTabular || idx.Len() != 1 {
		t.Errorf("Load(tabular) = %d verses, format %q", idx.Len(), report.Format)
	}

	db := filepath.Join(dir, "asv.db")
	if err := store.Save(ctx, db, idx, nil); err != nil {
		t.Fatal(err)
	}
	fromDB, report, err := Load(ctx, db, n, normalize.FormatAuto)
	if err != nil {
		t.Fatalf("Load(db) error: %v", err)
	}
	if !fromDB.Equal(idx) || report.Inserted != 1 || report.Skipped() != 0 {
		t.Errorf("database load differs: %+v", report)
	}

	tests := []struct {
		name string
		file string
		data string
		want error
	}{
		{"xml named json", "x.json", `<resultset/>`, errors.ErrInputMalformed},
		{"json named db", "y.db", `{}`, errors.ErrInputMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.data)
			if _, _, err := Load(ctx, path, n, normalize.FormatAuto); !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, _, err := Load(ctx, filepath.Join(dir, "missing.json"), n, normalize.FormatAuto); !errors.Is(err, errors.ErrInputUnreadable) {
		t.Errorf("missing file: error = %v, want ErrInputUnreadable", err)
	}
}

func TestStripCompression(t *testing.T) {
	tests := map[string]string{
		"kjv.json.xz": "kjv.json",
		"kjv.json.GZ": "kjv.json",
		"kjv.json":    "kjv.json",
		"kjv.db":      "kjv.db",
	}
	for in, want := range tests {
		if got := StripCompression(in); got != want {
			t.Errorf("StripCompression(%q) = %q, want %q", in, got, want)
		}
	}
}
