// Package library resolves Bible versions by name inside a data directory
// and keeps recently used indexes loaded.
//
// A version "kjv" may be stored as kjv.db, kjv_nested.json or kjv.json
// (the JSON and XML forms optionally .xz or .gz compressed). When several
// exist the first of that list wins, so a converted file shadows its source.
package library

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/FocuswithJustin/worship-direct/core/cache"
	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
	"github.com/FocuswithJustin/worship-direct/core/normalize"
	"github.com/FocuswithJustin/worship-direct/internal/logging"
	"github.com/FocuswithJustin/worship-direct/internal/source"
	"github.com/FocuswithJustin/worship-direct/internal/store"
	"github.com/FocuswithJustin/worship-direct/internal/validation"
)

// NestedSuffix marks converted canonical files.
const NestedSuffix = "_nested"

// layouts lists the file name endings of a version in preference order.
var layouts = []struct {
	suffix     string
	compressed bool
}{
	{".db", false},
	{NestedSuffix + ".json", true},
	{".json", true},
	{".xml", true},
}

var compressions = []string{".xz", ".gz"}

// Version is one named version found in the data directory.
type Version struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Loaded is a version held in memory.
type Loaded struct {
	Path   string
	Index  *ir.VerseIndex
	Report *normalize.Report
}

// fileKey identifies one state of a file; an edited file gets a new key.
type fileKey struct {
	path  string
	size  int64
	mtime int64
}

// Library opens versions from one directory.
type Library struct {
	dir   string
	n     *normalize.Normalizer
	cache *cache.LRU[fileKey, *Loaded]
}

// New returns a Library over dir. n normalizes JSON and XML sources.
func New(dir string, n *normalize.Normalizer, cfg cache.Config) *Library {
	if n == nil {
		n = normalize.New(nil)
	}
	return &Library{dir: dir, n: n, cache: cache.New[fileKey, *Loaded](cfg)}
}

// Dir returns the data directory.
func (l *Library) Dir() string { return l.dir }

// Stats reports cache activity.
func (l *Library) Stats() cache.Stats { return l.cache.Stats() }

// Versions lists the versions present in the data directory, sorted by name.
func (l *Library) Versions() ([]Version, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, errors.NewIO("list", l.dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if name, ok := VersionName(e.Name()); ok && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	versions := make([]Version, 0, len(names))
	for _, name := range names {
		if path, ok := l.find(name); ok {
			versions = append(versions, Version{Name: name, Path: path})
		}
	}
	return versions, nil
}

// VersionName derives the version a file belongs to, or false when the file
// is not a recognised layout.
func VersionName(file string) (string, bool) {
	lower := strings.ToLower(file)
	for _, c := range compressions {
		if strings.HasSuffix(lower, c) {
			lower = strings.TrimSuffix(lower, c)
			file = file[:len(lower)]
			break
		}
	}
	for _, ext := range []string{".db", ".json", ".xml"} {
		if strings.HasSuffix(lower, ext) {
			name := strings.TrimSuffix(file[:len(lower)-len(ext)], NestedSuffix)
			return name, name != ""
		}
	}
	return "", false
}

// Resolve maps source to a file. An existing file path is used as is;
// anything else is looked up as a version name in the data directory.
func (l *Library) Resolve(src string) (string, error) {
	if err := validation.ValidatePath(src); err != nil {
		return "", errors.NewIO("resolve", src, err)
	}
	if info, err := os.Stat(src); err == nil && info.Mode().IsRegular() {
		return src, nil
	}
	if validation.ValidateFilename(src) != nil {
		_, err := os.Stat(src)
		if err == nil {
			err = validation.ErrNotRegular
		}
		return "", errors.NewIO("read", src, err)
	}
	if path, ok := l.find(src); ok {
		return path, nil
	}
	return "", errors.NewNotFound("version", src)
}

func (l *Library) find(name string) (string, bool) {
	for _, lay := range layouts {
		endings := []string{lay.suffix}
		if lay.compressed {
			for _, c := range compressions {
				endings = append(endings, lay.suffix+c)
			}
		}
		for _, end := range endings {
			path := filepath.Join(l.dir, name+end)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, true
			}
		}
	}
	return "", false
}

// Open resolves src and returns its index, loading it unless the same file
// is already cached unchanged.
func (l *Library) Open(ctx context.Context, src string) (*Loaded, error) {
	path, err := l.Resolve(src)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewIO("stat", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	key := fileKey{path: abs, size: info.Size(), mtime: info.ModTime().UnixNano()}
	return l.cache.GetOrLoad(key, func() (*Loaded, error) {
		idx, report, err := Load(ctx, path, l.n, normalize.FormatAuto)
		if err != nil {
			return nil, err
		}
		logging.DebugContext(ctx, "version_loaded", "path", path, "verses", idx.Len(), "skipped", report.Skipped())
		return &Loaded{Path: path, Index: idx, Report: report}, nil
	})
}

// Load reads path as a verse database or as a JSON or XML source in format
// f. The report of a database load counts its verses and never skips.
func Load(ctx context.Context, path string, n *normalize.Normalizer, f normalize.Format) (*ir.VerseIndex, *normalize.Report, error) {
	if _, err := validation.CheckFile(path); err != nil {
		return nil, nil, errors.NewIO("read", path, err)
	}
	data, err := source.Read(path)
	if err != nil {
		return nil, nil, err
	}

	kind, err := validation.ValidateFileType(bytes.NewReader(data), StripCompression(path))
	if err != nil {
		return nil, nil, errors.NewMalformed(path, err.Error(), err)
	}
	if kind == validation.FileTypeSQLite {
		idx, meta, err := store.Load(ctx, path, n.Registry())
		if err != nil {
			return nil, nil, err
		}
		logging.DebugContext(ctx, "store_loaded", "path", path, "source", meta[store.MetaSource])
		return idx, &normalize.Report{Format: normalize.FormatCanonical, Examined: idx.Len(), Inserted: idx.Len()}, nil
	}
	return n.Normalize(data, f)
}

// StripCompression drops a .xz or .gz suffix so the remaining extension
// describes the decompressed content.
func StripCompression(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range compressions {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}
