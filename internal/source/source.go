// Package source reads raw Bible input and writes converted output.
//
// Inputs may be plain or compressed; compression is detected from the
// leading magic bytes, not the file name. Outputs are compressed according
// to their extension (.xz or .gz) and always replace the target atomically.
package source

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/worship-direct/core/errors"
)

// Compression names a supported container.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionXZ   Compression = "xz"
	CompressionGzip Compression = "gzip"
)

var (
	xzMagic   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic = []byte{0x1F, 0x8B}
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// Detect reports the compression of data from its magic bytes.
func Detect(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, xzMagic):
		return CompressionXZ
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// ForPath reports the compression implied by a file name.
func ForPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		return CompressionXZ
	case ".gz":
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// Read returns the decompressed content of path. Any failure is reported as
// ErrInputUnreadable.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	out, err := Decompress(data)
	if err != nil {
		return nil, errors.NewIO("decompress", path, err)
	}
	return out, nil
}

// Decompress returns data unchanged unless it starts with a known magic number.
func Decompress(data []byte) ([]byte, error) {
	var r io.Reader
	switch Detect(data) {
	case CompressionXZ:
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		r = xr
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	default:
		return data, nil
	}
	return io.ReadAll(r)
}

// Compress encodes data for the given container.
func Compress(data []byte, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionXZ:
		xw, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = xw
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	default:
		return nil, errors.NewUnsupported("compression "+string(c), "")
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteAtomic writes data to path through a temporary file in the same
// directory and a rename, compressing first when the extension asks for it.
// Missing parent directories are created.
func WriteAtomic(path string, data []byte) error {
	out, err := Compress(data, ForPath(path))
	if err != nil {
		return errors.Wrapf(err, "failed to compress %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIO("create directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.NewIO("create temp file in", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIO("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("chmod", tmpPath, err)
	}
	if err := osRename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("rename", path, err)
	}
	return nil
}
