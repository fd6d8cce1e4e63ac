// Package validation checks user-supplied paths and file contents before the
// CLI reads or writes them.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on user input.
const (
	// MaxFileSize is the largest source file accepted (256 MB).
	MaxFileSize = 256 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNotRegular       = errors.New("not a regular file")
	ErrTypeMismatch     = errors.New("file type mismatch")
)

// ValidatePath checks length limits and rejects null bytes and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateFilename checks a single path element.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	// Would be read back as a flag.
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// SanitizeFilename turns arbitrary text into a usable filename.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	var cleaned strings.Builder
	for _, r := range filename {
		if !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	filename = strings.TrimLeft(cleaned.String(), "-")

	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filename, nil
}

// compressedExt lists suffixes stripped before naming an output file.
var compressedExt = []string{".xz", ".gz"}

// DerivedOutput names the converted file for input: the same directory, the
// input's stem plus suffix, and ext. "bible/kjv.json.xz" with suffix
// "_nested" and ext ".json" gives "bible/kjv_nested.json".
func DerivedOutput(input, suffix, ext string) (string, error) {
	if err := ValidatePath(input); err != nil {
		return "", err
	}
	base := filepath.Base(input)
	lower := strings.ToLower(base)
	for _, c := range compressedExt {
		if strings.HasSuffix(lower, c) {
			base = base[:len(base)-len(c)]
			break
		}
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	name, err := SanitizeFilename(base + suffix + ext)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(input), name), nil
}

// CheckFile validates path and confirms it names a regular file no larger
// than MaxFileSize.
func CheckFile(path string) (os.FileInfo, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, path, info.Size(), MaxFileSize)
	}
	return info, nil
}

// FileType is a detected file kind.
type FileType string

const (
	FileTypeGzip    FileType = "gzip"
	FileTypeXZ      FileType = "xz"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeXML     FileType = "xml"
	FileTypeJSON    FileType = "json"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeGzip, []byte{0x1f, 0x8b}},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
}

// SniffType detects a file type from its leading bytes. Text is classified
// by its first non-space byte.
func SniffType(buf []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType
		}
	}
	if !isLikelyText(buf) {
		return FileTypeUnknown
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
	switch {
	case len(trimmed) == 0:
		return FileTypeUnknown
	case trimmed[0] == '<':
		return FileTypeXML
	case trimmed[0] == '{' || trimmed[0] == '[':
		return FileTypeJSON
	}
	return FileTypeUnknown
}

// TypeFromExtension determines the expected file type from a filename.
func TypeFromExtension(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xz":
		return FileTypeXZ
	case ".gz":
		return FileTypeGzip
	case ".sqlite", ".db", ".sqlite3":
		return FileTypeSQLite
	case ".xml":
		return FileTypeXML
	case ".json":
		return FileTypeJSON
	default:
		return FileTypeUnknown
	}
}

// ValidateFileType reads the header of r and checks it against the type
// filename's extension claims. Unknown on either side is accepted and the
// detected type, or failing that the claimed one, is returned.
func ValidateFileType(r io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	detected := SniffType(buf[:n])
	expected := TypeFromExtension(filename)

	switch {
	case detected == expected:
		return detected, nil
	case detected == FileTypeUnknown:
		return expected, nil
	case expected == FileTypeUnknown:
		return detected, nil
	}
	return FileTypeUnknown, fmt.Errorf("%w: extension suggests %s but content is %s", ErrTypeMismatch, expected, detected)
}

// isLikelyText reports whether buf looks like text rather than binary.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
