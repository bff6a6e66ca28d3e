// Package validation guards the boundaries where outside input turns into
// filesystem activity: document keys served by the API, downloaded archives
// handed to the extractor, and local file names derived from catalog URLs.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on externally supplied inputs.
const (
	// MaxArtifactSize caps a downloaded artifact at 256 MB.
	MaxArtifactSize = 256 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal   = errors.New("path traversal detected")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrPathTooLong     = errors.New("path too long")
	ErrFilenameTooLong = errors.New("filename too long")
	ErrEmptyPath       = errors.New("path cannot be empty")
)

// SanitizePath validates a user-supplied path against a base directory.
// The returned path is the cleaned relative form; any path that would
// resolve outside baseDir is rejected.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}

	cleanPath := filepath.Clean(userPath)
	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return "", ErrPathTraversal
	}

	return cleanPath, nil
}

// ValidateFilename checks that a single path element is safe to create
// inside a provisioning directory.
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
	if strings.Contains(filename, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// SafeLocalName sanitizes a name taken from an external source, such as a
// URL path element, for use as a local file name. Names that cannot be
// made safe yield the fallback. Note that path.Base leaves ".." intact,
// so callers joining URL-derived names into a directory must come through
// here.
func SafeLocalName(name, fallback string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "\x00", "")

	var cleaned strings.Builder
	for _, r := range name {
		if !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	name = strings.TrimLeft(cleaned.String(), "-")

	if err := ValidateFilename(name); err != nil {
		return fallback
	}
	return name
}

// ArtifactType classifies a provisioned artifact.
type ArtifactType string

const (
	TypeTarXZ ArtifactType = "tar.xz"
	TypeTarGZ ArtifactType = "tar.gz"
	TypeTar   ArtifactType = "tar"
	TypeZip   ArtifactType = "zip"
	TypeGzip  ArtifactType = "gzip"
	TypeXZ    ArtifactType = "xz"
	TypeText  ArtifactType = "text"
	TypeJSON  ArtifactType = "json"
	TypeYAML  ArtifactType = "yaml"

	TypeUnknown ArtifactType = "unknown"
)

// magicBytes lists the signatures of the archive formats the extractor
// accepts.
var magicBytes = []struct {
	artifactType ArtifactType
	magic        []byte
	offset       int
}{
	{TypeTar, []byte("ustar"), 257},
	{TypeGzip, []byte{0x1f, 0x8b}, 0},
	{TypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, 0},
	{TypeZip, []byte{0x50, 0x4b, 0x03, 0x04}, 0},
}

// ValidateArtifact confirms that an artifact's content matches the type
// its file name claims. Catalog servers sometimes answer a download URL
// with an HTML error page behind a 200, so an archive extension whose
// magic bytes do not match is an error rather than a pass-through.
func ValidateArtifact(reader io.Reader, filename string) (ArtifactType, error) {
	// 512 bytes covers the tar signature at offset 257
	buf := make([]byte, 512)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return TypeUnknown, fmt.Errorf("read artifact header: %w", err)
	}
	buf = buf[:n]

	detected := typeFromMagic(buf)
	expected := typeFromName(filename)

	// xz and gzip wrap the tar stream, so only the wrapper is visible
	// in the magic bytes.
	if expected == TypeTarXZ && detected == TypeXZ {
		return TypeTarXZ, nil
	}
	if expected == TypeTarGZ && detected == TypeGzip {
		return TypeTarGZ, nil
	}
	if detected == expected {
		return detected, nil
	}

	if detected == TypeUnknown {
		if isTextType(expected) {
			if likelyText(buf) {
				return expected, nil
			}
			return TypeUnknown, fmt.Errorf("artifact %s is not text", filename)
		}
		if expected == TypeUnknown {
			return TypeUnknown, nil
		}
		return TypeUnknown, fmt.Errorf("artifact %s has no %s signature", filename, expected)
	}
	if expected == TypeUnknown {
		return detected, nil
	}
	return TypeUnknown, fmt.Errorf("artifact %s: extension says %s but content is %s", filename, expected, detected)
}

func typeFromMagic(buf []byte) ArtifactType {
	for _, sig := range magicBytes {
		if sig.offset+len(sig.magic) <= len(buf) {
			if bytes.Equal(buf[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
				return sig.artifactType
			}
		}
	}
	return TypeUnknown
}

func typeFromName(filename string) ArtifactType {
	lower := strings.ToLower(filename)

	if strings.HasSuffix(lower, ".tar.xz") {
		return TypeTarXZ
	}
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return TypeTarGZ
	}

	switch filepath.Ext(lower) {
	case ".tar":
		return TypeTar
	case ".xz":
		return TypeXZ
	case ".gz":
		return TypeGzip
	case ".zip":
		return TypeZip
	case ".json":
		return TypeJSON
	case ".yaml", ".yml":
		return TypeYAML
	case ".txt", ".usfm", ".sfm", ".md", ".markdown":
		return TypeText
	default:
		return TypeUnknown
	}
}

func isTextType(t ArtifactType) bool {
	return t == TypeText || t == TypeJSON || t == TypeYAML
}

// likelyText reports whether the buffer reads as UTF-8 or ASCII text.
func likelyText(buf []byte) bool {
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
