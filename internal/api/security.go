package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/CedarPress/internal/validation"
)

var (
	// ErrPathTraversal is returned when path traversal is detected
	ErrPathTraversal = errors.New("path traversal detected")
	// ErrInvalidPath is returned when the path is invalid
	ErrInvalidPath = errors.New("invalid path")
	// ErrPathOutsideBase is returned when path escapes base directory
	ErrPathOutsideBase = errors.New("path outside allowed directory")
	// ErrInvalidKey is returned when a document key fails validation
	ErrInvalidKey = errors.New("invalid document key")
)

// keyPattern matches document keys: lang-type-code triples joined by
// underscores, e.g. "en-ulb-gen_en-tn-gen".
var keyPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*(_[a-z0-9]+(-[a-z0-9]+)*)*$`)

// ValidateKey validates a document key taken from a URL path. Keys name
// ledger rows and output files, so they must never carry path syntax.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	if len(key) > validation.MaxFilenameLength {
		return fmt.Errorf("%w: key too long", ErrInvalidKey)
	}
	if strings.ContainsAny(key, "/\\.") {
		return fmt.Errorf("%w: key cannot contain path syntax", ErrInvalidKey)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: key must be lang-type-code triples joined by underscores", ErrInvalidKey)
	}
	return nil
}

// ValidatePath validates a user-influenced path before it is joined onto
// a served directory. It rejects traversal syntax, normalizes the path,
// and confirms the result stays inside baseDir.
func ValidatePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	if strings.Contains(userPath, "..") {
		return "", fmt.Errorf("%w: path contains '..'", ErrPathTraversal)
	}

	cleanPath := filepath.Clean(userPath)
	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("%w: path contains '..' after cleaning", ErrPathTraversal)
	}
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}

	safePath, err := validation.SanitizePath(baseDir, cleanPath)
	if err != nil {
		if errors.Is(err, validation.ErrPathTraversal) {
			return "", fmt.Errorf("%w: %v", ErrPathTraversal, err)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	// Resolve both sides and confirm containment.
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, safePath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: path resolution failed", ErrPathOutsideBase)
	}
	if strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("%w: path escapes base directory", ErrPathOutsideBase)
	}

	return safePath, nil
}
