// Package discovery finds resource content files under a provisioned
// directory. Discovery is pattern based: remote layouts are not
// standardized across languages and publishers, so files are located by
// extension globs and resource-code substring filtering rather than by a
// manifest, and directory-shaped resources tolerate the one-level nesting
// difference between git clones and extracted archives.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/FocuswithJustin/CedarPress/core/books"
	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// NumberedPath is a chapter directory or verse file with its parsed
// numeric name.
type NumberedPath struct {
	Number int
	Path   string
}

// ScriptureFiles returns the USFM source files under root whose base name
// contains code, case-insensitively. When no .usfm files match, plain
// .txt files are tried as a fallback. Results follow directory traversal
// order. An unknown book code is a malformed request, surfaced before any
// globbing.
func ScriptureFiles(root, code string) ([]string, error) {
	if !books.IsValid(code) {
		return nil, errors.NewMalformedRequest("resource_code", code)
	}
	if !isDir(root) {
		return nil, nil
	}

	files, err := matchFiles(root, "**/*.usfm", code)
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		return files, nil
	}
	return matchFiles(root, "**/*.txt", code)
}

func matchFiles(root, pattern, code string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, errors.NewIO("glob", root, err)
	}
	code = strings.ToLower(code)
	var out []string
	for _, m := range matches {
		if strings.Contains(strings.ToLower(filepath.Base(m)), code) {
			out = append(out, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	return out, nil
}

// BookDir locates the per-book directory holding chapter subdirectories.
// Primary shape is <root>/<code>; extracted archives often nest the
// repository under one extra directory, so <root>/*/<code> is the
// fallback.
func BookDir(root, code string) (string, bool) {
	direct := filepath.Join(root, code)
	if isDir(direct) {
		return direct, true
	}
	matches, err := doublestar.Glob(os.DirFS(root), "*/"+code)
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		p := filepath.Join(root, filepath.FromSlash(m))
		if isDir(p) {
			return p, true
		}
	}
	return "", false
}

// Chapters returns the numeric-named chapter directories under bookDir,
// sorted by chapter number. Non-numeric entries (front, media, ...) are
// skipped.
func Chapters(bookDir string) ([]NumberedPath, error) {
	entries, err := os.ReadDir(bookDir)
	if err != nil {
		return nil, errors.NewIO("read", bookDir, err)
	}
	var out []NumberedPath
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, ok := numericName(e.Name())
		if !ok {
			continue
		}
		out = append(out, NumberedPath{Number: n, Path: filepath.Join(bookDir, e.Name())})
	}
	sortNumbered(out)
	return out, nil
}

// VerseFiles returns the numeric-named markdown files in a chapter
// directory, sorted by verse number. The intro file is excluded; see
// ChapterIntro.
func VerseFiles(chapterDir string) ([]NumberedPath, error) {
	entries, err := os.ReadDir(chapterDir)
	if err != nil {
		return nil, errors.NewIO("read", chapterDir, err)
	}
	var out []NumberedPath
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		n, ok := numericName(strings.TrimSuffix(e.Name(), ".md"))
		if !ok {
			continue
		}
		out = append(out, NumberedPath{Number: n, Path: filepath.Join(chapterDir, e.Name())})
	}
	sortNumbered(out)
	return out, nil
}

// ChapterIntro returns the chapter's intro markdown path if present.
func ChapterIntro(chapterDir string) (string, bool) {
	p := filepath.Join(chapterDir, "intro.md")
	if isFile(p) {
		return p, true
	}
	return "", false
}

// BookIntro returns the book's front-matter intro path if present.
func BookIntro(bookDir string) (string, bool) {
	p := filepath.Join(bookDir, "front", "intro.md")
	if isFile(p) {
		return p, true
	}
	return "", false
}

// WordFiles returns translation-word article files, grouped by their
// category directories (kt, names, other) in lexical order. Primary shape
// is <root>/bible/<category>/<word>.md with the archive fallback one
// level down.
func WordFiles(root string) ([]string, error) {
	if !isDir(root) {
		return nil, nil
	}
	for _, pattern := range []string{"bible/*/*.md", "*/bible/*/*.md"} {
		matches, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, errors.NewIO("glob", root, err)
		}
		if len(matches) == 0 {
			continue
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, filepath.Join(root, filepath.FromSlash(m)))
		}
		return out, nil
	}
	return nil, nil
}

// AcademyArticles returns the topic directories of a translation-academy
// tree: <root>/<manual>/<topic>/ containing an 01.md body. The archive
// fallback adds one leading level.
func AcademyArticles(root string) ([]string, error) {
	if !isDir(root) {
		return nil, nil
	}
	for _, pattern := range []string{"*/*/01.md", "*/*/*/01.md"} {
		matches, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, errors.NewIO("glob", root, err)
		}
		if len(matches) == 0 {
			continue
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, filepath.Dir(filepath.Join(root, filepath.FromSlash(m))))
		}
		return out, nil
	}
	return nil, nil
}

// numericName parses a digits-only name, tolerating leading zeros.
func numericName(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sortNumbered(paths []NumberedPath) {
	sort.Slice(paths, func(i, j int) bool { return paths[i].Number < paths[j].Number })
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
