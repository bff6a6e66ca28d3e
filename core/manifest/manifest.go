// Package manifest reads the optional attribution manifest a resource may
// publish alongside its content. Manifests come in yaml, json, and plain
// text flavors, with the dublin_core fields preferred when present.
package manifest

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// Manifest carries the attribution fields used in a document's front
// matter.
type Manifest struct {
	Version string
	Issued  string
}

// scalar accepts both quoted and bare yaml scalars, since publishers write
// version numbers either way.
type scalar string

func (s *scalar) UnmarshalYAML(value *yaml.Node) error {
	*s = scalar(value.Value)
	return nil
}

// Find locates the first manifest file under root in traversal order.
func Find(root string) (string, bool) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", false
	}
	matches, err := doublestar.Glob(os.DirFS(root), "**/manifest.*")
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return filepath.Join(root, filepath.FromSlash(matches[0])), true
}

// Load parses the manifest at path according to its extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSON(data), nil
	case ".txt":
		return parseText(data), nil
	default:
		return parseYAML(data, path)
	}
}

// ForResource finds and loads the manifest under root. A resource without
// a manifest yields (nil, nil).
func ForResource(root string) (*Manifest, error) {
	path, ok := Find(root)
	if !ok {
		return nil, nil
	}
	return Load(path)
}

func parseYAML(data []byte, path string) (*Manifest, error) {
	var doc struct {
		DublinCore struct {
			Version scalar `yaml:"version"`
			Issued  scalar `yaml:"issued"`
		} `yaml:"dublin_core"`
		Version scalar `yaml:"version"`
		Issued  scalar `yaml:"issued"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewParse("manifest", path, err)
	}

	m := &Manifest{
		Version: string(doc.DublinCore.Version),
		Issued:  string(doc.DublinCore.Issued),
	}
	if m.Version == "" {
		m.Version = string(doc.Version)
	}
	if m.Issued == "" {
		m.Issued = string(doc.Issued)
	}
	return m, nil
}

func parseJSON(data []byte) *Manifest {
	m := &Manifest{
		Version: gjson.GetBytes(data, "dublin_core.version").String(),
		Issued:  gjson.GetBytes(data, "dublin_core.issued").String(),
	}
	if m.Version == "" {
		m.Version = gjson.GetBytes(data, "version").String()
	}
	if m.Issued == "" {
		m.Issued = gjson.GetBytes(data, "issued").String()
	}
	return m
}

func parseText(data []byte) *Manifest {
	m := &Manifest{}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "version":
			if m.Version == "" {
				m.Version = value
			}
		case "issued", "publish_date":
			if m.Issued == "" {
				m.Issued = value
			}
		}
	}
	return m
}
