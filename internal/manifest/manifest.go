// Package manifest reads batch manifests: JSON or YAML documents listing the
// files to patch and the diffs to apply to them.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Manifest is a validated batch description.
type Manifest struct {
	WorkingDir string  `json:"working_dir,omitempty"`
	Patches    []Entry `json:"patches"`
}

// Entry is one job in a manifest. Exactly one of Patch (a file holding the
// diff) or Diff (the diff text itself) is set.
type Entry struct {
	Name   string `json:"name,omitempty"`
	Target string `json:"target"`
	Patch  string `json:"patch,omitempty"`
	Diff   string `json:"diff,omitempty"`
	// Output, when set, receives the patched text instead of Target.
	Output string `json:"output,omitempty"`
}

// Label identifies the entry in logs and reports.
func (e Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Target
}

// ValidationError lists every schema violation found in a manifest.
type ValidationError struct {
	Issues []string
}

func (e ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest failed schema validation"
	}
	return "manifest failed schema validation: " + strings.Join(e.Issues, "; ")
}

var (
	schemaLoader     gojsonschema.JSONLoader
	schemaLoaderErr  error
	schemaLoaderOnce sync.Once
)

func loadSchema() (gojsonschema.JSONLoader, error) {
	schemaLoaderOnce.Do(func() {
		schema, err := Schema()
		if err != nil {
			schemaLoaderErr = err
			return
		}
		schemaLoader = gojsonschema.NewGoLoader(schema)
	})
	if schemaLoaderErr != nil {
		return nil, schemaLoaderErr
	}
	return schemaLoader, nil
}

// Validate checks raw JSON against the manifest schema.
func Validate(raw []byte) error {
	loader, err := loadSchema()
	if err != nil {
		return err
	}
	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("manifest: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return ValidationError{Issues: issues}
}

// Parse validates and decodes raw JSON.
func Parse(raw []byte) (*Manifest, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	return &m, nil
}

// ParseYAML converts a YAML manifest to JSON and parses it with Parse, so both
// forms are checked against the same schema.
func ParseYAML(raw []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("manifest: decode yaml: %w", err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("manifest: convert yaml: %w", err)
	}
	return Parse(converted)
}

// Load reads the manifest at path; files ending in .yaml or .yml are read as
// YAML. A relative or empty WorkingDir is resolved against the manifest's own
// directory.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	parse := Parse
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parse = ParseYAML
	}
	m, err := parse(raw)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	switch {
	case m.WorkingDir == "":
		m.WorkingDir = base
	case !filepath.IsAbs(m.WorkingDir):
		m.WorkingDir = filepath.Join(base, m.WorkingDir)
	}
	return m, nil
}

// Resolve returns path relative to the manifest's working directory.
func (m *Manifest) Resolve(path string) string {
	if filepath.IsAbs(path) || m.WorkingDir == "" {
		return path
	}
	return filepath.Join(m.WorkingDir, path)
}

// ReadDiff returns the diff text for e, reading its patch file when needed.
func (m *Manifest) ReadDiff(e Entry) (string, error) {
	if e.Patch == "" {
		return e.Diff, nil
	}
	raw, err := os.ReadFile(m.Resolve(e.Patch))
	if err != nil {
		return "", fmt.Errorf("manifest: read patch for %s: %w", e.Label(), err)
	}
	return string(raw), nil
}
