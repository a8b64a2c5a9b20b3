package etl

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// KeywordRule maps a keyword phrase to a canonical value.
type KeywordRule struct {
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

// Keywords holds the ordered lookup tables used by the package detector.
type Keywords struct {
	Yachts   []KeywordRule `yaml:"yachts"`
	Packages []KeywordRule `yaml:"packages"`
	Types    []KeywordRule `yaml:"types"`
	Addons   []KeywordRule `yaml:"addons"`
}

// DefaultKeywords returns the tables shipped with the binary.
func DefaultKeywords() (*Keywords, error) {
	return ParseKeywords(defaultKeywordsYAML)
}

// LoadKeywords reads tables from path, or the defaults when path is empty.
func LoadKeywords(path string) (*Keywords, error) {
	if path == "" {
		return DefaultKeywords()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	kw, err := ParseKeywords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return kw, nil
}

// ParseKeywords decodes YAML keyword tables. Unknown keys and empty rules
// are rejected.
func ParseKeywords(data []byte) (*Keywords, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var kw Keywords
	if err := dec.Decode(&kw); err != nil {
		return nil, fmt.Errorf("parse keywords: %w", err)
	}
	if err := kw.Validate(); err != nil {
		return nil, err
	}
	return &kw, nil
}

// Validate reports every empty keyword or value.
func (k *Keywords) Validate() error {
	var errs []error
	tables := []struct {
		name  string
		rules []KeywordRule
	}{
		{"yachts", k.Yachts},
		{"packages", k.Packages},
		{"types", k.Types},
		{"addons", k.Addons},
	}
	for _, t := range tables {
		for i, r := range t.rules {
			if strings.TrimSpace(r.Keyword) == "" || strings.TrimSpace(r.Value) == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: keyword and value are required", t.name, i))
			}
		}
	}
	return errors.Join(errs...)
}
