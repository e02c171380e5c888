// Package i18n resolves user-facing text and button labels.
//
// The catalog is a YAML table embedded in the binary. Lookups never fail:
// an unsupported language falls back to the default language, and an
// unknown key resolves to the key itself.
package i18n

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultCatalog []byte

// Vars holds placeholder substitutions. Values are rendered with fmt's %v.
type Vars map[string]any

// catalogFile is the YAML layout.
type catalogFile struct {
	DefaultLang string                       `yaml:"default_lang"`
	Messages    map[string]map[string]string `yaml:"messages"`
	Buttons     map[string]map[string]string `yaml:"buttons"`
}

// Catalog is an immutable text table; safe for concurrent use.
type Catalog struct {
	defaultLang string
	languages   map[string]struct{}
	messages    map[string]map[string]string
	buttons     map[string]map[string]string
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustLoad is Load for package-level use; it panics on a malformed embedded table.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML data.
//
// The supported languages are those of the default language's entries plus
// any language that appears anywhere in the table.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing text catalog: %w", err)
	}
	if f.DefaultLang == "" {
		return nil, fmt.Errorf("parsing text catalog: default_lang is required")
	}

	c := &Catalog{
		defaultLang: f.DefaultLang,
		languages:   map[string]struct{}{f.DefaultLang: {}},
		messages:    f.Messages,
		buttons:     f.Buttons,
	}
	for _, table := range []map[string]map[string]string{f.Messages, f.Buttons} {
		for _, byLang := range table {
			for lang := range byLang {
				c.languages[lang] = struct{}{}
			}
		}
	}
	return c, nil
}

// DefaultLanguage returns the fallback language code.
func (c *Catalog) DefaultLanguage() string {
	return c.defaultLang
}

// Languages returns the supported language codes, sorted.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.languages))
	for l := range c.languages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether lang has its own entries.
func (c *Catalog) Supports(lang string) bool {
	_, ok := c.languages[lang]
	return ok
}

// Text resolves a message key and substitutes {placeholders} from vars.
// Placeholders without a value are left as written.
func (c *Catalog) Text(key, lang string, vars Vars) string {
	return substitute(c.lookup(c.messages, key, lang), vars)
}

// Button resolves a button label key.
func (c *Catalog) Button(key, lang string) string {
	return c.lookup(c.buttons, key, lang)
}

func (c *Catalog) lookup(table map[string]map[string]string, key, lang string) string {
	if !c.Supports(lang) {
		lang = c.defaultLang
	}
	byLang, ok := table[key]
	if !ok {
		return key
	}
	if s, ok := byLang[lang]; ok {
		return s
	}
	if s, ok := byLang[c.defaultLang]; ok {
		return s
	}
	return key
}

func substitute(template string, vars Vars) string {
	if len(vars) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
