// Package personalization renders user-tuned summary prompts from a YAML catalog
// of styles, tones, focus areas and length classes.
package personalization

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/hrygo/recap/ai/configloader"
)

// MaxCustomInstructions is the longest accepted custom instruction, in characters.
const MaxCustomInstructions = 500

// CatalogFile is the file name looked up in an override directory.
const CatalogFile = "catalog.yaml"

var (
	ErrUnknownStyle        = errors.New("unknown style")
	ErrUnknownTone         = errors.New("unknown tone")
	ErrUnknownFocusArea    = errors.New("unknown focus area")
	ErrUnknownLength       = errors.New("unknown max length")
	ErrInstructionsTooLong = errors.New("custom instructions too long")
	ErrIncompleteCatalog   = errors.New("personalization catalog is incomplete")
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Settings are the user's summary preferences. Zero fields use catalog defaults.
type Settings struct {
	Style              string   `json:"style,omitempty"`
	Tone               string   `json:"tone,omitempty"`
	FocusAreas         []string `json:"focusAreas,omitempty"`
	MaxLength          string   `json:"maxLength,omitempty"`
	CustomInstructions string   `json:"customInstructions,omitempty"`
}

// Option is one selectable catalog entry.
type Option struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
}

// Catalog is the YAML document behind an Engine.
type Catalog struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Defaults struct {
		Style     string `yaml:"style"`
		Tone      string `yaml:"tone"`
		MaxLength string `yaml:"max_length"`
	} `yaml:"defaults"`
	Styles     map[string]Option `yaml:"styles"`
	Tones      map[string]Option `yaml:"tones"`
	FocusAreas map[string]Option `yaml:"focus_areas"`
	Lengths    map[string]Option `yaml:"lengths"`
	Template   string            `yaml:"template"`
}

// Input is what a prompt is rendered from.
type Input struct {
	Text     string
	Context  string // pre-rendered context block, may be empty
	Schema   string // output contract appended to every prompt
	Slack    bool
	Settings *Settings
}

type templateData struct {
	Text    string
	Context string
	Schema  string
	Slack   bool
	Style   Option
	Tone    Option
	Length  Option
	Focus   []Option
	Custom  string
}

// Engine renders personalized prompts. It is safe for concurrent use.
type Engine struct {
	catalog *Catalog
	tmpl    *template.Template
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
	defaultEngineErr  error
)

// Default returns the engine built from the embedded catalog.
func Default() (*Engine, error) {
	defaultEngineOnce.Do(func() {
		defaultEngine, defaultEngineErr = Parse(embeddedCatalog)
	})
	return defaultEngine, defaultEngineErr
}

// Parse builds an engine from a YAML catalog document.
func Parse(data []byte) (*Engine, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return newEngine(&c)
}

// LoadDir builds an engine from dir/catalog.yaml. An empty dir, or a dir
// without the file, yields the embedded default.
func LoadDir(dir string) (*Engine, error) {
	if dir == "" {
		return Default()
	}
	loader := configloader.NewLoader(dir)
	if !loader.Exists(CatalogFile) {
		return Default()
	}
	v, err := loader.LoadCached(CatalogFile, func() any { return &Catalog{} })
	if err != nil {
		return nil, fmt.Errorf("load catalog from %s: %w", filepath.Join(dir, CatalogFile), err)
	}
	return newEngine(v.(*Catalog))
}

func newEngine(c *Catalog) (*Engine, error) {
	if len(c.Styles) == 0 || len(c.Tones) == 0 || len(c.Lengths) == 0 || strings.TrimSpace(c.Template) == "" {
		return nil, ErrIncompleteCatalog
	}
	if _, ok := c.Styles[c.Defaults.Style]; !ok {
		return nil, fmt.Errorf("%w: default style %q", ErrIncompleteCatalog, c.Defaults.Style)
	}
	if _, ok := c.Tones[c.Defaults.Tone]; !ok {
		return nil, fmt.Errorf("%w: default tone %q", ErrIncompleteCatalog, c.Defaults.Tone)
	}
	if _, ok := c.Lengths[c.Defaults.MaxLength]; !ok {
		return nil, fmt.Errorf("%w: default length %q", ErrIncompleteCatalog, c.Defaults.MaxLength)
	}

	tmpl, err := template.New(c.Name).Option("missingkey=error").Parse(c.Template)
	if err != nil {
		return nil, fmt.Errorf("parse catalog template: %w", err)
	}
	return &Engine{catalog: c, tmpl: tmpl}, nil
}

// Catalog returns the catalog backing the engine. Callers must not modify it.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Validate checks settings against the catalog without rendering.
func (e *Engine) Validate(s *Settings) error {
	_, err := e.resolve(s)
	return err
}

// Render produces the personalized user prompt.
func (e *Engine) Render(in *Input) (string, error) {
	data, err := e.resolve(in.Settings)
	if err != nil {
		return "", err
	}
	data.Text = in.Text
	data.Context = in.Context
	data.Schema = in.Schema
	data.Slack = in.Slack

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func (e *Engine) resolve(s *Settings) (*templateData, error) {
	if s == nil {
		s = &Settings{}
	}
	c := e.catalog
	data := &templateData{}

	var ok bool
	if data.Style, ok = c.Styles[orDefault(s.Style, c.Defaults.Style)]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, s.Style)
	}
	if data.Tone, ok = c.Tones[orDefault(s.Tone, c.Defaults.Tone)]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTone, s.Tone)
	}
	if data.Length, ok = c.Lengths[orDefault(s.MaxLength, c.Defaults.MaxLength)]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLength, s.MaxLength)
	}

	seen := make(map[string]bool, len(s.FocusAreas))
	for _, id := range s.FocusAreas {
		key := normalize(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		opt, ok := c.FocusAreas[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFocusArea, id)
		}
		data.Focus = append(data.Focus, opt)
	}

	custom := strings.TrimSpace(s.CustomInstructions)
	if n := utf8.RuneCountInString(custom); n > MaxCustomInstructions {
		return nil, fmt.Errorf("%w: %d > %d characters", ErrInstructionsTooLong, n, MaxCustomInstructions)
	}
	data.Custom = custom
	return data, nil
}

func orDefault(v, def string) string {
	if v = normalize(v); v == "" {
		return def
	}
	return v
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
