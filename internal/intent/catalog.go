// Package intent loads the request catalog: for each model intent, the model,
// instruction templates and structured-output schema.
package intent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-course/internal/ai"
)

//go:embed intents.yaml
var defaultCatalog []byte

// Spec describes how to ask the model for one intent.
type Spec struct {
	Name        string         `yaml:"name"`
	Model       string         `yaml:"model"`
	Voice       string         `yaml:"voice"`
	MaxTokens   int            `yaml:"max_tokens"`
	Temperature float64        `yaml:"temperature"`
	System      string         `yaml:"system"`
	Prompt      string         `yaml:"prompt"`
	Schema      map[string]any `yaml:"schema"`

	intent ai.Intent
	system *template.Template
	prompt *template.Template
	schema *gojsonschema.Schema
}

// Intent returns the intent this spec belongs to.
func (s Spec) Intent() ai.Intent {
	return s.intent
}

// RenderSystem executes the system template with data.
func (s Spec) RenderSystem(data any) (string, error) {
	return render(s.system, data)
}

// RenderPrompt executes the prompt template with data.
func (s Spec) RenderPrompt(data any) (string, error) {
	return render(s.prompt, data)
}

// CompiledSchema returns the compiled JSON schema, or nil for free-text intents.
func (s Spec) CompiledSchema() *gojsonschema.Schema {
	return s.schema
}

// Catalog holds one Spec per intent.
type Catalog struct {
	specs map[ai.Intent]Spec
}

type catalogFile struct {
	Intents []Spec `yaml:"intents"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading intent catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Info("intent catalog loaded", "path", path, "intents", len(c.specs))
	return c, nil
}

// Parse decodes and validates a YAML catalog. Every intent must be present exactly once.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing intent catalog: %w", err)
	}

	c := &Catalog{specs: make(map[ai.Intent]Spec, len(file.Intents))}
	for _, spec := range file.Intents {
		intent, ok := ai.ParseIntent(spec.Name)
		if !ok {
			return nil, fmt.Errorf("unknown intent %q", spec.Name)
		}
		if _, dup := c.specs[intent]; dup {
			return nil, fmt.Errorf("intent %q defined twice", spec.Name)
		}
		if err := spec.compile(intent); err != nil {
			return nil, fmt.Errorf("intent %q: %w", spec.Name, err)
		}
		c.specs[intent] = spec
	}

	for _, intent := range ai.Intents {
		if _, ok := c.specs[intent]; !ok {
			return nil, fmt.Errorf("intent %q missing from catalog", intent)
		}
	}
	return c, nil
}

// Get returns the spec for an intent.
func (c *Catalog) Get(intent ai.Intent) Spec {
	return c.specs[intent]
}

// Override replaces the model and voice of an intent. Empty values keep the
// catalog's setting.
func (c *Catalog) Override(intent ai.Intent, model, voice string) {
	spec, ok := c.specs[intent]
	if !ok {
		return
	}
	if model != "" {
		spec.Model = model
	}
	if voice != "" {
		spec.Voice = voice
	}
	c.specs[intent] = spec
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

func (s *Spec) compile(intent ai.Intent) error {
	s.intent = intent

	var err error
	if s.system, err = template.New(s.Name + ".system").Funcs(funcs).Parse(s.System); err != nil {
		return fmt.Errorf("system template: %w", err)
	}
	if s.prompt, err = template.New(s.Name + ".prompt").Funcs(funcs).Parse(s.Prompt); err != nil {
		return fmt.Errorf("prompt template: %w", err)
	}

	if s.Schema == nil {
		return nil
	}
	// Round-trip through JSON so the schema only holds JSON-compatible values.
	raw, err := json.Marshal(s.Schema)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	s.Schema = normalized

	if s.schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw)); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	return nil
}

func render(t *template.Template, data any) (string, error) {
	if t == nil {
		return "", nil
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
