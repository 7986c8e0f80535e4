// Package catalog loads the per-dataset generation specs and their embedded
// fallback data. The table is read once at startup and is read-only afterwards.
package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"astrohub/internal/models"
	"astrohub/internal/schema"
)

//go:embed datasets.yaml
var defaultDatasets []byte

//go:embed fallback/*.json
var fallbackFS embed.FS

// Defaults fill in spec fields the table leaves empty
type Defaults struct {
	Models             []string
	MaxAttempts        int
	GenerationAttempts int
}

type file struct {
	Datasets []models.GenerationSpec `yaml:"datasets"`
}

// Catalog maps dataset names to their compiled specs
type Catalog struct {
	datasets map[models.DatasetName]*Dataset
}

// Load parses the embedded table, or the file at overridePath when set,
// and checks every fallback file against its dataset's schema
func Load(overridePath string, defaults Defaults) (*Catalog, error) {
	data := defaultDatasets
	if overridePath != "" {
		override, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read datasets file: %w", err)
		}
		data = override
		log.Printf("📋 [CATALOG] Using dataset table from %s", overridePath)
	}
	return Parse(data, defaults)
}

// Parse compiles a dataset table
func Parse(data []byte, defaults Defaults) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse datasets YAML: %w", err)
	}
	if len(f.Datasets) == 0 {
		return nil, fmt.Errorf("datasets table is empty")
	}

	c := &Catalog{datasets: make(map[models.DatasetName]*Dataset, len(f.Datasets))}
	for i := range f.Datasets {
		spec := f.Datasets[i]
		applyDefaults(&spec, defaults)

		ds, err := compile(spec)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", spec.Dataset, err)
		}
		if _, dup := c.datasets[spec.Dataset]; dup {
			return nil, fmt.Errorf("dataset %q defined twice", spec.Dataset)
		}
		c.datasets[spec.Dataset] = ds
	}

	log.Printf("✅ [CATALOG] Loaded %d datasets: %s", len(c.datasets), strings.Join(c.nameStrings(), ", "))
	return c, nil
}

// Get returns the compiled dataset for name
func (c *Catalog) Get(name models.DatasetName) (*Dataset, bool) {
	ds, ok := c.datasets[name]
	return ds, ok
}

// Names returns every dataset name in sorted order
func (c *Catalog) Names() []models.DatasetName {
	names := make([]models.DatasetName, 0, len(c.datasets))
	for name := range c.datasets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (c *Catalog) nameStrings() []string {
	names := c.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func applyDefaults(spec *models.GenerationSpec, defaults Defaults) {
	if spec.Shape == "" {
		spec.Shape = models.ShapeList
	}
	if len(spec.Models) == 0 {
		spec.Models = append([]string(nil), defaults.Models...)
	}
	if spec.MaxAttempts <= 0 {
		spec.MaxAttempts = defaults.MaxAttempts
	}
	if spec.MaxAttempts <= 0 {
		spec.MaxAttempts = 1
	}
	if spec.GenerationAttempts <= 0 {
		spec.GenerationAttempts = defaults.GenerationAttempts
	}
	if spec.GenerationAttempts <= 0 {
		spec.GenerationAttempts = 1
	}
	if spec.Image != nil && spec.Image.Mode == "" {
		spec.Image.Mode = models.EnrichSync
	}
}

var templateFuncs = template.FuncMap{
	"lower": func(s string) string { return strings.ToLower(strings.TrimSpace(s)) },
}

func compile(spec models.GenerationSpec) (*Dataset, error) {
	if spec.Dataset == "" {
		return nil, fmt.Errorf("missing dataset name")
	}
	if spec.Shape != models.ShapeList && spec.Shape != models.ShapeObject {
		return nil, fmt.Errorf("unknown shape %q", spec.Shape)
	}
	if len(spec.Fields) == 0 {
		return nil, fmt.Errorf("no fields declared")
	}
	for _, f := range spec.Fields {
		switch f.Type {
		case models.FieldString, models.FieldNumber, models.FieldArray, models.FieldObject, models.FieldBoolean:
		default:
			return nil, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
	}
	if spec.Shape == models.ShapeList && spec.Count <= 0 {
		return nil, fmt.Errorf("list datasets need a positive count")
	}
	if len(spec.Models) == 0 {
		return nil, fmt.Errorf("no completion models configured")
	}
	switch spec.Secondary.Kind {
	case models.SecondaryNone, models.SecondaryScrape:
	case models.SecondaryFilterCached, models.SecondaryDeriveDetails:
		if spec.Secondary.From == "" {
			return nil, fmt.Errorf("secondary %q needs a source cache key", spec.Secondary.Kind)
		}
	default:
		return nil, fmt.Errorf("unknown secondary strategy %q", spec.Secondary.Kind)
	}
	if spec.Image != nil {
		if spec.Image.Field == "" || spec.Image.Query == "" {
			return nil, fmt.Errorf("image enrichment needs a field and a query")
		}
		if spec.Image.Mode != models.EnrichSync && spec.Image.Mode != models.EnrichAsync {
			return nil, fmt.Errorf("unknown image mode %q", spec.Image.Mode)
		}
	}

	ds := &Dataset{spec: spec, schema: schema.FromSpec(&spec)}

	var err error
	if ds.prompt, err = parseTemplate("prompt", spec.Prompt); err != nil {
		return nil, err
	}
	if ds.cacheKey, err = parseTemplate("cache_key", spec.CacheKey); err != nil {
		return nil, err
	}
	if spec.Image != nil {
		if ds.imageQuery, err = parseTemplate("image.query", spec.Image.Query); err != nil {
			return nil, err
		}
	}

	if ds.fallback, err = loadFallback(spec); err != nil {
		return nil, err
	}
	return ds, nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s is empty", name)
	}
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid %s template: %w", name, err)
	}
	return tmpl, nil
}

// loadFallback reads and checks the embedded fallback file. Object-shaped
// datasets may ship a list of candidates; the first one is the generic default.
func loadFallback(spec models.GenerationSpec) (models.Records, error) {
	if spec.Fallback == "" {
		return nil, fmt.Errorf("no fallback file declared")
	}

	data, err := fallbackFS.ReadFile("fallback/" + spec.Fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback %s: %w", spec.Fallback, err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to parse fallback %s: %w", spec.Fallback, err)
	}

	s := schema.FromSpec(&spec)
	if _, isList := value.([]any); isList && spec.Shape == models.ShapeObject {
		s = &schema.Schema{Shape: models.ShapeList, Fields: spec.Fields}
	}

	records, err := schema.Check(value, s)
	if err != nil {
		return nil, fmt.Errorf("fallback %s does not match the schema: %w", spec.Fallback, err)
	}
	return records, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
