package models

// FieldType is the JSON type a record field must carry
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
	FieldBoolean FieldType = "boolean"
)

// Normalization is applied to string fields after validation
type Normalization string

const (
	NormalizeNone  Normalization = ""
	NormalizeLower Normalization = "lower" // enum-like values such as current_status
	NormalizeTrim  Normalization = "trim"  // name-like values
)

// ShapeKind is the expected top-level JSON shape of a completion
type ShapeKind string

const (
	ShapeList   ShapeKind = "list"
	ShapeObject ShapeKind = "object"
)

// FieldSpec declares one field of a record schema
type FieldSpec struct {
	Name      string        `yaml:"name"`
	Type      FieldType     `yaml:"type"`
	Required  bool          `yaml:"required"`
	Nullable  bool          `yaml:"nullable"`
	Normalize Normalization `yaml:"normalize"`
	Length    int           `yaml:"length"` // exact element count for array fields, 0 = any
}

// SecondaryKind selects the lower-quality strategy tried after generation fails
type SecondaryKind string

const (
	SecondaryNone          SecondaryKind = ""
	SecondaryFilterCached  SecondaryKind = "filter_cached"
	SecondaryDeriveDetails SecondaryKind = "derive_details"
	SecondaryScrape        SecondaryKind = "scrape"
)

// SecondarySpec configures the SECONDARY stage of a dataset
type SecondarySpec struct {
	Kind SecondaryKind `yaml:"kind"`
	// From is the cache key of the broader list consulted by filter_cached and derive_details
	From string `yaml:"from"`
}

// EnrichMode controls whether image lookups block the response
type EnrichMode string

const (
	EnrichSync  EnrichMode = "sync"
	EnrichAsync EnrichMode = "async"
)

// ImageSpec configures image enrichment for a dataset
type ImageSpec struct {
	Field string     `yaml:"field"` // record field receiving the URL
	Query string     `yaml:"query"` // template over record fields, e.g. "{{.name}} astronaut"
	Mode  EnrichMode `yaml:"mode"`
}

// GenerationSpec is the per-dataset configuration driving the orchestrator
type GenerationSpec struct {
	Dataset            DatasetName   `yaml:"dataset"`
	Shape              ShapeKind     `yaml:"shape"`
	Fields             []FieldSpec   `yaml:"fields"`
	Count              int           `yaml:"count"`
	MaxTokens          int           `yaml:"max_tokens"`
	Temperature        float32       `yaml:"temperature"`
	Models             []string      `yaml:"models"`
	MaxAttempts        int           `yaml:"max_attempts"`
	GenerationAttempts int           `yaml:"generation_attempts"`
	CacheKey           string        `yaml:"cache_key"`
	Prompt             string        `yaml:"prompt"`
	FilterFields       []string      `yaml:"filter_fields"`
	Secondary          SecondarySpec `yaml:"secondary"`
	Image              *ImageSpec    `yaml:"image"`
	Fallback           string        `yaml:"fallback"` // embedded fallback file name
}

// FieldNames returns the declared field names in schema order
func (g *GenerationSpec) FieldNames() []string {
	names := make([]string, 0, len(g.Fields))
	for _, f := range g.Fields {
		names = append(names, f.Name)
	}
	return names
}
