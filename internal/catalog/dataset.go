package catalog

import (
	"fmt"
	"strings"
	"text/template"

	"astrohub/internal/models"
	"astrohub/internal/schema"
)

// Dataset is a compiled generation spec
type Dataset struct {
	spec       models.GenerationSpec
	schema     *schema.Schema
	prompt     *template.Template
	cacheKey   *template.Template
	imageQuery *template.Template
	fallback   models.Records
}

type promptData struct {
	Query string
	Date  string
	Name  string
	Count int
}

// Name returns the dataset name
func (d *Dataset) Name() models.DatasetName {
	return d.spec.Dataset
}

// Spec returns a copy of the generation spec
func (d *Dataset) Spec() models.GenerationSpec {
	return d.spec
}

// Schema returns the record schema
func (d *Dataset) Schema() *schema.Schema {
	return d.schema
}

// Prompt renders the completion prompt for req
func (d *Dataset) Prompt(req models.DatasetRequest) (string, error) {
	out, err := render(d.prompt, d.data(req))
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CacheKey renders the cache key for req
func (d *Dataset) CacheKey(req models.DatasetRequest) (string, error) {
	out, err := render(d.cacheKey, d.data(req))
	if err != nil {
		return "", fmt.Errorf("failed to render cache key: %w", err)
	}
	return out, nil
}

// ImageQuery renders the image search query for a record. It returns "" for
// datasets without image enrichment.
func (d *Dataset) ImageQuery(rec models.Record) string {
	if d.imageQuery == nil {
		return ""
	}

	fields := make(map[string]string, len(rec))
	for k, v := range rec {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	out, err := render(d.imageQuery, fields)
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(out), " ")
}

// Fallback returns a fresh copy of the embedded fallback records
func (d *Dataset) Fallback() models.Records {
	return d.fallback.Clone()
}

func (d *Dataset) data(req models.DatasetRequest) promptData {
	p := req.Params()
	return promptData{
		Query: p["Query"],
		Date:  p["Date"],
		Name:  p["Name"],
		Count: d.spec.Count,
	}
}
