package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrohub/internal/models"
	"astrohub/internal/schema"
)

var testDefaults = Defaults{Models: []string{"model-a", "model-b"}, MaxAttempts: 3, GenerationAttempts: 2}

func TestLoad_EmbeddedTable(t *testing.T) {
	c, err := Load("", testDefaults)
	require.NoError(t, err)

	assert.Equal(t, []models.DatasetName{
		models.DatasetArticles,
		models.DatasetAstronautDetails,
		models.DatasetAstronautSearch,
		models.DatasetAstronauts,
		models.DatasetMissions,
		models.DatasetQuiz,
		models.DatasetStats,
	}, c.Names())

	for _, name := range c.Names() {
		ds, ok := c.Get(name)
		require.True(t, ok)

		spec := ds.Spec()
		assert.Equal(t, testDefaults.Models, spec.Models, name)
		assert.Equal(t, 3, spec.MaxAttempts, name)
		assert.Equal(t, 2, spec.GenerationAttempts, name)
		assert.NotEmpty(t, ds.Fallback(), name)
	}
}

func TestFallbacksConformToSchema(t *testing.T) {
	c, err := Load("", testDefaults)
	require.NoError(t, err)

	for _, name := range c.Names() {
		ds, _ := c.Get(name)
		fields := ds.Schema().Fields
		for i, rec := range ds.Fallback() {
			_, err := schema.Check(map[string]any(rec), &schema.Schema{Shape: models.ShapeObject, Fields: fields})
			assert.NoError(t, err, "%s fallback record %d", name, i)
		}
	}

	quiz, _ := c.Get(models.DatasetQuiz)
	assert.Len(t, quiz.Fallback(), 10)
	for _, q := range quiz.Fallback() {
		assert.Len(t, q["options"], 4)
	}
}

func TestFallbackIsACopy(t *testing.T) {
	c, err := Load("", testDefaults)
	require.NoError(t, err)

	ds, _ := c.Get(models.DatasetAstronauts)
	first := ds.Fallback()
	first[0]["name"] = "mutated"
	first[0]["notable_missions"].([]any)[0] = "mutated"

	second := ds.Fallback()
	assert.Equal(t, "Neil Armstrong", second[0]["name"])
	assert.Equal(t, "Gemini 8", second[0]["notable_missions"].([]any)[0])
}

func TestDataset_Templates(t *testing.T) {
	c, err := Load("", testDefaults)
	require.NoError(t, err)

	search, _ := c.Get(models.DatasetAstronautSearch)
	key, err := search.CacheKey(models.DatasetRequest{Query: "  ISRO "})
	require.NoError(t, err)
	assert.Equal(t, "astronaut_search_isro", key)

	prompt, err := search.Prompt(models.DatasetRequest{Query: "ISRO"})
	require.NoError(t, err)
	assert.Contains(t, prompt, `matching the query "ISRO"`)
	assert.Contains(t, prompt, "up to 10 astronauts")

	articles, _ := c.Get(models.DatasetArticles)
	byDate, err := articles.Prompt(models.DatasetRequest{Date: "2024-10-15"})
	require.NoError(t, err)
	assert.Contains(t, byDate, "articles for 2024-10-15")
	byQuery, err := articles.Prompt(models.DatasetRequest{Query: "mars"})
	require.NoError(t, err)
	assert.Contains(t, byQuery, `articles matching "mars"`)

	key, err = articles.CacheKey(models.DatasetRequest{Date: "2024-10-15", Query: "Mars"})
	require.NoError(t, err)
	assert.Equal(t, "articles_2024-10-15_mars", key)

	astronauts, _ := c.Get(models.DatasetAstronauts)
	assert.Equal(t, "Sunita Williams astronaut", astronauts.ImageQuery(models.Record{"name": "Sunita Williams"}))
	assert.Equal(t, "astronaut", astronauts.ImageQuery(models.Record{}))

	missions, _ := c.Get(models.DatasetMissions)
	assert.Equal(t, "space mission Apollo 11", missions.ImageQuery(models.Record{"mission_name": "Apollo 11"}))

	quiz, _ := c.Get(models.DatasetQuiz)
	assert.Equal(t, "", quiz.ImageQuery(models.Record{"question": "q"}))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "datasets: []"},
		{"unknown shape", `
datasets:
  - {dataset: quiz, shape: table, count: 1, cache_key: k, prompt: p, fallback: quiz.json, fields: [{name: question, type: string}]}`},
		{"unknown field type", `
datasets:
  - {dataset: quiz, count: 1, cache_key: k, prompt: p, fallback: quiz.json, fields: [{name: question, type: date}]}`},
		{"missing fallback file", `
datasets:
  - {dataset: quiz, count: 1, cache_key: k, prompt: p, fallback: nope.json, fields: [{name: question, type: string}]}`},
		{"fallback violates schema", `
datasets:
  - {dataset: quiz, count: 1, cache_key: k, prompt: p, fallback: quiz.json, fields: [{name: question, type: number, required: true}]}`},
		{"filter without source", `
datasets:
  - {dataset: quiz, count: 1, cache_key: k, prompt: p, fallback: quiz.json, secondary: {kind: filter_cached}, fields: [{name: question, type: string}]}`},
		{"bad template", `
datasets:
  - {dataset: quiz, count: 1, cache_key: k, prompt: "{{.Query", fallback: quiz.json, fields: [{name: question, type: string}]}`},
		{"duplicate", `
datasets:
  - {dataset: quiz, count: 1, cache_key: k, prompt: p, fallback: quiz.json, fields: [{name: question, type: string}]}
  - {dataset: quiz, count: 1, cache_key: k, prompt: p, fallback: quiz.json, fields: [{name: question, type: string}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), testDefaults)
			assert.Error(t, err)
		})
	}
}

func TestParse_NoModels(t *testing.T) {
	_, err := Parse([]byte(`
datasets:
  - {dataset: quiz, count: 1, cache_key: k, prompt: p, fallback: quiz.json, fields: [{name: question, type: string}]}`), Defaults{})
	assert.Error(t, err)
}
