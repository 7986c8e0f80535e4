package models

import "strings"

// DatasetName identifies a logical collection served by the orchestrator
type DatasetName string

const (
	DatasetAstronauts       DatasetName = "astronauts"
	DatasetAstronautSearch  DatasetName = "astronaut-search"
	DatasetAstronautDetails DatasetName = "astronaut-details"
	DatasetMissions         DatasetName = "missions"
	DatasetQuiz             DatasetName = "quiz"
	DatasetArticles         DatasetName = "articles"
	DatasetStats            DatasetName = "stats"
	DatasetImage            DatasetName = "image"
)

// DatasetRequest is the immutable per-call description of what the caller wants
type DatasetRequest struct {
	Dataset DatasetName
	Query   string // free-form search terms (astronaut search, articles)
	Date    string // YYYY-MM-DD (articles)
	Name    string // astronaut name (details)
}

// Params exposes the request parameters to prompt and cache-key templates
func (r DatasetRequest) Params() map[string]string {
	return map[string]string{
		"Query": strings.TrimSpace(r.Query),
		"Date":  strings.TrimSpace(r.Date),
		"Name":  strings.TrimSpace(r.Name),
	}
}

// SearchText is the free text used to filter secondary and fallback records
func (r DatasetRequest) SearchText() string {
	if q := strings.TrimSpace(r.Query); q != "" {
		return q
	}
	return strings.TrimSpace(r.Name)
}

// Record is a validated mapping from field name to JSON value
type Record map[string]any

// Records is an order-preserving list of validated records
type Records []Record

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the field as a string, or "" when absent or not a string
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Clone returns a deep copy of every record, preserving order
func (rs Records) Clone() Records {
	if rs == nil {
		return nil
	}
	out := make(Records, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
