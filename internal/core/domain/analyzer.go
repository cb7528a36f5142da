package domain

import (
	"encoding/json"
	"strconv"
)

// Analyzer names a versioned processing step that produced an artefact
// (derived text, embeddings). Rows are append-only.
type Analyzer struct {
	// ID is the unique identifier.
	ID int64

	// Name is the step name, e.g. "process_html" or "embed_ada2".
	Name string

	// Version increments when the step's output changes.
	Version int

	// Params are step parameters that distinguish analyzer variants.
	Params map[string]any
}

// Analyzer versions for built-in steps.
const (
	DownloadVersion   = 1
	ExtractionVersion = 1
	EmbeddingVersion  = 1
)

// Analyzer names for steps not named after a topic.
const (
	AnalyzerDownload    = "download"
	AnalyzerEmbedPrefix = "embed_"
)

// Key returns a stable identity for the (name, version, params) triple.
func (a Analyzer) Key() string {
	params := ""
	if len(a.Params) > 0 {
		// encoding/json sorts map keys.
		if b, err := json.Marshal(a.Params); err == nil {
			params = string(b)
		}
	}
	return a.Name + "/" + strconv.Itoa(a.Version) + "/" + params
}
