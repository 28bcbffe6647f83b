package pipeline

import (
	"context"
	"encoding/json"
)

// Extractor is the interface for any structured-extraction backend: prompt
// plus schema in, schema-conformant JSON out.
type Extractor interface {
	Extract(ctx context.Context, req *ExtractRequest) (json.RawMessage, error)
}

// ExtractRequest describes one structured call.
type ExtractRequest struct {
	Model      string
	System     string
	UserText   string
	Schema     json.RawMessage
	SchemaName string
	MaxTokens  int
}

// Stage prompt material the engine needs for one classification stage.
type Stage struct {
	Model      string
	Prompt     string
	Schema     json.RawMessage
	SchemaName string
}
