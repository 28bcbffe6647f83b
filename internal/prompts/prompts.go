// Package prompts loads the gatekeeper and analyst prompt/schema material.
// Defaults ship embedded in the binary; a prompt or schema directory can
// override individual files by name.
package prompts

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/linnemanlabs/prospect/internal/pipeline"
)

//go:embed defaults/*.md defaults/*.json
var defaults embed.FS

const (
	// GatekeeperSchemaName names the stage-1 output schema on the wire.
	GatekeeperSchemaName = "gatekeeper_result"
	// AnalystSchemaName names the stage-2 output schema on the wire.
	AnalystSchemaName = "alpha_object_v2"
)

// GatekeeperStage assembles the stage-1 prompt material for the given model.
func GatekeeperStage(promptDir, schemaDir, model string) (pipeline.Stage, error) {
	return loadStage(promptDir, schemaDir, model, "gatekeeper.md", "gatekeeper.schema.json", GatekeeperSchemaName)
}

// AnalystStage assembles the stage-2 prompt material for the given model.
func AnalystStage(promptDir, schemaDir, model string) (pipeline.Stage, error) {
	return loadStage(promptDir, schemaDir, model, "analyst.md", "alpha_object.schema.json", AnalystSchemaName)
}

func loadStage(promptDir, schemaDir, model, promptName, schemaName, wireName string) (pipeline.Stage, error) {
	prompt, err := LoadPrompt(promptDir, promptName)
	if err != nil {
		return pipeline.Stage{}, err
	}
	schema, err := LoadSchema(schemaDir, schemaName)
	if err != nil {
		return pipeline.Stage{}, err
	}
	return pipeline.Stage{
		Model:      model,
		Prompt:     prompt,
		Schema:     schema,
		SchemaName: wireName,
	}, nil
}

// LoadPrompt returns the prompt text, preferring dir/name when present.
func LoadPrompt(dir, name string) (string, error) {
	b, err := load(dir, name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// LoadSchema returns the schema, preferring dir/name when present, and
// rejects files that are not valid JSON.
func LoadSchema(dir, name string) (json.RawMessage, error) {
	b, err := load(dir, name)
	if err != nil {
		return nil, err
	}
	var probe any
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("schema %s: invalid JSON: %w", name, err)
	}
	return json.RawMessage(b), nil
}

func load(dir, name string) ([]byte, error) {
	if dir != "" {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", filepath.Join(dir, name), err)
		}
		// fall through to the embedded default
	}
	b, err := defaults.ReadFile("defaults/" + name)
	if err != nil {
		return nil, fmt.Errorf("embedded default %s: %w", name, err)
	}
	return b, nil
}
