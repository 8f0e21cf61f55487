package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the manifest JSON schema as a generic map.
func Schema() (map[string]any, error) {
	var schema map[string]any
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil, fmt.Errorf("manifest: decode schema: %w", err)
	}
	return schema, nil
}
