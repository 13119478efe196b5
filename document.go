package meta

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ReadDocument decodes a JSON manifest description from r.
func ReadDocument(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return doc, nil
}

// ReadDocumentFile reads a manifest description from path. Files with
// a .yaml or .yml extension are decoded as YAML; everything else is
// treated as JSON. YAML values are normalized through a JSON
// round-trip so that validation sees the same value shapes regardless
// of the input codec.
func ReadDocumentFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return normalizeYAML(data)
	default:
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return doc, nil
	}
}

func normalizeYAML(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	// yaml decodes numbers as int; the schema engine expects values
	// shaped like encoding/json output, so round-trip through JSON.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("normalizing document: %w", err)
	}
	return doc, nil
}
