// Package prompts loads the read-only example prompts file shown in the
// control panel's generate tab.
package prompts

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"mlxd/pkg/types"
)

// Load reads example prompts from a JSON file. Three shapes are
// accepted: an object mapping names to prompt text, a bare array of
// strings, and an object {"prompts": [...]}. Blank entries are dropped.
// An empty or missing path yields no prompts.
func Load(path string) ([]types.Prompt, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if named := parseNamed(b); named != nil {
		return named, nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		var wrapped struct {
			Prompts []string `json:"prompts"`
		}
		if err2 := json.Unmarshal(b, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
		}
		list = wrapped.Prompts
	}
	out := make([]types.Prompt, 0, len(list))
	for _, p := range list {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, types.Prompt{Name: t, Text: t})
		}
	}
	return out, nil
}

// parseNamed decodes the name-to-text object form, ordered by name.
// Returns nil when the file is not that shape or carries no usable
// entries.
func parseNamed(b []byte) []types.Prompt {
	var byName map[string]string
	if err := json.Unmarshal(b, &byName); err != nil {
		return nil
	}
	out := make([]types.Prompt, 0, len(byName))
	for name, text := range byName {
		if t := strings.TrimSpace(text); t != "" {
			out = append(out, types.Prompt{Name: strings.TrimSpace(name), Text: t})
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
