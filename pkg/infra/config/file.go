package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/analogj/capsulecd/pkg/domain/types"
)

// ReadFile decodes a YAML or TOML file, chosen by extension, into a map with lower-cased top-level keys.
// An empty file yields an empty map.
func ReadFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	out := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, goerr.Wrap(types.ErrConfigInvalid, "failed to parse YAML config file", goerr.V("path", path), goerr.V("error", err.Error()))
		}
	case ".toml":
		if err := toml.Unmarshal(raw, &out); err != nil {
			return nil, goerr.Wrap(types.ErrConfigInvalid, "failed to parse TOML config file", goerr.V("path", path), goerr.V("error", err.Error()))
		}
	default:
		return nil, goerr.Wrap(types.ErrConfigInvalid, "unsupported config file extension", goerr.V("path", path), goerr.V("ext", ext))
	}

	if out == nil {
		return map[string]any{}, nil
	}

	normalized := make(map[string]any, len(out))
	for k, v := range out {
		normalized[strings.ToLower(k)] = v
	}
	return normalized, nil
}
