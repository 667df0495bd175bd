package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
)

const includeKey = "include"

// Load reads path (a TOML file) into a Config, resolving "include" directives
// the same way the teacher's loader.go resolves "$include": depth-first,
// with cycle detection, child values losing to parent values on conflict.
// A missing path falls back to Default(codexHome).
func Load(path, codexHome string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(codexHome), nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(codexHome), nil
		}
		return nil, err
	}

	raw, err := loadRawRecursive(path, map[string]bool{})
	if err != nil {
		return nil, err
	}

	tree, err := toml.TreeFromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("config: rebuild merged tree: %w", err)
	}
	cfg := Default(codexHome)
	if err := tree.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.CodexHome == "" {
		cfg.CodexHome = codexHome
	}
	return cfg, nil
}

func loadRawRecursive(path string, seen map[string]bool) (map[string]interface{}, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if seen[absPath] {
		return nil, fmt.Errorf("config: include cycle at %s", absPath)
	}
	seen[absPath] = true
	defer delete(seen, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", absPath, err)
	}
	expanded := os.ExpandEnv(string(data))

	tree, err := toml.Load(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", absPath, err)
	}
	raw := tree.ToMap()

	var includes []string
	if v, ok := raw[includeKey]; ok {
		includes = toStringSlice(v)
		delete(raw, includeKey)
	}

	merged := map[string]interface{}{}
	if len(includes) > 0 {
		baseDir := filepath.Dir(absPath)
		for _, inc := range includes {
			incPath := inc
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(baseDir, incPath)
			}
			incRaw, err := loadRawRecursive(incPath, seen)
			if err != nil {
				return nil, err
			}
			merged = mergeMaps(merged, incRaw)
		}
	}
	merged = mergeMaps(merged, raw)
	return merged, nil
}

func toStringSlice(v interface{}) []string {
	switch typed := v.(type) {
	case string:
		return []string{typed}
	case []string:
		return typed
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, e := range typed {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// mergeMaps overlays src onto dst, recursing into shared nested tables; src
// wins on scalar/slice conflicts, matching the teacher's loader.go semantics.
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for key, value := range src {
		if valueMap, ok := value.(map[string]interface{}); ok {
			if existing, ok := dst[key].(map[string]interface{}); ok {
				dst[key] = mergeMaps(existing, valueMap)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}
