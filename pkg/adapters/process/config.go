package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScriptConfig describes one external script the ScriptRunner may invoke.
type ScriptConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of scripts.yaml.
type ConfigFile struct {
	Scripts []ScriptConfig `yaml:"scripts" json:"scripts"`
}

// LoadScripts reads a configuration file (YAML or JSON) and returns a map
// of script names to configs. A missing file yields an empty registry.
func LoadScripts(path string) (map[string]ScriptConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ScriptConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read scripts config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	scripts := make(map[string]ScriptConfig)
	for _, s := range cfg.Scripts {
		if s.Name == "" || s.Command == "" {
			continue
		}
		scripts[s.Name] = s
	}
	return scripts, nil
}
