package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sentinel-guard/internal/model"

	"gopkg.in/yaml.v3"
)

// LoadRulesFromJSON loads rules from a JSON configuration file
func LoadRulesFromJSON(filename string) ([]model.Rule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules struct {
		Rules []model.Rule `json:"rules"`
	}

	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	return rules.Rules, nil
}

// LoadRulesFromYAML loads rules from a YAML configuration file
func LoadRulesFromYAML(filename string) ([]model.Rule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules struct {
		Rules []model.Rule `yaml:"rules"`
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules file: %w", err)
	}

	return rules.Rules, nil
}

// LoadRules picks the format from the file extension, trying YAML then
// JSON when the extension is unknown.
func LoadRules(filename string) ([]model.Rule, error) {
	if filename == "" {
		return nil, fmt.Errorf("rules file path is empty")
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return LoadRulesFromYAML(filename)
	case ".json":
		return LoadRulesFromJSON(filename)
	}

	if rules, err := LoadRulesFromYAML(filename); err == nil {
		return rules, nil
	}
	return LoadRulesFromJSON(filename)
}

// Threshold reads the first numeric threshold found under keys. YAML
// decodes whole numbers as int and JSON as float64, so both are accepted.
func Threshold(rule model.Rule, def float64, keys ...string) float64 {
	for _, key := range keys {
		switch v := rule.Thresholds[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
				return f
			}
		}
	}
	return def
}

// StringThreshold reads a string threshold such as a risk level.
func StringThreshold(rule model.Rule, key, def string) string {
	if v, ok := rule.Thresholds[key].(string); ok && v != "" {
		return v
	}
	return def
}
