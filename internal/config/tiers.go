package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTierBoosts favors authoritative documentation categories
// during fusion. Categories absent from the table keep factor 1.0.
func DefaultTierBoosts() map[string]float64 {
	return map[string]float64{
		"official": 1.2,
		"pricing":  1.2,
	}
}

// LoadTierBoosts reads a category->boost table from a YAML file:
//
//	boosts:
//	  official: 1.2
//	  community: 0.9
//
// An empty path returns the default table.
func LoadTierBoosts(path string) (map[string]float64, error) {
	if path == "" {
		return DefaultTierBoosts(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier boosts: %w", err)
	}

	var doc struct {
		Boosts map[string]float64 `yaml:"boosts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse tier boosts: %w", err)
	}
	if len(doc.Boosts) == 0 {
		return nil, fmt.Errorf("tier boosts file %s has no boosts section", path)
	}
	for category, boost := range doc.Boosts {
		if boost <= 0 {
			return nil, fmt.Errorf("tier boost for %q must be positive, got %v", category, boost)
		}
	}
	return doc.Boosts, nil
}
