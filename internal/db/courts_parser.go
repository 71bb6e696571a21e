package db

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codr1/Picklepoint/internal/models"
)

//go:embed courts.yaml
var defaultCourtsYAML []byte

type courtsFile struct {
	Courts []courtEntry `yaml:"courts"`
}

type courtEntry struct {
	Name           string               `yaml:"name"`
	Type           string               `yaml:"type"`
	BasePriceCents int64                `yaml:"base_price_cents"`
	Capacity       int64                `yaml:"capacity"`
	Active         *bool                `yaml:"active"`
	PricingRules   []models.PricingRule `yaml:"pricing_rules"`
}

// ParseCourts decodes a YAML court catalog. Courts default to active and a
// capacity of 4; names must be unique.
func ParseCourts(r io.Reader) ([]models.Court, error) {
	var file courtsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("courts file is empty")
		}
		return nil, fmt.Errorf("parse courts file: %w", err)
	}
	if len(file.Courts) == 0 {
		return nil, fmt.Errorf("courts file defines no courts")
	}

	seen := make(map[string]struct{}, len(file.Courts))
	courts := make([]models.Court, 0, len(file.Courts))
	for i, entry := range file.Courts {
		court := models.Court{
			Name:           strings.TrimSpace(entry.Name),
			Type:           strings.TrimSpace(entry.Type),
			BasePriceCents: entry.BasePriceCents,
			PricingRules:   entry.PricingRules,
			Capacity:       entry.Capacity,
			IsActive:       entry.Active == nil || *entry.Active,
		}
		if court.Capacity == 0 {
			court.Capacity = 4
		}
		if err := court.Validate(); err != nil {
			return nil, fmt.Errorf("court %d (%q): %w", i+1, court.Name, err)
		}
		if _, dup := seen[court.Name]; dup {
			return nil, fmt.Errorf("court %q is defined more than once", court.Name)
		}
		seen[court.Name] = struct{}{}
		courts = append(courts, court)
	}
	return courts, nil
}

// LoadCourts reads the catalog at path, or the embedded default catalog when
// path is empty.
func LoadCourts(path string) ([]models.Court, error) {
	if path == "" {
		return ParseCourts(strings.NewReader(string(defaultCourtsYAML)))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open courts file: %w", err)
	}
	defer f.Close()
	return ParseCourts(f)
}
