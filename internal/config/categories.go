package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/upload-portal/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategoryTable []byte

type categoryFile struct {
	Categories []models.CategorySpec `yaml:"categories"`
}

// LoadCategoryTable loads the category table from the given YAML file, or
// the embedded default when path is empty. The table must cover exactly the
// fixed category set; the set itself is closed and not configurable.
func LoadCategoryTable(path string) ([]models.CategorySpec, error) {
	data := defaultCategoryTable
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading category table: %w", err)
		}
		data = fileData
	}

	var parsed categoryFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing category table: %w", err)
	}

	if err := validateCategoryTable(parsed.Categories); err != nil {
		return nil, err
	}

	return parsed.Categories, nil
}

func validateCategoryTable(table []models.CategorySpec) error {
	if len(table) != len(models.AllCategories) {
		return fmt.Errorf("category table must define exactly %d categories, found %d",
			len(models.AllCategories), len(table))
	}

	seen := make(map[models.Category]bool, len(table))
	fields := make(map[string]bool, len(table))
	for _, spec := range table {
		if _, ok := models.ParseCategory(string(spec.Name)); !ok {
			return fmt.Errorf("unknown category in table: %s", spec.Name)
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate category in table: %s", spec.Name)
		}
		seen[spec.Name] = true

		if spec.Field == "" {
			return fmt.Errorf("category %s has no field name", spec.Name)
		}
		if fields[spec.Field] {
			return fmt.Errorf("duplicate field name in table: %s", spec.Field)
		}
		fields[spec.Field] = true
	}

	return nil
}
