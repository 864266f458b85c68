package subscription

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a plan catalog.
type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadCatalogYAML parses a catalog from YAML bytes. Deployments that price
// plans differently per region ship a file instead of rebuilding.
func LoadCatalogYAML(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	return NewCatalog(file.Plans...)
}

// LoadCatalogFile reads and parses a catalog YAML file.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlanConfiguration, err)
	}
	return LoadCatalogYAML(data)
}
