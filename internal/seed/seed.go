// Package seed holds the demonstration listings bundled with the binary.
// They are always loaded underneath remote and locally created records.
package seed

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
)

//go:embed data/*.json
var dataFS embed.FS

// Properties returns a fresh copy of the seed properties.
func Properties() ([]domain.Property, error) {
	var out []domain.Property
	if err := load("data/properties.json", &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Meta = out[i].Meta.Stamped(out[i].ID, domain.ProvenanceSeed)
	}
	return out, nil
}

// Projects returns a fresh copy of the seed projects.
func Projects() ([]domain.Project, error) {
	var out []domain.Project
	if err := load("data/projects.json", &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Meta = out[i].Meta.Stamped(out[i].ID, domain.ProvenanceSeed)
	}
	return out, nil
}

func load(name string, dst any) error {
	data, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode seed file %s: %w", name, err)
	}
	return nil
}
