package zones

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/service"
)

// Entry binds one engineer, by id or email, to the polygon they cover.
type Entry struct {
	Engineer string              `yaml:"engineer"`
	Name     string              `yaml:"name"`
	Polygon  []domain.Coordinate `yaml:"polygon"`
}

// File is the zone seed document.
type File struct {
	Zones []Entry `yaml:"zones"`
}

// Load reads and validates a zone seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a zone seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse zone file: %w", err)
	}
	for i, z := range f.Zones {
		if strings.TrimSpace(z.Engineer) == "" {
			return nil, fmt.Errorf("zone %d: engineer is required", i)
		}
		if len(z.Polygon) < 3 {
			return nil, fmt.Errorf("zone %d (%s): polygon needs at least three vertices", i, z.Engineer)
		}
	}
	return &f, nil
}

// Assignments converts the file into service input.
func (f *File) Assignments() []service.ZoneAssignment {
	out := make([]service.ZoneAssignment, 0, len(f.Zones))
	for _, z := range f.Zones {
		out = append(out, service.ZoneAssignment{Engineer: z.Engineer, Zone: domain.Zone(z.Polygon)})
	}
	return out
}
