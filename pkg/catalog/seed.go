package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// SeedFile is the on-disk catalog definition
//
//	modules:
//	  - id: 7
//	    name: Reports
//	    route: /dashboard/reports
//	    icon: chart-bar
//	    visible: true
type SeedFile struct {
	Modules []Module `yaml:"modules"`
}

// LoadSeedFile reads and validates a YAML seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed YAML
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks that ids are unique and non-negative and names are set
func (f *SeedFile) Validate() error {
	seen := make(map[int64]bool, len(f.Modules))
	for i, m := range f.Modules {
		if m.ID < 0 {
			return fmt.Errorf("module #%d: id must not be negative, use a builtin reference instead", i)
		}
		if m.Name == "" {
			return fmt.Errorf("module %d: name is required", m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("module %d: duplicate id", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// Sync upserts every seed module in a single transaction. Modules missing
// from the seed are left in place since activations may reference them. A
// seed that changes an activated module is rejected as a whole.
func Sync(ctx context.Context, db storage.TxBeginner, seed *SeedFile) error {
	return storage.WithTx(ctx, db, func(tx *sql.Tx) error {
		store := NewStore(tx)
		for i := range seed.Modules {
			if err := store.Upsert(ctx, &seed.Modules[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
