package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"

	"gopkg.in/yaml.v3"
)

// CardRecord is one card in an import file.
type CardRecord struct {
	Ref     string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Number  string   `yaml:"number"`
	HP      int      `yaml:"hp"`
	Type    string   `yaml:"type"`
	Attacks []string `yaml:"attacks"` // "Thunder Shock (10)"; at most two are kept
	Rarity  string   `yaml:"rarity"`
	Artist  string   `yaml:"artist"`
}

// SetRecord is one card set in an import file.
type SetRecord struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name"`
	Cards []CardRecord `yaml:"cards"`
}

// ImportFile is the YAML catalog import format.
type ImportFile struct {
	Sets []SetRecord `yaml:"sets"`
}

// ParseImport decodes a YAML catalog list.
func ParseImport(r io.Reader) (*ImportFile, error) {
	var f ImportFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	for _, s := range f.Sets {
		if s.ID == "" || s.Name == "" {
			return nil, fmt.Errorf("set %q: id and name are required", s.ID)
		}
		for _, c := range s.Cards {
			if c.Ref == "" || c.Name == "" {
				return nil, fmt.Errorf("set %s: card %q: id and name are required", s.ID, c.Ref)
			}
		}
	}
	return &f, nil
}

// Import inserts or updates every set and card of f in one transaction and
// returns the number of cards written.
func (db *DB) Import(ctx context.Context, f *ImportFile) (int, error) {
	n := 0
	err := db.ExecTx(ctx, func(tx *sql.Tx) error {
		for _, s := range f.Sets {
			_, err := tx.ExecContext(ctx, db.rebind(`
				INSERT INTO card_sets (id, name, clean_name) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, clean_name = excluded.clean_name`),
				s.ID, s.Name, cleanName(s.Name))
			if err != nil {
				return fmt.Errorf("failed to import set %s: %w", s.ID, err)
			}

			for _, c := range s.Cards {
				attacks := [2]string{}
				copy(attacks[:], c.Attacks)
				_, err := tx.ExecContext(ctx, db.rebind(`
					INSERT INTO products (id, set_id, name, clean_name, ext_number, ext_hp,
						ext_card_type, ext_attack1, ext_attack2, ext_rarity, artist)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
					ON CONFLICT (id) DO UPDATE SET
						set_id = excluded.set_id, name = excluded.name, clean_name = excluded.clean_name,
						ext_number = excluded.ext_number, ext_hp = excluded.ext_hp,
						ext_card_type = excluded.ext_card_type, ext_attack1 = excluded.ext_attack1,
						ext_attack2 = excluded.ext_attack2, ext_rarity = excluded.ext_rarity,
						artist = excluded.artist`),
					c.Ref, s.ID, c.Name, cleanName(c.Name), c.Number, c.HP,
					c.Type, attacks[0], attacks[1], c.Rarity, c.Artist)
				if err != nil {
					return fmt.Errorf("failed to import card %s: %w", c.Ref, err)
				}
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Printf("Catalog: imported %d cards from %d sets", n, len(f.Sets))
	return n, nil
}
