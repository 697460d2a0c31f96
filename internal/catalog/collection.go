package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Entry is one line of the collection.
type Entry struct {
	Ref       string    `json:"id"`
	Name      string    `json:"name"`
	SetName   string    `json:"set_name"`
	Number    string    `json:"number"`
	Condition string    `json:"condition"`
	Variant   string    `json:"variant"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// AddCard adds quantity copies of a catalog record to the collection.
// Copies of the same record, condition and variant accumulate.
func (db *DB) AddCard(ctx context.Context, ref string, quantity int, condition, variant string) error {
	if quantity < 1 {
		return fmt.Errorf("invalid quantity %d", quantity)
	}
	return db.ExecTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, db.rebind(`SELECT 1 FROM products WHERE id = ?`), ref).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("unknown card %q", ref)
		}
		if err != nil {
			return fmt.Errorf("failed to look up card: %w", err)
		}

		_, err = tx.ExecContext(ctx, db.rebind(`
			INSERT INTO collection (product_id, condition, variant, quantity, added_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (product_id, condition, variant)
			DO UPDATE SET quantity = collection.quantity + excluded.quantity`),
			ref, condition, variant, quantity, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to add card: %w", err)
		}
		return nil
	})
}

// Collection lists the collection, oldest first.
func (db *DB) Collection(ctx context.Context) ([]Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.product_id, p.name, s.name, p.ext_number, c.condition, c.variant, c.quantity, c.added_at
		FROM collection c
		JOIN products p ON p.id = c.product_id
		JOIN card_sets s ON s.id = p.set_id
		ORDER BY c.added_at, c.product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Ref, &e.Name, &e.SetName, &e.Number, &e.Condition, &e.Variant, &e.Quantity, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to read collection row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
