package catalog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"card-scanner/internal/card"
	"card-scanner/internal/match"

	"github.com/agnivade/levenshtein"
)

// Rows fetched per requested candidate before scoring and trimming.
const overfetch = 5

var numberToken = regexp.MustCompile(`^\d+(/\d+)?$`)

// splitQuery separates a trailing card number from the name part of text.
func splitQuery(text string) (name, number string) {
	fields := strings.Fields(text)
	if n := len(fields); n > 0 && numberToken.MatchString(fields[n-1]) {
		return strings.Join(fields[:n-1], " "), fields[n-1]
	}
	return strings.Join(fields, " "), ""
}

// numberForms holds the spellings a printed number may be stored under:
// "096/165", "96/165", "96" and "096".
type numberForms struct {
	full, bareFull, bare, padded string
}

func numberVariants(number string) numberForms {
	parts := strings.SplitN(number, "/", 2)
	bare := strings.TrimLeft(parts[0], "0")
	if bare == "" {
		bare = parts[0]
	}
	padded := parts[0]
	for len(padded) < 3 {
		padded = "0" + padded
	}
	bareFull := bare
	if len(parts) == 2 {
		bareFull += "/" + parts[1]
	}
	return numberForms{full: number, bareFull: bareFull, bare: bare, padded: padded}
}

// cleanName lowercases s and drops everything but letters, digits and
// spaces. "Pokémon" becomes "pokemon".
func cleanName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == 'é' || r == 'è':
			b.WriteRune('e')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// catalogTypes lists the type names a category is stored under.
func catalogTypes(e card.Energy) []string {
	if e == card.Electric {
		return []string{"electric", "lightning"}
	}
	return []string{strings.ToLower(string(e))}
}

type clause struct {
	sql  []string
	args []any
}

func (c *clause) add(sql string, args ...any) {
	c.sql = append(c.sql, sql)
	c.args = append(c.args, args...)
}

func (c *clause) join(sep string) string {
	return "(" + strings.Join(c.sql, sep) + ")"
}

func nameClause(name string) (string, []any) {
	return "(LOWER(p.name) LIKE ? OR p.clean_name LIKE ?)",
		[]any{"%" + strings.ToLower(name) + "%", "%" + cleanName(name) + "%"}
}

func numberClause(f numberForms) (string, []any) {
	return "(p.ext_number IN (?, ?, ?, ?) OR p.ext_number LIKE ? OR p.ext_number LIKE ?)",
		[]any{f.full, f.bareFull, f.bare, f.padded, f.padded + "/%", f.bare + "/%"}
}

// Search implements match.Searcher. Name and number select candidates;
// filters narrow them. Results are ranked by name similarity with a bonus
// for a matching number.
func (db *DB) Search(ctx context.Context, q match.Query, limit int) ([]match.Candidate, error) {
	if limit <= 0 {
		limit = match.DefaultLimit
	}
	name, number := splitQuery(q.Text)
	if name == "" && number == "" {
		return nil, nil
	}

	var search clause
	var forms numberForms
	if number != "" {
		forms = numberVariants(number)
	}
	if name != "" {
		ns, na := nameClause(name)
		if number != "" {
			nums, numa := numberClause(forms)
			search.add(ns+" AND "+nums, append(na, numa...)...)
		}
		search.add(ns, na...)
		search.add("LOWER(s.name) LIKE ?", "%"+strings.ToLower(name)+"%")
	} else {
		nums, numa := numberClause(forms)
		search.add(nums, numa...)
	}

	var filters clause
	var reasons []string
	if q.Filters.HP > 0 {
		filters.add("p.ext_hp = ?", q.Filters.HP)
		reasons = append(reasons, fmt.Sprintf("hp %d", q.Filters.HP))
	}
	if d := q.Filters.Damage; d > 0 {
		paren, spaced := fmt.Sprintf("%%(%d)%%", d), fmt.Sprintf("%% %d%%", d)
		filters.add("(p.ext_attack1 LIKE ? OR p.ext_attack1 LIKE ? OR p.ext_attack2 LIKE ? OR p.ext_attack2 LIKE ?)",
			paren, spaced, paren, spaced)
		reasons = append(reasons, fmt.Sprintf("damage %d", d))
	}
	if q.Filters.Energy != "" {
		var types clause
		for _, t := range catalogTypes(q.Filters.Energy) {
			types.add("LOWER(p.ext_card_type) LIKE ?", "%"+t+"%")
		}
		filters.add(types.join(" OR "), types.args...)
		reasons = append(reasons, "energy "+string(q.Filters.Energy))
	}

	query := `SELECT p.id, p.name, s.name, p.ext_number
		FROM products p JOIN card_sets s ON s.id = p.set_id
		WHERE ` + search.join(" OR ")
	args := search.args
	if len(filters.sql) > 0 {
		query += " AND " + filters.join(" AND ")
		args = append(args, filters.args...)
	}
	query += " ORDER BY p.id LIMIT ?"
	args = append(args, limit*overfetch)

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer rows.Close()

	var out []match.Candidate
	for rows.Next() {
		var c match.Candidate
		if err := rows.Scan(&c.Ref, &c.Name, &c.SetName, &c.Number); err != nil {
			return nil, fmt.Errorf("failed to read search row: %w", err)
		}
		score(&c, name, number, forms)
		c.Reasons = append(c.Reasons, reasons...)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Ref < out[j].Ref
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// score sets c.Score from name similarity in [0,1], +0.25 when the name
// contains the query, +0.5 when the number matches.
func score(c *match.Candidate, name, number string, f numberForms) {
	if name != "" {
		got, want := strings.ToLower(c.Name), strings.ToLower(name)
		longest := len(got)
		if len(want) > longest {
			longest = len(want)
		}
		if longest > 0 {
			c.Score = 1 - float64(levenshtein.ComputeDistance(got, want))/float64(longest)
		}
		if strings.Contains(got, want) {
			c.Score += 0.25
			c.Reasons = append(c.Reasons, "name")
		}
	}
	if number != "" {
		printed := strings.SplitN(c.Number, "/", 2)[0]
		if bare := strings.TrimLeft(printed, "0"); bare == f.bare || printed == f.bare {
			c.Score += 0.5
			c.Reasons = append(c.Reasons, "number")
		}
	}
}
