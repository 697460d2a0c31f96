package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"card-scanner/internal/card"
	"card-scanner/internal/match"

	"github.com/stretchr/testify/require"
)

const fixture = `
sets:
  - id: base1
    name: Base Set
    cards:
      - id: base1-58
        name: Pikachu
        number: 58/102
        hp: 40
        type: Lightning
        attacks: ["Gnaw (10)", "Thunder Jolt (30)"]
      - id: base1-4
        name: Charizard
        number: 4/102
        hp: 120
        type: Fire
        attacks: ["Energy Burn", "Fire Spin (100)"]
      - id: base1-44
        name: Bulbasaur
        number: 44/102
        hp: 40
        type: Grass
        attacks: ["Leech Seed (20)"]
  - id: jungle
    name: Jungle
    cards:
      - id: jungle-60
        name: Pikachu
        number: 060/064
        hp: 50
        type: Lightning
        attacks: ["Spark (20)"]
`

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(SQLite, filepath.Join(t.TempDir(), "data", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f, err := ParseImport(strings.NewReader(fixture))
	require.NoError(t, err)
	n, err := db.Import(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return db
}

func refs(cs []match.Candidate) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.Ref)
	}
	return out
}

func TestSearch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query match.Query
		want  []string
	}{
		{"name", match.Query{Text: "Pikachu"}, []string{"base1-58", "jungle-60"}},
		{"case insensitive", match.Query{Text: "pikachu"}, []string{"base1-58", "jungle-60"}},
		{"number ranks first", match.Query{Text: "Pikachu 60/64"}, []string{"jungle-60", "base1-58"}},
		{"number only", match.Query{Text: "4/102"}, []string{"base1-4"}},
		{"padded number", match.Query{Text: "004"}, []string{"base1-4"}},
		{"hp filter", match.Query{Text: "Pikachu", Filters: match.Filters{HP: 50}}, []string{"jungle-60"}},
		{"damage filter", match.Query{Text: "Pikachu", Filters: match.Filters{Damage: 30}}, []string{"base1-58"}},
		{"electric is lightning", match.Query{Text: "Pikachu", Filters: match.Filters{HP: 40, Energy: card.Electric}}, []string{"base1-58"}},
		{"energy mismatch", match.Query{Text: "Pikachu", Filters: match.Filters{Energy: card.Fire}}, nil},
		{"set name", match.Query{Text: "Jungle"}, []string{"jungle-60"}},
		{"no match", match.Query{Text: "Mewtwo"}, nil},
		{"empty", match.Query{Text: "  "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Search(ctx, tt.query, 20)
			require.NoError(t, err)
			require.Equal(t, tt.want, refs(got))
		})
	}
}

func TestSearchScoresAndReasons(t *testing.T) {
	db := openTestDB(t)

	got, err := db.Search(context.Background(), match.Query{
		Text:    "Pikachu 60/64",
		Filters: match.Filters{HP: 50},
	}, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Jungle", got[0].SetName)
	require.Equal(t, "060/064", got[0].Number)
	require.InDelta(t, 1.75, got[0].Score, 1e-9)
	require.Equal(t, []string{"name", "number", "hp 50"}, got[0].Reasons)
}

func TestSearchLimit(t *testing.T) {
	db := openTestDB(t)
	got, err := db.Search(context.Background(), match.Query{Text: "Pikachu"}, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"base1-58"}, refs(got))
}

func TestCollection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddCard(ctx, "base1-58", 1, "Near Mint", "Normal"))
	require.NoError(t, db.AddCard(ctx, "base1-58", 2, "Near Mint", "Normal"))
	require.NoError(t, db.AddCard(ctx, "base1-58", 1, "Played", "Normal"))
	require.Error(t, db.AddCard(ctx, "nope-1", 1, "Near Mint", "Normal"))
	require.Error(t, db.AddCard(ctx, "base1-4", 0, "Near Mint", "Normal"))

	entries, err := db.Collection(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byCondition := map[string]Entry{}
	for _, e := range entries {
		byCondition[e.Condition] = e
	}
	nm := byCondition["Near Mint"]
	require.Equal(t, 3, nm.Quantity)
	require.Equal(t, "Pikachu", nm.Name)
	require.Equal(t, "Base Set", nm.SetName)
	require.False(t, nm.AddedAt.IsZero())
	require.Equal(t, 1, byCondition["Played"].Quantity)
}

func TestImportUpdates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	f, err := ParseImport(strings.NewReader(`
sets:
  - id: base1
    name: Base Set
    cards:
      - id: base1-58
        name: Pikachu
        number: 58/102
        hp: 60
        type: Lightning
`))
	require.NoError(t, err)
	n, err := db.Import(ctx, f)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := db.Search(ctx, match.Query{Text: "Pikachu", Filters: match.Filters{HP: 60}}, 20)
	require.NoError(t, err)
	require.Equal(t, []string{"base1-58"}, refs(got))
}

func TestParseImportRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field": "sets:\n  - id: a\n    name: A\n    colour: red\n",
		"missing set":   "sets:\n  - name: A\n",
		"missing card":  "sets:\n  - id: a\n    name: A\n    cards:\n      - number: 1/2\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseImport(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "x")
	require.ErrorContains(t, err, "unsupported")
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: Postgres}
	require.Equal(t, "a = $1 AND b IN ($2, $3)", pg.rebind("a = ? AND b IN (?, ?)"))
	lite := &DB{driver: SQLite}
	require.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestHelpers(t *testing.T) {
	name, number := splitQuery("Pikachu  025/102")
	require.Equal(t, "Pikachu", name)
	require.Equal(t, "025/102", number)

	name, number = splitQuery("Mr Mime")
	require.Equal(t, "Mr Mime", name)
	require.Empty(t, number)

	require.Equal(t, numberForms{full: "096/165", bareFull: "96/165", bare: "96", padded: "096"}, numberVariants("096/165"))
	require.Equal(t, numberForms{full: "7", bareFull: "7", bare: "7", padded: "007"}, numberVariants("7"))

	require.Equal(t, "pokemon mr mime", cleanName("Pokémon  Mr. Mime"))
}
