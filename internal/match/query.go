// Package match turns extracted card attributes into an ordered cascade of
// catalog searches and runs it until something matches.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"card-scanner/internal/attributes"
	"card-scanner/internal/card"
)

// Strategy labels, most specific first.
const (
	StrategyFull           = "name+number+hp+damage+energy"
	StrategyHPDamageEnergy = "name+hp+damage+energy"
	StrategyHPDamage       = "name+hp+damage"
	StrategyHPEnergy       = "name+hp+energy"
	StrategyDamageEnergy   = "name+damage+energy"
	StrategyHP             = "name+hp"
	StrategyDamage         = "name+damage"
	StrategyNameNumber     = "name+number"
	StrategyName           = "name"
	StrategyFirstWord      = "first-word"
	StrategyNumber         = "number"
	StrategyOCRWord        = "ocr-word"
	StrategyNamePrefix     = "name-prefix"
)

const (
	maxOCRWords             = 5
	minOCRWordLen           = 3
	minFirstWordLen         = 2
	minTrailingFirstWordLen = 3
)

var stopWords = map[string]bool{
	"the": true, "and": true, "or": true, "for": true,
	"pokemon": true, "pokémon": true, "je": true, "th": true,
}

var (
	nonWord    = regexp.MustCompile(`\W`)
	pureNumber = regexp.MustCompile(`^\d+$`)
)

// Filters narrow a catalog search. Zero values mean "unset".
type Filters struct {
	HP     int         `json:"hp,omitempty"`
	Damage int         `json:"damage,omitempty"`
	Energy card.Energy `json:"energyType,omitempty"`
}

// Query is one step of the search cascade.
type Query struct {
	Text     string  `json:"query"`
	Filters  Filters `json:"filters"`
	Rank     int     `json:"rank"` // 0 is the most specific
	Strategy string  `json:"strategy"`
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(q.Text))
	if q.Filters.HP > 0 {
		fmt.Fprintf(&b, " hp=%d", q.Filters.HP)
	}
	if q.Filters.Damage > 0 {
		fmt.Fprintf(&b, " damage=%d", q.Filters.Damage)
	}
	if q.Filters.Energy != "" {
		fmt.Fprintf(&b, " energy=%s", q.Filters.Energy)
	}
	return b.String()
}

type queryKey struct {
	text    string
	filters Filters
}

// cascade accumulates queries, dropping empty and duplicate ones.
type cascade struct {
	queries []Query
	seen    map[queryKey]bool
}

func (c *cascade) add(strategy, text string, f Filters) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	k := queryKey{text, f}
	if c.seen[k] {
		return
	}
	c.seen[k] = true
	c.queries = append(c.queries, Query{
		Text:     text,
		Filters:  f,
		Rank:     len(c.queries),
		Strategy: strategy,
	})
}

// BuildQueries returns the search cascade for a, most specific first.
// Strategies whose fields are missing are skipped. energy may be empty.
func BuildQueries(a attributes.Attributes, energy card.Energy) []Query {
	c := &cascade{seen: make(map[queryKey]bool)}

	name, number := a.CardName, a.CardNumber
	hp, dmg := a.HP, a.AttackDamage
	hasName, hasNumber := name != "", number != ""
	hasHP, hasDmg, hasEnergy := hp > 0, dmg > 0, energy != ""

	if hasName {
		if hasNumber && hasHP && hasDmg && hasEnergy {
			c.add(StrategyFull, name+" "+number, Filters{HP: hp, Damage: dmg, Energy: energy})
		}
		if hasHP && hasDmg && hasEnergy {
			c.add(StrategyHPDamageEnergy, name, Filters{HP: hp, Damage: dmg, Energy: energy})
		}
		if hasHP && hasDmg {
			c.add(StrategyHPDamage, name, Filters{HP: hp, Damage: dmg})
		}
		if hasHP && hasEnergy {
			c.add(StrategyHPEnergy, name, Filters{HP: hp, Energy: energy})
		}
		if hasDmg && hasEnergy {
			c.add(StrategyDamageEnergy, name, Filters{Damage: dmg, Energy: energy})
		}
		if hasHP {
			c.add(StrategyHP, name, Filters{HP: hp})
		}
		if hasDmg {
			c.add(StrategyDamage, name, Filters{Damage: dmg})
		}
		if hasNumber {
			c.add(StrategyNameNumber, name+" "+number, Filters{})
		}
		c.add(StrategyName, name, Filters{})
		if first := firstWord(name); utf8.RuneCountInString(first) > minFirstWordLen {
			c.add(StrategyFirstWord, first, Filters{})
		}
	}

	if hasNumber {
		c.add(StrategyNumber, number, Filters{})
	}

	for _, w := range ocrWords(a.Words) {
		c.add(StrategyOCRWord, w, Filters{})
	}

	if words := strings.Fields(name); len(words) > 1 {
		c.add(StrategyNamePrefix, strings.Join(words[:2], " "), Filters{})
		if utf8.RuneCountInString(words[0]) > minTrailingFirstWordLen {
			c.add(StrategyFirstWord, words[0], Filters{})
		}
	}

	return c.queries
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// ocrWords picks up to maxOCRWords of the longest meaningful words.
func ocrWords(words []string) []string {
	var keep []string
	for _, w := range words {
		w = strings.TrimSpace(w)
		if utf8.RuneCountInString(w) <= 2 || stopWords[strings.ToLower(w)] || pureNumber.MatchString(w) {
			continue
		}
		keep = append(keep, w)
	}
	sort.SliceStable(keep, func(i, j int) bool {
		return utf8.RuneCountInString(keep[i]) > utf8.RuneCountInString(keep[j])
	})
	if len(keep) > maxOCRWords {
		keep = keep[:maxOCRWords]
	}

	var out []string
	for _, w := range keep {
		clean := nonWord.ReplaceAllString(w, "")
		if len(clean) > minOCRWordLen {
			out = append(out, clean)
		}
	}
	return out
}
