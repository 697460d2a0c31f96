// Package attributes parses recognized card text into structured fields.
//
// Every field is optional. Each field is found by an ordered table of line
// rules, so precedence between overlapping patterns is fixed and testable on
// its own.
package attributes

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"card-scanner/internal/card"
)

// Lines treated as the card header for HP and name.
const topLines = 5

// attackStartLine skips the name/HP header when looking for attacks.
const attackStartLine = 2

// Attributes holds the fields extracted from one card's text.
type Attributes struct {
	CardName     string      `json:"cardName,omitempty"`
	CardNumber   string      `json:"cardNumber,omitempty"`
	HP           int         `json:"hp,omitempty"`           // 0 when absent
	AttackName   string      `json:"attackName,omitempty"`
	AttackDamage int         `json:"attackDamage,omitempty"` // 0 when absent
	Words        []string    `json:"words,omitempty"`
	Energy       card.Energy `json:"energy,omitempty"` // Type keyword printed on the card
}

// Extract parses raw multi-line text. It never fails; missing fields stay
// at their zero value.
func Extract(text string) Attributes {
	lines := splitLines(text)

	var a Attributes
	a.HP = extractHP(lines)
	a.CardNumber = extractNumber(lines)
	a.AttackName, a.AttackDamage = extractAttack(lines, a.HP)
	a.CardName = extractName(lines)
	a.Words = extractWords(lines)
	a.Energy, _ = card.EnergyFromText(text)
	return a
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func head(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}

func extractHP(lines []string) int {
	valid := inRange(MinHP, MaxHP)

	if hp, ok := firstValid(head(lines, topLines), rulesFor(hpRules), valid); ok {
		return hp
	}

	var labelled []string
	for _, line := range lines {
		if containsHP(line) {
			labelled = append(labelled, line)
		}
	}
	hp, _ := firstValid(labelled, rulesFor(hpFallbackRules), valid)
	return hp
}

// extractNumber prefers the last "n/m" match anywhere in the text, then the
// last bare number.
func extractNumber(lines []string) string {
	var lastSlash, lastPlain string
	for _, line := range lines {
		for _, m := range numberPattern.FindAllString(line, -1) {
			if strings.Contains(m, "/") {
				lastSlash = m
			} else {
				lastPlain = m
			}
		}
	}
	if lastSlash != "" {
		return lastSlash
	}
	return lastPlain
}

// attackRule finds damage on a line and returns the text preceding it.
type attackRule struct {
	skip  func(line string) bool
	match func(line string) (name string, damage int, ok bool)
}

var attackRules = []attackRule{
	{
		// Damage in parentheses: "Thunder Shock (10)"
		skip: func(line string) bool {
			return hpPrefix.MatchString(line) || pureNumber.MatchString(line) ||
				(containsHP(line) && twoOrThreeDigits.MatchString(line))
		},
		match: submatchBefore(parenDamage),
	},
	{
		// Damage at line end: "Tackle 30" or "Tackle 30+"
		skip: func(line string) bool {
			return hpPrefix.MatchString(line) || containsHP(line)
		},
		match: submatchBefore(trailingDamage),
	},
}

// submatchBefore returns the first group of re as the damage and the text
// before the whole match as the attack name.
func submatchBefore(re *regexp.Regexp) func(string) (string, int, bool) {
	return func(line string) (string, int, bool) {
		loc := re.FindStringSubmatchIndex(line)
		if loc == nil {
			return "", 0, false
		}
		n, err := strconv.Atoi(line[loc[2]:loc[3]])
		if err != nil {
			return "", 0, false
		}
		return line[:loc[0]], n, true
	}
}

// extractAttack returns the first attack whose damage is in range and
// differs from hp. Later rules only run when earlier ones found nothing.
func extractAttack(lines []string, hp int) (string, int) {
	if len(lines) <= attackStartLine {
		return "", 0
	}
	candidates := lines[attackStartLine:]
	valid := inRange(MinDamage, MaxDamage)

	for _, rule := range attackRules {
		for _, line := range candidates {
			if rule.skip(line) {
				continue
			}
			prefix, dmg, ok := rule.match(line)
			if !ok || !valid(dmg) || (hp != 0 && dmg == hp) {
				continue
			}
			return attackName(prefix), dmg
		}
	}
	return "", 0
}

func attackName(prefix string) string {
	name := cleanText(prefix)
	if len(name) >= 3 {
		return name
	}
	var kept []string
	for _, w := range strings.Fields(name) {
		if hasCapitalizedWord([]string{w}) {
			kept = append(kept, w)
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, " ")
	}
	return name
}

type nameCandidate struct {
	text     string
	priority int
	length   int
	words    int
}

// excludedFromName rejects numbers, HP labels, attack lines and fragments.
func excludedFromName(line string, minLen int) bool {
	switch {
	case pureNumber.MatchString(line),
		hpPrefix.MatchString(line),
		hpValuePrefix.MatchString(line),
		utf8.RuneCountInString(line) < minLen,
		letterFragment.MatchString(line),
		anyParenNumber.MatchString(line),
		trailingNumber.MatchString(line):
		return true
	}
	return digitCount(line)*2 > utf8.RuneCountInString(line)
}

func extractName(lines []string) string {
	var candidates []nameCandidate
	for i, line := range lines {
		priority, minLen := 5, 4
		if i < topLines {
			priority, minLen = 10, 3
		}
		if excludedFromName(line, minLen) {
			continue
		}
		words := strings.Fields(line)
		if !hasCapitalizedWord(words) {
			continue
		}
		candidates = append(candidates, nameCandidate{
			text:     line,
			priority: priority,
			length:   utf8.RuneCountInString(line),
			words:    len(words),
		})
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.length != b.length {
			return a.length > b.length
		}
		return a.words > b.words
	})

	return cleanName(candidates[0].text)
}

// cleanName strips OCR artifacts, filler labels and known typos.
func cleanName(raw string) string {
	var kept []string
	for i, w := range strings.Fields(raw) {
		switch {
		case i == 0 && len(w) <= 2 && !upperRun.MatchString(w):
		case digitsOnly.MatchString(w):
		case utf8.RuneCountInString(w) == 1:
		default:
			kept = append(kept, w)
		}
	}

	name := raw
	if len(kept) > 0 {
		name = strings.Join(kept, " ")
	}

	for _, re := range namePrefixes {
		name = re.ReplaceAllString(name, "")
	}
	for _, re := range nameSuffixes {
		name = re.ReplaceAllString(name, "")
	}
	for _, re := range noisePrefixes {
		name = re.ReplaceAllString(name, "")
	}
	name = cleanText(name)

	if len(name) > 2 {
		for _, t := range typoFixes {
			name = t.pattern.ReplaceAllString(name, t.fix)
		}
	}
	return strings.TrimSpace(name)
}

// extractWords collects every token that is not a number or a short fragment.
func extractWords(lines []string) []string {
	var words []string
	for _, line := range lines {
		for _, w := range strings.Fields(line) {
			switch {
			case pureNumber.MatchString(w):
			case len(w) <= 2 && !upperPair.MatchString(w):
			case utf8.RuneCountInString(w) == 1:
			default:
				words = append(words, w)
			}
		}
	}
	return words
}
