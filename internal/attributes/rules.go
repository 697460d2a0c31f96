package attributes

import (
	"regexp"
	"strconv"
	"strings"
)

// Value ranges printed on real cards.
const (
	MinHP     = 30
	MaxHP     = 400
	MinDamage = 10
	MaxDamage = 250
)

var (
	// HP rules, tried in order on each line.
	hpRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)HP[:\s]+(\d{2,3})`),
		regexp.MustCompile(`(?i)(\d{2,3})[:\s]*HP`),
		regexp.MustCompile(`(?i)^HP\s*(\d{2,3})$`),
		regexp.MustCompile(`(?i)^(\d{2,3})\s*HP$`),
	}
	// Rules used when scanning past the top lines; only lines naming HP qualify.
	hpFallbackRules = hpRules[:2]

	numberPattern    = regexp.MustCompile(`\d{1,4}(?:/\d{1,4})?`)
	pureNumber       = regexp.MustCompile(`^\d+/?\d*$`)
	hpPrefix         = regexp.MustCompile(`(?i)^HP`)
	hpValuePrefix    = regexp.MustCompile(`(?i)^\d+\s*HP`)
	twoOrThreeDigits = regexp.MustCompile(`\d{2,3}`)
	parenDamage      = regexp.MustCompile(`\((\d{1,3})\)`)
	anyParenNumber   = regexp.MustCompile(`\(\d+\)`)
	trailingDamage   = regexp.MustCompile(`\s+(\d{1,3})\s*\+?\s*$`)
	trailingNumber   = regexp.MustCompile(`\d+\s*\+?\s*$`)
	letterFragment   = regexp.MustCompile(`^[A-Z]{1,2}$`)
	upperPair        = regexp.MustCompile(`^[A-Z]{2}$`)
	upperRun         = regexp.MustCompile(`^[A-Z]{2,}$`)
	digitsOnly       = regexp.MustCompile(`^\d+$`)
	nonWord          = regexp.MustCompile(`[^\w\s-]`)
	spaces           = regexp.MustCompile(`\s+`)

	// Label and OCR-noise prefixes/suffixes removed from names.
	namePrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(pokemon|pokémon|poké)\s*`),
	}
	nameSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*(pokemon|pokémon|poké)$`),
	}
	noisePrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^Je\s+`),
		regexp.MustCompile(`(?i)^Th\s+`),
		regexp.MustCompile(`(?i)^Tha\s+`),
		regexp.MustCompile(`(?i)^The\s+`),
	}
)

// typoFixes corrects digit-for-letter OCR confusions in well-known names.
var typoFixes = []struct {
	pattern *regexp.Regexp
	fix     string
}{
	{regexp.MustCompile(`(?i)Char1zard`), "Charizard"},
	{regexp.MustCompile(`(?i)P1kachu`), "Pikachu"},
	{regexp.MustCompile(`(?i)Blast0ise`), "Blastoise"},
	{regexp.MustCompile(`(?i)Mewtw0`), "Mewtwo"},
}

// intRule extracts an integer from one line.
type intRule func(line string) (int, bool)

// capture builds a rule returning the first submatch of re as an int.
func capture(re *regexp.Regexp) intRule {
	return func(line string) (int, bool) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
}

func inRange(lo, hi int) func(int) bool {
	return func(n int) bool { return n >= lo && n <= hi }
}

// firstValid scans lines in order and, per line, rules in order. The first
// value accepted by valid wins.
func firstValid(lines []string, rules []intRule, valid func(int) bool) (int, bool) {
	for _, line := range lines {
		for _, rule := range rules {
			if n, ok := rule(line); ok && valid(n) {
				return n, true
			}
		}
	}
	return 0, false
}

func rulesFor(res []*regexp.Regexp) []intRule {
	rules := make([]intRule, len(res))
	for i, re := range res {
		rules[i] = capture(re)
	}
	return rules
}

func containsHP(line string) bool {
	return strings.Contains(strings.ToLower(line), "hp")
}

// cleanText replaces punctuation with spaces and collapses whitespace.
func cleanText(s string) string {
	s = nonWord.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// hasCapitalizedWord reports a token longer than two characters starting
// with an uppercase ASCII letter.
func hasCapitalizedWord(words []string) bool {
	for _, w := range words {
		if len(w) > 2 && w[0] >= 'A' && w[0] <= 'Z' {
			return true
		}
	}
	return false
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
