package catalog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	firstIntRe    = regexp.MustCompile(`\d+`)
	firstNumberRe = regexp.MustCompile(`[\d.]+`)
	priceRe       = regexp.MustCompile(`[\d,]+`)
	durationRe    = regexp.MustCompile(`[\d.~]+`)
	numberOnlyRe  = regexp.MustCompile(`^[\d,.\s]+$`)
)

// ParsePlayerCount returns the first integer in s: "7人" is 7 and "6~8人"
// is 6.
func ParsePlayerCount(s string) (int, bool) {
	m := firstIntRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDurationMinutes converts an hours string to minutes. Ranges use
// their lower bound: "2.5時間" is 150 and "3～3.5時間" is 180. Fractions of
// a minute are truncated.
func ParseDurationMinutes(s string) (int, bool) {
	s = strings.ReplaceAll(s, "～", "~")
	if before, _, found := strings.Cut(s, "~"); found {
		s = before
	}
	m := firstNumberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	hours, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Trunc(hours * 60)), true
}

// ParsePrice returns the first comma-grouped number in s: "4,000円" is 4000.
func ParsePrice(s string) (int, bool) {
	m := strings.ReplaceAll(priceRe.FindString(s), ",", "")
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// isNumberOnly reports whether s is only digits, commas, dots and spaces.
func isNumberOnly(s string) bool {
	return numberOnlyRe.MatchString(s)
}

// CleanTag trims badge emoji and whitespace from both ends of a tag.
func CleanTag(tag string) string {
	return strings.TrimFunc(tag, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(tagDecorations, r)
	})
}

// Genres converts catalog tags to database genres in order, dropping
// duplicates and tags that are only decoration.
func Genres(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		clean := CleanTag(tag)
		if clean == "" {
			continue
		}
		genre := clean
		if mapped, ok := tagToGenre[clean]; ok {
			genre = mapped
		}
		if seen[genre] {
			continue
		}
		seen[genre] = true
		out = append(out, genre)
	}
	return out
}
