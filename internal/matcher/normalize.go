package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// normalizer applies the title normalization pipeline for one Config.
type normalizer struct {
	translits  []Transliteration
	widthTable map[rune]rune
	strip      map[rune]bool
	coreRe     *regexp.Regexp
	coreSep    string
}

func newNormalizer(cfg Config) *normalizer {
	strip := make(map[rune]bool)
	for _, r := range cfg.StripChars {
		strip[r] = true
	}
	// Regional indicator pairs and variation selectors are stripped rune
	// by rune, the same as single-rune symbols.
	for _, r := range cfg.DecorativeChars {
		strip[r] = true
	}

	var coreRe *regexp.Regexp
	if cfg.CoreOpen != "" && cfg.CoreClose != "" {
		coreRe = regexp.MustCompile(regexp.QuoteMeta(cfg.CoreOpen) + `(.+?)` + regexp.QuoteMeta(cfg.CoreClose))
	}

	return &normalizer{
		translits:  cfg.Transliterations,
		widthTable: cfg.WidthTable,
		strip:      strip,
		coreRe:     coreRe,
		coreSep:    cfg.CoreSeparator,
	}
}

// normalize reduces a title to its comparison key.
func (n *normalizer) normalize(title string) string {
	if title == "" {
		return ""
	}

	for _, t := range n.translits {
		title = replaceWord(title, t.From, t.To)
	}

	title = strings.ToLower(title)
	title = width.Fold.String(title)

	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if mapped, ok := n.widthTable[r]; ok {
			r = mapped
		}
		if unicode.IsSpace(r) || n.strip[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// core returns the series-stripped part of a raw title.
func (n *normalizer) core(title string) string {
	if n.coreRe != nil {
		if m := n.coreRe.FindStringSubmatch(title); m != nil {
			return m[1]
		}
	}
	if n.coreSep != "" && strings.Contains(title, n.coreSep) {
		return title[strings.LastIndex(title, n.coreSep)+len(n.coreSep):]
	}
	return title
}

// replaceWord substitutes every case-insensitive whole-word occurrence of
// word in s. Word characters are Unicode letters, digits and underscore, so
// "lost" inside "lostアイ" is not a separate word.
func replaceWord(s, word, repl string) string {
	if word == "" {
		return s
	}
	rs := []rune(s)
	n := len([]rune(word))
	if len(rs) < n {
		return s
	}

	var b strings.Builder
	replaced := false
	for i := 0; i < len(rs); {
		if i+n <= len(rs) &&
			(i == 0 || !isWordRune(rs[i-1])) &&
			(i+n == len(rs) || !isWordRune(rs[i+n])) &&
			strings.EqualFold(string(rs[i:i+n]), word) {
			b.WriteString(repl)
			i += n
			replaced = true
			continue
		}
		b.WriteRune(rs[i])
		i++
	}
	if !replaced {
		return s
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// NormalizeTitle reduces a title to the key used for comparison with the
// default configuration.
func NormalizeTitle(title string) string {
	return defaultNormalizer.normalize(title)
}

// CoreTitle extracts the core title with the default configuration: the
// first 「…」 span, else the text after the last ／, else the whole title.
func CoreTitle(title string) string {
	return defaultNormalizer.core(title)
}

var defaultNormalizer = newNormalizer(DefaultConfig())
