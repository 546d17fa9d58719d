// Package matcher resolves free-text catalog titles to canonical scenario rows.
package matcher

// Transliteration replaces a romanized title word with its native spelling.
type Transliteration struct {
	From string
	To   string
}

// Config holds the normalization tables and scoring knobs.
type Config struct {
	// Transliterations are applied as case-insensitive whole-word
	// replacements before anything else.
	Transliterations []Transliteration

	// WidthTable maps characters that width folding leaves alone.
	WidthTable map[rune]rune

	// StripChars are removed after folding, in addition to all whitespace.
	StripChars string

	// DecorativeChars are symbol and emoji runes removed last.
	DecorativeChars string

	// CoreOpen and CoreClose delimit the core title inside a series label.
	CoreOpen  string
	CoreClose string

	// CoreSeparator splits "series／title" forms; the last part is the core.
	CoreSeparator string

	// MinContainLen is the shortest normalized title (in runes) eligible
	// for core equality and containment scoring.
	MinContainLen int

	ContainScore     float64
	CoreContainScore float64

	// Matches scoring below GuardScore are dropped when the two titles
	// differ in length by more than GuardLengthRatio of the longer one.
	GuardScore       float64
	GuardLengthRatio float64
}

// Default thresholds.
const (
	// DefaultThreshold is the acceptance score for a single lookup.
	DefaultThreshold = 0.6
	// MapThreshold is the looser acceptance score used for whole-catalog mapping.
	MapThreshold = 0.5
)

// DefaultConfig returns the tables tuned for the catalog titles.
func DefaultConfig() Config {
	return Config{
		Transliterations: []Transliteration{
			{From: "lost", To: "ロスト"},
			{From: "remembrance", To: "リメンブランス"},
			{From: "sorcier", To: "ソルシエ"},
		},
		WidthTable: map[rune]rune{
			'−': '-',
		},
		StripChars:       "-_.,!?'\"`~:;/\\（）()[]{}【】「」『』〈〉《》・",
		DecorativeChars:  "☆★♡♥♪♫✨🎭🔍📕💀🎩📅🌀💥🇯🇵🗓️",
		CoreOpen:         "「",
		CoreClose:        "」",
		CoreSeparator:    "／",
		MinContainLen:    3,
		ContainScore:     0.9,
		CoreContainScore: 0.95,
		GuardScore:       0.7,
		GuardLengthRatio: 0.5,
	}
}
