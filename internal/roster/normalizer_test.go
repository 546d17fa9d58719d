package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerConfig())

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain", "りえぞー", "りえぞー", true},
		{"trims", "  しらやま　", "しらやま", true},
		{"half-width note", "あんころ(11/7テスト)", "あんころ", true},
		{"full-width note", "えなみ（見学）", "えなみ", true},
		{"several notes", "ソラ(GM)(仮)", "ソラ", true},
		{"leading half paren", "(備考のみ)", "", false},
		{"leading full paren", "（備考のみ）", "", false},
		{"suffix preparing", "きゅう準備中", "きゅう", true},
		{"suffix want", "れみあやりたい", "れみあ", true},
		{"suffix tentative", "みずき仮", "みずき", true},
		{"suffix plan to play", "ソラプレイ予定", "ソラ", true},
		{"suffix question", "ぽん？", "ぽん", true},
		{"suffixes chain in order", "ぽん仮準備中", "ぽん", true},
		// ？ is checked last, so 準備中 in front of it stays
		{"each suffix stripped once", "ぽん準備中？", "ぽん準備中", true},
		{"token that is only a suffix", "準備中", "", false},
		{"empty", "", "", false},
		{"whitespace only", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Normalize(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_PlaceholderIsNotNull(t *testing.T) {
	// Placeholders are the list parser's business, not the normalizer's.
	n := NewNormalizer(DefaultNormalizerConfig())

	got, ok := n.Normalize("未定")
	assert.True(t, ok)
	assert.Equal(t, "未定", got)
}

func TestNormalize_CustomSuffixes(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{Suffixes: []string{"(見習い)", "", "さん"}})

	got, ok := n.Normalize("みずきさん")
	assert.True(t, ok)
	assert.Equal(t, "みずき", got)

	got, ok = n.Normalize("みずき仮")
	assert.True(t, ok)
	assert.Equal(t, "みずき仮", got)
}
