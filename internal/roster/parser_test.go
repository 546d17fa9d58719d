package roster

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T, mappingText string) (*ListParser, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mapping, err := ParseMapping(strings.NewReader(mappingText), logger)
	require.NoError(t, err)

	return NewListParser(DefaultParserConfig(), NewNormalizer(DefaultNormalizerConfig()), mapping, logger), &buf
}

func TestParse_SplitsAndKeepsOrder(t *testing.T) {
	p, _ := newTestParser(t, "")

	got := p.Parse("きゅう、れみあ・ソラ", ParseContext{Scenario: "モノクローム", Column: ColumnMainGM})

	assert.Equal(t, []string{"きゅう", "れみあ", "ソラ"}, got)
}

func TestParse(t *testing.T) {
	mapping := strings.Join([]string{
		"えなみ,江波（えなみん）",
		"えなみん,江波（えなみん）",
		"ゲスト,SKIP",
		"新人,NEW",
	}, "\n")

	tests := []struct {
		name  string
		field string
		want  []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"ascii comma", "きゅう,れみあ", []string{"きゅう", "れみあ"}},
		{"mixed separators", "きゅう, れみあ、ソラ", []string{"きゅう", "れみあ", "ソラ"}},
		{"duplicates removed", "きゅう、きゅう、れみあ", []string{"きゅう", "れみあ"}},
		{"stop words dropped", "準備中、未定、予定、GM増やしたい、きゅう", []string{"きゅう"}},
		{"stop word after normalize", "予定(12月)、きゅう", []string{"きゅう"}},
		{"skip dropped", "ゲスト、きゅう", []string{"きゅう"}},
		{"mapping applied", "えなみ", []string{"江波（えなみん）"}},
		{"dedupe on mapped name", "えなみ、えなみん", []string{"江波（えなみん）"}},
		{"new staff kept", "新人", []string{"新人"}},
		{"notes and suffixes", "あんころ(11/7テスト)、ソラ仮、(見学)", []string{"あんころ", "ソラ"}},
		{"co-listed inside note-free entry", "れみあ・ソラ・れみあ", []string{"れみあ", "ソラ"}},
		{"empty entries", "、、きゅう、", []string{"きゅう"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestParser(t, mapping)
			assert.Equal(t, tt.want, p.Parse(tt.field, ParseContext{Scenario: "x"}))
		})
	}
}

func TestParse_WarnsOnUnmapped(t *testing.T) {
	p, logs := newTestParser(t, "きゅう,きゅう")

	got := p.Parse("きゅう、れみあ", ParseContext{Scenario: "深夜の羊", Column: ColumnExperienced})
	p.Parse("れみあ、ソラ", ParseContext{Scenario: "モノクローム", Column: ColumnMainGM})

	assert.Equal(t, []string{"きゅう", "れみあ"}, got)
	assert.Equal(t, []string{"れみあ", "ソラ"}, p.Unmapped())
	assert.Equal(t, []string{"深夜の羊", "モノクローム"}, p.UnmappedScenarios("れみあ"))

	out := logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "name=れみあ")
	assert.Contains(t, out, "scenario=深夜の羊")
	assert.Contains(t, out, "column=experienced")
	assert.NotContains(t, out, "name=きゅう")
}

func TestParse_OnlyFilter(t *testing.T) {
	p, logs := newTestParser(t, "えなみ,江波")

	got := p.Parse("きゅう、えなみ、ソラ", ParseContext{
		Scenario: "モノクローム",
		Only:     map[string]bool{"江波": true, "ソラ": true},
	})

	assert.Equal(t, []string{"江波", "ソラ"}, got)
	// きゅう is outside the target set and is not reported
	assert.NotContains(t, logs.String(), "きゅう")
	assert.Equal(t, []string{"ソラ"}, p.Unmapped())
}

func TestNewListParser_Defaults(t *testing.T) {
	p := NewListParser(DefaultParserConfig(), nil, nil, nil)

	assert.Equal(t, []string{"きゅう"}, p.Parse("きゅう準備中", ParseContext{}))
	assert.NotNil(t, p.Mapping())
}
