package roster

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/hbollon/go-edlib"
)

// UniqueNames returns every normalized staff name on the sheet without
// applying any mapping, sorted. It seeds a new mapping file.
func UniqueNames(r io.Reader, normalizer *Normalizer, cfg ParserConfig) ([]string, error) {
	rows, _, _, err := ReadRows(r)
	if err != nil {
		return nil, err
	}

	// Only the splitting and stop-word rules of the parser are used.
	p := NewListParser(cfg, normalizer, nil, slog.New(slog.DiscardHandler))

	seen := make(map[string]bool)
	for _, row := range rows {
		for _, field := range []string{row.MainGMField, row.ExperiencedField} {
			for _, token := range p.tokens(field) {
				name, ok := normalizer.Normalize(token)
				if !ok || p.stop[name] {
					continue
				}
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// WriteMappingTemplate writes an identity mapping for names, ready to edit.
func WriteMappingTemplate(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# GMデータの名前 -> データベースのスタッフ名")
	fmt.Fprintln(bw, "# コメント行は # で開始")
	fmt.Fprintln(bw, "# 形式: GMデータ名,DB名 (DB名に SKIP で除外、NEW で新規スタッフ)")
	fmt.Fprintln(bw)
	for _, name := range names {
		fmt.Fprintf(bw, "%s,%s\n", name, name)
	}
	return bw.Flush()
}

// Suggestion is a known staff name close to an unmapped token.
type Suggestion struct {
	Name  string  `json:"name"`
	Score float32 `json:"score"`
}

// minSuggestionScore drops Jaro-Winkler scores that are mostly noise for
// two to four character names.
const minSuggestionScore = 0.6

// SuggestCanonical ranks known names by Jaro-Winkler similarity to token and
// returns at most n of them, best first. Ties keep the order of known.
func SuggestCanonical(token string, known []string, n int) []Suggestion {
	if n <= 0 || token == "" {
		return nil
	}

	var out []Suggestion
	for _, name := range known {
		if name == token {
			continue
		}
		score := edlib.JaroWinklerSimilarity(token, name)
		if score < minSuggestionScore {
			continue
		}
		out = append(out, Suggestion{Name: name, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
