package roster

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Mapping file markers.
const (
	markerSkip = "SKIP"
	markerNew  = "NEW"
)

// Resolution describes how a token was classified by the mapping file.
type Resolution int

const (
	// Unmapped tokens are used as-is and reported.
	Unmapped Resolution = iota
	// Mapped tokens resolve to a canonical staff name.
	Mapped
	// Skipped tokens are dropped silently.
	Skipped
	// Added tokens are new staff; the token is its own canonical name.
	Added
)

// NameMapping resolves raw sheet tokens to canonical staff names.
// A token is in at most one of canonical, skip or new.
type NameMapping struct {
	canonical map[string]string
	skip      map[string]bool
	added     map[string]bool
}

// NewNameMapping returns an empty mapping.
func NewNameMapping() *NameMapping {
	return &NameMapping{
		canonical: make(map[string]string),
		skip:      make(map[string]bool),
		added:     make(map[string]bool),
	}
}

// LoadMapping reads a mapping file from disk.
func LoadMapping(path string, logger *slog.Logger) (*NameMapping, error) {
	f, err := os.Open(path) //#nosec G304 -- mapping path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("name mapping file %s not found", path)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "open name mapping %s", path)
	}
	defer f.Close()

	return ParseMapping(f, logger)
}

// ParseMapping reads "raw,canonical" lines. Lines starting with # and
// anything after an inline # or ＃ are comments. A canonical value of SKIP
// drops the token; NEW marks it as a staff member to insert. Lines that do
// not have exactly two non-empty fields are ignored.
func ParseMapping(r io.Reader, logger *slog.Logger) (*NameMapping, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := NewNameMapping()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line, _, _ = strings.Cut(line, "#")
		line, _, _ = strings.Cut(line, "＃")
		line = strings.TrimSpace(line)

		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			continue
		}
		raw := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if raw == "" || value == "" {
			continue
		}

		if m.Resolution(raw) != Unmapped {
			logger.Warn("name mapping redefined, later line wins",
				"token", raw,
				"line", lineNum,
			)
			m.forget(raw)
		}

		switch value {
		case markerSkip:
			m.skip[raw] = true
		case markerNew:
			m.added[raw] = true
		default:
			m.canonical[raw] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read name mapping")
	}
	return m, nil
}

func (m *NameMapping) forget(raw string) {
	delete(m.canonical, raw)
	delete(m.skip, raw)
	delete(m.added, raw)
}

// Set maps raw to canonical.
func (m *NameMapping) Set(raw, canonical string) {
	m.forget(raw)
	m.canonical[raw] = canonical
}

// Skip marks raw as a token to drop.
func (m *NameMapping) Skip(raw string) {
	m.forget(raw)
	m.skip[raw] = true
}

// AddNew marks raw as a new staff name.
func (m *NameMapping) AddNew(raw string) {
	m.forget(raw)
	m.added[raw] = true
}

// Resolution reports how token is classified.
func (m *NameMapping) Resolution(token string) Resolution {
	switch {
	case m.skip[token]:
		return Skipped
	case m.added[token]:
		return Added
	default:
		if _, ok := m.canonical[token]; ok {
			return Mapped
		}
		return Unmapped
	}
}

// Resolve returns the canonical name for token. Unmapped tokens resolve to
// themselves; skipped tokens resolve to "".
func (m *NameMapping) Resolve(token string) (string, Resolution) {
	res := m.Resolution(token)
	switch res {
	case Mapped:
		return m.canonical[token], res
	case Skipped:
		return "", res
	default:
		return token, res
	}
}

// NewStaff returns the NEW names, sorted.
func (m *NameMapping) NewStaff() []string {
	names := make([]string, 0, len(m.added))
	for name := range m.added {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalNames returns every distinct canonical name the mapping can
// produce, including NEW names, sorted.
func (m *NameMapping) CanonicalNames() []string {
	seen := make(map[string]bool, len(m.canonical)+len(m.added))
	for _, v := range m.canonical {
		seen[v] = true
	}
	for v := range m.added {
		seen[v] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of classified tokens.
func (m *NameMapping) Len() int {
	return len(m.canonical) + len(m.skip) + len(m.added)
}
