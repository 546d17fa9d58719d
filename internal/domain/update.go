package domain

// Target tables of a catalog-driven scenario update.
const (
	TableScenarios       = "scenarios"
	TableScenarioMasters = "scenario_masters"
)

// Field is one column assignment. Value is a string, an int or a []string.
type Field struct {
	Column string
	Value  any
}

// ScenarioUpdate carries the catalog data written back to one matched
// scenario row. Zero values mean "leave the column alone".
type ScenarioUpdate struct {
	ID              string   `json:"id" validate:"required"`
	Title           string   `json:"title"`
	Author          string   `json:"author,omitempty"`
	PlayerCount     *int     `json:"player_count,omitempty"`
	DurationMinutes *int     `json:"duration,omitempty"`
	Genres          []string `json:"genres,omitempty"`
}

// NewScenarioUpdate builds the update for a scenario matched to rec. Genres
// are passed in already mapped from the record's tags.
func NewScenarioUpdate(s CanonicalScenario, rec CatalogRecord, genres []string) ScenarioUpdate {
	u := ScenarioUpdate{
		ID:    s.ID,
		Title: s.Title,
	}
	if rec.HasAuthor() {
		u.Author = rec.Author
	}
	if rec.PlayerCount != nil && *rec.PlayerCount > 0 {
		u.PlayerCount = IntPtr(*rec.PlayerCount)
	}
	if rec.DurationMinutes != nil && *rec.DurationMinutes > 0 {
		u.DurationMinutes = IntPtr(*rec.DurationMinutes)
	}
	if len(genres) > 0 {
		u.Genres = append([]string(nil), genres...)
	}
	return u
}

// Empty reports whether the update would change nothing.
func (u ScenarioUpdate) Empty() bool {
	return len(u.Fields(TableScenarios)) == 0
}

// Fields returns the column assignments for table in a fixed order. The
// catalog duration lands in official_duration on scenario_masters. The
// updated_at stamp is not included.
func (u ScenarioUpdate) Fields(table string) []Field {
	var fields []Field
	if u.Author != "" && u.Author != "不明" {
		fields = append(fields, Field{"author", u.Author})
	}
	if u.PlayerCount != nil && *u.PlayerCount > 0 {
		fields = append(fields,
			Field{"player_count_min", *u.PlayerCount},
			Field{"player_count_max", *u.PlayerCount},
		)
	}
	if u.DurationMinutes != nil && *u.DurationMinutes > 0 {
		col := "duration"
		if table == TableScenarioMasters {
			col = "official_duration"
		}
		fields = append(fields, Field{col, *u.DurationMinutes})
	}
	if len(u.Genres) > 0 {
		fields = append(fields, Field{"genre", u.Genres})
	}
	return fields
}
