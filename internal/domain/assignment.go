// Package domain holds the records that flow between the sheet parser, the
// title matcher and the SQL emitter.
package domain

import "strings"

// RawAssignmentRow is one data row of the GM master sheet.
type RawAssignmentRow struct {
	ScenarioTitle    string
	MainGMField      string
	ExperiencedField string
}

// TimestampField names the assignment column stamped by an upsert.
type TimestampField int

const (
	// CanGMAt is stamped when a staff member becomes able to run the scenario.
	CanGMAt TimestampField = iota
	// ExperiencedAt is stamped when a staff member has only played it.
	ExperiencedAt
)

// Column returns the database column name.
func (f TimestampField) Column() string {
	switch f {
	case ExperiencedAt:
		return "experienced_at"
	default:
		return "can_gm_at"
	}
}

// Other returns the column an upsert of this kind nulls.
func (f TimestampField) Other() TimestampField {
	if f == CanGMAt {
		return ExperiencedAt
	}
	return CanGMAt
}

// String implements fmt.Stringer.
func (f TimestampField) String() string {
	return f.Column()
}

// Assignment is the resolved role of one staff member for one scenario.
// It has no identity of its own and only drives idempotent upserts.
type Assignment struct {
	StaffName      string         `json:"staff_name"`
	ScenarioTitle  string         `json:"scenario_title"`
	CanMainGM      bool           `json:"can_main_gm"`
	CanSubGM       bool           `json:"can_sub_gm"`
	IsExperienced  bool           `json:"is_experienced"`
	TimestampField TimestampField `json:"timestamp_field"`
}

// NewMainGMAssignment returns an assignment granting main GM rights.
func NewMainGMAssignment(staff, scenario string) Assignment {
	return Assignment{
		StaffName:      strings.TrimSpace(staff),
		ScenarioTitle:  strings.TrimSpace(scenario),
		CanMainGM:      true,
		TimestampField: CanGMAt,
	}
}

// NewExperiencedAssignment returns an assignment recording play experience only.
func NewExperiencedAssignment(staff, scenario string) Assignment {
	return Assignment{
		StaffName:      strings.TrimSpace(staff),
		ScenarioTitle:  strings.TrimSpace(scenario),
		IsExperienced:  true,
		TimestampField: ExperiencedAt,
	}
}

// Key identifies the (staff, scenario) pair an assignment upserts.
func (a Assignment) Key() string {
	return a.StaffName + "\x00" + a.ScenarioTitle
}
