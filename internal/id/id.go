// Package id generates identifiers for sync runs and locally seeded rows.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// runAlphabet avoids '-' and '_' so run ids stay readable inside SQL
// comments and file names.
const runAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// runLength is long enough for a few thousand runs per day without collisions.
const runLength = 12

// NewRunID returns an id that tags one command invocation, e.g. "run-3f9k2m0qzt7a".
// It is stamped into generated SQL headers, snapshots and log lines.
func NewRunID() (string, error) {
	id, err := gonanoid.Generate(runAlphabet, runLength)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return "run-" + id, nil
}

// NewRowID returns a random UUID string for rows inserted into the local
// replay store, mirroring the uuid primary keys of the hosted database.
func NewRowID() string {
	return uuid.NewString()
}

// IsRowID reports whether s parses as a UUID.
func IsRowID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
