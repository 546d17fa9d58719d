package matcher

// Confidence buckets a similarity score for review.
type Confidence int

const (
	// ConfidenceNone means no candidate was accepted.
	ConfidenceNone Confidence = iota
	// ConfidenceLow is an accepted score under 0.7.
	ConfidenceLow
	// ConfidenceMedium is a score in [0.7, 0.9).
	ConfidenceMedium
	// ConfidenceHigh is a score in [0.9, 1.0).
	ConfidenceHigh
	// ConfidenceExact is a score of 1.0.
	ConfidenceExact
)

// String returns a human-readable confidence level.
func (c Confidence) String() string {
	switch c {
	case ConfidenceExact:
		return "exact"
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// NeedsReview returns true when a human should confirm the match before
// its data is written back.
func (c Confidence) NeedsReview() bool {
	return c != ConfidenceExact && c != ConfidenceHigh
}

// ConfidenceOf buckets score.
func ConfidenceOf(score float64) Confidence {
	switch {
	case score >= 1.0:
		return ConfidenceExact
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.7:
		return ConfidenceMedium
	case score > 0:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}
