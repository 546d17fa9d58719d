package providers

import "time"

const (
	// connectTimeout bounds opening remote connections while resolving a
	// provider.
	connectTimeout = 30 * time.Second

	// suggestionLimit is the number of index candidates listed per
	// catalog-only record in the mapping report.
	suggestionLimit = 3
)
