package model

import "time"

// LastRefreshedAtKey is the metadata key holding the last successful refresh time
const LastRefreshedAtKey = "last_refreshed_at"

// Metadata is a single key/value row of global state
type Metadata struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
