package model

import "github.com/google/uuid"

// PrewarmTask asks the service to fetch a source into the cache ahead of time.
// It is the payload of prewarm queue messages.
type PrewarmTask struct {
	ID        uuid.UUID `json:"id"`
	SourceURL string    `json:"source_url"`
}
