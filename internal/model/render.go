package model

import (
	"time"

	"github.com/google/uuid"
)

// Rendition is the result of a successful render.
type Rendition struct {
	ID          uuid.UUID
	Data        []byte
	ContentType string
	Width       int
	Height      int
	CacheHit    bool // source bytes came from the cache
}

// Render is a journal record describing a single render request.
type Render struct {
	ID         uuid.UUID    `json:"id"`
	SpecToken  string       `json:"spec_token"`
	SourceURL  string       `json:"source_url"`
	Format     OutputFormat `json:"format"`
	Status     string       `json:"status"` // ok / client_error / server_error
	Error      string       `json:"error,omitempty"`
	Bytes      int          `json:"bytes"`
	CacheHit   bool         `json:"cache_hit"`
	DurationMS int64        `json:"duration_ms"`
	CreatedAt  time.Time    `json:"created_at"`
}
