package catalog

import (
	"io"
	"time"
)

// Plugin is one catalog entry. LogoRef and ArtifactRef are opaque blob
// store references; the catalog never interprets them.
type Plugin struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Downloads   int64     `json:"downloads"`
	LogoRef     string    `json:"logo_ref,omitempty"`
	ArtifactRef string    `json:"artifact_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload carries one file received at the boundary
type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// CreateRequest holds the fields for a new catalog entry. Logo and Artifact
// carry fresh uploads; LogoRef and ArtifactRef adopt already-stored blob
// references instead and are ignored when the corresponding upload is set.
type CreateRequest struct {
	Name        string
	Description string
	Price       int64
	Logo        *Upload
	Artifact    *Upload
	LogoRef     string
	ArtifactRef string
}

// UpdateRequest holds a partial update; nil fields are left unchanged
type UpdateRequest struct {
	Name        *string
	Description *string
	Price       *int64
	Logo        *Upload
	Artifact    *Upload
}

// ListRequest filters and sorts the public catalog listing
type ListRequest struct {
	Search    string
	SortBy    string // "created", "downloads" or "price"
	SortOrder string // "asc" or "desc"
	Limit     int
	Offset    int
}
