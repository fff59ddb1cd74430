package api

import (
	"github.com/starford/noteml/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string   `json:"path" example:"recipes/bread.enml" validate:"required"`
	Title   string   `json:"title,omitempty" example:"Bread"`
	Tags    []string `json:"tags,omitempty" example:"cooking,baking"`
	Content string   `json:"content" example:"<en-note><div>Flour</div></en-note>" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
// Omitted fields are left unchanged.
type UpdateNoteRequest struct {
	Content *string  `json:"content,omitempty" example:"<en-note><div>Rye</div></en-note>"`
	Title   *string  `json:"title,omitempty" example:"Rye bread"`
	Tags    []string `json:"tags,omitempty" example:"cooking"`
}

// MoveNoteRequest names the destination of a move.
type MoveNoteRequest struct {
	To string `json:"to" example:"archive/bread.enml" validate:"required"`
}

// RemapResourcesRequest maps old resource ids to replacement ids.
type RemapResourcesRequest struct {
	IDs           map[string]string `json:"ids"`
	DeleteMissing bool              `json:"delete_missing,omitempty"`
}

// DeleteResourcesRequest lists resource ids to remove.
type DeleteResourcesRequest struct {
	IDs []string `json:"ids" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// ResourceInfo describes an attached resource (aliased from the domain layer).
type ResourceInfo = noteservice.ResourceInfo

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// AddResourceResponse is returned after a resource is attached.
type AddResourceResponse struct {
	Note     *NoteDetail  `json:"note" validate:"required"`
	Resource ResourceInfo `json:"resource" validate:"required"`
}

// SyncResponse reports the synced note and how many resources are left
// without a media tag.
type SyncResponse struct {
	Note     *NoteDetail `json:"note" validate:"required"`
	Leftover int         `json:"leftover" example:"0"`
}

// IntegrityResponse reports reference/resource mismatches for one note.
type IntegrityResponse struct {
	Path     string   `json:"path" example:"recipes/bread.enml"`
	OK       bool     `json:"ok"`
	Dangling []string `json:"dangling"`
	Orphans  []string `json:"orphans"`
}

// BrokenNotesResponse lists notes failing the integrity check.
type BrokenNotesResponse struct {
	Notes []string `json:"notes" validate:"required"`
}

// AttachmentUsersResponse lists the notes using a payload.
type AttachmentUsersResponse struct {
	Hash  string   `json:"hash"`
	Notes []string `json:"notes" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"recipes/bread.enml" validate:"required"`
	Title   string `json:"title" example:"Bread" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
