// Package models defines the domain types for noteml.
package models

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/noteml/internal/checksum"
)

// Note is a markup document together with its ordered resources.
type Note struct {
	ID        string      `json:"id"`
	Path      string      `json:"path"`
	Title     string      `json:"title,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
	Content   string      `json:"content"`
	Resources []*Resource `json:"resources"`
	Checksum  string      `json:"checksum,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ResourceByHash returns the first resource whose payload hashes to hash.
func (n *Note) ResourceByHash(hash string) *Resource {
	for _, r := range n.Resources {
		if r != nil && r.Hash() == hash {
			return r
		}
	}
	return nil
}

// ResourceByID returns the resource with the given identifier.
func (n *Note) ResourceByID(id string) *Resource {
	for _, r := range n.Resources {
		if r != nil && r.ID == id {
			return r
		}
	}
	return nil
}

// Resource is a binary attachment of a note.
type Resource struct {
	ID       string `json:"id"`
	Mime     string `json:"mime"`
	FileName string `json:"file_name,omitempty"`
	Data     []byte `json:"-"`

	digest atomic.Pointer[digest]
}

// digest remembers the hash of the payload slice it was computed for.
type digest struct {
	first *byte
	n     int
	sum   string
}

var bodyHash = checksum.BodyHash

// Hash returns the body hash of the payload, the key media tags use to
// reference it. The digest is computed once per payload slice; assigning
// a new Data slice recomputes it. Payload bytes must not be modified in
// place.
func (r *Resource) Hash() string {
	if len(r.Data) == 0 {
		return bodyHash(nil)
	}
	first := &r.Data[0]
	if d := r.digest.Load(); d != nil && d.first == first && d.n == len(r.Data) {
		return d.sum
	}
	d := &digest{first: first, n: len(r.Data), sum: bodyHash(r.Data)}
	r.digest.Store(d)
	return d.sum
}

// IsImage reports whether the resource MIME type is an image type.
func (r *Resource) IsImage() bool {
	return IsImageMime(r.Mime)
}

// IsImageMime reports whether mime names an image type.
func IsImageMime(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "image/")
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteSummary is an indexed note as returned by listing and search.
type NoteSummary struct {
	Path          string    `json:"path"`
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ResourceCount int       `json:"resource_count"`
	TodoCount     int       `json:"todo_count"`
	TodoDone      int       `json:"todo_done"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Integrity reports mismatches between media references and resources.
type Integrity struct {
	Path string `json:"path"`
	// Dangling lists referenced hashes with no matching resource.
	Dangling []string `json:"dangling"`
	// Orphans lists resource hashes no media tag references.
	Orphans []string `json:"orphans"`
}

// OK reports whether references and resources agree.
func (i Integrity) OK() bool {
	return len(i.Dangling) == 0 && len(i.Orphans) == 0
}
