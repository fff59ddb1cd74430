// Package resource keeps media references in note markup consistent with
// the resources attached to the note.
//
// Resources are matched by body hash, never by identifier, because
// identifiers may not exist yet while hashes are reconciled. The helpers
// in this file translate identifier- or resource-keyed maps into the
// hash-keyed maps the reconciler works on. Entries that cannot be
// resolved are skipped.
package resource

import (
	"github.com/starford/noteml/internal/checksum"
	"github.com/starford/noteml/internal/models"
)

// Hash returns the body hash of a payload.
func Hash(data []byte) string {
	return checksum.BodyHash(data)
}

// HashSet is a set of body hashes.
type HashSet map[string]struct{}

// NewHashSet returns a set holding hashes.
func NewHashSet(hashes ...string) HashSet {
	s := make(HashSet, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

// Has reports whether h is in the set.
func (s HashSet) Has(h string) bool {
	_, ok := s[h]
	return ok
}

// HashesOf returns the hashes of resources.
func HashesOf(resources []*models.Resource) HashSet {
	s := make(HashSet, len(resources))
	for _, r := range resources {
		if r != nil {
			s[r.Hash()] = struct{}{}
		}
	}
	return s
}

// HashesByID returns the hashes of the note resources with the given ids.
func HashesByID(note *models.Note, ids []string) HashSet {
	s := make(HashSet, len(ids))
	for _, id := range ids {
		if r := note.ResourceByID(id); r != nil {
			s[r.Hash()] = struct{}{}
		}
	}
	return s
}

// URLsByID turns a resource id to URL map into a hash to URL map using
// the note resources.
func URLsByID(note *models.Note, urls map[string]string) map[string]string {
	out := make(map[string]string, len(urls))
	if note == nil {
		return out
	}
	for _, r := range note.Resources {
		if r == nil {
			continue
		}
		if u, ok := urls[r.ID]; ok {
			out[r.Hash()] = u
		}
	}
	return out
}

// ReplacementsByID resolves old id to new id pairs against the note
// resources. Both ids must name a resource of the note.
func ReplacementsByID(note *models.Note, ids map[string]string) map[string]*models.Resource {
	out := make(map[string]*models.Resource, len(ids))
	for oldID, newID := range ids {
		oldRes := note.ResourceByID(oldID)
		newRes := note.ResourceByID(newID)
		if oldRes == nil || newRes == nil {
			continue
		}
		out[oldRes.Hash()] = newRes
	}
	return out
}

// ReplacementsByResource keys replacements by the hash of the old resource.
func ReplacementsByResource(pairs map[*models.Resource]*models.Resource) map[string]*models.Resource {
	out := make(map[string]*models.Resource, len(pairs))
	for oldRes, newRes := range pairs {
		if oldRes == nil || newRes == nil {
			continue
		}
		out[oldRes.Hash()] = newRes
	}
	return out
}
