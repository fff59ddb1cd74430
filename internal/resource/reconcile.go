package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/starford/noteml/internal/markup"
	"github.com/starford/noteml/internal/models"
)

// Media tag vocabulary.
const (
	MediaTag = "en-media"
	AttrHash = "hash"
	AttrType = "type"
)

// ErrResourcesExhausted is returned by SyncContent when the markup holds
// more media tags than the note has resources.
var ErrResourcesExhausted = errors.New("resource: more media tags than resources")

// rewriteFunc returns the replacement for a media start tag.
type rewriteFunc func(tag markup.Event) (markup.Event, error)

// rewrite streams content through fn and returns the new content and
// whether any media tag changed. Nothing is returned on error.
func rewrite(content string, fn rewriteFunc) (string, bool, error) {
	var buf bytes.Buffer
	r := markup.NewReader(strings.NewReader(content))
	w := markup.NewWriter(&buf)
	changed := false
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", false, err
		}
		if ev.Kind == markup.KindStart && ev.Name == MediaTag {
			out, err := fn(ev)
			if err != nil {
				return "", false, err
			}
			if !sameAttrs(ev, out) {
				changed = true
			}
			ev = out
		}
		if err := w.Write(ev); err != nil {
			return "", false, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", false, err
	}
	return buf.String(), changed, nil
}

func sameAttrs(a, b markup.Event) bool {
	if len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i] != b.Attrs[i] {
			return false
		}
	}
	return true
}

// commit installs the rewritten content. Unchanged markup is left as the
// caller wrote it.
func commit(note *models.Note, content string, changed bool) {
	if changed {
		note.Content = content
	}
}

// UpdateByHash points media tags at replacement resources.
//
// A tag whose hash is a key of replacements gets the hash of the new
// resource. If the new resource is not yet attached it is appended once,
// in document order, and the resource with the old hash is removed. When
// one appended resource replaces several old hashes, every one of them is
// removed. A tag whose hash is not a key keeps it, unless deleteMissing is
// set; then its hash attribute is dropped and the matching resource
// removed.
func UpdateByHash(note *models.Note, replacements map[string]*models.Resource, deleteMissing bool) error {
	attached := HashesOf(note.Resources)
	added := NewHashSet()
	removed := NewHashSet()
	var appended []*models.Resource

	content, changed, err := rewrite(note.Content, func(tag markup.Event) (markup.Event, error) {
		hash, ok := tag.AttrValue(AttrHash)
		if !ok {
			return tag, nil
		}
		next, ok := replacements[hash]
		if !ok || next == nil {
			if deleteMissing {
				removed[hash] = struct{}{}
				return tag.WithoutAttrs(AttrHash), nil
			}
			return tag, nil
		}
		nextHash := next.Hash()
		if !attached.Has(nextHash) {
			attached[nextHash] = struct{}{}
			added[nextHash] = struct{}{}
			appended = append(appended, next)
		}
		if added.Has(nextHash) {
			removed[hash] = struct{}{}
		}
		return tag.WithAttr(AttrHash, nextHash), nil
	})
	if err != nil {
		return fmt.Errorf("resource: update by hash: %w", err)
	}

	commit(note, content, changed)
	if len(removed) > 0 || len(appended) > 0 {
		kept := make([]*models.Resource, 0, len(note.Resources)+len(appended))
		for _, r := range note.Resources {
			if r != nil && removed.Has(r.Hash()) {
				continue
			}
			kept = append(kept, r)
		}
		note.Resources = append(kept, appended...)
	}
	return nil
}

// DeleteByHash drops the hash attribute of media tags referencing hashes
// and removes the matching resources.
func DeleteByHash(note *models.Note, hashes HashSet) error {
	content, changed, err := rewrite(note.Content, func(tag markup.Event) (markup.Event, error) {
		if hash, ok := tag.AttrValue(AttrHash); ok && hashes.Has(hash) {
			return tag.WithoutAttrs(AttrHash), nil
		}
		return tag, nil
	})
	if err != nil {
		return fmt.Errorf("resource: delete by hash: %w", err)
	}

	commit(note, content, changed)
	kept := note.Resources[:0:0]
	for _, r := range note.Resources {
		if r != nil && hashes.Has(r.Hash()) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) != len(note.Resources) {
		note.Resources = kept
	}
	return nil
}

// SyncContent overwrites the hash and type of the Nth media tag with those
// of the Nth resource and returns how many resources no tag consumed.
// It fails with ErrResourcesExhausted, leaving the note untouched, when
// tags outnumber resources.
func SyncContent(note *models.Note) (int, error) {
	next := 0
	content, changed, err := rewrite(note.Content, func(tag markup.Event) (markup.Event, error) {
		if next >= len(note.Resources) {
			return tag, fmt.Errorf("%w: media tag %d has no resource", ErrResourcesExhausted, next+1)
		}
		r := note.Resources[next]
		next++
		if r == nil {
			return tag, fmt.Errorf("resource: resource %d is nil", next)
		}
		return tag.WithAttr(AttrHash, r.Hash()).WithAttr(AttrType, r.Mime), nil
	})
	if err != nil {
		return 0, fmt.Errorf("resource: sync content: %w", err)
	}
	commit(note, content, changed)
	return len(note.Resources) - next, nil
}

// MediaHashes returns the hash attribute of every media tag in document
// order. Tags without a hash are skipped.
func MediaHashes(content string) ([]string, error) {
	var out []string
	_, _, err := rewrite(content, func(tag markup.Event) (markup.Event, error) {
		if h, ok := tag.AttrValue(AttrHash); ok {
			out = append(out, h)
		}
		return tag, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resource: media hashes: %w", err)
	}
	return out, nil
}

// Check compares media references with the note resources.
func Check(note *models.Note) (models.Integrity, error) {
	refs, err := MediaHashes(note.Content)
	if err != nil {
		return models.Integrity{}, err
	}
	report := models.Integrity{Path: note.Path, Dangling: []string{}, Orphans: []string{}}
	attached := HashesOf(note.Resources)
	used := NewHashSet(refs...)
	seen := NewHashSet()
	for _, h := range refs {
		if !attached.Has(h) && !seen.Has(h) {
			report.Dangling = append(report.Dangling, h)
			seen[h] = struct{}{}
		}
	}
	for _, r := range note.Resources {
		if r == nil {
			continue
		}
		if h := r.Hash(); !used.Has(h) && !seen.Has(h) {
			report.Orphans = append(report.Orphans, h)
			seen[h] = struct{}{}
		}
	}
	return report, nil
}
