package index

import (
	"log/slog"
	"time"

	"github.com/starford/noteml/internal/parser"
	"github.com/starford/noteml/internal/vault"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed bundles are parsed and upserted
//   - notes removed from disk are deleted from the index
func Sync(db *DB, store *vault.Store, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}
		if _, err := IndexNote(db, store, m.Path); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexNote reads the bundle of a note and upserts it unless the index
// already holds that version. It reports whether the index changed.
// Payloads are not loaded; resource hashes come from the manifest.
func IndexNote(db *DB, store *vault.Store, path string) (bool, error) {
	b, err := store.ReadBundle(path)
	if err != nil {
		return false, err
	}
	if cs, err := db.GetChecksum(path); err != nil {
		return false, err
	} else if cs == b.Checksum {
		return false, nil
	}
	doc, err := Build(b)
	if err != nil {
		return false, err
	}
	if err := db.UpsertNote(doc); err != nil {
		return false, err
	}
	return true, nil
}

// Build derives the indexed form of a bundle.
func Build(b *vault.Bundle) (Document, error) {
	res, err := parser.Parse(b.Markup)
	if err != nil {
		return Document{}, err
	}

	m := b.Manifest
	title := m.Title
	if title == "" {
		title = res.Title
	}
	updated := m.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	doc := Document{
		Note: NoteRow{
			Path:      b.Path,
			ID:        m.ID,
			Title:     title,
			Checksum:  b.Checksum,
			Tags:      mergeTags(m.Tags, res.Tags),
			TodoTotal: res.TodoTotal,
			TodoDone:  res.TodoDone,
			UpdatedAt: updated,
		},
		Body:      res.Body,
		Links:     res.Links,
		MediaRefs: res.MediaHashes,
	}
	for _, e := range m.Resources {
		doc.Resources = append(doc.Resources, ResourceRow{
			ID:       e.ID,
			Hash:     e.Hash,
			Mime:     e.Mime,
			FileName: e.FileName,
		})
	}
	doc.Note.ResourceCount = len(doc.Resources)
	return doc, nil
}

// mergeTags returns manifest tags followed by inline tags not already listed.
func mergeTags(manifest, inline []string) []string {
	seen := make(map[string]struct{}, len(manifest)+len(inline))
	out := make([]string, 0, len(manifest)+len(inline))
	for _, list := range [][]string{manifest, inline} {
		for _, t := range list {
			if _, dup := seen[t]; dup || t == "" {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
