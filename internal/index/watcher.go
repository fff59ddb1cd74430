package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/noteml/internal/apperr"
	"github.com/starford/noteml/internal/storage"
	"github.com/starford/noteml/internal/vault"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// Both files of a bundle are watched: a change to the markup or to its
// manifest reindexes the note. The attachments directory is not watched
// since payloads are immutable. Rename events trigger a reconciliation
// pass that removes stale index entries whose notes no longer exist.
func Watch(ctx context.Context, db *DB, store *vault.Store, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	notify := func(kind, p string) {
		if cb != nil {
			cb(kind, p)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if skipDir(vaultRoot, absPath) {
						continue
					}
					if addErr := addDirsRecursive(w, vaultRoot, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, vaultRoot, absPath, logger, cb)
					continue
				}
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			note, isNote := vault.NotePathOf(rel)
			if !isNote {
				continue
			}
			isManifest := note != rel

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed, idxErr := IndexNote(db, store, note)
				if idxErr != nil {
					// A manifest usually lands before its markup.
					if !errors.Is(idxErr, apperr.ErrNotFound) {
						logger.Warn("watcher: index failed", slog.String("path", note), slog.String("error", idxErr.Error()))
					}
					continue
				}
				if !changed {
					// Already indexed by whoever wrote it.
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 && !isManifest {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", note), slog.String("op", kind))
				notify(kind, note)

			case ev.Op&fsnotify.Remove != 0:
				if isManifest {
					// The markup may still be there without its manifest.
					if changed, _ := IndexNote(db, store, note); changed {
						notify("updated", note)
					}
					continue
				}
				if delErr := db.DeleteNote(note); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", note), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", note))
				notify("deleted", note)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a Create if it stays in a watched directory.
				if !isManifest {
					if delErr := db.DeleteNote(note); delErr != nil {
						logger.Warn("watcher: rename delete failed", slog.String("path", note), slog.String("error", delErr.Error()))
					} else {
						logger.Debug("watcher: rename old deleted", slog.String("path", note))
						notify("deleted", note)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename removes index entries without a note on disk and
// indexes notes that are missing or out of date.
func reconcileAfterRename(db *DB, store *vault.Store, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeleteNote(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb("deleted", p)
				}
			}
		}
	}

	for p, cs := range disk {
		old, known := checksums[p]
		if old == cs {
			continue
		}
		if changed, idxErr := IndexNote(db, store, p); idxErr == nil && changed {
			logger.Debug("reconcile: indexed", slog.String("path", p))
			if cb != nil {
				kind := "created"
				if known {
					kind = "updated"
				}
				cb(kind, p)
			}
		}
	}
}

// indexNewDir indexes any notes found in a newly created directory.
func indexNewDir(db *DB, store *vault.Store, vaultRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsNote(path) {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if changed, idxErr := IndexNote(db, store, rel); idxErr == nil && changed {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			if cb != nil {
				cb("created", rel)
			}
		}
		return nil
	})
}

// addDirsRecursive adds dir and all its subdirectories to the watcher,
// skipping hidden directories and the attachments store.
func addDirsRecursive(w *fsnotify.Watcher, vaultRoot, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != vaultRoot && skipDir(vaultRoot, path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func skipDir(root, dir string) bool {
	if strings.HasPrefix(filepath.Base(dir), ".") {
		return true
	}
	rel, err := filepath.Rel(root, dir)
	return err == nil && filepath.ToSlash(rel) == vault.BlobDir
}
