// Package storage defines the vault file-system abstraction.
//
// Paths are relative to the vault root and may not escape it.
package storage

import "github.com/starford/noteml/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every note markup file under dir (relative to vault root).
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Exists reports whether a file exists at path (relative to vault root).
	Exists(path string) (bool, error)
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	Move(oldPath, newPath string) error
}

var _ Provider = (*FS)(nil)
