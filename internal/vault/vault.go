// Package vault stores notes as bundles on top of a storage.Provider.
//
// A note at "dir/name.enml" holds the markup. Its manifest lives next to it
// at "dir/name.enml.yaml" and lists the resources in order. Resource
// payloads are content addressed under "attachments/<hash>" and shared
// between notes.
package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/noteml/internal/apperr"
	"github.com/starford/noteml/internal/checksum"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/storage"
)

// Layout constants.
const (
	ManifestExt = ".yaml"
	BlobDir     = "attachments"
)

// ErrCorruptBlob is returned when a payload does not match its hash.
var ErrCorruptBlob = errors.New("vault: resource payload does not match its hash")

var hashRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ValidHash reports whether s looks like a resource body hash.
func ValidHash(s string) bool {
	return hashRe.MatchString(s)
}

// Manifest is the sidecar document of a note.
type Manifest struct {
	ID        string          `yaml:"id"`
	Title     string          `yaml:"title,omitempty"`
	Tags      []string        `yaml:"tags,omitempty"`
	CreatedAt time.Time       `yaml:"created_at"`
	UpdatedAt time.Time       `yaml:"updated_at"`
	Resources []ResourceEntry `yaml:"resources"`
}

// ResourceEntry describes one attached resource.
type ResourceEntry struct {
	ID       string `yaml:"id"`
	Mime     string `yaml:"mime"`
	FileName string `yaml:"file_name,omitempty"`
	Hash     string `yaml:"hash"`
}

// Bundle is the raw on-disk form of a note.
type Bundle struct {
	Path     string
	Markup   []byte
	Manifest Manifest
	// Checksum covers the markup and the manifest.
	Checksum string
}

// ManifestPath returns the manifest path of a note.
func ManifestPath(notePath string) string {
	return notePath + ManifestExt
}

// BlobPath returns the storage path of a payload.
func BlobPath(hash string) string {
	return path.Join(BlobDir, hash)
}

// NotePathOf maps a vault file to the note it belongs to.
func NotePathOf(file string) (string, bool) {
	file = strings.TrimSuffix(file, ManifestExt)
	if !storage.IsNote(file) {
		return "", false
	}
	return file, true
}

// Store reads and writes note bundles.
type Store struct {
	files storage.Provider
}

// New returns a Store over files.
func New(files storage.Provider) *Store {
	return &Store{files: files}
}

// List returns every note with its bundle checksum.
func (s *Store) List() ([]models.NoteMetadata, error) {
	metas, err := s.files.List("")
	if err != nil {
		return nil, err
	}
	for i := range metas {
		b, err := s.ReadBundle(metas[i].Path)
		if err != nil {
			return nil, err
		}
		metas[i].Checksum = b.Checksum
	}
	return metas, nil
}

// ReadBundle reads the markup and manifest of a note. A missing manifest
// yields an empty one.
func (s *Store) ReadBundle(p string) (*Bundle, error) {
	if !storage.IsNote(p) {
		return nil, fmt.Errorf("vault: %s: %w", p, apperr.ErrInvalidInput)
	}
	markup, err := s.files.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vault: %s: %w", p, apperr.ErrNotFound)
		}
		return nil, err
	}
	raw, err := s.files.Read(ManifestPath(p))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	b := &Bundle{Path: p, Markup: markup}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &b.Manifest); err != nil {
			return nil, fmt.Errorf("vault: parse manifest of %s: %w", p, err)
		}
	}
	b.Checksum = bundleChecksum(markup, raw)
	return b, nil
}

func bundleChecksum(markup, manifest []byte) string {
	var buf bytes.Buffer
	buf.Grow(len(markup) + len(manifest) + 1)
	buf.Write(markup)
	buf.WriteByte(0)
	buf.Write(manifest)
	return checksum.Sum(buf.Bytes())
}

// Load reads a note with all resource payloads.
func (s *Store) Load(p string) (*models.Note, error) {
	b, err := s.ReadBundle(p)
	if err != nil {
		return nil, err
	}
	n := &models.Note{
		ID:        b.Manifest.ID,
		Path:      p,
		Title:     b.Manifest.Title,
		Tags:      b.Manifest.Tags,
		Content:   string(b.Markup),
		Resources: make([]*models.Resource, 0, len(b.Manifest.Resources)),
		Checksum:  b.Checksum,
		CreatedAt: b.Manifest.CreatedAt,
		UpdatedAt: b.Manifest.UpdatedAt,
	}
	for _, e := range b.Manifest.Resources {
		data, err := s.ReadBlob(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("vault: load %s: resource %s: %w", p, e.ID, err)
		}
		n.Resources = append(n.Resources, &models.Resource{
			ID:       e.ID,
			Mime:     e.Mime,
			FileName: e.FileName,
			Data:     data,
		})
	}
	return n, nil
}

// Save writes payloads, manifest and markup of note, in that order, and
// returns the new bundle checksum.
func (s *Store) Save(note *models.Note) (string, error) {
	if !storage.IsNote(note.Path) {
		return "", fmt.Errorf("vault: %s: %w", note.Path, apperr.ErrInvalidInput)
	}
	m := Manifest{
		ID:        note.ID,
		Title:     note.Title,
		Tags:      note.Tags,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
		Resources: make([]ResourceEntry, 0, len(note.Resources)),
	}
	for _, r := range note.Resources {
		if r == nil {
			continue
		}
		hash, err := s.PutBlob(r.Data)
		if err != nil {
			return "", err
		}
		m.Resources = append(m.Resources, ResourceEntry{
			ID:       r.ID,
			Mime:     r.Mime,
			FileName: r.FileName,
			Hash:     hash,
		})
	}
	raw, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("vault: encode manifest: %w", err)
	}
	if err := s.files.Write(ManifestPath(note.Path), raw); err != nil {
		return "", err
	}
	markup := []byte(note.Content)
	if err := s.files.Write(note.Path, markup); err != nil {
		return "", err
	}
	return bundleChecksum(markup, raw), nil
}

// Delete removes the markup and manifest of a note. Payloads stay.
func (s *Store) Delete(p string) error {
	if err := s.files.Delete(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("vault: %s: %w", p, apperr.ErrNotFound)
		}
		return err
	}
	if err := s.files.Delete(ManifestPath(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Move renames a note bundle.
func (s *Store) Move(oldPath, newPath string) error {
	if !storage.IsNote(newPath) {
		return fmt.Errorf("vault: %s: %w", newPath, apperr.ErrInvalidInput)
	}
	if ok, err := s.files.Exists(newPath); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("vault: %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := s.files.Move(oldPath, newPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("vault: %s: %w", oldPath, apperr.ErrNotFound)
		}
		return err
	}
	if ok, _ := s.files.Exists(ManifestPath(oldPath)); ok {
		return s.files.Move(ManifestPath(oldPath), ManifestPath(newPath))
	}
	return nil
}

// Exists reports whether a note exists.
func (s *Store) Exists(p string) (bool, error) {
	return s.files.Exists(p)
}

// PutBlob stores a payload unless it is already present and returns its hash.
func (s *Store) PutBlob(data []byte) (string, error) {
	hash := checksum.BodyHash(data)
	ok, err := s.files.Exists(BlobPath(hash))
	if err != nil {
		return "", err
	}
	if ok {
		return hash, nil
	}
	if err := s.files.Write(BlobPath(hash), data); err != nil {
		return "", err
	}
	return hash, nil
}

// ReadBlob returns a payload by hash.
func (s *Store) ReadBlob(hash string) ([]byte, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("vault: blob %q: %w", hash, apperr.ErrInvalidInput)
	}
	data, err := s.files.Read(BlobPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vault: blob %s: %w", hash, apperr.ErrNotFound)
		}
		return nil, err
	}
	if checksum.BodyHash(data) != hash {
		return nil, fmt.Errorf("%w: %s", ErrCorruptBlob, hash)
	}
	return data, nil
}
