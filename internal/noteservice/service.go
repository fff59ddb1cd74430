// Package noteservice composes the vault, the index and the processor into
// the operations exposed over HTTP and MCP.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/noteml/internal/apperr"
	"github.com/starford/noteml/internal/convert"
	"github.com/starford/noteml/internal/index"
	"github.com/starford/noteml/internal/markup"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/parser"
	"github.com/starford/noteml/internal/processor"
	"github.com/starford/noteml/internal/resource"
	"github.com/starford/noteml/internal/storage"
	"github.com/starford/noteml/internal/vault"
)

// Event kinds passed to the EventFunc.
const (
	EventCreated    = "created"
	EventUpdated    = "updated"
	EventDeleted    = "deleted"
	EventReconciled = "reconciled"
)

// EventFunc is called after a successful mutation.
type EventFunc func(kind, path string)

// ResourceInfo describes an attached resource without its payload.
type ResourceInfo struct {
	ID       string `json:"id"`
	Mime     string `json:"mime"`
	FileName string `json:"file_name,omitempty"`
	Hash     string `json:"hash"`
	Size     int    `json:"size"`
	URL      string `json:"url"`
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path      string         `json:"path"`
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Checksum  string         `json:"checksum"`
	Tags      []string       `json:"tags"`
	Resources []ResourceInfo `json:"resources"`
	Backlinks []string       `json:"backlinks"`
	TodoTotal int            `json:"todo_total"`
	TodoDone  int            `json:"todo_done"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path          string    `json:"path"`
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Checksum      string    `json:"checksum"`
	Tags          []string  `json:"tags"`
	ResourceCount int       `json:"resource_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateInput holds the fields of a new note.
type CreateInput struct {
	Path    string
	Title   string
	Tags    []string
	Content string
}

// UpdateInput holds the fields to change. Nil fields are kept.
type UpdateInput struct {
	Content *string
	Title   *string
	Tags    []string
}

// ResourceInput is an uploaded resource.
type ResourceInput struct {
	Mime     string
	FileName string
	Data     []byte
}

// Config tunes rendering and limits.
type Config struct {
	// AttachmentBaseURL prefixes resource hashes in reference mode.
	AttachmentBaseURL string
	DefaultMode       convert.Mode
	// MaxNoteBytes caps markup size; zero disables the check.
	MaxNoteBytes int
}

// Service coordinates vault, index and processor operations.
type Service struct {
	vault *vault.Store
	db    *index.DB
	proc  *processor.Processor
	cfg   Config

	locks   sync.Map // path -> *sync.Mutex
	onEvent EventFunc
}

// NewService creates a new note service.
func NewService(store *vault.Store, db *index.DB, proc *processor.Processor, cfg Config) *Service {
	if cfg.AttachmentBaseURL == "" {
		cfg.AttachmentBaseURL = "/attachments/"
	}
	if proc == nil {
		proc = processor.New()
	}
	return &Service{vault: store, db: db, proc: proc, cfg: cfg}
}

// OnEvent registers the mutation callback. It must be called before the
// service is shared.
func (s *Service) OnEvent(fn EventFunc) {
	s.onEvent = fn
}

// DefaultMode returns the configured rendering mode.
func (s *Service) DefaultMode() convert.Mode {
	return s.cfg.DefaultMode
}

func (s *Service) emit(kind, path string) {
	if s.onEvent != nil {
		s.onEvent(kind, path)
	}
}

// lock serializes writers of one note.
func (s *Service) lock(path string) func() {
	v, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetNote loads a note and enriches it with backlinks.
func (s *Service) GetNote(ctx context.Context, path string) (*NoteDetail, error) {
	note, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.detail(note)
}

// Load returns a note with its resource payloads.
func (s *Service) Load(ctx context.Context, path string) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.vault.Load(path)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(ctx context.Context, in CreateInput) (*NoteDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !storage.IsNote(in.Path) {
		return nil, fmt.Errorf("noteservice: path %q must end with %s: %w", in.Path, storage.NoteExt, apperr.ErrInvalidInput)
	}
	if err := s.checkMarkup(in.Content); err != nil {
		return nil, err
	}

	unlock := s.lock(in.Path)
	defer unlock()

	if ok, err := s.vault.Exists(in.Path); err != nil {
		return nil, err
	} else if ok {
		return nil, apperr.ErrAlreadyExists
	}

	now := time.Now().UTC()
	note := &models.Note{
		ID:        uuid.NewString(),
		Path:      in.Path,
		Title:     in.Title,
		Tags:      in.Tags,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.save(note, EventCreated)
}

// UpdateNote changes content or metadata with optimistic concurrency.
func (s *Service) UpdateNote(ctx context.Context, path string, in UpdateInput, ifMatch string) (*NoteDetail, error) {
	if in.Content != nil {
		if err := s.checkMarkup(*in.Content); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, path, ifMatch, EventUpdated, func(note *models.Note) error {
		if in.Content != nil {
			note.Content = *in.Content
		}
		if in.Title != nil {
			note.Title = *in.Title
		}
		if in.Tags != nil {
			note.Tags = in.Tags
		}
		return nil
	})
}

// DeleteNote removes a note from vault and index. Payloads stay.
func (s *Service) DeleteNote(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.lock(path)
	defer unlock()

	if err := s.vault.Delete(path); err != nil {
		return err
	}
	if err := s.db.DeleteNote(path); err != nil {
		return err
	}
	s.emit(EventDeleted, path)
	return nil
}

// MoveNote renames a note bundle. Links in other notes are left as they are.
func (s *Service) MoveNote(ctx context.Context, oldPath, newPath, ifMatch string) (*NoteDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if oldPath == newPath {
		return nil, fmt.Errorf("noteservice: move %s onto itself: %w", oldPath, apperr.ErrInvalidInput)
	}
	// Fixed order so two opposite moves cannot deadlock.
	first, second := oldPath, newPath
	if second < first {
		first, second = second, first
	}
	defer s.lock(first)()
	defer s.lock(second)()

	note, err := s.vault.Load(oldPath)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != note.Checksum {
		return nil, apperr.ErrConflict
	}
	if err := s.vault.Move(oldPath, newPath); err != nil {
		return nil, err
	}
	if err := s.db.DeleteNote(oldPath); err != nil {
		return nil, err
	}
	if _, err := index.IndexNote(s.db, s.vault, newPath); err != nil {
		return nil, err
	}
	s.emit(EventDeleted, oldPath)
	s.emit(EventCreated, newPath)

	note.Path = newPath
	return s.detail(note)
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:          r.Path,
			ID:            r.ID,
			Title:         r.Title,
			Checksum:      r.Checksum,
			Tags:          nonNilSlice(r.Tags),
			ResourceCount: r.ResourceCount,
			UpdatedAt:     r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Backlinks returns all note paths that link to the given target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	return s.db.Backlinks(target)
}

// RenderHTML writes the XHTML document of a note to w. In reference mode
// media point at the attachments endpoint; in inline mode payloads are
// embedded.
func (s *Service) RenderHTML(ctx context.Context, w io.Writer, path string, mode convert.Mode) error {
	note, err := s.Load(ctx, path)
	if err != nil {
		return err
	}
	if mode == convert.ModeInline {
		err = s.proc.WriteInlineHTML(ctx, w, note)
	} else {
		err = s.proc.WriteHTMLByHash(ctx, w, note, s.attachmentURLs(note))
	}
	return invalid(err)
}

func (s *Service) attachmentURLs(note *models.Note) map[string]string {
	urls := make(map[string]string, len(note.Resources))
	for _, r := range note.Resources {
		if r == nil {
			continue
		}
		h := r.Hash()
		urls[h] = s.cfg.AttachmentBaseURL + h
	}
	return urls
}

// AddResource attaches a payload to a note. With embed set a media tag
// for it is appended to the markup.
func (s *Service) AddResource(ctx context.Context, path string, in ResourceInput, embed bool, ifMatch string) (*NoteDetail, ResourceInfo, error) {
	next, err := newResource(in)
	if err != nil {
		return nil, ResourceInfo{}, err
	}
	var attached *models.Resource
	detail, err := s.mutate(ctx, path, ifMatch, EventReconciled, func(note *models.Note) error {
		var attachErr error
		attached, attachErr = resource.Attach(note, next, embed)
		return attachErr
	})
	if err != nil {
		return nil, ResourceInfo{}, err
	}
	return detail, s.info(attached), nil
}

// ReplaceResource swaps the payload of resource oldID. Media tags that
// referenced the old payload are pointed at the new one.
func (s *Service) ReplaceResource(ctx context.Context, path, oldID string, in ResourceInput, ifMatch string) (*NoteDetail, error) {
	next, err := newResource(in)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, path, ifMatch, EventReconciled, func(note *models.Note) error {
		old := note.ResourceByID(oldID)
		if old == nil {
			return fmt.Errorf("noteservice: resource %s: %w", oldID, apperr.ErrNotFound)
		}
		if err := s.proc.UpdateResourcesByHash(ctx, note, map[string]*models.Resource{old.Hash(): next}, false); err != nil {
			return err
		}
		// No tag referenced the old payload: swap it in place.
		if note.ResourceByID(oldID) == old && note.ResourceByHash(next.Hash()) == nil {
			for i, r := range note.Resources {
				if r == old {
					note.Resources[i] = next
				}
			}
		}
		return nil
	})
}

// RemapResources points media tags from one attached resource to another
// by id. With deleteMissing, references to resources not named as a key
// are dropped.
func (s *Service) RemapResources(ctx context.Context, path string, ids map[string]string, deleteMissing bool, ifMatch string) (*NoteDetail, error) {
	return s.mutate(ctx, path, ifMatch, EventReconciled, func(note *models.Note) error {
		return s.proc.UpdateResourcesByID(ctx, note, ids, deleteMissing)
	})
}

// DeleteResources removes resources by id and unlinks their media tags.
// Unknown ids are ignored.
func (s *Service) DeleteResources(ctx context.Context, path string, ids []string, ifMatch string) (*NoteDetail, error) {
	return s.mutate(ctx, path, ifMatch, EventReconciled, func(note *models.Note) error {
		return s.proc.DeleteResourcesByID(ctx, note, ids)
	})
}

// SyncResources renumbers media tags against the resource order and
// returns how many resources are left without a tag.
func (s *Service) SyncResources(ctx context.Context, path, ifMatch string) (*NoteDetail, int, error) {
	var left int
	detail, err := s.mutate(ctx, path, ifMatch, EventReconciled, func(note *models.Note) error {
		var err error
		left, err = s.proc.SyncContent(ctx, note)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return detail, left, nil
}

// Integrity reports media references without a resource and resources
// without a reference.
func (s *Service) Integrity(ctx context.Context, path string) (models.Integrity, error) {
	note, err := s.Load(ctx, path)
	if err != nil {
		return models.Integrity{}, err
	}
	report, err := resource.Check(note)
	return report, invalid(err)
}

// BrokenNotes lists indexed notes whose references and resources disagree.
func (s *Service) BrokenNotes(_ context.Context) ([]string, error) {
	broken, err := s.db.BrokenNotes()
	return nonNilSlice(broken), err
}

// AttachmentUsers lists the notes that attach or reference a payload.
func (s *Service) AttachmentUsers(_ context.Context, hash string) ([]string, error) {
	if !vault.ValidHash(hash) {
		return nil, fmt.Errorf("noteservice: hash %q: %w", hash, apperr.ErrInvalidInput)
	}
	paths, err := s.db.NotesUsingHash(hash)
	return nonNilSlice(paths), err
}

// Attachment returns a payload by body hash.
func (s *Service) Attachment(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.vault.ReadBlob(hash)
}

// mutate loads a note under its lock, applies fn and saves the result.
func (s *Service) mutate(ctx context.Context, path, ifMatch, kind string, fn func(*models.Note) error) (*NoteDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := s.lock(path)
	defer unlock()

	note, err := s.vault.Load(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != note.Checksum {
		return nil, apperr.ErrConflict
	}
	if err := fn(note); err != nil {
		return nil, invalid(err)
	}
	if err := s.checkMarkup(note.Content); err != nil {
		return nil, err
	}
	note.UpdatedAt = time.Now().UTC()
	return s.save(note, kind)
}

func (s *Service) save(note *models.Note, kind string) (*NoteDetail, error) {
	cs, err := s.vault.Save(note)
	if err != nil {
		return nil, err
	}
	note.Checksum = cs
	if _, err := index.IndexNote(s.db, s.vault, note.Path); err != nil {
		return nil, err
	}
	s.emit(kind, note.Path)
	return s.detail(note)
}

// checkMarkup rejects oversized or malformed markup.
func (s *Service) checkMarkup(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("noteservice: content is empty: %w", apperr.ErrInvalidInput)
	}
	if s.cfg.MaxNoteBytes > 0 && len(content) > s.cfg.MaxNoteBytes {
		return fmt.Errorf("noteservice: content exceeds %d bytes: %w", s.cfg.MaxNoteBytes, apperr.ErrTooLarge)
	}
	if _, err := markup.Parse(content); err != nil {
		return invalid(err)
	}
	return nil
}

// detail builds a NoteDetail from a loaded note.
func (s *Service) detail(note *models.Note) (*NoteDetail, error) {
	res, err := parser.Parse([]byte(note.Content))
	if err != nil {
		return nil, invalid(err)
	}
	bl, err := s.db.Backlinks(note.Path)
	if err != nil {
		return nil, err
	}
	title := note.Title
	if title == "" {
		title = res.Title
	}
	d := &NoteDetail{
		Path:      note.Path,
		ID:        note.ID,
		Title:     title,
		Content:   note.Content,
		Checksum:  note.Checksum,
		Tags:      nonNilSlice(note.Tags),
		Resources: make([]ResourceInfo, 0, len(note.Resources)),
		Backlinks: nonNilSlice(bl),
		TodoTotal: res.TodoTotal,
		TodoDone:  res.TodoDone,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
	for _, r := range note.Resources {
		if r != nil {
			d.Resources = append(d.Resources, s.info(r))
		}
	}
	return d, nil
}

func (s *Service) info(r *models.Resource) ResourceInfo {
	h := r.Hash()
	return ResourceInfo{
		ID:       r.ID,
		Mime:     r.Mime,
		FileName: r.FileName,
		Hash:     h,
		Size:     len(r.Data),
		URL:      s.cfg.AttachmentBaseURL + h,
	}
}

func newResource(in ResourceInput) (*models.Resource, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("noteservice: resource is empty: %w", apperr.ErrInvalidInput)
	}
	mime := in.Mime
	if mime == "" {
		mime = strings.SplitN(http.DetectContentType(in.Data), ";", 2)[0]
	}
	return &models.Resource{
		ID:       uuid.NewString(),
		Mime:     mime,
		FileName: in.FileName,
		Data:     in.Data,
	}, nil
}

// invalid marks markup and reconciliation faults as bad input.
func invalid(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, markup.ErrMalformed),
		errors.Is(err, convert.ErrStackUnderflow),
		errors.Is(err, convert.ErrUnclosed),
		errors.Is(err, resource.ErrResourcesExhausted):
		return fmt.Errorf("%w: %w", apperr.ErrUnprocessable, err)
	}
	return err
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
