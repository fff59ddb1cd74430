// Package processor is the entry point for rendering notes to XHTML and
// reconciling their media references with their resources.
//
// A Processor holds one converter registry per rendering mode. Both are
// fixed at construction, so a single Processor may render many notes
// concurrently. Reconciliation mutates the note it is given; callers must
// not run it concurrently with other writers of the same note.
package processor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/noteml/internal/convert"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/resource"
)

// Operation names reported to the Observer.
const (
	OpToHTML       = "to_html"
	OpToInlineHTML = "to_inline_html"
	OpUpdate       = "update_resources"
	OpDelete       = "delete_resources"
	OpSync         = "sync_content"
)

// Processor renders and reconciles notes.
type Processor struct {
	reference *convert.Registry
	inline    *convert.Registry
	observer  Observer
}

// Option configures a Processor.
type Option func(*Processor)

// WithConverters overrides reference mode converters. Unset fields keep
// the current converter.
func WithConverters(set convert.Set) Option {
	return func(p *Processor) {
		p.reference = p.reference.With(set)
	}
}

// WithInlineConverters overrides inline mode converters.
func WithInlineConverters(set convert.Set) Option {
	return func(p *Processor) {
		p.inline = p.inline.With(set)
	}
}

// WithObserver installs an operation observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger logs every operation through logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.observer = LogObserver{Logger: logger}
		}
	}
}

// New returns a Processor with the built-in converters.
func New(opts ...Option) *Processor {
	p := &Processor{
		reference: convert.NewRegistry(convert.ModeReference, convert.Set{}),
		inline:    convert.NewRegistry(convert.ModeInline, convert.Set{}),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the registry used for mode.
func (p *Processor) Registry(mode convert.Mode) *convert.Registry {
	if mode == convert.ModeInline {
		return p.inline
	}
	return p.reference
}

func (p *Processor) observe(op string, note *models.Note) func(error) {
	id := ""
	if note != nil {
		id = note.ID
	}
	return p.observer.Observe(op, id)
}

// NoteToHTML renders note in reference mode. urls maps resource ids to
// the URLs media tags should point at.
func (p *Processor) NoteToHTML(ctx context.Context, note *models.Note, urls map[string]string) (string, error) {
	var b strings.Builder
	if err := p.WriteHTML(ctx, &b, note, urls); err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteHTML renders note in reference mode into w.
func (p *Processor) WriteHTML(ctx context.Context, w io.Writer, note *models.Note, urls map[string]string) error {
	return p.WriteHTMLByHash(ctx, w, note, resource.URLsByID(note, urls))
}

// WriteHTMLByHash renders note in reference mode with URLs keyed by body
// hash.
func (p *Processor) WriteHTMLByHash(ctx context.Context, w io.Writer, note *models.Note, urls map[string]string) (err error) {
	done := p.observe(OpToHTML, note)
	defer func() { done(err) }()
	if err = ctx.Err(); err != nil {
		return err
	}
	return p.render(w, p.reference, note, convert.Context(urls))
}

// NoteToInlineHTML renders note with every resource embedded.
func (p *Processor) NoteToInlineHTML(ctx context.Context, note *models.Note) (string, error) {
	var b strings.Builder
	if err := p.WriteInlineHTML(ctx, &b, note); err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteInlineHTML renders note with every resource embedded into w.
func (p *Processor) WriteInlineHTML(ctx context.Context, w io.Writer, note *models.Note) (err error) {
	done := p.observe(OpToInlineHTML, note)
	defer func() { done(err) }()
	if err = ctx.Err(); err != nil {
		return err
	}
	return p.render(w, p.inline, note, nil)
}

// render buffers the document so a failed conversion writes nothing to w.
func (p *Processor) render(w io.Writer, reg *convert.Registry, note *models.Note, urls convert.Context) error {
	var buf bytes.Buffer
	if err := convert.Transform(strings.NewReader(note.Content), &buf, reg, note, urls); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// UpdateResourcesByHash replaces resources keyed by the hash they
// currently have in the markup.
func (p *Processor) UpdateResourcesByHash(ctx context.Context, note *models.Note, replacements map[string]*models.Resource, deleteMissing bool) (err error) {
	done := p.observe(OpUpdate, note)
	defer func() { done(err) }()
	if err = ctx.Err(); err != nil {
		return err
	}
	return resource.UpdateByHash(note, replacements, deleteMissing)
}

// UpdateResources replaces old resources with new ones.
func (p *Processor) UpdateResources(ctx context.Context, note *models.Note, pairs map[*models.Resource]*models.Resource, deleteMissing bool) error {
	return p.UpdateResourcesByHash(ctx, note, resource.ReplacementsByResource(pairs), deleteMissing)
}

// UpdateResourcesByID replaces resources by id. Both ids of a pair must
// belong to resources already attached to note.
func (p *Processor) UpdateResourcesByID(ctx context.Context, note *models.Note, ids map[string]string, deleteMissing bool) error {
	return p.UpdateResourcesByHash(ctx, note, resource.ReplacementsByID(note, ids), deleteMissing)
}

// DeleteResourcesByHash removes resources and unlinks media tags.
func (p *Processor) DeleteResourcesByHash(ctx context.Context, note *models.Note, hashes resource.HashSet) (err error) {
	done := p.observe(OpDelete, note)
	defer func() { done(err) }()
	if err = ctx.Err(); err != nil {
		return err
	}
	return resource.DeleteByHash(note, hashes)
}

// DeleteResources removes the given resources.
func (p *Processor) DeleteResources(ctx context.Context, note *models.Note, resources []*models.Resource) error {
	return p.DeleteResourcesByHash(ctx, note, resource.HashesOf(resources))
}

// DeleteResourcesByID removes the note resources with the given ids.
func (p *Processor) DeleteResourcesByID(ctx context.Context, note *models.Note, ids []string) error {
	return p.DeleteResourcesByHash(ctx, note, resource.HashesByID(note, ids))
}

// SyncContent renumbers media tags against the resource list and returns
// the number of unused resources.
func (p *Processor) SyncContent(ctx context.Context, note *models.Note) (left int, err error) {
	done := p.observe(OpSync, note)
	defer func() { done(err) }()
	if err = ctx.Err(); err != nil {
		return 0, err
	}
	return resource.SyncContent(note)
}
