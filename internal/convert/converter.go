// Package convert rewrites note markup into XHTML.
//
// Each of the four special note tags is handled by a Converter looked up
// in a Registry. The Engine streams a document once, asks the converter of
// every registered tag for its replacement element and for any events to
// insert around and inside it, and passes everything else through.
package convert

import (
	"github.com/starford/noteml/internal/markup"
	"github.com/starford/noteml/internal/models"
)

// Context maps resource body hashes to URLs. It may be nil.
type Context map[string]string

// URL returns the URL registered for hash.
func (c Context) URL(hash string) (string, bool) {
	if c == nil {
		return "", false
	}
	u, ok := c[hash]
	return u, ok
}

// Converter rewrites one kind of note tag.
//
// Every method receives the original start event of the tag being
// converted. Returned slices may be nil.
type Converter interface {
	// InsertBefore returns events written before the converted start tag.
	InsertBefore(tag markup.Event, note *models.Note, ctx Context) []markup.Event
	// ConvertElement returns the replacement start and end events.
	ConvertElement(tag markup.Event, note *models.Note, ctx Context) (start, end markup.Event)
	// InsertIn returns events written right after the converted start tag.
	InsertIn(tag markup.Event, note *models.Note, ctx Context) []markup.Event
	// InsertAfter returns events written right after the converted end tag.
	InsertAfter(tag markup.Event, note *models.Note, ctx Context) []markup.Event
	// ConvertCharacter may replace text that directly follows the start
	// tag. ok=false keeps the original text.
	ConvertCharacter(text, enclosing markup.Event, note *models.Note, ctx Context) (replacement markup.Event, ok bool)
}

// Base is a Converter that keeps the element and inserts nothing.
// Embed it to override only some of the methods.
type Base struct{}

var _ Converter = Base{}

func (Base) InsertBefore(markup.Event, *models.Note, Context) []markup.Event { return nil }

func (Base) ConvertElement(tag markup.Event, _ *models.Note, _ Context) (markup.Event, markup.Event) {
	return tag, markup.End(tag.Name)
}

func (Base) InsertIn(markup.Event, *models.Note, Context) []markup.Event { return nil }

func (Base) InsertAfter(markup.Event, *models.Note, Context) []markup.Event { return nil }

func (Base) ConvertCharacter(markup.Event, markup.Event, *models.Note, Context) (markup.Event, bool) {
	return markup.Event{}, false
}
