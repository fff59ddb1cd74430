package convert

import (
	"encoding/base64"
	"strings"

	"github.com/starford/noteml/internal/markup"
	"github.com/starford/noteml/internal/models"
)

// Attribute names of note tags.
const (
	AttrHash    = "hash"
	AttrType    = "type"
	AttrChecked = "checked"
	AttrHint    = "hint"
	AttrCipher  = "cipher"
	AttrLength  = "length"
)

// CryptText replaces the cipher text of an encrypted section.
const CryptText = "[encrypted content]"

// NoteBody turns the note root into a body element preceded by a head.
type NoteBody struct{ Base }

func (NoteBody) InsertBefore(_ markup.Event, note *models.Note, _ Context) []markup.Event {
	title := ""
	if note != nil {
		title = note.Title
	}
	return []markup.Event{
		markup.Start("head"),
		markup.Start("meta", markup.A("http-equiv", "Content-Type"), markup.A("content", "text/html; charset=UTF-8")),
		markup.EmptyEnd("meta"),
		markup.Start("title"),
		markup.Text(title),
		markup.End("title"),
		markup.End("head"),
	}
}

func (NoteBody) ConvertElement(tag markup.Event, _ *models.Note, _ Context) (markup.Event, markup.Event) {
	return tag.Rename("body"), markup.End("body")
}

// TodoCheckbox renders a todo as a disabled checkbox.
type TodoCheckbox struct{ Base }

func (TodoCheckbox) ConvertElement(tag markup.Event, _ *models.Note, _ Context) (markup.Event, markup.Event) {
	attrs := []markup.Attr{markup.A("type", "checkbox")}
	if v, _ := tag.AttrValue(AttrChecked); strings.EqualFold(v, "true") {
		attrs = append(attrs, markup.A("checked", "checked"))
	}
	attrs = append(attrs, markup.A("disabled", "disabled"))
	return markup.Start("input", attrs...), markup.EmptyEnd("input")
}

// CryptPlaceholder hides encrypted content behind a fixed placeholder.
type CryptPlaceholder struct{ Base }

func (CryptPlaceholder) ConvertElement(tag markup.Event, _ *models.Note, _ Context) (markup.Event, markup.Event) {
	attrs := []markup.Attr{markup.A("class", "en-crypt")}
	if hint, ok := tag.AttrValue(AttrHint); ok {
		attrs = append(attrs, markup.A("data-hint", hint))
	}
	cipher, ok := tag.AttrValue(AttrCipher)
	if !ok {
		cipher = "RC2"
	}
	attrs = append(attrs, markup.A("data-cipher", cipher))
	return markup.Start("div", attrs...), markup.End("div")
}

func (CryptPlaceholder) ConvertCharacter(_, _ markup.Event, _ *models.Note, _ Context) (markup.Event, bool) {
	return markup.Text(CryptText), true
}

// ReferenceMedia renders media as an img, or a link for non-image types,
// pointing at the URL the context holds for the hash.
type ReferenceMedia struct{ Base }

func (ReferenceMedia) ConvertElement(tag markup.Event, note *models.Note, ctx Context) (markup.Event, markup.Event) {
	hash, mime, _ := mediaOf(tag, note)
	url, ok := ctx.URL(hash)
	if !ok {
		url = "#" + hash
	}
	return mediaElement(tag, mime, url)
}

func (ReferenceMedia) InsertIn(tag markup.Event, note *models.Note, _ Context) []markup.Event {
	return linkText(tag, note)
}

// InlineMedia embeds the matching resource payload as a data URI.
type InlineMedia struct{ Base }

func (InlineMedia) ConvertElement(tag markup.Event, note *models.Note, _ Context) (markup.Event, markup.Event) {
	hash, mime, res := mediaOf(tag, note)
	if res == nil {
		return markup.Start("img", markup.A("alt", "missing resource "+hash)), markup.EmptyEnd("img")
	}
	return mediaElement(tag, mime, DataURI(mime, res.Data))
}

func (InlineMedia) InsertIn(tag markup.Event, note *models.Note, _ Context) []markup.Event {
	if _, _, res := mediaOf(tag, note); res == nil {
		return nil
	}
	return linkText(tag, note)
}

// DataURI returns a base64 data URI for payload.
func DataURI(mime string, payload []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

// mediaOf returns the hash and MIME type a media tag refers to, and the
// matching resource if the note has one. A missing type attribute falls
// back to the resource type.
func mediaOf(tag markup.Event, note *models.Note) (hash, mime string, res *models.Resource) {
	hash, _ = tag.AttrValue(AttrHash)
	mime, _ = tag.AttrValue(AttrType)
	if note != nil {
		res = note.ResourceByHash(hash)
	}
	if mime == "" && res != nil {
		mime = res.Mime
	}
	return hash, mime, res
}

func mediaElement(tag markup.Event, mime, url string) (markup.Event, markup.Event) {
	rest := tag.WithoutAttrs(AttrHash, AttrType).Attrs
	if models.IsImageMime(mime) {
		attrs := append([]markup.Attr{markup.A("src", url)}, rest...)
		return markup.Start("img", attrs...), markup.EmptyEnd("img")
	}
	attrs := append([]markup.Attr{markup.A("href", url), markup.A("type", mime)}, rest...)
	return markup.Start("a", attrs...), markup.End("a")
}

// linkText labels non-image links with the resource file name.
func linkText(tag markup.Event, note *models.Note) []markup.Event {
	hash, mime, res := mediaOf(tag, note)
	if models.IsImageMime(mime) {
		return nil
	}
	label := hash
	if res != nil && res.FileName != "" {
		label = res.FileName
	}
	return []markup.Event{markup.Text(label)}
}
