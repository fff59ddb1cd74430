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

// Attach adds r to the note resources unless a resource with the same
// body is already attached, and returns the attached resource. With embed
// set, a media tag for it is appended as the last child of the root
// element.
func Attach(note *models.Note, r *models.Resource, embed bool) (*models.Resource, error) {
	if r == nil {
		return nil, errors.New("resource: attach nil resource")
	}
	hash := r.Hash()
	attached := note.ResourceByHash(hash)

	if embed {
		content, err := appendMedia(note.Content, markup.Start(MediaTag,
			markup.A(AttrHash, hash),
			markup.A(AttrType, r.Mime),
		))
		if err != nil {
			return nil, fmt.Errorf("resource: attach: %w", err)
		}
		note.Content = content
	}
	if attached != nil {
		return attached, nil
	}
	note.Resources = append(note.Resources, r)
	return r, nil
}

// appendMedia writes tag as the last child of the root element.
func appendMedia(content string, tag markup.Event) (string, error) {
	var buf bytes.Buffer
	r := markup.NewReader(strings.NewReader(content))
	w := markup.NewWriter(&buf)
	depth := 0
	inserted := false
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch ev.Kind {
		case markup.KindStart:
			depth++
		case markup.KindEnd:
			depth--
			if depth == 0 && !inserted {
				if err := w.WriteAll([]markup.Event{tag, markup.EmptyEnd(MediaTag)}); err != nil {
					return "", err
				}
				inserted = true
			}
		}
		if err := w.Write(ev); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	if !inserted {
		return "", fmt.Errorf("%w: no root element", markup.ErrMalformed)
	}
	return buf.String(), nil
}
