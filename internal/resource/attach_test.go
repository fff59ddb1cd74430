package resource

import (
	"errors"
	"testing"

	"github.com/starford/noteml/internal/markup"
)

func TestAttachEmbed(t *testing.T) {
	r := res("1", "image/png", "one")
	n := note(`<div>text</div>`)

	got, err := Attach(n, r, true)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if got != r || len(n.Resources) != 1 {
		t.Errorf("resources = %v", n.Resources)
	}
	want := `<en-note><div>text</div><en-media hash="` + r.Hash() + `" type="image/png"/></en-note>`
	if n.Content != want {
		t.Errorf("content = %s\nwant %s", n.Content, want)
	}
}

func TestAttachSameBodyReusesResource(t *testing.T) {
	first := res("1", "image/png", "one")
	n := note(media(first.Hash(), "image/png"), first)
	before := n.Content

	got, err := Attach(n, res("2", "image/png", "one"), false)
	if err != nil {
		t.Fatal(err)
	}
	if got != first || len(n.Resources) != 1 {
		t.Errorf("got %v, resources %d", got.ID, len(n.Resources))
	}
	if n.Content != before {
		t.Error("content changed without embed")
	}
}

func TestAttachMalformedLeavesNote(t *testing.T) {
	n := note(`<div>`)
	n.Content = `<en-note><div></en-note>`
	_, err := Attach(n, res("1", "image/png", "x"), true)
	if !errors.Is(err, markup.ErrMalformed) {
		t.Errorf("err = %v", err)
	}
	if len(n.Resources) != 0 {
		t.Error("resource attached despite failure")
	}
}
