package resource

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/noteml/internal/markup"
	"github.com/starford/noteml/internal/models"
)

func res(id, mime, data string) *models.Resource {
	return &models.Resource{ID: id, Mime: mime, Data: []byte(data)}
}

func media(hash, mime string) string {
	return `<en-media type="` + mime + `" hash="` + hash + `"/>`
}

func note(content string, resources ...*models.Resource) *models.Note {
	return &models.Note{ID: "n1", Content: `<en-note>` + content + `</en-note>`, Resources: resources}
}

func hashesOfList(rs []*models.Resource) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Hash())
	}
	return out
}

func TestUpdateByHashEmptyIsNoop(t *testing.T) {
	r1 := res("1", "image/png", "one")
	// Non-canonical spelling must survive untouched.
	n := &models.Note{Content: `<en-note><en-media  hash='` + r1.Hash() + `' type="image/png"></en-media></en-note>`,
		Resources: []*models.Resource{r1}}
	before := n.Content

	if err := UpdateByHash(n, map[string]*models.Resource{}, false); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	if n.Content != before {
		t.Errorf("content changed: %s", n.Content)
	}
	if len(n.Resources) != 1 || n.Resources[0] != r1 {
		t.Errorf("resources changed: %v", n.Resources)
	}
}

func TestUpdateByHashAddsNewResource(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("", "image/png", "two")
	n := note(media(r1.Hash(), "image/png"), r1)

	if err := UpdateByHash(n, map[string]*models.Resource{r1.Hash(): r2}, false); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	want := note(media(r2.Hash(), "image/png")).Content
	if n.Content != want {
		t.Errorf("content = %s, want %s", n.Content, want)
	}
	if len(n.Resources) != 1 || n.Resources[0] != r2 {
		t.Errorf("resources = %v, want [r2]", hashesOfList(n.Resources))
	}
}

func TestUpdateByHashExistingResourceKeepsOld(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("2", "image/png", "two")
	n := note(media(r1.Hash(), "image/png"), r1, r2)

	if err := UpdateByHash(n, map[string]*models.Resource{r1.Hash(): r2}, false); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	if !strings.Contains(n.Content, r2.Hash()) {
		t.Errorf("hash not rewritten: %s", n.Content)
	}
	if len(n.Resources) != 2 {
		t.Errorf("resources = %d, want 2", len(n.Resources))
	}
}

func TestUpdateByHashSharedReplacementAppendedOnce(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("2", "image/png", "two")
	r3 := res("", "image/png", "three")
	n := note(media(r1.Hash(), "image/png")+media(r2.Hash(), "image/png"), r1, r2)

	err := UpdateByHash(n, map[string]*models.Resource{r1.Hash(): r3, r2.Hash(): r3}, false)
	if err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	if strings.Count(n.Content, r3.Hash()) != 2 {
		t.Errorf("both tags should point at r3: %s", n.Content)
	}
	// r3 is appended once and both resources it replaces are dropped.
	got := hashesOfList(n.Resources)
	want := []string{r3.Hash()}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("resources = %v, want %v", got, want)
	}
}

func TestUpdateByHashAttachedReplacementKeepsOldResource(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("2", "image/png", "two")
	n := note(media(r1.Hash(), "image/png")+media(r2.Hash(), "image/png"), r1, r2)

	if err := UpdateByHash(n, map[string]*models.Resource{r1.Hash(): r2}, false); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	if strings.Count(n.Content, r2.Hash()) != 2 {
		t.Errorf("both tags should point at r2: %s", n.Content)
	}
	// r2 was attached before the call, so nothing is appended or removed.
	got := hashesOfList(n.Resources)
	want := []string{r1.Hash(), r2.Hash()}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("resources = %v, want %v", got, want)
	}
}

func TestUpdateByHashDeleteMissing(t *testing.T) {
	r3 := res("3", "image/jpeg", "three")

	keep := note(media(r3.Hash(), "image/jpeg"), r3)
	before := keep.Content
	if err := UpdateByHash(keep, nil, false); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	if keep.Content != before || len(keep.Resources) != 1 {
		t.Errorf("deleteMissing=false changed the note: %s %d", keep.Content, len(keep.Resources))
	}

	drop := note(media(r3.Hash(), "image/jpeg"), r3)
	if err := UpdateByHash(drop, nil, true); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	if drop.Content != `<en-note><en-media type="image/jpeg"/></en-note>` {
		t.Errorf("content = %s", drop.Content)
	}
	if len(drop.Resources) != 0 {
		t.Errorf("resources = %d, want 0", len(drop.Resources))
	}
}

func TestUpdateByHashKeepsOtherMarkup(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("", "image/png", "two")
	n := note(`<div style="a">x<en-media width="5" hash="`+r1.Hash()+`" type="image/png" alt="y"/></div>`, r1)

	if err := UpdateByHash(n, map[string]*models.Resource{r1.Hash(): r2}, false); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	want := `<en-note><div style="a">x<en-media width="5" hash="` + r2.Hash() + `" type="image/png" alt="y"/></div></en-note>`
	if n.Content != want {
		t.Errorf("content = %s\nwant %s", n.Content, want)
	}
}

func TestUpdateByHashKeepsEmptyElements(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("", "image/png", "two")
	n := note(`<div></div><p/><span></span>`+media(r1.Hash(), "image/png"), r1)

	if err := UpdateByHash(n, map[string]*models.Resource{r1.Hash(): r2}, false); err != nil {
		t.Fatalf("UpdateByHash: %v", err)
	}
	want := note(`<div></div><p/><span></span>` + media(r2.Hash(), "image/png")).Content
	if n.Content != want {
		t.Errorf("content = %s\nwant %s", n.Content, want)
	}
}

func TestUpdateByHashMalformedLeavesNote(t *testing.T) {
	r1 := res("1", "image/png", "one")
	n := &models.Note{Content: `<en-note>` + media(r1.Hash(), "image/png") + `<div>`, Resources: []*models.Resource{r1}}
	before := n.Content

	err := UpdateByHash(n, map[string]*models.Resource{r1.Hash(): res("", "image/png", "two")}, false)
	if !errors.Is(err, markup.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if n.Content != before || len(n.Resources) != 1 || n.Resources[0] != r1 {
		t.Error("note modified after a failed update")
	}
}

func TestDeleteByHash(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("2", "application/pdf", "two")
	n := note(media(r1.Hash(), "image/png")+`<p>t</p>`+media(r2.Hash(), "application/pdf"), r1, r2)

	if err := DeleteByHash(n, NewHashSet(r2.Hash())); err != nil {
		t.Fatalf("DeleteByHash: %v", err)
	}
	want := note(media(r1.Hash(), "image/png") + `<p>t</p><en-media type="application/pdf"/>`).Content
	if n.Content != want {
		t.Errorf("content = %s\nwant %s", n.Content, want)
	}
	if len(n.Resources) != 1 || n.Resources[0] != r1 {
		t.Errorf("resources = %v", hashesOfList(n.Resources))
	}
}

func TestDeleteByHashUnknownIsNoop(t *testing.T) {
	r1 := res("1", "image/png", "one")
	n := note(media(r1.Hash(), "image/png"), r1)
	before := n.Content
	if err := DeleteByHash(n, NewHashSet("ffff")); err != nil {
		t.Fatalf("DeleteByHash: %v", err)
	}
	if n.Content != before || len(n.Resources) != 1 {
		t.Error("unknown hash changed the note")
	}
}

func TestSyncContentLeftover(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("2", "application/pdf", "two")
	r3 := res("3", "image/gif", "three")
	n := note(media("old1", "x/y")+`<div>`+media("old2", "x/y")+`</div>`, r1, r2, r3)

	left, err := SyncContent(n)
	if err != nil {
		t.Fatalf("SyncContent: %v", err)
	}
	if left != 1 {
		t.Errorf("leftover = %d, want 1", left)
	}
	want := note(media(r1.Hash(), "image/png") + `<div>` + media(r2.Hash(), "application/pdf") + `</div>`).Content
	if n.Content != want {
		t.Errorf("content = %s\nwant %s", n.Content, want)
	}
	if len(n.Resources) != 3 {
		t.Error("SyncContent must not edit the resource list")
	}
}

func TestSyncContentExhausted(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("2", "image/png", "two")
	n := note(media("a", "x/y")+media("b", "x/y")+media("c", "x/y"), r1, r2)
	before := n.Content

	_, err := SyncContent(n)
	if !errors.Is(err, ErrResourcesExhausted) {
		t.Fatalf("err = %v, want ErrResourcesExhausted", err)
	}
	if n.Content != before {
		t.Errorf("content committed after failure: %s", n.Content)
	}
}

func TestSyncContentAddsMissingType(t *testing.T) {
	r1 := res("1", "image/png", "one")
	n := note(`<en-media hash="zz"/>`, r1)
	if _, err := SyncContent(n); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}
	want := `<en-note><en-media hash="` + r1.Hash() + `" type="image/png"/></en-note>`
	if n.Content != want {
		t.Errorf("content = %s", n.Content)
	}
}

func TestCheck(t *testing.T) {
	r1 := res("1", "image/png", "one")
	r2 := res("2", "image/png", "two")
	n := note(media(r1.Hash(), "image/png")+media("dead", "image/png")+media("dead", "image/png"), r1, r2)

	report, err := Check(n)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(report.Dangling) != 1 || report.Dangling[0] != "dead" {
		t.Errorf("dangling = %v", report.Dangling)
	}
	if len(report.Orphans) != 1 || report.Orphans[0] != r2.Hash() {
		t.Errorf("orphans = %v", report.Orphans)
	}
	if report.OK() {
		t.Error("report should not be OK")
	}
}
