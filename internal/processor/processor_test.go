package processor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/starford/noteml/internal/convert"
	"github.com/starford/noteml/internal/markup"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/resource"
)

const doctype = `<!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd">`

func sampleNote() (*models.Note, *models.Resource, *models.Resource) {
	img := &models.Resource{ID: "img", Mime: "image/png", Data: []byte("png-bytes")}
	pdf := &models.Resource{ID: "pdf", Mime: "application/pdf", FileName: "a.pdf", Data: []byte("pdf-bytes")}
	n := &models.Note{
		ID:    "note-1",
		Title: "Sample",
		Content: doctype + `<en-note><en-media type="image/png" hash="` + img.Hash() + `"/>` +
			`<en-media type="application/pdf" hash="` + pdf.Hash() + `"/></en-note>`,
		Resources: []*models.Resource{img, pdf},
	}
	return n, img, pdf
}

type recorder struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (r *recorder) Observe(op, noteID string) func(error) {
	return func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.ops = append(r.ops, op+":"+noteID)
		r.errs = append(r.errs, err)
	}
}

func TestNoteToHTMLByID(t *testing.T) {
	n, _, _ := sampleNote()
	p := New()

	out, err := p.NoteToHTML(context.Background(), n, map[string]string{"img": "/files/img", "pdf": "/files/pdf"})
	if err != nil {
		t.Fatalf("NoteToHTML: %v", err)
	}
	for _, want := range []string{
		convert.XHTMLDoctype,
		`<html xmlns="http://www.w3.org/1999/xhtml">`,
		`<title>Sample</title>`,
		`<img src="/files/img"/>`,
		`<a href="/files/pdf" type="application/pdf">a.pdf</a>`,
		`</body></html>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s\n%s", want, out)
		}
	}
}

func TestNoteToInlineHTML(t *testing.T) {
	n, img, _ := sampleNote()
	out, err := New().NoteToInlineHTML(context.Background(), n)
	if err != nil {
		t.Fatalf("NoteToInlineHTML: %v", err)
	}
	if !strings.Contains(out, convert.DataURI("image/png", img.Data)) {
		t.Errorf("image not inlined: %s", out)
	}
}

func TestCustomConverterOverride(t *testing.T) {
	n, _, _ := sampleNote()
	p := New(WithConverters(convert.Set{Note: plainNote{}}))

	out, err := p.NoteToHTML(context.Background(), n, nil)
	if err != nil {
		t.Fatalf("NoteToHTML: %v", err)
	}
	if !strings.Contains(out, `<main>`) || strings.Contains(out, "<body") {
		t.Errorf("override not applied: %s", out)
	}
	if _, ok := p.Registry(convert.ModeInline).Get(convert.TagNote).(convert.NoteBody); !ok {
		t.Error("inline registry should keep the default note converter")
	}
}

type plainNote struct{ convert.Base }

func (plainNote) ConvertElement(markup.Event, *models.Note, convert.Context) (markup.Event, markup.Event) {
	return markup.Start("main"), markup.End("main")
}

func TestRenderFailureWritesNothing(t *testing.T) {
	n := &models.Note{ID: "bad", Content: `<en-note><div></en-note>`}
	var buf bytes.Buffer
	err := New().WriteInlineHTML(context.Background(), &buf, n)
	if !errors.Is(err, markup.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if buf.Len() != 0 {
		t.Errorf("partial output written: %q", buf.String())
	}
}

func TestUpdateResourcesByID(t *testing.T) {
	n, img, pdf := sampleNote()
	rec := &recorder{}
	p := New(WithObserver(rec))

	if err := p.UpdateResourcesByID(context.Background(), n, map[string]string{"img": "pdf"}, false); err != nil {
		t.Fatalf("UpdateResourcesByID: %v", err)
	}
	if strings.Contains(n.Content, img.Hash()) {
		t.Errorf("old hash still referenced: %s", n.Content)
	}
	if strings.Count(n.Content, pdf.Hash()) != 2 {
		t.Errorf("content = %s", n.Content)
	}
	if len(rec.ops) != 1 || rec.ops[0] != OpUpdate+":note-1" || rec.errs[0] != nil {
		t.Errorf("observer saw %v %v", rec.ops, rec.errs)
	}
}

func TestUpdateResourcesByResource(t *testing.T) {
	n, img, _ := sampleNote()
	repl := &models.Resource{Mime: "image/png", Data: []byte("new-png")}

	if err := New().UpdateResources(context.Background(), n, map[*models.Resource]*models.Resource{img: repl}, false); err != nil {
		t.Fatalf("UpdateResources: %v", err)
	}
	if n.ResourceByHash(img.Hash()) != nil {
		t.Error("old resource still attached")
	}
	if n.ResourceByHash(repl.Hash()) != repl {
		t.Error("replacement not attached")
	}
}

func TestDeleteResourcesByID(t *testing.T) {
	n, img, pdf := sampleNote()
	if err := New().DeleteResourcesByID(context.Background(), n, []string{"pdf"}); err != nil {
		t.Fatalf("DeleteResourcesByID: %v", err)
	}
	if len(n.Resources) != 1 || n.Resources[0] != img {
		t.Errorf("resources = %v", n.Resources)
	}
	if strings.Contains(n.Content, pdf.Hash()) {
		t.Errorf("content still references pdf: %s", n.Content)
	}
}

func TestDeleteResources(t *testing.T) {
	n, img, _ := sampleNote()
	if err := New().DeleteResources(context.Background(), n, []*models.Resource{img}); err != nil {
		t.Fatalf("DeleteResources: %v", err)
	}
	if n.ResourceByID("img") != nil {
		t.Error("img still attached")
	}
}

func TestSyncContentObserved(t *testing.T) {
	n, _, _ := sampleNote()
	n.Resources = n.Resources[:1]
	rec := &recorder{}

	_, err := New(WithObserver(rec)).SyncContent(context.Background(), n)
	if !errors.Is(err, resource.ErrResourcesExhausted) {
		t.Fatalf("err = %v, want ErrResourcesExhausted", err)
	}
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], resource.ErrResourcesExhausted) {
		t.Errorf("observer errors = %v", rec.errs)
	}
}

func TestCancelledContext(t *testing.T) {
	n, _, _ := sampleNote()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := n.Content

	if _, err := New().NoteToHTML(ctx, n, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("NoteToHTML err = %v", err)
	}
	if err := New().UpdateResourcesByHash(ctx, n, nil, true); !errors.Is(err, context.Canceled) {
		t.Errorf("UpdateResourcesByHash err = %v", err)
	}
	if n.Content != before {
		t.Error("cancelled call modified the note")
	}
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	n, _, _ := sampleNote()

	if _, err := New(WithLogger(logger)).NoteToInlineHTML(context.Background(), n); err != nil {
		t.Fatalf("NoteToInlineHTML: %v", err)
	}
	line := buf.String()
	for _, want := range []string{`"op":"to_inline_html"`, `"note_id":"note-1"`, `"elapsed"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestConcurrentRendering(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _, _ := sampleNote()
			if _, err := p.NoteToInlineHTML(context.Background(), n); err != nil {
				t.Errorf("NoteToInlineHTML: %v", err)
			}
		}()
	}
	wg.Wait()
}
