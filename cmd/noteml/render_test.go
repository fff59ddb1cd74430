package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/starford/noteml/internal/convert"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/processor"
	"github.com/starford/noteml/internal/testutil"
	"github.com/starford/noteml/internal/vault"
)

func TestResolveWorkers(t *testing.T) {
	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name          string
		flagWorkers   int
		configWorkers int
		want          int
	}{
		{name: "flag takes priority", flagWorkers: 4, configWorkers: 2, want: 4},
		{name: "config when flag unset", configWorkers: 3, want: 3},
		{name: "auto calculation", want: min(max(gomaxprocs, 1), 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveWorkers(tt.flagWorkers, tt.configWorkers); got != tt.want {
				t.Errorf("resolveWorkers(%d, %d) = %d, want %d", tt.flagWorkers, tt.configWorkers, got, tt.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	got := outputPath("out", "a/b.enml")
	if want := filepath.Join("out", "a", "b.html"); got != want {
		t.Errorf("outputPath = %q, want %q", got, want)
	}
}

func seedVault(t *testing.T) (*vault.Store, *models.Resource) {
	t.Helper()
	_, store := testutil.TestVault(t)
	img := &models.Resource{ID: "r1", Mime: "image/png", Data: testutil.PNG("cat")}
	for _, n := range []*models.Note{
		{ID: "1", Path: "top.enml", Content: "<en-note><div>top</div>" + testutil.Media(img) + "</en-note>", Resources: []*models.Resource{img}},
		{ID: "2", Path: "sub/deep.enml", Content: "<en-note>" + testutil.Media(img) + "</en-note>", Resources: []*models.Resource{img}},
	} {
		if _, err := store.Save(n); err != nil {
			t.Fatal(err)
		}
	}
	return store, img
}

func TestRenderNotes_Export(t *testing.T) {
	store, img := seedVault(t)
	out := t.TempDir()

	opts := renderOptions{mode: convert.ModeReference, outDir: out, workers: 2}
	if err := renderNotes(context.Background(), store, processor.New(), []string{"top.enml", "sub/deep.enml"}, opts, nil); err != nil {
		t.Fatalf("renderNotes: %v", err)
	}

	top, err := os.ReadFile(filepath.Join(out, "top.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(top), `src="attachments/`+img.Hash()+`"`) {
		t.Errorf("top.html = %s", top)
	}
	deep, err := os.ReadFile(filepath.Join(out, "sub", "deep.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(deep), `src="../attachments/`+img.Hash()+`"`) {
		t.Errorf("deep.html = %s", deep)
	}
	payload, err := os.ReadFile(filepath.Join(out, exportAttachDir, img.Hash()))
	if err != nil || !bytes.Equal(payload, img.Data) {
		t.Errorf("exported payload mismatch: %v", err)
	}
}

func TestRenderNotes_InlineFragmentStdout(t *testing.T) {
	store, _ := seedVault(t)

	var buf bytes.Buffer
	opts := renderOptions{mode: convert.ModeInline, fragment: true, workers: 1}
	if err := renderNotes(context.Background(), store, processor.New(), []string{"top.enml"}, opts, &buf); err != nil {
		t.Fatalf("renderNotes: %v", err)
	}
	got := buf.String()
	if strings.Contains(got, "<body") || !strings.Contains(got, "data:image/png;base64,") {
		t.Errorf("fragment = %s", got)
	}
}

func TestRenderNotes_Missing(t *testing.T) {
	store, _ := seedVault(t)
	opts := renderOptions{mode: convert.ModeInline, workers: 1}
	err := renderNotes(context.Background(), store, processor.New(), []string{"nope.enml"}, opts, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "nope.enml") {
		t.Errorf("err = %v, want error naming the note", err)
	}
}

func TestCheckVault(t *testing.T) {
	store, img := seedVault(t)

	var buf bytes.Buffer
	if err := checkVault(store, &buf); err != nil {
		t.Fatalf("consistent vault: %v, output %s", err, buf.String())
	}

	orphan := &models.Note{ID: "3", Path: "orphan.enml", Content: "<en-note/>", Resources: []*models.Resource{img}}
	if _, err := store.Save(orphan); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	err := checkVault(store, &buf)
	if !errors.Is(err, errBroken) {
		t.Fatalf("err = %v, want errBroken", err)
	}
	if !strings.HasPrefix(buf.String(), "orphan.enml: dangling=[] orphans=["+img.Hash()) {
		t.Errorf("output = %q", buf.String())
	}
}
