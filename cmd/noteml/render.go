package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/noteml/internal/convert"
	"github.com/starford/noteml/internal/htmlutil"
	"github.com/starford/noteml/internal/models"
	"github.com/starford/noteml/internal/processor"
	"github.com/starford/noteml/internal/storage"
	"github.com/starford/noteml/internal/vault"
)

const exportAttachDir = "attachments"

type renderOptions struct {
	mode     convert.Mode
	outDir   string
	fragment bool
	workers  int
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render notes to XHTML files (all notes when none are named)",
		ArgsUsage: "[NOTE.enml...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "inline", Usage: "Embed resources as data URIs"},
			&cli.BoolFlag{Name: "fragment", Usage: "Write only the body content"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (stdout for a single note when empty)"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Parallel renders (0 = from config or GOMAXPROCS)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			files, err := storage.NewFS(cfg.Vault.Path)
			if err != nil {
				return fmt.Errorf("init storage: %w", err)
			}
			store := vault.New(files)

			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				metas, err := store.List()
				if err != nil {
					return err
				}
				for _, m := range metas {
					paths = append(paths, m.Path)
				}
			}

			opts := renderOptions{
				mode:     cfg.Render.Mode(),
				outDir:   cmd.String("out"),
				fragment: cmd.Bool("fragment"),
				workers:  resolveWorkers(int(cmd.Int("workers")), cfg.Render.Workers),
			}
			if cmd.Bool("inline") {
				opts.mode = convert.ModeInline
			}
			if opts.outDir == "" && len(paths) != 1 {
				return fmt.Errorf("--out is required when rendering %d notes", len(paths))
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
			return renderNotes(ctx, store, processor.New(processor.WithLogger(logger)), paths, opts, os.Stdout)
		},
	}
}

// resolveWorkers picks the render parallelism.
// Priority: flag > config > GOMAXPROCS-based calculation.
func resolveWorkers(flagWorkers, configWorkers int) int {
	if flagWorkers > 0 {
		return flagWorkers
	}
	if configWorkers > 0 {
		return configWorkers
	}
	// GOMAXPROCS is adjusted by automaxprocs in containers.
	return min(max(runtime.GOMAXPROCS(0), 1), 8)
}

// outputPath maps a note path to its file under outDir.
func outputPath(outDir, notePath string) string {
	name := strings.TrimSuffix(notePath, storage.NoteExt) + ".html"
	return filepath.Join(outDir, filepath.FromSlash(name))
}

// renderNotes renders every path. With an output directory, reference
// mode payloads are exported next to the pages and linked relatively.
func renderNotes(ctx context.Context, store *vault.Store, proc *processor.Processor, paths []string, opts renderOptions, stdout io.Writer) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)

	for _, p := range paths {
		g.Go(func() error {
			note, err := store.Load(p)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}

			var buf bytes.Buffer
			if opts.mode == convert.ModeInline {
				err = proc.WriteInlineHTML(gCtx, &buf, note)
			} else {
				err = proc.WriteHTMLByHash(gCtx, &buf, note, exportURLs(note, p, opts.outDir))
			}
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}

			out := buf.String()
			if opts.fragment {
				if out, err = htmlutil.BodyFragment(&buf); err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
			}

			if opts.outDir == "" {
				_, err = io.WriteString(stdout, out)
				return err
			}
			if opts.mode == convert.ModeReference {
				if err := exportResources(opts.outDir, note); err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
			}
			dst := outputPath(opts.outDir, p)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			return os.WriteFile(dst, []byte(out), 0o644)
		})
	}
	return g.Wait()
}

// exportURLs links each resource to its exported copy, relative to the
// page written for notePath. Without an output directory hashes are
// linked as fragments.
func exportURLs(note *models.Note, notePath, outDir string) map[string]string {
	urls := make(map[string]string, len(note.Resources))
	prefix := strings.Repeat("../", strings.Count(path.Clean(notePath), "/")) + exportAttachDir + "/"
	for _, r := range note.Resources {
		if r == nil {
			continue
		}
		h := r.Hash()
		if outDir == "" {
			urls[h] = "#" + h
		} else {
			urls[h] = prefix + h
		}
	}
	return urls
}

// exportResources writes the payloads of note under outDir/attachments.
// Payloads are content addressed, so concurrent writers of the same hash
// write identical bytes.
func exportResources(outDir string, note *models.Note) error {
	if len(note.Resources) == 0 {
		return nil
	}
	dir := filepath.Join(outDir, exportAttachDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, r := range note.Resources {
		if r == nil {
			continue
		}
		dst := filepath.Join(dir, r.Hash())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := os.WriteFile(dst, r.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
