package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/noteml/internal/resource"
	"github.com/starford/noteml/internal/storage"
	"github.com/starford/noteml/internal/vault"
)

var errBroken = errors.New("notes with inconsistent resources found")

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report notes whose media tags and resources disagree",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			files, err := storage.NewFS(cfg.Vault.Path)
			if err != nil {
				return fmt.Errorf("init storage: %w", err)
			}
			return checkVault(vault.New(files), os.Stdout)
		},
	}
}

// checkVault prints one line per inconsistent note and fails if any
// were found.
func checkVault(store *vault.Store, w io.Writer) error {
	metas, err := store.List()
	if err != nil {
		return err
	}
	broken := 0
	for _, m := range metas {
		note, err := store.Load(m.Path)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", m.Path, err)
			broken++
			continue
		}
		report, err := resource.Check(note)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", m.Path, err)
			broken++
			continue
		}
		if report.OK() {
			continue
		}
		broken++
		fmt.Fprintf(w, "%s: dangling=[%s] orphans=[%s]\n", m.Path,
			strings.Join(report.Dangling, ","), strings.Join(report.Orphans, ","))
	}
	if broken > 0 {
		return fmt.Errorf("%w: %d", errBroken, broken)
	}
	return nil
}
