package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/debemdeboas/quill/internal/render"
	"github.com/spf13/cobra"
)

func (c *cli) importCmd() *cobra.Command {
	var theme string

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Create a post from every Markdown file in a directory",
		Long: `Create a post from every .md file in dir. The title comes from the front
matter when present and from the file name otherwise. Files that fail are
reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			dir := args[0]
			files, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("reading directory %s: %w", dir, err)
			}

			var total, failed int
			for _, file := range files {
				if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
					continue
				}
				total++

				if err := c.importFile(ctx, filepath.Join(dir, file.Name()), theme); err != nil {
					failed++
					c.log.Error().Err(err).Str("file", file.Name()).Msg("Error importing file")
					continue
				}
				c.log.Info().Str("file", file.Name()).Msg("Imported post")
			}

			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("Imported %d of %d files", total-failed, total)))
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, total)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&theme, "highlight-theme", render.DefaultHighlightTheme, "Syntax highlighting theme for code blocks")
	return cmd
}

func (c *cli) importFile(ctx context.Context, path, theme string) error {
	md, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	res := render.RenderMarkdown(md, theme)
	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".md")
	}

	if err := c.ws.BeginCreate(); err != nil {
		return err
	}
	if err := c.ws.Save(ctx, title, string(res.HTML), nil); err != nil {
		c.ws.Cancel()
		return err
	}
	return nil
}
