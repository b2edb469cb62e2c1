package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/render"
	"github.com/spf13/cobra"
)

// contentFlags are the post fields accepted by create and edit.
type contentFlags struct {
	title    string
	body     string
	markdown string
	image    string
	theme    string
}

func (f *contentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Post title")
	cmd.Flags().StringVarP(&f.body, "body", "b", "", "Post body as HTML")
	cmd.Flags().StringVarP(&f.markdown, "markdown", "m", "", "Markdown file rendered into the body")
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "Image file attached to the post")
	cmd.Flags().StringVar(&f.theme, "highlight-theme", render.DefaultHighlightTheme, "Syntax highlighting theme for code blocks")
	cmd.MarkFlagsMutuallyExclusive("body", "markdown")
}

// resolve returns the title and body to save. A Markdown file supplies the
// body and, through its front matter, a default title.
func (f *contentFlags) resolve() (title, body string, err error) {
	title, body = f.title, f.body
	if f.markdown == "" {
		return title, body, nil
	}

	md, err := os.ReadFile(f.markdown)
	if err != nil {
		return "", "", fmt.Errorf("reading markdown: %w", err)
	}
	res := render.RenderMarkdown(md, f.theme)
	if title == "" {
		title = res.Title
	}
	return title, string(res.HTML), nil
}

func (f *contentFlags) asset() (*model.Asset, error) {
	if f.image == "" {
		return nil, nil
	}
	return readAsset(f.image)
}

func readAsset(path string) (*model.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &model.Asset{Name: filepath.Base(path), MIMEType: mimeType, Data: data}, nil
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List posts, newest first",
		Args:    cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			printDocuments(cmd.OutOrStdout(), c.ws.Content.Documents(), c.ws.Session.CanModify)
			return nil
		}),
	}
}

func (c *cli) createCmd() *cobra.Command {
	var f contentFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			title, body, err := f.resolve()
			if err != nil {
				return err
			}
			asset, err := f.asset()
			if err != nil {
				return err
			}

			if err := c.ws.BeginCreate(); err != nil {
				return err
			}
			return c.ws.Save(ctx, title, body, asset)
		}),
	}

	f.bind(cmd)
	return cmd
}

func (c *cli) editCmd() *cobra.Command {
	var f contentFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a post you authored",
		Long:  "Edit a post you authored. Fields not given keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id := model.DocumentID(args[0])
			if err := c.ws.BeginEdit(id); err != nil {
				return err
			}

			title, body, err := f.resolve()
			if err != nil {
				return err
			}
			asset, err := f.asset()
			if err != nil {
				return err
			}

			current := c.ws.Content.Target().Document
			if title == "" {
				title = current.Title
			}
			if body == "" {
				body = current.Body
			}
			return c.ws.Save(ctx, title, body, asset)
		}),
	}

	f.bind(cmd)
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a post you authored",
		Args:    cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id := model.DocumentID(args[0])
			if err := c.ws.Remove(ctx, id, yes); err != nil {
				return err
			}
			if !yes {
				doc, _ := c.ws.Content.Find(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
					mutedStyle.Render("Pass --yes to delete"),
					titleStyle.Render(doc.Title))
			}
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}
