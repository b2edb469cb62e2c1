package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/debemdeboas/quill/internal/app"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/content"
	"github.com/debemdeboas/quill/internal/logger"
	"github.com/debemdeboas/quill/internal/render"
	"github.com/debemdeboas/quill/internal/session"
	"github.com/debemdeboas/quill/internal/workspace"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const envPassword = "QUILL_PASSWORD"

// cli holds the flags shared by every command and the workspace opened for
// the current invocation.
type cli struct {
	configPath string
	tokenFile  string
	logLevel   string

	log      zerolog.Logger
	backends *app.Backends
	ws       *workspace.Workspace
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "quillctl",
		Short: "Manage a Quill site from the command line",
		Long: `quillctl opens the database, session store and asset store named by the
configuration and acts as one client of the site. The session token is
kept in a token file between invocations.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&c.tokenFile, "token-file", "", "File holding the session token (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.listCmd(),
		c.createCmd(),
		c.editCmd(),
		c.deleteCmd(),
		c.importCmd(),
	)
	return rootCmd
}

// run wraps a command body so it executes inside an opened workspace.
// Notices are printed and the session token persisted whatever the outcome.
func (c *cli) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := c.open(ctx); err != nil {
			return err
		}
		defer c.close()

		err := fn(ctx, cmd, args)
		printNotices(cmd.OutOrStdout(), c.ws.Notices.Drain())

		if serr := c.saveToken(); serr != nil && err == nil {
			err = serr
		}
		return err
	}
}

func (c *cli) open(ctx context.Context) error {
	config.LoadEnv()
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf(config.ErrLoadConfigFmt, err)
	}

	c.log = logger.NewWithWriter(os.Stderr, c.logLevel, logger.FormatConsole)
	app.SetLoggers(c.log)
	session.SetLogger(c.log.With().Str("component", "session").Logger())
	content.SetLogger(c.log.With().Str("component", "content").Logger())
	render.SetLogger(c.log.With().Str("component", "render").Logger())

	c.backends, err = app.Open(ctx, cfg)
	if err != nil {
		return err
	}

	token, err := c.loadToken()
	if err != nil {
		c.backends.Close()
		return err
	}

	c.ws, err = c.backends.Factory(c.log).New(ctx, token)
	if err != nil {
		printNotices(os.Stderr, c.ws.Notices.Drain())
		c.backends.Close()
		return err
	}
	return nil
}

func (c *cli) close() {
	if err := c.backends.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Error closing backends")
	}
}

func (c *cli) tokenPath() (string, error) {
	if c.tokenFile != "" {
		return c.tokenFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating token file: %w", err)
	}
	return filepath.Join(dir, "quill", "token"), nil
}

func (c *cli) loadToken() (string, error) {
	path, err := c.tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// saveToken writes the workspace's current token, removing the file once
// the session has ended.
func (c *cli) saveToken() error {
	path, err := c.tokenPath()
	if err != nil {
		return err
	}

	token := c.ws.Token()
	if token == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing token file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// password returns the flag value or, when empty, the QUILL_PASSWORD
// environment variable.
func password(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(envPassword)
}
