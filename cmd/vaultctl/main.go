// Command vaultctl runs vault ETL operations against the configured database
// without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/JonMunkholm/vaultetl/internal/application"
	"github.com/JonMunkholm/vaultetl/internal/config"
	"github.com/JonMunkholm/vaultetl/internal/core"
	"github.com/JonMunkholm/vaultetl/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	envFile    string
	sqlitePath string
	logLevel   string
}

// cli carries the state shared by every subcommand.
type cli struct {
	lookup func(string) (string, bool)
	opts   globalOptions
	app    *application.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, closeApp := newRootCmd(os.LookupEnv)
	err := root.ExecuteContext(ctx)
	closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The returned func closes the store
// opened by whichever subcommand ran.
func newRootCmd(lookup func(string) (string, bool)) (*cobra.Command, func()) {
	c := &cli{lookup: lookup}

	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Vault ETL command line",
		Long:          "Import PLM metadata exports, restore and verify vault files, and manage vault settings.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&c.opts.envFile, "env-file", "", "Load environment from this file (default: .env if present)")
	root.PersistentFlags().StringVar(&c.opts.sqlitePath, "sqlite", "", "Use the SQLite database at this path instead of DATABASE_URL")
	root.PersistentFlags().StringVar(&c.opts.logLevel, "log-level", "", "Override LOG_LEVEL")

	root.AddCommand(
		c.newImportCmd(),
		c.newRestoreCmd(),
		c.newVerifyCmd(),
		c.newMissingCmd(),
		c.newPathCmd(),
		c.newStatsCmd(),
		c.newLogsCmd(),
		c.newExportCmd(),
		c.newSettingsCmd(),
		c.newResetCmd(),
	)
	return root, c.close
}

// open loads configuration and connects the store. Flags override the
// environment.
func (c *cli) open(ctx context.Context) error {
	if c.opts.envFile != "" {
		if err := godotenv.Load(c.opts.envFile); err != nil {
			return fmt.Errorf("load %s: %w", c.opts.envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	overrides := map[string]string{}
	if c.opts.sqlitePath != "" {
		overrides["DB_DRIVER"] = "sqlite"
		overrides["SQLITE_PATH"] = c.opts.sqlitePath
	}
	if c.opts.logLevel != "" {
		overrides["LOG_LEVEL"] = c.opts.logLevel
	}

	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		if v, ok := overrides[key]; ok {
			return v, true
		}
		return c.lookup(key)
	})
	if err != nil {
		return err
	}

	// stdout carries command output.
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	app, err := application.Open(ctx, cfg)
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

// printJSON writes v indented to the command's output.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseIDs converts positional file ids.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid file id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
