package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/vaultetl/internal/admin"
	"github.com/JonMunkholm/vaultetl/internal/core"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/spf13/cobra"
)

func (c *cli) newImportCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import metadata exports (.csv, .txt, .json, .md)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]core.ImportResult, 0, len(args))
			for _, path := range args {
				res, err := c.app.Service.Import(cmd.Context(), core.ImportSource{
					Path: path,
					Name: filepath.Base(path),
				}, batchSize)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results = append(results, res)
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per transaction (default: IMPORT_BATCH_SIZE)")
	return cmd
}

func (c *cli) newRestoreCmd() *cobra.Command {
	var req core.RestoreRequest

	cmd := &cobra.Command{
		Use:   "restore FILE_ID...",
		Short: "Copy vault files to a directory or s3://bucket/prefix under their original names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			req.FileIDs = ids
			res, err := c.app.Service.Restore(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&req.Destination, "dest", "", "Destination directory or s3://bucket/prefix (default: default_destination setting)")
	cmd.Flags().StringVar(&req.VaultRoot, "root", "", "Vault root override (default: vault_root setting)")
	return cmd
}

func (c *cli) newVerifyCmd() *cobra.Command {
	var req core.VerifyRequest

	cmd := &cobra.Command{
		Use:   "verify FILE_ID...",
		Short: "Check that vault files exist and record the missing ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			req.FileIDs = ids
			res, err := c.app.Service.Verify(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&req.VaultRoot, "root", "", "Vault root override (default: vault_root setting)")
	return cmd
}

func (c *cli) newMissingCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List missing items recorded by verify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.app.Service.MissingItems(cmd.Context(), store.MissingStatus(strings.ToUpper(status)), limit)
			if err != nil {
				return err
			}
			if items == nil {
				items = []store.MissingItem{}
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}

	cmd.Flags().StringVar(&status, "status", string(store.MissingPending), "PENDING, RESOLVED or IGNORED")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items (default: 100)")
	return cmd
}

func (c *cli) newPathCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "path HEX",
		Short: "Show the physical and logical vault paths for a hex identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Service.PreviewPath(cmd.Context(), args[0], root)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Vault root (default: vault_root setting)")
	return cmd
}

func (c *cli) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show document, file and missing item counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := c.app.Service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func (c *cli) newLogsCmd() *cobra.Command {
	var (
		operation string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the latest ETL log events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := c.app.Service.Events(cmd.Context(), operation, limit)
			if err != nil {
				return err
			}
			if events == nil {
				events = []store.Event{}
			}
			return printJSON(cmd.OutOrStdout(), events)
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "Only events of this operation (import, restore, verify, export, settings, reset)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events (default: 100)")
	return cmd
}

func (c *cli) newExportCmd() *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every file with its physical and logical vault paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			f, err := core.ParseExportFormat(format)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				var file *os.File
				file, err = os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer func() {
					if cerr := file.Close(); err == nil {
						err = cerr
					}
				}()
				bw := bufio.NewWriter(file)
				defer func() {
					if ferr := bw.Flush(); err == nil {
						err = ferr
					}
				}()
				w = bw
			}

			n, err := c.app.Service.Export(cmd.Context(), w, f)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d files to %s\n", n, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func (c *cli) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change vault settings",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the resolved vault settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := c.app.Service.Settings(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settings)
		},
	}

	set := &cobra.Command{
		Use:       "set KEY VALUE",
		Short:     "Store a vault setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: core.SettingKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Service.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			settings, err := c.app.Service.Settings(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settings)
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

var errResetNotConfirmed = errors.New("reset deletes all imported data; pass --yes to confirm")

func (c *cli) newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all documents, files, missing items and log events",
		Long:  "Delete all imported data so exports can be loaded again from scratch. Settings are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errResetNotConfirmed
			}
			r := &admin.Resetter{Store: c.app.Store}
			if err := r.ResetAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database reset")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
