package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/admin"
	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/spf13/cobra"
)

func (c *cli) listCmd() *cobra.Command {
	var (
		f      core.Filter
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the products in the sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			_, store, closeApp, err := c.session(ctx)
			if err != nil {
				return err
			}
			defer closeApp()

			if status != "" {
				f.Status = core.ParseStatus(status)
			}
			records := core.FilterRecords(store.Records(), f)
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			return c.printTable(store, records)
		},
	}
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "Match name or description (case-insensitive)")
	cmd.Flags().StringVar(&f.Category, "category", "", "Only products in this category")
	cmd.Flags().StringVar(&status, "status", "", "Only products with this status ("+statusNames+")")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func (c *cli) printTable(store *core.RecordStore, records []core.Record) error {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD ID\tNAME\tPRICE\tSALE\tSTATUS\tCATEGORIES\tISSUES")
	for _, r := range records {
		issues := ""
		if v := store.Issues(r.Key()); len(v) > 0 {
			issues = fmt.Sprintf("%d", len(v))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RecordID,
			r.Name,
			core.FormatPrice(r.RegularPrice),
			core.FormatPrice(r.SalePrice),
			r.Status.Label(),
			core.JoinCategories(r.Categories),
			issues,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d of %d products\n", len(records), store.Len())
	return nil
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		f      core.Filter
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the products as CSV",
		Long: `Write the products as CSV in the sheet's column order, header first.
Without --output the CSV goes to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			_, store, closeApp, err := c.session(ctx)
			if err != nil {
				return err
			}
			defer closeApp()

			records := core.FilterRecords(store.Records(), f)
			if output == "" || output == "-" {
				return core.WriteCSV(c.out, records)
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := core.WriteCSV(file, records); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(c.errOut, "wrote %d products to %s\n", len(records), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "Match name or description (case-insensitive)")
	cmd.Flags().StringVar(&f.Category, "category", "", "Only products in this category")
	return cmd
}

func (c *cli) improveCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "improve <record-id>",
		Short: "Suggest a better description for a product",
		Long: `Ask the configured text generator for a better description of one
product. The suggestion is printed; with --apply it is written to the sheet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			app, store, closeApp, err := c.session(ctx)
			if err != nil {
				return err
			}
			defer closeApp()

			rec, err := store.Get(args[0])
			if err != nil {
				return err
			}
			text, err := app.Writer.ImproveDescription(ctx, rec)
			if err != nil {
				return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
			}
			fmt.Fprintln(c.out, text)

			if !apply {
				return nil
			}
			if _, err := store.Update(rec.Key(), core.Changes{Description: &text}); err != nil {
				return err
			}
			res, err := store.Commit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.errOut, "updated %s (%d operation(s) committed)\n", rec.RecordID, res.Succeeded())
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the new description to the sheet")
	return cmd
}

func (c *cli) summaryCmd() *cobra.Command {
	var bins int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print price, category and status statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bins < 1 || bins > 100 {
				return errors.New("--bins must be between 1 and 100")
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			_, store, closeApp, err := c.session(ctx)
			if err != nil {
				return err
			}
			defer closeApp()

			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(core.Summarize(store.Records(), bins))
		},
	}
	cmd.Flags().IntVar(&bins, "bins", core.DefaultPriceBins, "Price histogram bins")
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Manage the commit audit trail",
		Long: `Manage the commit audit trail kept in PostgreSQL.

Available subcommands:
  purge - Delete entries older than a retention window`,
	}

	var olderThan time.Duration
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit entries older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.cfg.Database.Enabled() {
				return errors.New("no database configured: set DATABASE_URL")
			}
			if olderThan <= 0 {
				olderThan = c.cfg.Audit.Retention
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			app, err := c.openApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.AuditLog == nil {
				return errors.New("audit log unavailable")
			}

			n, err := admin.PurgeAudit(ctx, app.AuditLog, olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "purged %d %s older than %s\n", n, plural(n, "entry", "entries"), olderThan)
			return nil
		},
	}
	purgeCmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention window (default: AUDIT_RETENTION)")

	auditCmd.AddCommand(purgeCmd)
	return auditCmd
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// statusNames lists the accepted --status values.
var statusNames = func() string {
	names := make([]string, len(core.Statuses))
	for i, s := range core.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}()
