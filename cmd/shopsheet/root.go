package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/application"
	"github.com/JonMunkholm/shopsheet/internal/config"
	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli carries the flags and dependencies shared by every command.
type cli struct {
	out    io.Writer
	errOut io.Writer

	cfg     *config.Config
	openApp func(ctx context.Context, cfg *config.Config) (*application.App, error)

	url       string
	worksheet int
	timeout   time.Duration
	verbose   bool
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{out: out, errOut: errOut, openApp: application.New}
}

func (c *cli) root() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shopsheet",
		Short: "Manage a product catalog kept in a spreadsheet",
		Long: `shopsheet reads and edits a product catalog stored in a Google Sheets
worksheet.

Configuration comes from the environment (and a .env file when present),
the same variables the web server reads. SHEETS_DEFAULT_URL is the sheet
used when --url is not given.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	rootCmd.PersistentFlags().StringVar(&c.url, "url", "", "Spreadsheet URL or id (default: SHEETS_DEFAULT_URL)")
	rootCmd.PersistentFlags().IntVar(&c.worksheet, "worksheet", 0, "Zero-based worksheet index")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 2*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(c.listCmd())
	rootCmd.AddCommand(c.exportCmd())
	rootCmd.AddCommand(c.improveCmd())
	rootCmd.AddCommand(c.summaryCmd())
	rootCmd.AddCommand(c.importCmd())
	rootCmd.AddCommand(c.repriceCmd())
	rootCmd.AddCommand(c.auditCmd())
	return rootCmd
}

// setup loads configuration once and points the default logger at stderr so
// stdout carries only command output.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.cfg == nil {
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		c.cfg = cfg
	}

	level := c.cfg.Logging.Level
	if c.verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(c.errOut, level, c.cfg.Logging.Format))
	return nil
}

// sheetRef resolves the sheet named by the flags.
func (c *cli) sheetRef() (core.SheetRef, error) {
	url := c.url
	if url == "" {
		url = c.cfg.Sheets.DefaultURL
	}
	if url == "" {
		return core.SheetRef{}, errors.New("no sheet given: pass --url or set SHEETS_DEFAULT_URL")
	}
	return core.SheetRef{URL: url, Worksheet: c.worksheet}, nil
}

// session opens the application and loads the sheet into a fresh store.
// The returned close func releases the application.
func (c *cli) session(ctx context.Context) (*application.App, *core.RecordStore, func(), error) {
	ref, err := c.sheetRef()
	if err != nil {
		return nil, nil, nil, err
	}

	app, err := c.openApp(ctx, c.cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store := core.NewRecordStore(app.Sheets, ref,
		core.WithAuditSink(app.AuditSink()),
		core.WithLogger(logging.WithFields(ctx, "command", "cli")),
	)
	if _, err := store.Load(ctx); err != nil {
		app.Close()
		return nil, nil, nil, err
	}
	return app, store, app.Close, nil
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}
