package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *cli) importCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append the rows of a CSV file as new products",
		Long: `Append every valid row of a CSV file to the sheet as a new product.
The header uses the sheet's column names in any order; a Name column is
required. Invalid rows are reported by line and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			_, store, closeApp, err := c.session(ctx)
			if err != nil {
				return err
			}
			defer closeApp()

			res, err := store.ImportCSV(file)
			if err != nil {
				return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
			}
			for _, rej := range res.Rejected {
				fmt.Fprintf(c.errOut, "line %d: %v\n", rej.Line, rej.Err)
			}
			fmt.Fprintf(c.out, "%d rows valid, %d skipped\n", len(res.Staged), len(res.Rejected))
			if dryRun || len(res.Staged) == 0 {
				return nil
			}
			return c.commit(cmd, store)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file without writing to the sheet")
	return cmd
}

func (c *cli) repriceCmd() *cobra.Command {
	var (
		f      core.Filter
		status string
		mode   string
		amount string
		target string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "reprice",
		Short: "Change the prices of many products at once",
		Long: `Change the prices of every product matching the filter flags.

  --mode percent --amount -10   lowers prices by 10%
  --mode amount  --amount 2.50  raises prices by 2.50
  --mode set     --amount 19.99 sets prices to 19.99

Prices never go below zero. Products whose new prices are invalid (a sale
price above the regular price) are reported and left unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			adj := core.PriceAdjustment{Mode: core.PriceMode(mode), Amount: amt, Target: core.PriceTarget(target)}
			if v := adj.Validate(); len(v) > 0 {
				return &core.ValidationError{Violations: v}
			}
			if status != "" {
				f.Status = core.ParseStatus(status)
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			_, store, closeApp, err := c.session(ctx)
			if err != nil {
				return err
			}
			defer closeApp()

			res, err := store.BulkAdjustPrices(f, adj)
			if err != nil {
				return err
			}
			for _, fail := range res.Failed {
				fmt.Fprintf(c.errOut, "%s: %v\n", fail.Key, fail.Err)
			}
			fmt.Fprintf(c.out, "%d matched, %d changed, %d unchanged, %d failed\n",
				res.Matched, res.Changed, res.Unchanged, len(res.Failed))
			if dryRun || res.Changed == 0 {
				return nil
			}
			return c.commit(cmd, store)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(core.PricePercent), "percent, amount or set")
	cmd.Flags().StringVar(&amount, "amount", "", "Percentage, amount or new price")
	cmd.Flags().StringVar(&target, "target", string(core.TargetRegular), "regular, sale or both")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "Match name or description (case-insensitive)")
	cmd.Flags().StringVar(&f.Category, "category", "", "Only products in this category")
	cmd.Flags().StringVar(&status, "status", "", "Only products with this status ("+statusNames+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the changes without writing to the sheet")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// commit writes the store's staged edits and reports the outcome.
func (c *cli) commit(cmd *cobra.Command, store *core.RecordStore) error {
	ctx, cancel := c.context(cmd)
	defer cancel()

	res, err := store.Commit(ctx)
	if err != nil {
		for _, o := range res.Failed() {
			fmt.Fprintf(c.errOut, "%s %s: %v\n", o.Op, o.Key(), o.Err)
		}
		return err
	}
	fmt.Fprintf(c.errOut, "%d operation(s) committed\n", res.Succeeded())
	return nil
}
