package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"paycore/internal/domain/payroll"
)

func newTaxCommand(opts *globalOptions) *cobra.Command {
	var (
		fiscalBase, benefits, charges, parts string
		marital, period, organization        string
		children                             int
	)
	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Compute the monthly IRPP for a fiscal base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := payroll.ParsePeriod(period)
			if err != nil {
				return fmt.Errorf("--period: %w", err)
			}
			base, err := decimal.NewFromString(fiscalBase)
			if err != nil {
				return fmt.Errorf("--fiscal-base: %w", err)
			}
			bik, err := decimal.NewFromString(benefits)
			if err != nil {
				return fmt.Errorf("--benefits: %w", err)
			}
			deductible, err := decimal.NewFromString(charges)
			if err != nil {
				return fmt.Errorf("--charges: %w", err)
			}
			status := payroll.MaritalStatus(strings.ToLower(marital))
			if !status.Valid() {
				return fmt.Errorf("--marital: unknown status %q", marital)
			}
			if children < 0 {
				return fmt.Errorf("--children must not be negative")
			}
			household := payroll.Household{MaritalStatus: status, Children: children}
			if parts != "" {
				override, err := decimal.NewFromString(parts)
				if err != nil {
					return fmt.Errorf("--parts: %w", err)
				}
				household.PartsOverride = &override
			}

			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			snap := engine.LoadSnapshot(cmd.Context(), organization, p)
			tax, err := payroll.ComputeIncomeTax(payroll.TaxInput{
				FiscalBase:        base,
				BenefitsInKind:    bik,
				DeductibleCharges: deductible,
				Household:         household,
			}, snap.Params.TaxParameters())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tax)
		},
	}
	cmd.Flags().StringVar(&fiscalBase, "fiscal-base", "0", "monthly fiscal base")
	cmd.Flags().StringVar(&benefits, "benefits", "0", "monthly benefits in kind")
	cmd.Flags().StringVar(&charges, "charges", "0", "monthly deductible charges")
	cmd.Flags().StringVar(&parts, "parts", "", "family quotient override")
	cmd.Flags().StringVar(&marital, "marital", "single", "single, married, divorced or widowed")
	cmd.Flags().IntVar(&children, "children", 0, "dependent children")
	cmd.Flags().StringVar(&period, "period", "", "pay period as YYYY-MM")
	cmd.Flags().StringVar(&organization, "organization", "", "organization whose parameters apply")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newCatalogCommand(opts *globalOptions) *cobra.Command {
	var period, organization string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the pay-line catalog in computation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := payroll.ParsePeriod(period)
			if err != nil {
				return fmt.Errorf("--period: %w", err)
			}
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			snap := engine.LoadSnapshot(cmd.Context(), organization, p)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tCATEGORY\tMODE\tTAXABLE\tSOCIAL\tACTIVE\tLABEL")
			for _, code := range snap.Catalog.Codes() {
				def, _ := snap.Catalog.Lookup(code)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%t\t%s\n",
					def.Code, def.Category, payroll.ModeName(def.Mode), def.Taxable, def.Social, def.Active, def.Label)
			}
			for _, w := range snap.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Code, w.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "pay period as YYYY-MM")
	cmd.Flags().StringVar(&organization, "organization", "", "organization whose catalog applies")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
