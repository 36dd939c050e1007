package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"paycore/internal/domain/payroll"
)

func newComputeCommand(opts *globalOptions) *cobra.Command {
	var pdfPath, currency string
	cmd := &cobra.Command{
		Use:   "compute FILE",
		Short: "Compute one bulletin from a JSON or TOML input file",
		Long: `Compute reads one employee period input and prints the bulletin as
JSON. Use "-" to read JSON from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := readInputs(args[0])
			if err != nil {
				return err
			}
			if len(payloads) != 1 {
				return fmt.Errorf("compute expects exactly one input, got %d; use batch", len(payloads))
			}
			in, err := payloads[0].ToInput()
			if err != nil {
				return err
			}
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			bulletin, err := engine.Compute(cmd.Context(), in)
			if err != nil {
				return err
			}
			if pdfPath != "" {
				var buf bytes.Buffer
				if err := payroll.RenderPayslip(&buf, bulletin, currency); err != nil {
					return err
				}
				if err := os.WriteFile(pdfPath, buf.Bytes(), 0o644); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), bulletin)
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "also write the payslip PDF to this path")
	cmd.Flags().StringVar(&currency, "currency", "XAF", "currency label printed on the payslip")
	return cmd
}

func newBatchCommand(opts *globalOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Compute bulletins for many employees",
		Long: `Batch reads a JSON array or a TOML file with [[employees]] tables and
prints the succeeded bulletins and failures. Inputs that fail validation are
reported as failures and do not stop the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := readInputs(args[0])
			if err != nil {
				return err
			}
			if len(payloads) == 0 {
				return errors.New("batch input is empty")
			}
			inputs := make([]payroll.EmployeePeriodInput, 0, len(payloads))
			var rejected []payroll.Failure
			for _, p := range payloads {
				in, err := p.ToInput()
				if err != nil {
					rejected = append(rejected, payroll.Failure{EmployeeID: p.EmployeeID, Reason: err.Error(), Err: err})
					continue
				}
				inputs = append(inputs, in)
			}

			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			result := payroll.BatchResult{Succeeded: []payroll.Bulletin{}, Failed: []payroll.Failure{}}
			if len(inputs) > 0 {
				result = engine.ComputeMany(cmd.Context(), inputs)
			}
			result.Failed = append(rejected, result.Failed...)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if strict && len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d bulletins failed", len(result.Failed), len(payloads))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any bulletin fails")
	return cmd
}
