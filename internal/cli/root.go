package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"paycore/internal/domain/payroll"
)

type globalOptions struct {
	parametersFile string
	catalogFile    string
	timeout        time.Duration
	concurrency    int
	verbose        bool
}

// NewRootCommand builds the paycalc command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "paycalc",
		Short: "Compute Congo payroll bulletins offline",
		Long: `paycalc runs the payroll engine against local files. Statutory
parameters and the pay-line catalog default to the built-in tables and can be
replaced with TOML files.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.parametersFile, "parameters", "", "TOML file with statutory parameters and tax brackets")
	root.PersistentFlags().StringVar(&opts.catalogFile, "catalog", "", "TOML file with pay-line definitions")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Second, "parameter lookup timeout")
	root.PersistentFlags().IntVar(&opts.concurrency, "concurrency", 4, "batch worker count")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine warnings to stderr")

	root.AddCommand(newComputeCommand(opts))
	root.AddCommand(newBatchCommand(opts))
	root.AddCommand(newTaxCommand(opts))
	root.AddCommand(newCatalogCommand(opts))
	return root
}

func Execute() error {
	return NewRootCommand().Execute()
}

func (o *globalOptions) engine(cmd *cobra.Command) (*payroll.Engine, error) {
	level := slog.LevelError
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	engineOpts := []payroll.Option{
		payroll.WithParameterTimeout(o.timeout),
		payroll.WithConcurrency(o.concurrency),
		payroll.WithLogger(logger),
	}
	if o.parametersFile != "" {
		provider, err := payroll.LoadParametersFile(o.parametersFile)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, payroll.WithParameters(provider))
	}
	if o.catalogFile != "" {
		catalog, err := payroll.LoadCatalogFile(o.catalogFile)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, payroll.WithCatalogs(catalog))
	}
	return payroll.NewEngine(engineOpts...), nil
}

// readInputs accepts a JSON object, a JSON array, or a TOML file with either
// top-level input fields or an [[employees]] table array.
func readInputs(path string) ([]payroll.InputPayload, error) {
	raw, err := readSource(path)
	if err != nil {
		return nil, err
	}
	if isTOML(path) {
		var doc struct {
			Employees []payroll.InputPayload `toml:"employees"`
		}
		if _, err := toml.Decode(string(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if len(doc.Employees) > 0 {
			return doc.Employees, nil
		}
		var single payroll.InputPayload
		if _, err := toml.Decode(string(raw), &single); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return []payroll.InputPayload{single}, nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []payroll.InputPayload
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return list, nil
	}
	var single payroll.InputPayload
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []payroll.InputPayload{single}, nil
}

func readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
