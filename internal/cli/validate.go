package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/pkg/history"
	"github.com/pyvet/pyvet/pkg/validate"
)

// boundFlags are the shared flags for commands that reconcile against
// bound requirements.
type boundFlags struct {
	bound        string
	boundOptions []string
	subset       bool
	superset     bool
}

func (b *boundFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&b.bound, "bound", "b", "", "file path or URL from which to read bound requirements")
	pf.StringSliceVar(&b.boundOptions, "bound-options", nil, "names of additional optional dependency groups")
	pf.BoolVar(&b.subset, "subset", false, "permit observed packages to be a subset of the bound requirements")
	pf.BoolVar(&b.superset, "superset", false, "permit observed packages to be a superset of the bound requirements")
}

// resolve fills unset flags from config and validates that a bound
// source is available.
func (b *boundFlags) resolve(cfg *Config) error {
	if b.bound == "" && cfg != nil {
		b.bound = cfg.Bound
		if len(b.boundOptions) == 0 {
			b.boundOptions = cfg.BoundOptions
		}
	}
	if b.bound == "" {
		return fmt.Errorf("no bound requirements provided: set --bound")
	}
	return nil
}

func (b *boundFlags) flags() validate.Flags {
	return validate.Flags{Superset: b.superset, Subset: b.subset}
}

// reconcile runs the full validation pipeline: scan, load bound
// requirements, read the marker environment, and classify.
func (c *CLI) reconcile(cmd *cobra.Command, b *boundFlags) (*validate.Report, error) {
	ctx := cmd.Context()
	if err := b.resolve(c.config); err != nil {
		return nil, err
	}
	sc, err := c.newScan(ctx)
	if err != nil {
		return nil, err
	}
	m, err := c.newManifest(ctx, b.bound, b.boundOptions)
	if err != nil {
		return nil, err
	}
	env := c.markerEnvironment(ctx, sc)
	report := validate.Reconcile(sc.Packages, m, env, b.flags())

	c.recordHistory(ctx, history.KindValidate, report.Failures(), report.Digest())
	return report, nil
}

// validateCommand reconciles installed packages against bound requirements.
// The default display exits with code 3 when discrepancies are found.
func (c *CLI) validateCommand() *cobra.Command {
	var b boundFlags
	var exitCode int

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate if packages conform to a validation target",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.reconcile(cmd, &b)
			if err != nil {
				return err
			}
			validateTable(report).Display()
			if report.Failures() > 0 {
				return &ExitError{Code: errorExitCode}
			}
			return nil
		},
	}
	b.register(cmd)

	display := &cobra.Command{
		Use:   "display",
		Short: "Display validation results in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.reconcile(cmd, &b)
			if err != nil {
				return err
			}
			validateTable(report).Display()
			if report.Failures() > 0 {
				return &ExitError{Code: errorExitCode}
			}
			return nil
		},
	}

	jsonCmd := &cobra.Command{
		Use:   "json",
		Short: "Print a JSON representation of validation results",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.reconcile(cmd, &b)
			if err != nil {
				return err
			}
			data, err := json.Marshal(report.Digest())
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	exit := &cobra.Command{
		Use:   "exit",
		Short: "Return an exit code, 0 on success, 3 (by default) on error",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.reconcile(cmd, &b)
			if err != nil {
				return err
			}
			if report.Failures() > 0 {
				return &ExitError{Code: exitCode}
			}
			return nil
		},
	}
	exit.Flags().IntVar(&exitCode, "code", errorExitCode, "exit code returned on validation failure")

	cmd.AddCommand(display)
	cmd.AddCommand(jsonCmd)
	cmd.AddCommand(exit)
	cmd.AddCommand(c.writeSubcommand("validation", func(cmd *cobra.Command) (*Table, error) {
		report, err := c.reconcile(cmd, &b)
		if err != nil {
			return nil, err
		}
		return validateTable(report), nil
	}))
	return cmd
}
