package cli

import (
	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/pkg/history"
	"github.com/pyvet/pyvet/pkg/osv"
)

// runAudit scans, filters by pattern, and queries the vulnerability
// database for every matching package.
func (c *CLI) runAudit(cmd *cobra.Command, pattern string, caseSensitive bool) (*osv.Report, error) {
	ctx := cmd.Context()
	sc, err := c.newScan(ctx)
	if err != nil {
		return nil, err
	}
	pkgs, err := sc.Search(pattern, !caseSensitive)
	if err != nil {
		return nil, err
	}

	client := osv.NewClient(c.newCacheBackend(ctx), c.cacheDuration())
	client.Logger = c.Logger
	client.SetKeyer(c.newKeyer())

	var spinner *Spinner
	if !c.quiet {
		spinner = newSpinnerWithContext(ctx, "vulnerability searching")
		spinner.Start()
	}
	report := client.Audit(ctx, pkgs)
	if spinner != nil {
		spinner.Stop()
	}

	c.recordHistory(ctx, history.KindAudit, report.Len(), report)
	return report, nil
}

// auditCommand searches known vulnerabilities for scanned packages.
// The default display exits with code 3 when vulnerabilities are found.
func (c *CLI) auditCommand() *cobra.Command {
	var (
		pattern       string
		caseSensitive bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Search for vulnerabilities on packages in the OSV DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.runAudit(cmd, pattern, caseSensitive)
			if err != nil {
				return err
			}
			auditTable(report).Display()
			if report.Len() > 0 {
				return &ExitError{Code: errorExitCode}
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&pattern, "pattern", "p", "*", "glob pattern to select packages")
	pf.BoolVar(&caseSensitive, "case", false, "case-sensitive pattern matching")

	display := &cobra.Command{
		Use:   "display",
		Short: "Display audit results in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.runAudit(cmd, pattern, caseSensitive)
			if err != nil {
				return err
			}
			auditTable(report).Display()
			if report.Len() > 0 {
				return &ExitError{Code: errorExitCode}
			}
			return nil
		},
	}
	cmd.AddCommand(display)
	cmd.AddCommand(c.writeSubcommand("audit", func(cmd *cobra.Command) (*Table, error) {
		report, err := c.runAudit(cmd, pattern, caseSensitive)
		if err != nil {
			return nil, err
		}
		return auditTable(report), nil
	}))
	return cmd
}
