package cli

import (
	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/pkg/scan"
)

// unpack scans and expands matching packages into their artifacts.
func (c *CLI) unpack(cmd *cobra.Command, pattern string, caseSensitive bool) ([]scan.Artifacts, error) {
	ctx := cmd.Context()
	sc, err := c.newScan(ctx)
	if err != nil {
		return nil, err
	}
	pkgs, err := sc.Search(pattern, !caseSensitive)
	if err != nil {
		return nil, err
	}
	return sc.Unpack(pkgs), nil
}

// unpackCommand builds one of the two unpack reports. countOnly reports
// a file count per package; otherwise every file is listed.
func (c *CLI) unpackCommand(use, short string, countOnly bool) *cobra.Command {
	var (
		pattern       string
		caseSensitive bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			artifacts, err := c.unpack(cmd, pattern, caseSensitive)
			if err != nil {
				return err
			}
			unpackTable(artifacts, countOnly).Display()
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&pattern, "pattern", "p", "*", "glob pattern to select packages")
	pf.BoolVar(&caseSensitive, "case", false, "case-sensitive pattern matching")

	cmd.AddCommand(c.writeSubcommand(use, func(cmd *cobra.Command) (*Table, error) {
		artifacts, err := c.unpack(cmd, pattern, caseSensitive)
		if err != nil {
			return nil, err
		}
		return unpackTable(artifacts, countOnly), nil
	}))
	return cmd
}

func (c *CLI) unpackCountCommand() *cobra.Command {
	return c.unpackCommand("unpack-count", "Report artifact counts of scanned packages", true)
}

func (c *CLI) unpackFilesCommand() *cobra.Command {
	return c.unpackCommand("unpack-files", "Report artifacts of scanned packages", false)
}
