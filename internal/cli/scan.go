package cli

import (
	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/pkg/scan"
)

// scanCommand reports every installed package across interpreters.
func (c *CLI) scanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan environments to report on installed packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := c.newScan(cmd.Context())
			if err != nil {
				return err
			}
			scanTable(sc.Packages).Display()
			return nil
		},
	}
	cmd.AddCommand(c.writeSubcommand("scan", func(cmd *cobra.Command) (*Table, error) {
		sc, err := c.newScan(cmd.Context())
		if err != nil {
			return nil, err
		}
		return scanTable(sc.Packages), nil
	}))
	return cmd
}

// searchCommand filters installed packages by a glob pattern over their
// "name-version" display strings.
func (c *CLI) searchCommand() *cobra.Command {
	var (
		pattern       string
		caseSensitive bool
	)
	search := func(cmd *cobra.Command) ([]scan.Package, error) {
		sc, err := c.newScan(cmd.Context())
		if err != nil {
			return nil, err
		}
		return sc.Search(pattern, !caseSensitive)
	}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search environments to report on installed packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			packages, err := search(cmd)
			if err != nil {
				return err
			}
			scanTable(packages).Display()
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&pattern, "pattern", "p", "*", "glob-like pattern to match packages")
	cmd.PersistentFlags().BoolVar(&caseSensitive, "case", false, "enable case-sensitive pattern matching")

	cmd.AddCommand(c.writeSubcommand("search", func(cmd *cobra.Command) (*Table, error) {
		packages, err := search(cmd)
		if err != nil {
			return nil, err
		}
		return scanTable(packages), nil
	}))
	return cmd
}

// countCommand summarizes discovered executables, sites, and packages.
func (c *CLI) countCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count discovered executables, sites, and packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := c.newScan(cmd.Context())
			if err != nil {
				return err
			}
			countTable(sc).Display()
			return nil
		},
	}
	cmd.AddCommand(c.writeSubcommand("count", func(cmd *cobra.Command) (*Table, error) {
		sc, err := c.newScan(cmd.Context())
		if err != nil {
			return nil, err
		}
		return countTable(sc), nil
	}))
	return cmd
}

// writeSubcommand builds the shared "write" subcommand that stores a
// report as a delimited file.
func (c *CLI) writeSubcommand(parent string, build func(cmd *cobra.Command) (*Table, error)) *cobra.Command {
	var (
		output    string
		delimiter string
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a " + parent + " report to a delimited file",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := build(cmd)
			if err != nil {
				return err
			}
			d, err := delimiterRune(delimiter)
			if err != nil {
				return err
			}
			if err := t.Write(output, d); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", "field delimiter")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
