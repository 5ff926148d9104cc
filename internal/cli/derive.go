package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/pkg/manifest"
)

// deriveCommand produces bound requirements from installed packages,
// anchored at the lower or upper end of observed versions.
func (c *CLI) deriveCommand() *cobra.Command {
	var (
		anchor string
		output string
	)
	derive := func(cmd *cobra.Command) (*manifest.Manifest, error) {
		sc, err := c.newScan(cmd.Context())
		if err != nil {
			return nil, err
		}
		a, err := parseAnchor(anchor)
		if err != nil {
			return nil, err
		}
		obs := make([]manifest.Observed, len(sc.Packages))
		for i, p := range sc.Packages {
			obs[i] = manifest.Observed{Name: p.Name, Version: p.Version.String()}
		}
		return manifest.FromObserved(obs, a)
	}

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive new requirements from discovered packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := derive(cmd)
			if err != nil {
				return err
			}
			deriveTable(m).Display()
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&anchor, "anchor", "a", "", "bound anchor for derived requirements: lower, upper")
	_ = cmd.MarkPersistentFlagRequired("anchor")

	write := &cobra.Command{
		Use:   "write",
		Short: "Write derived requirements to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := derive(cmd)
			if err != nil {
				return err
			}
			if err := writeRequirements(m, output); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}
	write.Flags().StringVarP(&output, "output", "o", "", "output file")
	_ = write.MarkFlagRequired("output")
	cmd.AddCommand(write)

	return cmd
}

func parseAnchor(s string) (manifest.Anchor, error) {
	switch s {
	case "lower":
		return manifest.AnchorLower, nil
	case "upper":
		return manifest.AnchorUpper, nil
	}
	return 0, fmt.Errorf("unknown anchor %q: expected lower or upper", s)
}
