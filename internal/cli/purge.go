package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/pkg/scan"
	"github.com/pyvet/pyvet/pkg/validate"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// PackageListModel is the bubbletea model for interactive package
// selection before a purge. Space toggles a package, enter confirms.
type PackageListModel struct {
	Packages  []scan.Package
	Checked   map[int]bool
	Cursor    int
	Height    int
	Offset    int
	Confirmed bool
}

// NewPackageListModel creates a selection model over packages, with
// every package checked initially.
func NewPackageListModel(packages []scan.Package) PackageListModel {
	checked := make(map[int]bool, len(packages))
	for i := range packages {
		checked[i] = true
	}
	return PackageListModel{
		Packages: packages,
		Checked:  checked,
		Height:   15,
	}
}

// Selection returns the confirmed packages, or nil when the user quit.
func (m PackageListModel) Selection() []scan.Package {
	if !m.Confirmed {
		return nil
	}
	var out []scan.Package
	for i, p := range m.Packages {
		if m.Checked[i] {
			out = append(out, p)
		}
	}
	return out
}

func (m PackageListModel) Init() tea.Cmd {
	return nil
}

func (m PackageListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Packages)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ":
			m.Checked[m.Cursor] = !m.Checked[m.Cursor]
		case "a":
			all := true
			for i := range m.Packages {
				if !m.Checked[i] {
					all = false
					break
				}
			}
			for i := range m.Packages {
				m.Checked[i] = !all
			}
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m PackageListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Packages to Remove"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  ⏎ remove  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Packages) {
		end = len(m.Packages)
	}

	checked := 0
	for i := range m.Packages {
		if m.Checked[i] {
			checked++
		}
	}

	for i := m.Offset; i < end; i++ {
		p := m.Packages[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		box := "[ ]"
		if m.Checked[i] {
			box = "[x]"
		}

		line := fmt.Sprintf("%s%s %s", cursor, box, p.ID())
		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case m.Checked[i]:
			b.WriteString(listNormalStyle.Render(line))
		default:
			b.WriteString(listDimStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d selected]", checked, len(m.Packages))))

	return b.String()
}

// selectPackages runs the interactive selector and returns the
// confirmed packages, or nil when the user aborted.
func selectPackages(packages []scan.Package) ([]scan.Package, error) {
	program := tea.NewProgram(NewPackageListModel(packages))
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("package selection failed: %w", err)
	}
	model, ok := final.(PackageListModel)
	if !ok {
		return nil, fmt.Errorf("unexpected selection model %T", final)
	}
	return model.Selection(), nil
}

// purgePackages removes packages from their sites and reports the count.
func (c *CLI) purgePackages(sc *scan.Scan, packages []scan.Package) error {
	if len(packages) == 0 {
		printInfo("Nothing to remove")
		return nil
	}
	removed := sc.Purge(packages, c.Logger)
	printSuccess("Removed %d of %d packages", removed, len(packages))
	if removed < len(packages) {
		return fmt.Errorf("%d packages could not be removed", len(packages)-removed)
	}
	return nil
}

// purgePatternCommand removes installed packages selected by glob
// pattern, interactively unless --yes is given.
func (c *CLI) purgePatternCommand() *cobra.Command {
	var (
		pattern       string
		caseSensitive bool
		yes           bool
	)
	cmd := &cobra.Command{
		Use:   "purge-pattern",
		Short: "Purge packages that match a glob pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := c.newScan(cmd.Context())
			if err != nil {
				return err
			}
			pkgs, err := sc.Search(pattern, !caseSensitive)
			if err != nil {
				return err
			}
			if len(pkgs) == 0 {
				printInfo("No packages match %q", pattern)
				return nil
			}
			if !yes {
				pkgs, err = selectPackages(pkgs)
				if err != nil {
					return err
				}
				if pkgs == nil {
					printInfo("Aborted")
					return nil
				}
			}
			return c.purgePackages(sc, pkgs)
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "*", "glob pattern to select packages")
	cmd.Flags().BoolVar(&caseSensitive, "case", false, "case-sensitive pattern matching")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "remove without interactive selection")
	return cmd
}

// purgeInvalidCommand removes packages that fail validation against
// bound requirements.
func (c *CLI) purgeInvalidCommand() *cobra.Command {
	var (
		b   boundFlags
		yes bool
	)
	cmd := &cobra.Command{
		Use:   "purge-invalid",
		Short: "Purge packages that fail validation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := b.resolve(c.config); err != nil {
				return err
			}
			sc, err := c.newScan(ctx)
			if err != nil {
				return err
			}
			m, err := c.newManifest(ctx, b.bound, b.boundOptions)
			if err != nil {
				return err
			}
			env := c.markerEnvironment(ctx, sc)
			report := validate.Reconcile(sc.Packages, m, env, b.flags())

			var pkgs []scan.Package
			for _, r := range report.Invalid() {
				if r.Package != nil {
					pkgs = append(pkgs, *r.Package)
				}
			}
			if len(pkgs) == 0 {
				printSuccess("All packages are valid")
				return nil
			}
			if !yes {
				pkgs, err = selectPackages(pkgs)
				if err != nil {
					return err
				}
				if pkgs == nil {
					printInfo("Aborted")
					return nil
				}
			}
			return c.purgePackages(sc, pkgs)
		},
	}
	b.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "remove without interactive selection")
	return cmd
}
