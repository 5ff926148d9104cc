package cli

import (
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pyvet/pyvet/pkg/cache"
	"github.com/pyvet/pyvet/pkg/manifest"
	"github.com/pyvet/pyvet/pkg/scan"
)

func TestRootCommandSubcommands(t *testing.T) {
	c := New(io.Discard, LogError)
	root := c.RootCommand()

	want := []string{
		"scan", "search", "count", "derive", "validate", "audit",
		"unpack-count", "unpack-files", "purge-pattern", "purge-invalid",
		"serve", "cache", "completion",
	}
	have := make(map[string]bool)
	for _, cmd := range root.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("RootCommand() missing subcommand %q", name)
		}
	}
}

func TestParseAnchor(t *testing.T) {
	tests := []struct {
		in      string
		want    manifest.Anchor
		wantErr bool
	}{
		{"lower", manifest.AnchorLower, false},
		{"upper", manifest.AnchorUpper, false},
		{"both", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAnchor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAnchor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseAnchor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: 3}

	var exit *ExitError
	if !errors.As(err, &exit) {
		t.Fatal("errors.As() failed to match ExitError")
	}
	if exit.Code != 3 {
		t.Errorf("Code = %d, want 3", exit.Code)
	}
	if err.Error() != "exit status 3" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewKeyerScopesForRedis(t *testing.T) {
	exes := []string{"/usr/bin/python3"}

	c := New(io.Discard, LogError)
	plain := c.newKeyer().ScanKey(exes)
	if want := cache.NewDefaultKeyer().ScanKey(exes); plain != want {
		t.Errorf("default keyer ScanKey = %q, want %q", plain, want)
	}

	c.config = &Config{Redis: "localhost:6379"}
	scoped := c.newKeyer().ScanKey(exes)
	if want := cache.NewScopedKeyer(nil, appName+":").ScanKey(exes); scoped != want {
		t.Errorf("redis keyer ScanKey = %q, want %q", scoped, want)
	}
	if scoped == plain {
		t.Error("redis-backed keys must be scoped away from unscoped keys")
	}
}

func TestOrderedExes(t *testing.T) {
	sc := &scan.Scan{ExeSites: map[string][]string{
		"/usr/bin/python3": {"/s1"},
		"/opt/python3.12":  {"/s2"},
		"/opt/python3.11":  {"/s3"},
	}}

	want := []string{"/opt/python3.11", "/opt/python3.12", "/usr/bin/python3"}
	for attempt := 0; attempt < 5; attempt++ {
		got := orderedExes(sc)
		if len(got) != len(want) {
			t.Fatalf("orderedExes() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("orderedExes()[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	}
}

func TestWatchablePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"requirements.txt", "requirements.txt"},
		{"/abs/path/pyproject.toml", "/abs/path/pyproject.toml"},
		{"https://example.com/requirements.txt", ""},
		{"http://example.com/requirements.txt", ""},
	}
	for _, tt := range tests {
		if got := watchablePath(tt.in); got != tt.want {
			t.Errorf("watchablePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func selectionPackages(t *testing.T) []scan.Package {
	t.Helper()
	return []scan.Package{
		testPackage(t, "zipp-3.8.0.dist-info", "/s1"),
		testPackage(t, "numpy-1.26.1.dist-info", "/s1"),
	}
}

func TestPackageSelection(t *testing.T) {
	packages := selectionPackages(t)
	m := NewPackageListModel(packages)

	// Everything starts checked; space unchecks the package under the cursor.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(PackageListModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(PackageListModel)

	selected := m.Selection()
	if len(selected) != len(packages)-1 {
		t.Fatalf("Selection() = %d packages, want %d", len(selected), len(packages)-1)
	}
	if selected[0].Name != packages[1].Name {
		t.Errorf("Selection()[0] = %s, want %s", selected[0].Name, packages[1].Name)
	}
}

func TestPackageSelectionAborted(t *testing.T) {
	m := NewPackageListModel(selectionPackages(t))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(PackageListModel)

	if got := m.Selection(); got != nil {
		t.Errorf("Selection() after quit = %v, want nil", got)
	}
}
