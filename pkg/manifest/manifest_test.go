package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyvet/pyvet/pkg/errors"
)

func TestFromLines(t *testing.T) {
	m, err := FromLines([]string{
		"requests>=2.8,<3.0",
		"",
		"# comment",
		"numpy==1.26.4",
		"Flask_SQLAlchemy~=3.0.1",
	})
	if err != nil {
		t.Fatalf("FromLines error: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if !m.Has("flask-sqlalchemy") {
		t.Error("normalized lookup failed for flask-sqlalchemy")
	}
	if !m.Has("Flask_SQLAlchemy") {
		t.Error("unnormalized lookup failed for Flask_SQLAlchemy")
	}
	if got := m.Get("requests"); len(got) != 1 || got[0].Name != "requests" {
		t.Errorf("Get(requests) = %v", got)
	}
}

func TestDuplicateKeysRetained(t *testing.T) {
	m, err := FromLines([]string{
		`tomli>=1.1.0; python_version < "3.11"`,
		`tomli>=2.0.0; python_version >= "3.11"`,
	})
	if err != nil {
		t.Fatalf("FromLines error: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	specs := m.Get("tomli")
	if len(specs) != 2 {
		t.Fatalf("Get(tomli) = %d specs, want 2", len(specs))
	}
	if specs[0].Marker == nil || specs[1].Marker == nil {
		t.Error("markers lost on duplicate keys")
	}
}

func TestKeysSorted(t *testing.T) {
	m, err := FromLines([]string{"zipp==3.18.1", "Apache-Airflow", "numpy"})
	if err != nil {
		t.Fatalf("FromLines error: %v", err)
	}
	keys := m.Keys()
	want := []string{"apache-airflow", "numpy", "zipp"}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestMissingFrom(t *testing.T) {
	m, err := FromLines([]string{"alpha==1.0", "beta==2.0", "gamma==3.0"})
	if err != nil {
		t.Fatalf("FromLines error: %v", err)
	}
	missing := m.MissingFrom(map[string]bool{"beta": true})
	if len(missing) != 2 || missing[0] != "alpha" || missing[1] != "gamma" {
		t.Errorf("MissingFrom = %v, want [alpha gamma]", missing)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestFromRequirementsFileIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.txt", "numpy==1.26.4\n")
	writeFile(t, dir, "extra.txt", "pandas==2.2.0\n")
	root := writeFile(t, dir, "requirements.txt",
		"-r base.txt\n--requirement extra.txt\nrequests>=2.8\n")

	m, err := FromRequirementsFile(root)
	if err != nil {
		t.Fatalf("FromRequirementsFile error: %v", err)
	}
	for _, key := range []string{"numpy", "pandas", "requests"} {
		if !m.Has(key) {
			t.Errorf("missing %s after include resolution", key)
		}
	}
}

func TestFromRequirementsFileDiamond(t *testing.T) {
	// two branches including the same leaf is not a cycle
	dir := t.TempDir()
	writeFile(t, dir, "leaf.txt", "numpy==1.26.4\n")
	writeFile(t, dir, "a.txt", "-r leaf.txt\n")
	writeFile(t, dir, "b.txt", "-r leaf.txt\n")
	root := writeFile(t, dir, "requirements.txt", "-r a.txt\n-r b.txt\n")

	m, err := FromRequirementsFile(root)
	if err != nil {
		t.Fatalf("FromRequirementsFile error: %v", err)
	}
	if len(m.Get("numpy")) != 1 {
		t.Errorf("leaf loaded %d times, want 1", len(m.Get("numpy")))
	}
}

func TestFromRequirementsFileCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "-r b.txt\n")
	writeFile(t, dir, "b.txt", "-r a.txt\n")

	_, err := FromRequirementsFile(filepath.Join(dir, "a.txt"))
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, errors.ErrCodeCyclicInclude) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeCyclicInclude)
	}
}

func TestFromPyProject(t *testing.T) {
	content := `
[project]
dependencies = ["requests>=2.8", "numpy==1.26.4"]

[project.optional-dependencies]
dev = ["pytest>=8.0"]

[tool.poetry.dependencies]
flask = "^2.0.0"
`
	m, err := FromPyProject([]byte(content), nil)
	if err != nil {
		t.Fatalf("FromPyProject error: %v", err)
	}
	for _, key := range []string{"requests", "numpy", "flask"} {
		if !m.Has(key) {
			t.Errorf("missing %s", key)
		}
	}
	if m.Has("pytest") {
		t.Error("optional group loaded without being requested")
	}

	m, err = FromPyProject([]byte(content), []string{"dev"})
	if err != nil {
		t.Fatalf("FromPyProject with group error: %v", err)
	}
	if !m.Has("pytest") {
		t.Error("requested optional group not loaded")
	}
	flask := m.Get("flask")
	if len(flask) != 1 || len(flask[0].Constraints) != 1 {
		t.Fatalf("flask specs = %v", flask)
	}
	if flask[0].Constraints[0].String() != "^2.0.0" {
		t.Errorf("flask constraint = %q, want ^2.0.0", flask[0].Constraints[0].String())
	}
}

func TestFromPyProjectAmbiguousGroups(t *testing.T) {
	content := `
[project.optional-dependencies]
dev = ["pytest"]

[tool.poetry.group.dev.dependencies]
pytest = ">=8.0"
`
	if _, err := FromPyProject([]byte(content), nil); err == nil {
		t.Fatal("expected error for groups defined in both tables")
	}
}

func TestFromLockContentsUV(t *testing.T) {
	content := `
opentelemetry-api==1.24.0
    # via
    #   apache-airflow
opentelemetry-exporter-otlp==1.24.0
    # via apache-airflow
apache-airflow
`
	m, err := FromLockContents(content, nil)
	if err != nil {
		t.Fatalf("FromLockContents error: %v", err)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	api := m.Get("opentelemetry-api")
	if len(api) != 1 || api[0].Constraints[0].String() != "==1.24.0" {
		t.Errorf("opentelemetry-api = %v", api)
	}
}

func TestFromLockContentsPoetry(t *testing.T) {
	content := `
[[package]]
name = "packaging"
version = "24.2"

[[package]]
name = "requests"
version = "2.31.0"
`
	m, err := FromLockContents(content, nil)
	if err != nil {
		t.Fatalf("FromLockContents error: %v", err)
	}
	pkg := m.Get("packaging")
	if len(pkg) != 1 || pkg[0].Constraints[0].String() != "==24.2" {
		t.Errorf("packaging = %v", pkg)
	}
}

func TestFromLockContentsPipfile(t *testing.T) {
	content := `{
  "_meta": {"hash": {"sha256": "abc"}},
  "default": {
    "asgiref": {"version": "==3.6.0"},
    "django": {"version": "==4.1.7"}
  },
  "develop": {
    "attrs": {"version": "==22.2.0"}
  }
}`
	m, err := FromLockContents(content, nil)
	if err != nil {
		t.Fatalf("FromLockContents error: %v", err)
	}
	if !m.Has("asgiref") || !m.Has("django") {
		t.Error("default group not loaded")
	}
	if m.Has("attrs") {
		t.Error("develop group loaded without being requested")
	}

	m, err = FromLockContents(content, []string{"develop"})
	if err != nil {
		t.Fatalf("FromLockContents with group error: %v", err)
	}
	if !m.Has("attrs") {
		t.Error("develop group not loaded when requested")
	}
}

func TestFromLockContentsPipfileOrder(t *testing.T) {
	content := `{
  "_meta": {"hash": {"sha256": "abc"}},
  "default": {
    "zipp": {"version": "==3.8.0"},
    "asgiref": {"version": "==3.6.0"},
    "numpy": {"version": "==1.26.4"},
    "django": {"version": "==4.1.7"}
  }
}`
	want := []string{"asgiref", "django", "numpy", "zipp"}
	for attempt := 0; attempt < 5; attempt++ {
		m, err := FromLockContents(content, nil)
		if err != nil {
			t.Fatalf("FromLockContents error: %v", err)
		}
		specs := m.Specs()
		if len(specs) != len(want) {
			t.Fatalf("specs = %d, want %d", len(specs), len(want))
		}
		for i, ds := range specs {
			if ds.Key != want[i] {
				t.Fatalf("specs[%d] = %s, want %s (load order must be stable)", i, ds.Key, want[i])
			}
		}
	}
}

func TestGroupsRejectedForNonPipfile(t *testing.T) {
	if _, err := FromLockContents("requests==2.8\n", []string{"develop"}); err == nil {
		t.Fatal("expected error for groups on a uv lock")
	}
}

func TestFromDirPriority(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "requests==2.8\n")
	writeFile(t, dir, "uv.lock", "numpy==1.26.4\n")

	m, err := FromDir(dir, nil)
	if err != nil {
		t.Fatalf("FromDir error: %v", err)
	}
	if !m.Has("numpy") || m.Has("requests") {
		t.Error("uv.lock should win over requirements.txt")
	}
}

func TestFromDirEmpty(t *testing.T) {
	_, err := FromDir(t.TempDir(), nil)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeNotFound)
	}
}

type cannedFetcher struct {
	body string
	err  error
}

func (c *cannedFetcher) GetText(_ context.Context, _ string) (string, error) {
	return c.body, c.err
}

func TestFromURL(t *testing.T) {
	client := &cannedFetcher{body: "requests==2.8\nnumpy==1.26.4\n"}
	m, err := FromURL(context.Background(), client, "https://example.com/requirements.txt", nil)
	if err != nil {
		t.Fatalf("FromURL error: %v", err)
	}
	if !m.Has("requests") || !m.Has("numpy") {
		t.Error("fetched requirements not loaded")
	}

	client = &cannedFetcher{body: "[project]\ndependencies = [\"flask^2.0\"]\n"}
	m, err = FromURL(context.Background(), client, "https://example.com/pyproject.toml", nil)
	if err != nil {
		t.Fatalf("FromURL pyproject error: %v", err)
	}
	if !m.Has("flask") {
		t.Error("fetched pyproject not loaded")
	}
}

func TestFromObserved(t *testing.T) {
	obs := []Observed{
		{Name: "numpy", Version: "1.26.4"},
		{Name: "numpy", Version: "1.24.0"},
		{Name: "requests", Version: "2.31.0"},
	}

	lower, err := FromObserved(obs, AnchorLower)
	if err != nil {
		t.Fatalf("FromObserved lower error: %v", err)
	}
	numpy := lower.Get("numpy")
	if len(numpy) != 1 || numpy[0].Constraints[0].String() != ">=1.24.0" {
		t.Errorf("lower anchor = %v, want >=1.24.0", numpy)
	}

	upper, err := FromObserved(obs, AnchorUpper)
	if err != nil {
		t.Fatalf("FromObserved upper error: %v", err)
	}
	numpy = upper.Get("numpy")
	if len(numpy) != 1 || numpy[0].Constraints[0].String() != "<=1.26.4" {
		t.Errorf("upper anchor = %v, want <=1.26.4", numpy)
	}
	if !upper.Has("requests") {
		t.Error("single-version package missing from derived manifest")
	}
}

func TestSpecsOrdered(t *testing.T) {
	m, err := FromLines([]string{"zipp==3.18.1", "alpha==1.0"})
	if err != nil {
		t.Fatalf("FromLines error: %v", err)
	}
	specs := m.Specs()
	if len(specs) != 2 || specs[0].Key != "alpha" || specs[1].Key != "zipp" {
		names := make([]string, len(specs))
		for i, s := range specs {
			names[i] = s.Key
		}
		t.Errorf("Specs() order = %v, want [alpha zipp]", names)
	}
}
