package manifest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
)

// lockPriority orders the candidate files consulted when a directory is
// given as a source. The first one found wins.
var lockPriority = []string{
	"uv.lock",
	"poetry.lock",
	"Pipfile.lock",
	"requirements.lock",
	"requirements.txt",
	"pyproject.toml",
}

// Fetcher retrieves the text body of a URL. The HTTP client satisfies it;
// tests substitute a canned implementation.
type Fetcher interface {
	GetText(ctx context.Context, url string) (string, error)
}

// FromPath loads a bound-requirement source from a local file, dispatching
// on its name: pyproject.toml, a requirements file, or any lock format by
// content sniffing.
func FromPath(path string, groups []string) (*Manifest, error) {
	base := filepath.Base(path)
	switch {
	case base == "pyproject.toml":
		return FromPyProjectFile(path, groups)
	case strings.HasSuffix(base, "requirements.txt"):
		if len(groups) > 0 {
			return nil, errors.New(errors.ErrCodeUnsupported,
				"dependency groups do not apply to requirements files")
		}
		return FromRequirementsFile(path)
	default:
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot read %s", path)
		}
		return FromLockContents(string(content), groups)
	}
}

// FromDir searches a directory for the first bound-requirement file in
// lock-priority order and loads it.
func FromDir(dir string, groups []string) (*Manifest, error) {
	for _, name := range lockPriority {
		fp := filepath.Join(dir, name)
		if _, err := os.Stat(fp); err == nil {
			return FromPath(fp, groups)
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound,
		"no lock file, requirements file, or pyproject.toml in %s", dir)
}

// FromURL fetches a bound-requirement source over HTTP. A URL ending in
// pyproject.toml is parsed as such; anything else goes through lock format
// sniffing, which covers requirements.txt content too.
func FromURL(ctx context.Context, client Fetcher, url string, groups []string) (*Manifest, error) {
	content, err := client.GetText(ctx, url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "cannot fetch %s", url)
	}
	if strings.HasSuffix(url, "pyproject.toml") {
		return FromPyProject([]byte(content), groups)
	}
	return FromLockContents(content, groups)
}

// FromGitRepo shallow-clones a repository into a temporary directory and
// loads the first bound-requirement file found in its root.
func FromGitRepo(ctx context.Context, url string, groups []string) (*Manifest, error) {
	tmp, err := os.MkdirTemp("", "pyvet-clone-*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "cannot create clone directory")
	}
	defer os.RemoveAll(tmp)

	repo := filepath.Join(tmp, "repo")
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, repo)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err,
			"git clone %s failed: %s", url, strings.TrimSpace(string(out)))
	}
	return FromDir(repo, groups)
}

// FromPathOrURL dispatches a source argument: a .git URL is cloned, an
// http(s) URL fetched, anything else treated as a local path (directories
// searched in lock-priority order).
func FromPathOrURL(ctx context.Context, client Fetcher, source string, groups []string) (*Manifest, error) {
	switch {
	case strings.HasSuffix(source, ".git"):
		return FromGitRepo(ctx, source, groups)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return FromURL(ctx, client, source, groups)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot read %s", source)
	}
	if info.IsDir() {
		return FromDir(source, groups)
	}
	return FromPath(source, groups)
}
