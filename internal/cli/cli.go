// Package cli implements the pyvet command-line interface.
//
// This package provides commands for scanning Python environments,
// searching and counting installed packages, deriving bound requirements,
// validating environments against bound requirements, auditing packages
// against the OSV vulnerability database, and purging installations. The
// CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - scan: Report every installed package across interpreters
//   - search: Filter installed packages by glob pattern
//   - count: Count discovered executables, sites, and packages
//   - derive: Produce bound requirements from what is installed
//   - validate: Reconcile installed packages against bound requirements
//   - audit: Query the OSV database for known vulnerabilities
//   - unpack-count, unpack-files: Report recorded package artifacts
//   - purge-pattern, purge-invalid: Remove installed packages
//   - serve: Expose the validation report over HTTP
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging and
// --quiet (-q) to suppress logging and terminal animation. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/pkg/buildinfo"
	"github.com/pyvet/pyvet/pkg/cache"
	"github.com/pyvet/pyvet/pkg/history"
	"github.com/pyvet/pyvet/pkg/httputil"
	"github.com/pyvet/pyvet/pkg/manifest"
	"github.com/pyvet/pyvet/pkg/scan"
	"github.com/pyvet/pyvet/pkg/spec"
)

const (
	// appName is the application name used for directories and display.
	appName = "pyvet"

	// errorExitCode is the default exit code for reportable discrepancies.
	errorExitCode = 3

	// defaultCacheSeconds is how long scan and HTTP results stay cached.
	defaultCacheSeconds = 40
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogError = log.ErrorLevel
)

// ExitError signals a deliberate non-zero exit with no error message.
// The validate and audit commands use it to report discrepancies through
// the exit status.
type ExitError struct{ Code int }

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	exes       []string
	cacheSecs  uint64
	quiet      bool
	userSite   bool
	configPath string
	historyURI string
	config     *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Quiet reports whether terminal animation and logging are suppressed.
func (c *CLI) Quiet() bool { return c.quiet }

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pyvet",
		Short:         "System-wide Python package discovery and validation",
		Long:          `pyvet discovers Python packages installed across interpreters, validates them against bound requirements, and audits them for known vulnerabilities.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.applyConfig(); err != nil {
				return err
			}
			if c.quiet {
				c.SetLogLevel(log.ErrorLevel)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&c.exes, "exe", "e", nil, "executable paths used to derive site package locations (repeatable; default: discover python3 on PATH)")
	pf.Uint64VarP(&c.cacheSecs, "cache-duration", "c", defaultCacheSeconds, "cache scans for the given number of seconds; zero disables caching")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "disable logging and terminal animation")
	pf.BoolVar(&c.userSite, "user-site", false, "force inclusion of the user site-packages, even if not activated")
	pf.StringVar(&c.configPath, "config", "", "path to a pyvet config file (default: ~/.config/pyvet/config.yaml)")
	pf.StringVar(&c.historyURI, "history-uri", "", "MongoDB URI for storing validation and audit reports")

	root.AddCommand(c.scanCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.countCommand())
	root.AddCommand(c.deriveCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.auditCommand())
	root.AddCommand(c.unpackCountCommand())
	root.AddCommand(c.unpackFilesCommand())
	root.AddCommand(c.purgePatternCommand())
	root.AddCommand(c.purgeInvalidCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// cacheDuration returns the configured cache TTL.
func (c *CLI) cacheDuration() time.Duration {
	return time.Duration(c.cacheSecs) * time.Second
}

// newCacheBackend creates the cache for scans and HTTP responses: redis
// when configured, the cache directory otherwise. A zero cache duration
// disables caching entirely.
func (c *CLI) newCacheBackend(ctx context.Context) cache.Cache {
	if c.cacheSecs == 0 {
		return cache.NewNullCache()
	}
	if addr := c.redisAddr(); addr != "" {
		backend, err := cache.NewRedisCache(ctx, addr, "", 0)
		if err == nil {
			return backend
		}
		c.Logger.Warn("redis unreachable, using the cache directory", "addr", addr, "error", err)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	backend, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return backend
}

// redisAddr returns the configured redis address, or empty when the cache
// directory should be used.
func (c *CLI) redisAddr() string {
	if c.config == nil {
		return ""
	}
	return c.config.Redis
}

// newKeyer derives cache keys, scoped under the app name when the backend
// is a shared redis instance.
func (c *CLI) newKeyer() cache.Keyer {
	if c.redisAddr() != "" {
		return cache.NewScopedKeyer(nil, appName+":")
	}
	return cache.NewDefaultKeyer()
}

// newScan loads a cached scan or performs a fresh one.
func (c *CLI) newScan(ctx context.Context) (*scan.Scan, error) {
	scanner := scan.NewScanner(c.Logger)
	scanner.ForceUserSite = c.userSite
	scanner.Keyer = c.newKeyer()

	var spinner *Spinner
	if !c.quiet {
		spinner = newSpinnerWithContext(ctx, "scanning")
		spinner.Start()
	}
	result, err := scanner.CachedScan(ctx, c.newCacheBackend(ctx), c.cacheDuration(), c.exes, false)
	if spinner != nil {
		spinner.Stop()
	}
	return result, err
}

// newManifest loads bound requirements from a path, directory, URL, or
// git repository.
func (c *CLI) newManifest(ctx context.Context, bound string, groups []string) (*manifest.Manifest, error) {
	client := httputil.NewClient(c.newCacheBackend(ctx), "bound", c.cacheDuration(), nil)
	client.SetKeyer(c.newKeyer())
	return manifest.FromPathOrURL(ctx, client, bound, groups)
}

// markerEnvironment asks the first scanned interpreter, in path order,
// for its marker values. A nil environment disables marker filtering.
func (c *CLI) markerEnvironment(ctx context.Context, sc *scan.Scan) *spec.Environment {
	for _, exe := range orderedExes(sc) {
		env, err := scan.CurrentEnvironment(ctx, exe)
		if err != nil {
			c.Logger.Debug("could not read marker environment", "exe", exe, "error", err)
			continue
		}
		return env
	}
	return nil
}

// orderedExes returns the scanned interpreter paths in sorted order so
// repeated runs interrogate the same interpreter first.
func orderedExes(sc *scan.Scan) []string {
	exes := make([]string, 0, len(sc.ExeSites))
	for exe := range sc.ExeSites {
		exes = append(exes, exe)
	}
	sort.Strings(exes)
	return exes
}

// newHistoryStore opens the report history store when --history-uri is set.
func (c *CLI) newHistoryStore(ctx context.Context) (history.Store, error) {
	if c.historyURI == "" {
		return nil, nil
	}
	return history.NewMongoStore(ctx, c.historyURI)
}

// recordHistory appends a report to history when a store is configured.
func (c *CLI) recordHistory(ctx context.Context, kind string, failures int, report any) {
	store, err := c.newHistoryStore(ctx)
	if err != nil {
		c.Logger.Warn("could not open history store", "error", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close(ctx)

	entry, err := history.NewEntry(kind, c.exes, failures, report)
	if err != nil {
		c.Logger.Warn("could not serialize history entry", "error", err)
		return
	}
	if err := store.Append(ctx, entry); err != nil {
		c.Logger.Warn("could not append history entry", "error", err)
		return
	}
	c.Logger.Debug("history entry stored", "id", entry.ID, "kind", kind)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/pyvet/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
