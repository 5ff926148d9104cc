package cli

import (
	"context"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pyvet/pyvet/internal/server"
	"github.com/pyvet/pyvet/pkg/validate"
)

// serveCommand runs the continuous validation server.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		b    boundFlags
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation report over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := b.resolve(c.config); err != nil {
				return err
			}
			// no terminal spinner while serving
			c.quiet = true

			refresh := func(ctx context.Context) (*validate.Report, error) {
				sc, err := c.newScan(ctx)
				if err != nil {
					return nil, err
				}
				m, err := c.newManifest(ctx, b.bound, b.boundOptions)
				if err != nil {
					return nil, err
				}
				env := c.markerEnvironment(ctx, sc)
				return validate.Reconcile(sc.Packages, m, env, b.flags()), nil
			}

			srv := server.New(addr, watchablePath(b.bound), refresh)
			srv.Logger = c.Logger
			return srv.Run(cmd.Context())
		},
	}
	b.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	return cmd
}

// watchablePath returns bound when it names a local file, or empty when
// it is a URL that cannot be watched.
func watchablePath(bound string) string {
	if u, err := url.Parse(bound); err == nil && strings.HasPrefix(u.Scheme, "http") {
		return ""
	}
	return bound
}
