package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bold-kg/termdex/internal/output"
	"github.com/bold-kg/termdex/internal/server"
	"github.com/bold-kg/termdex/internal/telemetry"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		indexRoot string
		addr      string
		cacheSize int
		noWatch   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over HTTP",
		Long: `Serve every index under --index-root over HTTP.

Endpoints:
  GET /search/:dataset   q, limit, offset, pos, url, min_count, max_count
  GET /healthz           liveness
  GET /stats             recent query statistics
  GET /metrics           Prometheus metrics

The dataset is the name of an index directory directly under the root.
Cached indexes are dropped when their directory changes, so a dataset
rebuilt with build-index --force is served fresh without a restart.`,
		Example: `  termdex serve --index-root ./indexes
  curl 'http://127.0.0.1:8080/search/dbpedia?q=einstein&pos=subject'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.config()

			scfg := server.DefaultConfig()
			scfg.Addr = cfg.Server.Addr
			scfg.IndexRoot = cfg.Server.IndexRoot
			scfg.CacheSize = cfg.Server.CacheSize
			scfg.GinMode = cfg.Server.GinMode
			scfg.DefaultLimit = cfg.Search.DefaultLimit
			scfg.AggPageSize = cfg.Search.AggPageSize
			if cmd.Flags().Changed("index-root") {
				scfg.IndexRoot = indexRoot
			}
			if cmd.Flags().Changed("addr") {
				scfg.Addr = addr
			}
			if cmd.Flags().Changed("cache-size") {
				scfg.CacheSize = cacheSize
			}
			scfg.Watch = !noWatch

			srv, err := server.New(scfg, telemetry.NewMetrics(),
				telemetry.NewQueryLog(telemetry.DefaultQueryLogConfig()))
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("🚀", "Serving %s on http://%s", scfg.IndexRoot, scfg.Addr)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&indexRoot, "index-root", "", "Directory holding one index per dataset")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 0, "Indexes kept open")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Keep cached indexes open when their directories change")

	return cmd
}
