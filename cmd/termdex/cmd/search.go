package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bold-kg/termdex/internal/output"
	"github.com/bold-kg/termdex/internal/query"
	"github.com/bold-kg/termdex/internal/search"
	"github.com/bold-kg/termdex/internal/store"
)

type searchOptions struct {
	indexDir string
	limit    int
	offset   int
	pos      string
	url      bool
	minCount uint64
	maxCount uint64
	explain  bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search --index <index_dir> [query]",
		Short: "Search a term index",
		Long: `Search a term index and print the result as JSON.

Every word of the query must match the IRI, the type or a substring of the
label or IRI text. Matching tolerates one typo. Without a query every
document that passes the filters matches.

The result holds the total match count, the requested page of hits and
min/max/mean of the count field over all matches.`,
		Example: `  termdex search --index ./indexes/dbpedia "albert einst"
  termdex search --index ./indexes/dbpedia --pos 1 birth
  termdex search --index ./indexes/dbpedia --url=false --min-count 10 wall`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.indexDir, "index", "i", "", "Index directory (required)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of hits, 0 for count and aggregates only (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Hits to skip")
	cmd.Flags().StringVar(&opts.pos, "pos", "", "Position filter: 0|1|2 or subject|property|value")
	cmd.Flags().BoolVar(&opts.url, "url", false, "Only IRIs (--url) or only literals (--url=false)")
	cmd.Flags().Uint64Var(&opts.minCount, "min-count", 0, "Minimum count")
	cmd.Flags().Uint64Var(&opts.maxCount, "max-count", 0, "Maximum count")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Print the compiled query to stderr")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

// filterParams keeps only the filters given on the command line.
func filterParams(cmd *cobra.Command, opts searchOptions) query.FilterParams {
	var p query.FilterParams
	flags := cmd.Flags()
	if flags.Changed("pos") {
		p.Pos = opts.pos
	}
	if flags.Changed("url") {
		p.URL = strconv.FormatBool(opts.url)
	}
	if flags.Changed("min-count") {
		p.MinCount = strconv.FormatUint(opts.minCount, 10)
	}
	if flags.Changed("max-count") {
		p.MaxCount = strconv.FormatUint(opts.maxCount, 10)
	}
	return p
}

func runSearch(cmd *cobra.Command, root *rootOptions, text string, opts searchOptions) error {
	cfg := root.config()

	filters, err := query.ParseFilters(filterParams(cmd, opts))
	if err != nil {
		return err
	}

	limit := cfg.Search.DefaultLimit
	if cmd.Flags().Changed("limit") {
		limit = opts.limit
	}

	idx, err := store.OpenReadOnly(opts.indexDir)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	searcher := search.New(idx, search.WithAggPageSize(cfg.Search.AggPageSize))
	req := search.Request{Query: text, Limit: &limit, Offset: opts.offset, Filters: filters}

	if opts.explain {
		plan, err := searcher.Compile(req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "query: %s\n", plan)
	}

	res, err := searcher.Search(cmd.Context(), req)
	if err != nil {
		return err
	}
	return output.New(cmd.OutOrStdout()).JSON(res)
}
