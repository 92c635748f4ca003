package cmd

import (
	"github.com/spf13/cobra"

	"github.com/peternagy/mongobrowse/internal/app"
	"github.com/peternagy/mongobrowse/internal/pagination"
	"github.com/peternagy/mongobrowse/internal/types"
)

var findFlags struct {
	filter     string
	projection string
	sort       string
	pipeline   string
	limit      int
	pageSize   string
	page       int
	tree       bool
}

func queryRequest() app.QueryRequest {
	return app.QueryRequest{
		Filter:     findFlags.filter,
		Projection: findFlags.projection,
		Sort:       findFlags.sort,
		Pipeline:   findFlags.pipeline,
		Limit:      findFlags.limit,
	}
}

// printResult pages docs and writes them as JSON, or as a tree with --tree.
func printResult(cmd *cobra.Command, result *types.CollectionResult) error {
	size, err := pagination.ParsePageSize(findFlags.pageSize)
	if err != nil {
		return err
	}
	docs, p := app.Page(result.Documents, size, findFlags.page)
	w := cmd.OutOrStdout()
	if findFlags.tree {
		printTree(w, docs)
	} else if err := printDocuments(w, docs); err != nil {
		return err
	}
	printPageFooter(w, p)
	return nil
}

var findCmd = &cobra.Command{
	Use:   "find <server> <database.collection>",
	Short: "Query a collection",
	Long: `Run a find, or an aggregation when --pipeline is given. Filters accept
extended JSON and shell syntax such as ObjectId("...") or ISODate("...").

Examples:
  mongobrowse find local test.people --filter '{"age": {"$gt": 25}}' --sort '{"name": 1}'
  mongobrowse find local test.people --pipeline '[{"$group": {"_id": "$position"}}]' --tree`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		result, err := a.Query(cmd.Context(), args[0], ns, queryRequest())
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <server> <database.collection>",
	Short: "Show the plan the server picks for a query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		result, err := a.Explain(cmd.Context(), args[0], ns, queryRequest())
		if err != nil {
			return err
		}
		printExplain(cmd.OutOrStdout(), result)
		return nil
	},
}

func addQueryFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&findFlags.filter, "filter", "", "filter document")
	flags.StringVar(&findFlags.projection, "projection", "", "projection document")
	flags.StringVar(&findFlags.sort, "sort", "", "sort document")
	flags.StringVar(&findFlags.pipeline, "pipeline", "", "aggregation pipeline; filter, projection and sort are ignored when set")
	flags.IntVar(&findFlags.limit, "limit", app.DefaultLimit, "maximum number of documents (0 = unlimited, default: the server's row limit)")
}

func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&findFlags.pageSize, "page-size", pagination.PageSizeAll.String(), "documents per page: 10, 20, 50 or all")
	flags.IntVar(&findFlags.page, "page", 1, "page to show")
	flags.BoolVar(&findFlags.tree, "tree", false, "print documents as a tree")
}

func init() {
	addQueryFlags(findCmd)
	addOutputFlags(findCmd)
	addQueryFlags(explainCmd)

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(explainCmd)
}
