package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peternagy/mongobrowse/internal/types"
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage saved queries",
}

var queriesSaveCmd = &cobra.Command{
	Use:   "save <server> <name> <database.collection>",
	Short: "Save a query under a name",
	Long: `Save a query under a name, replacing any saved query of that name on the
same server. The query is checked before it is saved.

Example:
  mongobrowse queries save local seniors test.people --filter '{"age": {"$gte": 27}}' --limit 20`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[2])
		if err != nil {
			return err
		}
		saved, err := a.SaveQuery(args[0], args[1], ns, queryRequest())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved query %s on %s\n", saved.Name, saved.Namespace())
		return nil
	},
}

var queriesListCmd = &cobra.Command{
	Use:   "list <server>",
	Short: "List the saved queries of a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, err := a.ListQueries(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, q := range queries {
			detail := q.Filter
			if q.Pipeline != "" {
				detail = q.Pipeline
			}
			fmt.Fprintf(w, "%s  %s  %s\n", keyStyle.Render(q.Name), q.Namespace(), mutedStyle.Render(detail))
		}
		return nil
	},
}

var queriesRunCmd = &cobra.Command{
	Use:   "run <server> <name>",
	Short: "Run a saved query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := a.RunSavedQuery(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	},
}

var queriesDeleteCmd = &cobra.Command{
	Use:   "delete <server> <name>",
	Short: "Delete a saved query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.DeleteQuery(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted query %s\n", args[1])
		return nil
	},
}

func init() {
	addQueryFlags(queriesSaveCmd)
	addOutputFlags(queriesRunCmd)

	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesSaveCmd)
	queriesCmd.AddCommand(queriesListCmd)
	queriesCmd.AddCommand(queriesRunCmd)
	queriesCmd.AddCommand(queriesDeleteCmd)
}
