package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peternagy/mongobrowse/internal/schema"
	"github.com/peternagy/mongobrowse/internal/stats"
	"github.com/peternagy/mongobrowse/internal/types"
)

var indexFlags struct {
	name   string
	unique bool
	sparse bool
	ttl    int32
}

var databasesCmd = &cobra.Command{
	Use:   "databases <server>",
	Short: "List databases and their collections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbs, err := a.LoadDatabases(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printDatabases(cmd.OutOrStdout(), dbs)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <server> <database|database.collection>",
	Short: "Show database or collection statistics",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			rows []stats.Row
			err  error
		)
		if strings.Contains(args[1], ".") {
			ns, perr := types.ParseNamespace(args[1])
			if perr != nil {
				return perr
			}
			rows, err = a.CollectionStats(cmd.Context(), args[0], ns)
		} else {
			rows, err = a.DatabaseStats(cmd.Context(), args[0], args[1])
		}
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), rows)
		return nil
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop <server> <database|database.collection>",
	Short: "Drop a database or a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.Contains(args[1], ".") {
			ns, err := types.ParseNamespace(args[1])
			if err != nil {
				return err
			}
			if err := a.DropCollection(cmd.Context(), args[0], ns); err != nil {
				return err
			}
		} else if err := a.DropDatabase(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s\n", args[1])
		return nil
	},
}

var schemaSampleSize int

var schemaCmd = &cobra.Command{
	Use:   "schema <server> <database.collection>",
	Short: "Infer the fields of a collection from a random sample",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		result, err := a.InferSchema(cmd.Context(), args[0], ns, schemaSampleSize)
		if err != nil {
			return err
		}
		printSchema(cmd.OutOrStdout(), result)
		return nil
	},
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Manage collection indexes",
}

var indexesListCmd = &cobra.Command{
	Use:   "list <server> <database.collection>",
	Short: "List indexes with their sizes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		indexes, err := a.ListIndexes(cmd.Context(), args[0], ns)
		if err != nil {
			return err
		}
		printIndexes(cmd.OutOrStdout(), indexes)
		return nil
	},
}

var indexesCreateCmd = &cobra.Command{
	Use:   "create <server> <database.collection> <keys>",
	Short: "Create an index",
	Long: `Create an index from a key document.

Example:
  mongobrowse indexes create local test.people '{"name": 1, "age": -1}' --unique`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		name, err := a.CreateIndex(cmd.Context(), args[0], ns, args[2], types.IndexOptions{
			Name:               indexFlags.name,
			Unique:             indexFlags.unique,
			Sparse:             indexFlags.sparse,
			ExpireAfterSeconds: indexFlags.ttl,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created index %s\n", name)
		return nil
	},
}

var indexesDropCmd = &cobra.Command{
	Use:   "drop <server> <database.collection> <name>",
	Short: "Drop an index",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		if err := a.DropIndex(cmd.Context(), args[0], ns, args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped index %s\n", args[2])
		return nil
	},
}

func init() {
	flags := indexesCreateCmd.Flags()
	flags.StringVar(&indexFlags.name, "name", "", "index name (default derived from the keys)")
	flags.BoolVar(&indexFlags.unique, "unique", false, "reject duplicate keys")
	flags.BoolVar(&indexFlags.sparse, "sparse", false, "skip documents without the indexed fields")
	flags.Int32Var(&indexFlags.ttl, "ttl", 0, "expire documents after this many seconds")

	schemaCmd.Flags().IntVar(&schemaSampleSize, "sample", schema.DefaultSampleSize, "number of documents to sample")

	rootCmd.AddCommand(databasesCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(indexesCmd)
	indexesCmd.AddCommand(indexesListCmd)
	indexesCmd.AddCommand(indexesCreateCmd)
	indexesCmd.AddCommand(indexesDropCmd)
}
