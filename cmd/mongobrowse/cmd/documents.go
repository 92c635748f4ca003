package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/app"
	"github.com/peternagy/mongobrowse/internal/document"
	"github.com/peternagy/mongobrowse/internal/types"
)

var editFlags struct {
	set  []string
	add  []string
	del  []string
	tree bool
}

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Read and change single documents",
}

var documentGetCmd = &cobra.Command{
	Use:   "get <server> <database.collection> <id>",
	Short: "Print the document with the given _id",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		doc, err := a.GetDocument(cmd.Context(), args[0], ns, args[2])
		if err != nil {
			return err
		}
		return printOne(cmd.OutOrStdout(), doc)
	},
}

var documentSaveCmd = &cobra.Command{
	Use:   "save <server> <database.collection> [document]",
	Short: "Insert or replace a document",
	Long: `Insert a document, or replace the one with the same _id. The document
is read from stdin when not given as an argument.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		text := ""
		if len(args) == 3 {
			text = args[2]
		} else {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			text = string(b)
		}
		id, err := a.SaveDocument(cmd.Context(), args[0], ns, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", document.FormatDocumentID(id))
		return nil
	},
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete <server> <database.collection> <id>",
	Short: "Delete the document with the given _id",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		if err := a.DeleteDocument(cmd.Context(), args[0], ns, args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[2])
		return nil
	},
}

var documentEditCmd = &cobra.Command{
	Use:   "edit <server> <database.collection> <id>",
	Short: "Change fields of a document",
	Long: `Change fields of a document addressed by dotted paths. List elements
are addressed by their label, e.g. tags.[0].

  --set path=value   replace a value, keeping its type
  --add path=value   add a field, or append to the list at path
  --delete path      remove a field or list element

Example:
  mongobrowse doc edit local test.people 3 --set age=28 --add tags=senior --delete comment`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := types.ParseNamespace(args[1])
		if err != nil {
			return err
		}
		edits, err := editsFromFlags()
		if err != nil {
			return err
		}
		doc, err := a.EditDocument(cmd.Context(), args[0], ns, args[2], edits...)
		if err != nil {
			return err
		}
		if editFlags.tree {
			printTree(cmd.OutOrStdout(), []bson.D{doc})
			return nil
		}
		return printOne(cmd.OutOrStdout(), doc)
	},
}

// editsFromFlags collects the edits in set, add, delete order.
func editsFromFlags() ([]app.Edit, error) {
	var edits []app.Edit
	for _, group := range []struct {
		op     app.EditOp
		values []string
	}{{app.EditSet, editFlags.set}, {app.EditAdd, editFlags.add}} {
		for _, kv := range group.values {
			path, val, ok := cutAssignment(kv)
			if !ok {
				return nil, fmt.Errorf("expected path=value, got %q", kv)
			}
			edits = append(edits, app.Edit{Op: group.op, Path: path, Value: val})
		}
	}
	for _, path := range editFlags.del {
		edits = append(edits, app.Edit{Op: app.EditDelete, Path: path})
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("nothing to change: use --set, --add or --delete")
	}
	return edits, nil
}

func cutAssignment(kv string) (string, string, bool) {
	path, val, ok := strings.Cut(kv, "=")
	return path, val, ok && path != ""
}

func printOne(w io.Writer, doc bson.D) error {
	return printDocuments(w, []bson.D{doc})
}

func init() {
	flags := documentEditCmd.Flags()
	flags.StringArrayVar(&editFlags.set, "set", nil, "path=value to replace, repeatable")
	flags.StringArrayVar(&editFlags.add, "add", nil, "path=value to add, repeatable")
	flags.StringArrayVar(&editFlags.del, "delete", nil, "path to remove, repeatable")
	flags.BoolVar(&editFlags.tree, "tree", false, "print the saved document as a tree")

	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentSaveCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentEditCmd)
}
