package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongobrowse/internal/pagination"
	"github.com/peternagy/mongobrowse/internal/schema"
	"github.com/peternagy/mongobrowse/internal/stats"
	"github.com/peternagy/mongobrowse/internal/tree"
	"github.com/peternagy/mongobrowse/internal/types"
	"github.com/peternagy/mongobrowse/internal/value"
)

var (
	// Colors
	primary   = lipgloss.Color("#7C3AED") // Purple
	secondary = lipgloss.Color("#10B981") // Green
	muted     = lipgloss.Color("#6B7280") // Gray
	warning   = lipgloss.Color("#F59E0B") // Amber

	keyStyle     = lipgloss.NewStyle().Foreground(primary)
	indexStyle   = lipgloss.NewStyle().Foreground(muted)
	stringStyle  = lipgloss.NewStyle().Foreground(secondary)
	numberStyle  = lipgloss.NewStyle().Foreground(warning)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	headingStyle = lipgloss.NewStyle().Foreground(primary)
	warningStyle = lipgloss.NewStyle().Foreground(warning)
)

// printDocuments writes each document as indented relaxed extended JSON.
func printDocuments(w io.Writer, docs []bson.D) error {
	for _, doc := range docs {
		b, err := bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render document: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}
	return nil
}

// printTree writes docs as an indented tree, one node per line.
func printTree(w io.Writer, docs []bson.D) {
	t := tree.BuildResultSet(docs)
	t.Walk(func(id tree.NodeID, depth int) bool {
		if id == t.Root() {
			return true
		}
		node, err := t.Node(id)
		if err != nil {
			return false
		}
		indent := strings.Repeat("  ", depth-1)
		label := keyStyle.Render(node.Label)
		if node.Indexed {
			label = indexStyle.Render(node.Label)
		}
		fmt.Fprintf(w, "%s%s %s\n", indent, label, renderValue(node.Value, len(node.Children)))
		return true
	})
}

func renderValue(v value.Value, children int) string {
	switch v.Kind() {
	case value.KindDocument:
		return mutedStyle.Render(fmt.Sprintf("{%d}", children))
	case value.KindList:
		return mutedStyle.Render(fmt.Sprintf("[%d]", children))
	case value.KindString:
		return stringStyle.Render(v.Format())
	case value.KindInt32, value.KindInt64, value.KindDouble:
		return numberStyle.Render(v.Format())
	case value.KindBinary:
		return mutedStyle.Render(v.Format())
	}
	return v.Format() + mutedStyle.Render(" ("+v.Kind().String()+")")
}

// printStats writes report rows as aligned key/value lines. Flattened index
// rows, which follow their empty header row, are indented.
func printStats(w io.Writer, rows []stats.Row) {
	width := 0
	for _, r := range rows {
		if len(r.Key) > width {
			width = len(r.Key)
		}
	}
	nested := false
	for _, r := range rows {
		if r.Display == "" && r.Kind == stats.ByteSize {
			fmt.Fprintln(w, headingStyle.Render(r.Key))
			nested = true
			continue
		}
		key := r.Key
		if nested {
			key = "  " + key
		}
		fmt.Fprintf(w, "%-*s  %s\n", width+2, key, r.Display)
	}
}

// printPageFooter writes "page N of M (T documents)" unless everything fits one page.
func printPageFooter(w io.Writer, p *pagination.Pagination) {
	if p.PageSize() == pagination.PageSizeAll {
		return
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("page %d of %d (%d documents)", p.PageNumber(), p.TotalPageNumber(), p.TotalItemCount())))
}

func printDatabases(w io.Writer, dbs []types.Database) {
	for _, db := range dbs {
		fmt.Fprintln(w, headingStyle.Render(db.Name))
		for _, c := range db.Collections {
			fmt.Fprintf(w, "  %s\n", c.Name)
		}
	}
}

// printIndexes writes one line per index: name, keys, flags and size.
func printIndexes(w io.Writer, indexes []types.Index) {
	for _, idx := range indexes {
		keys, err := bson.MarshalExtJSON(idx.Keys, false, false)
		if err != nil {
			keys = []byte("?")
		}
		var flags []string
		if idx.Unique {
			flags = append(flags, "unique")
		}
		if idx.Sparse {
			flags = append(flags, "sparse")
		}
		if idx.TTL > 0 {
			flags = append(flags, fmt.Sprintf("ttl=%ds", idx.TTL))
		}
		line := fmt.Sprintf("%s %s %s", keyStyle.Render(idx.Name), string(keys), numberStyle.Render(stats.FormatBytes(float64(idx.Size))))
		if len(flags) > 0 {
			line += mutedStyle.Render(" " + strings.Join(flags, ","))
		}
		fmt.Fprintln(w, line)
	}
}

func printExplain(w io.Writer, e *types.ExplainResult) {
	rows := [][2]string{
		{"namespace", e.Namespace},
		{"plan", e.WinningPlan},
		{"index", e.IndexUsed},
		{"rejected plans", fmt.Sprint(e.RejectedPlans)},
		{"returned", fmt.Sprint(e.NReturned)},
		{"keys examined", fmt.Sprint(e.TotalKeysExamined)},
		{"docs examined", fmt.Sprint(e.TotalDocsExamined)},
		{"time", fmt.Sprintf("%d ms", e.ExecutionTimeMs)},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(w, "%-16s%s\n", r[0], r[1])
	}
	if e.IsCollectionScan {
		fmt.Fprintln(w, warningStyle.Render("collection scan: no index was used"))
	}
}

func printSchema(w io.Writer, r *schema.Result) {
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s: %d documents sampled", r.Namespace, r.SampleSize)))
	for _, f := range r.Fields {
		depth := strings.Count(f.Path, ".")
		fmt.Fprintf(w, "%s%s %s %s\n",
			strings.Repeat("  ", depth),
			keyStyle.Render(f.Path),
			stringStyle.Render(strings.Join(f.Types, " | ")),
			mutedStyle.Render(fmt.Sprintf("%.0f%%", f.Occurrence)))
	}
}
