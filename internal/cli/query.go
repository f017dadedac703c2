package cli

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Session  string
	Label    string
	Kinds    []string
	From     int64
	To       int64
	Limit    int
}

// QueryRow is one matching archived entry.
type QueryRow struct {
	Session string `json:"session"`
	Seq     int    `json:"seq"`
	Time    int64  `json:"time"`
	Kind    string `json:"kind"`
	Size    int    `json:"size"`
}

// QueryResult lists the entries a query matched.
type QueryResult struct {
	Rows []QueryRow `json:"rows"`
}

func (r QueryResult) Text() string {
	if len(r.Rows) == 0 {
		return "No matching entries\n"
	}
	var b strings.Builder
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "%s  %6d  [%d] %s (%d bytes)\n", row.Session, row.Seq, row.Time, row.Kind, row.Size)
	}
	fmt.Fprintf(&b, "%d entries\n", len(r.Rows))
	return b.String()
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query --db <file>",
		Short: "Search archived entries across sessions",
		Long: `Search the entries archived in a database without decoding them. Every
filter given must hold; with none, every entry of every session is listed.
Results are ordered by session id, then position in the log.

Examples:
  rewind query --db rewind.db --kind Snapshot
  rewind query --db rewind.db --label nightly --kind CallExistingFunction --kind CodeParse
  rewind query --db rewind.db --session 0190c8e4-... --from 100 --to 200 --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite archive to search (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "only this session id")
	cmd.Flags().StringVar(&opts.Label, "label", "", "only sessions archived under this label")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only these entry kinds (repeatable)")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "earliest event time")
	cmd.Flags().Int64Var(&opts.To, "to", math.MaxInt64, "latest event time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows, 0 for all")

	return cmd
}

// buildQuery turns the flags into an entry query.
func (opts *QueryOptions) buildQuery(timeRange bool) queryir.Query {
	var preds []queryir.Predicate
	if opts.Session != "" {
		preds = append(preds, queryir.Equals{Field: queryir.FieldSession, Value: queryir.Str(opts.Session)})
	}
	if opts.Label != "" {
		preds = append(preds, queryir.Equals{Field: queryir.FieldLabel, Value: queryir.Str(opts.Label)})
	}
	if len(opts.Kinds) > 0 {
		values := make([]queryir.Value, len(opts.Kinds))
		for i, k := range opts.Kinds {
			values[i] = queryir.Str(k)
		}
		preds = append(preds, queryir.In{Field: queryir.FieldKind, Values: values})
	}
	if timeRange {
		preds = append(preds, queryir.Between{Field: queryir.FieldTime, Low: opts.From, High: opts.To})
	}

	q := queryir.Select{Limit: opts.Limit}
	if len(preds) > 0 {
		q.Filter = queryir.And{Predicates: preds}
	}
	return q
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	q := opts.buildQuery(cmd.Flags().Changed("from") || cmd.Flags().Changed("to"))
	if res := queryir.Validate(q); !res.Valid {
		return NewExitError(ExitCommandError, "invalid query: "+strings.Join(res.Problems, "; "))
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.QueryEntries(context.Background(), q)
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}
	result := QueryResult{Rows: make([]QueryRow, len(rows))}
	for i, r := range rows {
		result.Rows[i] = QueryRow{
			Session: r.Session.String(),
			Seq:     r.Seq,
			Time:    r.Time,
			Kind:    r.Kind,
			Size:    r.Size,
		}
	}
	return out.Success(result)
}
