package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/store"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Source LogSource
	Kind   string // only list entries of this kind
}

// DumpEntry is one log entry as dump lists it.
type DumpEntry struct {
	Index    int    `json:"index"`
	Time     int64  `json:"time"`
	Kind     string `json:"kind"`
	RootCall bool   `json:"root_call,omitempty"`
	Snapshot bool   `json:"snapshot,omitempty"`
	JIT      bool   `json:"jit_snapshot,omitempty"`
}

// DumpResult is the entry listing of one session.
type DumpResult struct {
	Session string      `json:"session"`
	Total   int         `json:"total"`
	Entries []DumpEntry `json:"entries"`
}

func (r DumpResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: %d entries\n", r.Session, r.Total)
	for _, e := range r.Entries {
		var marks []string
		if e.RootCall {
			marks = append(marks, "root")
		}
		if e.JIT {
			marks = append(marks, "jit-snapshot")
		}
		if e.Snapshot {
			marks = append(marks, "snapshot")
		}
		fmt.Fprintf(&b, "  %6d  [%d] %s", e.Index, e.Time, e.Kind)
		if len(marks) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(marks, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// SessionSummary is one archived session as dump lists it.
type SessionSummary struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Entries  int    `json:"entries"`
	Stored   int    `json:"stored"`
	Complete bool   `json:"complete"`
}

// SessionList is the listing of every session in an archive.
type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
}

func (l SessionList) Text() string {
	if len(l.Sessions) == 0 {
		return "No sessions archived\n"
	}
	var b strings.Builder
	for _, s := range l.Sessions {
		status := "complete"
		if !s.Complete {
			status = fmt.Sprintf("incomplete, %d of %d stored", s.Stored, s.Entries)
		}
		fmt.Fprintf(&b, "%s  %-24s %6d entries (%s)\n", s.ID, s.Label, s.Entries, status)
	}
	return b.String()
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump [log-dir]",
		Short: "List the entries of a recorded log",
		Long: `List every entry of a recorded log with its time and kind. Root calls and
snapshots are marked, since those are the places replay can seek to.

With --db and no --session, list the sessions archived in the database.

Examples:
  rewind dump ./run1
  rewind dump ./run1 --kind CallExistingFunction
  rewind dump --db rewind.db
  rewind dump --db rewind.db --session 0190c8e4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Source.resolve(args); err != nil {
				return err
			}
			return runDump(opts, cmd)
		},
	}

	opts.Source.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only list entries of this kind")

	return cmd
}

func runDump(opts *DumpOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	if opts.Kind != "" {
		if _, ok := eventlog.ParseKind(opts.Kind); !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown entry kind %q", opts.Kind))
		}
	}
	if opts.Source.Database != "" && opts.Source.Session == "" {
		st, err := openStore(opts.Source.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		list, err := listSessions(ctx, st)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		return out.Success(list)
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(ctx, opts.Source, cfg, opts.Logger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	result := DumpResult{
		Session: s.ID.String(),
		Total:   s.Log().Len(),
		Entries: []DumpEntry{},
	}
	for i, e := range s.Log().All() {
		if opts.Kind != "" && e.Kind.String() != opts.Kind {
			continue
		}
		info := eventlog.AccessTimeInRootCallOrSnapshot(e)
		result.Entries = append(result.Entries, DumpEntry{
			Index:    i,
			Time:     e.Time,
			Kind:     e.Kind.String(),
			RootCall: info.IsRootCall,
			Snapshot: info.IsSnapshot,
			JIT:      info.HasJITSnapshot,
		})
	}
	return out.Success(result)
}

func listSessions(ctx context.Context, st *store.Store) (SessionList, error) {
	infos, err := st.ListSessions(ctx)
	if err != nil {
		return SessionList{}, err
	}
	list := SessionList{Sessions: []SessionSummary{}}
	for _, info := range infos {
		state, err := st.GetSessionState(ctx, info.ID)
		if err != nil {
			return SessionList{}, err
		}
		list.Sessions = append(list.Sessions, SessionSummary{
			ID:       info.ID.String(),
			Label:    info.Label,
			Entries:  info.EntryCount,
			Stored:   state.Stored,
			Complete: state.IsComplete,
		})
	}
	return list, nil
}
