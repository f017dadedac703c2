package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/replay"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Source          LogSource
	Seek            int64 // root call time to start from, 0 replays everything
	BreakOnUncaught bool
}

// ReplayResult describes how a replay ended.
type ReplayResult struct {
	Session  string `json:"session"`
	Entries  int    `json:"entries"`
	Outcome  string `json:"outcome"` // "end_of_log" or "uncaught_exception"
	ExitCode int32  `json:"exit_code"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
	Executed int    `json:"executed"` // entries executed by this run
}

func (r ReplayResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replayed session %s (%d of %d entries)\n", r.Session, r.Executed, r.Entries)
	switch r.Outcome {
	case "uncaught_exception":
		fmt.Fprintf(&b, "  stopped on uncaught exception at %s: %s\n", r.Location, r.Message)
	default:
		fmt.Fprintf(&b, "  reached end of log, host exit code %d\n", r.ExitCode)
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [log-dir]",
		Short: "Replay a recorded log",
		Long: `Replay a recorded log against a fresh host. Every value the host supplied
while recording is taken from the log, so the replay never reads the clock,
the random source or the host name.

Exit codes:
  0 - Replay reached the end of the log or a debugger stop
  1 - Replay diverged from the log
  2 - Command error (log not found, unreadable, etc.)

Examples:
  rewind replay ./run1
  rewind replay ./run1 --seek 42 --break-on-uncaught
  rewind replay --db rewind.db --session 0190c8e4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Source.resolve(args); err != nil {
				return err
			}
			return runReplay(opts, cmd)
		},
	}

	opts.Source.addFlags(cmd)
	cmd.Flags().Int64Var(&opts.Seek, "seek", 0, "start at the root call recorded at this time")
	cmd.Flags().BoolVar(&opts.BreakOnUncaught, "break-on-uncaught", false, "stop at the first uncaught exception")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	if opts.BreakOnUncaught {
		cfg.Replay.BreakOnUncaught = true
	}
	logger := opts.Logger(cmd)
	out := opts.formatter(cmd)

	s, err := openSession(context.Background(), opts.Source, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := replay.NewReplayer(s)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start replay", err)
	}
	if opts.Seek != 0 {
		if err := r.SeekRootCall(opts.Seek); err != nil {
			return replayFailure(out, "seek failed", err)
		}
		out.VerboseLog("Seeked to root call at time %d (entry %d)", opts.Seek, s.Cursor())
	}
	start := s.Cursor()

	outcome, err := r.Run()
	if err != nil {
		return replayFailure(out, "replay diverged", err)
	}

	result := ReplayResult{
		Session:  s.ID.String(),
		Entries:  s.Log().Len(),
		Executed: s.Cursor() - start,
	}
	describeOutcome(&result, outcome)
	return out.Success(result)
}

func describeOutcome(result *ReplayResult, outcome replay.Outcome) {
	switch o := outcome.(type) {
	case replay.AbortUncaughtException:
		result.Outcome = "uncaught_exception"
		result.Location = fmt.Sprintf("%s:%d", o.Location.URI, o.Location.Line)
		result.Message = o.Message
	case replay.AbortEndOfLog:
		result.Outcome = "end_of_log"
		result.ExitCode = o.ExitCode
	}
}

// replayFailure reports a replay error and returns the matching exit error:
// divergence is a failure, anything else a command error.
func replayFailure(out *OutputFormatter, msg string, err error) error {
	code := string(replay.ErrorCode(err))
	exit := ExitFailure
	if code == "" || code == string(replay.ErrCodeHostFailure) {
		exit = ExitCommandError
		if code == "" {
			code = "E_COMMAND"
		}
	}
	_ = out.Error(code, fmt.Sprintf("%s: %v", msg, err), nil)
	return WrapExitError(exit, msg, err)
}
