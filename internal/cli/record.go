package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/harness"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/replay"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Out       string
	Database  string
	LogFormat string // overrides log.format from the config
}

// RecordResult describes a finished recording.
type RecordResult struct {
	Scenario string   `json:"scenario"`
	Session  string   `json:"session"`
	Entries  int      `json:"entries"`
	Digest   string   `json:"digest"`
	Format   string   `json:"format"`
	Path     string   `json:"path"`
	Archived bool     `json:"archived"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
}

func (r RecordResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recorded %s: session %s, %d entries\n", r.Scenario, r.Session, r.Entries)
	fmt.Fprintf(&b, "  log: %s (%s)\n", r.Path, r.Format)
	fmt.Fprintf(&b, "  digest: %s\n", r.Digest)
	if r.Archived {
		fmt.Fprintf(&b, "  archived in database\n")
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  FAIL: %s\n", e)
	}
	return b.String()
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <scenario.yaml>",
		Short: "Record a scenario into an event log",
		Long: `Run a YAML scenario against a recording session and write the log.

The log goes to <out>/log.txt or <out>/log.cbor depending on the log
format. With --db the session is also archived in a SQLite database.

Exit codes:
  0 - Recorded and every expectation held
  1 - Recorded, but an expectation or assertion failed
  2 - Command error (bad scenario, unwritable output, etc.)

Examples:
  rewind record scenario.yaml --out ./run1
  rewind record scenario.yaml --out ./run1 --log-format binary --db rewind.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output directory (required)")
	_ = cmd.MarkFlagRequired("out")
	cmd.Flags().StringVar(&opts.Database, "db", "", "also archive the session in this SQLite database")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", "", "log encoding (text|binary), overrides the config")

	return cmd
}

func runRecord(opts *RecordOptions, scenarioPath string, cmd *cobra.Command) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	if opts.LogFormat != "" {
		if _, err := logio.ParseFormat(opts.LogFormat); err != nil {
			return WrapExitError(ExitCommandError, "invalid --log-format", err)
		}
		cfg.Log.Format = opts.LogFormat
	}
	format := cfg.LogFormat()
	logger := opts.Logger(cmd)
	out := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	out.VerboseLog("Recording scenario %s (%d steps)", scenario.Name, len(scenario.Steps))

	rec, err := harness.Record(scenario, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record scenario", err)
	}
	defer rec.Close()

	if err := os.MkdirAll(opts.Out, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create output directory", err)
	}
	path := filepath.Join(opts.Out, format.FileName())
	for _, other := range []logio.Format{logio.FormatText, logio.FormatBinary} {
		if other != format {
			// A stale log in the other encoding would shadow this one.
			if err := os.Remove(filepath.Join(opts.Out, other.FileName())); err != nil && !os.IsNotExist(err) {
				return WrapExitError(ExitCommandError, "failed to clear output directory", err)
			}
		}
	}
	if err := writeLog(rec.Session, format, path); err != nil {
		return WrapExitError(ExitCommandError, "failed to write log", err)
	}

	digest, err := replay.Digest(rec.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest log", err)
	}
	result := RecordResult{
		Scenario: scenario.Name,
		Digest:   digest,
		Session:  rec.Session.ID.String(),
		Entries:  rec.Session.Log().Len(),
		Format:   string(format),
		Path:     path,
		Pass:     rec.Result.Pass,
		Errors:   rec.Result.Errors,
	}

	if opts.Database != "" {
		st, err := storeForWrite(opts.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := replay.Save(context.Background(), rec.Session, st, scenario.Name); err != nil {
			return WrapExitError(ExitCommandError, "failed to archive session", err)
		}
		result.Archived = true
	}

	if err := out.Success(result); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// writeLog emits s to path, replacing any previous log.
func writeLog(s *replay.Session, format logio.Format, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return replay.Emit(s, logio.NewWriter(format, f))
}
