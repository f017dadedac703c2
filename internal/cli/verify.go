package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/replay"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Source LogSource
}

// VerifyCheck is the result of one verification.
type VerifyCheck struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// VerifyResult collects the checks run against one log.
type VerifyResult struct {
	Session string        `json:"session"`
	Format  string        `json:"format"`
	Entries int           `json:"entries"`
	Digest  string        `json:"digest"`
	Pass    bool          `json:"pass"`
	Checks  []VerifyCheck `json:"checks"`
}

func (r VerifyResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (%s, %d entries)\n", r.Session, r.Format, r.Entries)
	fmt.Fprintf(&b, "  digest %s\n", r.Digest)
	for _, c := range r.Checks {
		mark := "ok"
		if !c.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "  %-4s %s", mark, c.Name)
		if c.Detail != "" {
			fmt.Fprintf(&b, ": %s", c.Detail)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *VerifyResult) add(name string, err error) {
	c := VerifyCheck{Name: name, Pass: err == nil}
	if err != nil {
		c.Detail = err.Error()
		r.Pass = false
	}
	r.Checks = append(r.Checks, c)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify [log-dir]",
		Short: "Check that a log round-trips and replays deterministically",
		Long: `Check a recorded log three ways:

  round-trip    re-emitting the parsed log reproduces it byte for byte
  cross-format  converting to the other encoding and back reproduces it
  determinism   two independent replays end the same way

Exit codes:
  0 - Every check passed
  1 - A check failed
  2 - Command error (log not found, unparseable, etc.)

Examples:
  rewind verify ./run1
  rewind verify --db rewind.db --session 0190c8e4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Source.resolve(args); err != nil {
				return err
			}
			return runVerify(opts, cmd)
		},
	}

	opts.Source.addFlags(cmd)

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	logger := opts.Logger(cmd)
	out := opts.formatter(cmd)

	var (
		data   []byte
		format logio.Format
	)
	if opts.Source.Database == "" {
		data, format, err = readLog(opts.Source.Dir)
		if err != nil {
			return err
		}
	} else {
		// An archived session is checked through its binary encoding.
		s, err := openSession(context.Background(), opts.Source, cfg, logger)
		if err != nil {
			return err
		}
		format = logio.FormatBinary
		data, err = emitBytes(s, format)
		s.Close()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode archived session", err)
		}
	}

	first, err := parseInto(data, format, cfg, logger)
	if err != nil {
		return err
	}
	defer first.Close()

	digest, err := replay.Digest(first)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest log", err)
	}
	result := VerifyResult{
		Session: first.ID.String(),
		Digest:  digest,
		Format:  string(format),
		Entries: first.Log().Len(),
		Pass:    true,
	}

	result.add("round-trip", sameBytes(data, func() ([]byte, error) {
		return emitBytes(first, format)
	}))

	other := logio.FormatText
	if format == logio.FormatText {
		other = logio.FormatBinary
	}
	converted, err := emitBytes(first, other)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to convert log", err)
	}
	second, err := parseInto(converted, other, cfg, logger)
	if err != nil {
		result.add("cross-format", err)
	} else {
		defer second.Close()
		result.add("cross-format", sameBytes(data, func() ([]byte, error) {
			return emitBytes(second, format)
		}))
	}

	if second == nil {
		if second, err = parseInto(data, format, cfg, logger); err != nil {
			return err
		}
		defer second.Close()
	}
	result.add("determinism", sameOutcome(first, second))

	if err := out.Success(result); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, "log did not verify")
	}
	return nil
}

func emitBytes(s *replay.Session, format logio.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := replay.Emit(s, logio.NewWriter(format, &buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sameBytes(want []byte, emit func() ([]byte, error)) error {
	got, err := emit()
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("re-emitted log differs (%d bytes, want %d)", len(got), len(want))
	}
	return nil
}

// sameOutcome replays both sessions to the end and compares how they stop.
func sameOutcome(a, b *replay.Session) error {
	var outcomes [2]replay.Outcome
	for i, s := range []*replay.Session{a, b} {
		r, err := replay.NewReplayer(s)
		if err != nil {
			return err
		}
		if outcomes[i], err = r.Run(); err != nil {
			return fmt.Errorf("replay %d: %w", i+1, err)
		}
	}
	if outcomes[0] != outcomes[1] {
		return fmt.Errorf("replays ended differently: %#v vs %#v", outcomes[0], outcomes[1])
	}
	if a.Cursor() != b.Cursor() {
		return fmt.Errorf("replays stopped at entries %d and %d", a.Cursor(), b.Cursor())
	}
	return nil
}
