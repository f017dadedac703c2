package harness

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/host"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/replay"
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/testutil"
)

// scenarioNamespace seeds the name-based session ids of scenario runs.
var scenarioNamespace = uuid.MustParse("6f1c2b7e-3d4a-4e5f-9a8b-7c6d5e4f3a2b")

// SessionID is the id a scenario's recording is given.
func SessionID(name string) uuid.UUID {
	return uuid.NewSHA1(scenarioNamespace, []byte(name))
}

// verifyInputs differ from testutil.DefaultInputs so a replay that reads
// the host instead of the log produces different values.
func verifyInputs() testutil.Inputs {
	return testutil.Inputs{
		Clock:    testutil.NewDeterministicClock(0, 1),
		Seed:     [2]uint64{1, 1},
		HostName: "verify-host",
	}
}

// runner carries one recording.
type runner struct {
	s      *replay.Session
	global *runtime.Object
	vars   map[string]runtime.Value
	result *Result
}

// Recording is a finished scenario recording. Close releases the session.
type Recording struct {
	Session *replay.Session
	Result  *Result
}

func (r *Recording) Close() { r.Session.Close() }

// Record runs scenario against a recording session with fixed inputs and
// evaluates its expectations and assertions. Bodies follow cfg.
func Record(scenario *Scenario, cfg config.Config, logger *slog.Logger) (*Recording, error) {
	if logger == nil {
		logger = testutil.DiscardLogger()
	}
	h := testutil.NewHostConfig(testutil.DefaultInputs(), cfg.ArrayTuning())
	opts := cfg.SessionOptions(logger)
	opts.Debugger = nil

	s, err := replay.New(h, replay.ModeRecord, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}
	rec := &Recording{Session: s}
	if err := rec.record(scenario, h); err != nil {
		s.Close()
		return nil, err
	}
	return rec, nil
}

func (rec *Recording) record(scenario *Scenario, h *host.Builtin) error {
	s := rec.Session
	s.ID = SessionID(scenario.Name)
	h.API = s

	ctx, err := s.CreateContext()
	if err != nil {
		return fmt.Errorf("failed to create context: %w", err)
	}
	if err := s.SetActiveContext(ctx); err != nil {
		return fmt.Errorf("failed to activate context: %w", err)
	}

	r := &runner{s: s, global: ctx.Global, vars: map[string]runtime.Value{}, result: NewResult()}
	for _, script := range scenario.Scripts {
		if err := r.load(script); err != nil {
			return err
		}
	}
	for i, step := range scenario.Steps {
		if err := r.step(i, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	if err := s.HostExit(scenario.Exit); err != nil {
		return fmt.Errorf("failed to record exit: %w", err)
	}

	result := r.result
	for _, e := range s.Log().All() {
		result.Trace = append(result.Trace, TraceEvent{Time: e.Time, Kind: e.Kind.String()})
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	rec.Result = result
	return nil
}

// Run records scenario, emits the text log, then replays it on a host with
// different inputs to check it reproduces.
//
// Body side files are not used: the emitted log keeps script sources inline.
func Run(scenario *Scenario, cfg config.Config) (*Result, error) {
	cfg.Log.BodyDir = ""
	logger := testutil.DiscardLogger()
	rec, err := Record(scenario, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	result := rec.Result
	var buf bytes.Buffer
	if err := replay.Emit(rec.Session, logio.NewWriter(logio.FormatText, &buf)); err != nil {
		return nil, fmt.Errorf("failed to emit log: %w", err)
	}
	result.Log = buf.Bytes()

	verifyReplay(result, scenario.Exit, cfg, logger)
	return result, nil
}

func (r *runner) load(script Script) error {
	fn, err := r.s.ParseScript(script.URI, script.Source)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", script.URI, err)
	}
	if _, err := r.s.CallFunction(fn, runtime.Undefined, nil); err != nil {
		return fmt.Errorf("failed to run %s: %w", script.URI, err)
	}
	return nil
}

func (r *runner) step(i int, step Step) error {
	switch {
	case step.Snapshot:
		return r.s.TakeSnapshot()
	case step.Set != "":
		v, err := toScript(r.s, r.vars, step.Value)
		if err != nil {
			return err
		}
		return r.s.SetProperty(r.global, step.Set, v)
	}

	fn, err := r.s.GetProperty(r.global, step.Call)
	if err != nil {
		return err
	}
	args := make([]runtime.Value, len(step.Args))
	for j, a := range step.Args {
		if args[j], err = toScript(r.s, r.vars, a); err != nil {
			return err
		}
	}

	v, err := r.s.CallFunction(fn, runtime.Undefined, args)
	ex, thrown := runtime.AsException(err)
	if err != nil && !thrown {
		return err
	}
	if thrown {
		// The host clears what escaped, as an embedder would.
		if _, _, err := r.s.GetAndClearException(); err != nil {
			return err
		}
	}

	if step.As != "" && !thrown {
		r.vars[step.As] = v
	}
	if step.Expect == nil {
		if thrown {
			r.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected %s", i, step.Call, ex.Error()))
		}
		return nil
	}

	switch {
	case step.Expect.Throws != "":
		got := ""
		if thrown {
			got = strings.TrimPrefix(ex.Error(), "Uncaught ")
		}
		if got != step.Expect.Throws {
			r.result.AddError(fmt.Sprintf("steps[%d] %s: expected throw %q, got %q", i, step.Call, step.Expect.Throws, got))
		}
	case thrown:
		r.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected %s", i, step.Call, ex.Error()))
	default:
		if got := fromScript(v); !sameValue(step.Expect.Value, got) {
			r.result.AddError(fmt.Sprintf("steps[%d] %s: expected %v, got %v", i, step.Call, normalize(step.Expect.Value), got))
		}
	}
	return nil
}

// verifyReplay parses the emitted log into a fresh session and replays it.
func verifyReplay(result *Result, exit int32, cfg config.Config, logger *slog.Logger) {
	in := verifyInputs()
	opts := cfg.SessionOptions(logger)
	opts.Debugger = nil

	s, err := replay.New(testutil.NewHostConfig(in, cfg.ArrayTuning()), replay.ModeReplay, opts)
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return
	}
	defer s.Close()
	if err := replay.Parse(s, logio.NewReader(logio.FormatText, bytes.NewReader(result.Log))); err != nil {
		result.AddError(fmt.Sprintf("replay: parse: %v", err))
		return
	}
	rp, err := replay.NewReplayer(s)
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return
	}
	out, err := rp.Run()
	result.Outcome = out
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return
	}
	if end, ok := out.(replay.AbortEndOfLog); !ok || end.ExitCode != exit {
		result.AddError(fmt.Sprintf("replay: ended with %v, expected exit %d", out, exit))
	}
	if n := in.Clock.Readings(); n != 0 {
		result.AddError(fmt.Sprintf("replay: read the host clock %d times", n))
	}
}
