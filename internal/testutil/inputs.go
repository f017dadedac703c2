package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/host"
)

// Inputs are the non-deterministic values a built-in host reads. Tests fix
// them so a recording is byte-identical from run to run.
type Inputs struct {
	Clock    *DeterministicClock
	Seed     [2]uint64
	HostName string
}

// DefaultInputs returns the inputs golden files are recorded with.
func DefaultInputs() Inputs {
	return Inputs{
		Clock:    NewDeterministicClock(1_700_000_000_000, 250),
		Seed:     [2]uint64{0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9},
		HostName: "test-host",
	}
}

// NewHost returns a built-in host that reads in and logs nowhere.
func NewHost(in Inputs) *host.Builtin {
	return NewHostConfig(in, array.DefaultConfig())
}

// NewHostConfig is NewHost with explicit array tuning.
func NewHostConfig(in Inputs, cfg array.Config) *host.Builtin {
	h := host.NewBuiltin(cfg, DiscardLogger())
	if in.Clock == nil {
		in.Clock = DefaultInputs().Clock
	}
	h.Now = in.Clock.Now
	h.Seed = func() (uint64, uint64) { return in.Seed[0], in.Seed[1] }
	h.Name = func() string { return in.HostName }
	return h
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
