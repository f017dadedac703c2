// Package config loads recording and replay settings from CUE or TOML
// files. Both are checked against an embedded CUE schema that also
// supplies the defaults.
package config

import (
	"log/slog"

	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/replay"
)

// Config is the validated, fully defaulted configuration.
type Config struct {
	Array  ArrayConfig  `json:"array"`
	Log    LogConfig    `json:"log"`
	Replay ReplayConfig `json:"replay"`
}

type ArrayConfig struct {
	BTreeThreshold         int    `json:"btree_threshold"`
	ForceBTree             bool   `json:"force_btree"`
	DisableBTree           bool   `json:"disable_btree"`
	SortInsertionThreshold int    `json:"sort_insertion_threshold"`
	MaxElements            uint32 `json:"max_elements"`
}

type LogConfig struct {
	BlockSize        int    `json:"block_size"`
	Format           string `json:"format"`
	SnapshotInterval int    `json:"snapshot_interval"`
	// BodyDir holds script sources out of line. Empty keeps them inline.
	BodyDir string `json:"body_dir"`
}

type ReplayConfig struct {
	BreakOnUncaught bool `json:"break_on_uncaught"`
}

// ArrayTuning converts the array section for host.NewBuiltin.
func (c Config) ArrayTuning() array.Config {
	return array.Config{
		BTreeThreshold:         c.Array.BTreeThreshold,
		ForceBTree:             c.Array.ForceBTree,
		DisableBTree:           c.Array.DisableBTree,
		SortInsertionThreshold: c.Array.SortInsertionThreshold,
		MaxElements:            c.Array.MaxElements,
	}
}

// LogFormat returns the configured log encoding. The schema only admits
// known names.
func (c Config) LogFormat() logio.Format {
	return logio.Format(c.Log.Format)
}

// SessionOptions builds replay options. Bodies go to BodyDir when set.
func (c Config) SessionOptions(logger *slog.Logger) replay.Options {
	opts := replay.Options{
		BlockSize:        c.Log.BlockSize,
		SnapshotInterval: c.Log.SnapshotInterval,
		Logger:           logger,
	}
	if c.Log.BodyDir != "" {
		opts.Bodies = logio.DirBodyStore{Dir: c.Log.BodyDir}
	}
	if c.Replay.BreakOnUncaught {
		opts.Debugger = &replay.BreakOnUncaught{}
	}
	return opts
}
