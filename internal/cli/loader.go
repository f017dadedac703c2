package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/host"
	"github.com/roach88/rewind/internal/logio"
	"github.com/roach88/rewind/internal/replay"
	"github.com/roach88/rewind/internal/store"
)

// LogSource says where a recorded log is read from: a directory written by
// record, or a session archived in a database.
type LogSource struct {
	Dir      string
	Database string
	Session  string
}

func (src *LogSource) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&src.Database, "db", "", "read from a SQLite archive instead of a directory")
	cmd.Flags().StringVar(&src.Session, "session", "", "archived session id (with --db)")
}

// resolve fills Dir from args and checks exactly one source was named.
func (src *LogSource) resolve(args []string) error {
	if len(args) > 0 {
		src.Dir = args[0]
	}
	switch {
	case src.Dir != "" && src.Database != "":
		return NewExitError(ExitCommandError, "give either a log directory or --db, not both")
	case src.Dir == "" && src.Database == "":
		return NewExitError(ExitCommandError, "a log directory or --db is required")
	case src.Session != "" && src.Database == "":
		return NewExitError(ExitCommandError, "--session needs --db")
	}
	return nil
}

// findLog returns the log file in dir and its format. A binary log wins
// when both exist.
func findLog(dir string) (string, logio.Format, error) {
	for _, f := range []logio.Format{logio.FormatBinary, logio.FormatText} {
		path := filepath.Join(dir, f.FileName())
		if _, err := os.Stat(path); err == nil {
			return path, f, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", "", WrapExitError(ExitCommandError, "failed to read log directory", err)
		}
	}
	return "", "", NewExitError(ExitCommandError, fmt.Sprintf("no log found in %s", dir))
}

// readLog returns the raw bytes of the log in dir.
func readLog(dir string) ([]byte, logio.Format, error) {
	path, format, err := findLog(dir)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "failed to read log", err)
	}
	return data, format, nil
}

// newReplaySession makes an empty replay session over a built-in host.
func newReplaySession(cfg config.Config, logger *slog.Logger) (*replay.Session, error) {
	h := host.NewBuiltin(cfg.ArrayTuning(), logger)
	s, err := replay.New(h, replay.ModeReplay, cfg.SessionOptions(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create session", err)
	}
	return s, nil
}

// parseInto parses data into a fresh replay session.
func parseInto(data []byte, format logio.Format, cfg config.Config, logger *slog.Logger) (*replay.Session, error) {
	s, err := newReplaySession(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := replay.Parse(s, logio.NewReader(format, bytes.NewReader(data))); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to parse log", err)
	}
	return s, nil
}

// openSession loads src into a replay session. The caller closes it.
func openSession(ctx context.Context, src LogSource, cfg config.Config, logger *slog.Logger) (*replay.Session, error) {
	if src.Database == "" {
		data, format, err := readLog(src.Dir)
		if err != nil {
			return nil, err
		}
		return parseInto(data, format, cfg, logger)
	}

	if src.Session == "" {
		return nil, NewExitError(ExitCommandError, "--session is required with --db")
	}
	id, err := uuid.Parse(src.Session)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid session id", err)
	}
	st, err := openStore(src.Database)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	s, err := newReplaySession(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := replay.Load(ctx, s, st, id); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load session", err)
	}
	if s.Log().Len() == 0 {
		s.Close()
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("session %s not found", id))
	}
	return s, nil
}

// openStore opens an existing archive read-only.
func openStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.OpenWith(path, store.Options{ReadOnly: true})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// storeForWrite opens or creates an archive.
func storeForWrite(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
