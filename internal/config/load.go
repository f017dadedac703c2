package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/BurntSushi/toml"
)

//go:embed schema.cue
var schemaCUE string

// Error is a configuration problem, with the source position when CUE
// reports one.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := decode(cuecontext.New(), nil)
	if err != nil {
		// The embedded schema is concrete once defaulted.
		panic(fmt.Sprintf("config: schema defaults: %v", err))
	}
	return cfg
}

// Load reads a .cue or .toml file. An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes data, choosing the syntax from filename's extension.
func Parse(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()
	var user cue.Value
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue":
		user = ctx.CompileBytes(data, cue.Filename(filename))
	case ".toml":
		var raw map[string]any
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Config{}, &Error{Field: "toml", Message: fmt.Sprintf("%s: %v", filename, err)}
		}
		user = ctx.Encode(raw)
	default:
		return Config{}, &Error{Field: "file", Message: fmt.Sprintf("unsupported config type %q (want .cue or .toml)", ext)}
	}
	if err := user.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	return decode(ctx, &user)
}

func decode(ctx *cue.Context, user *cue.Value) (Config, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))
	if user != nil {
		v = v.Unify(*user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "config"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	msg, args := first.Msg()
	ce := &Error{Field: field, Message: fmt.Sprintf(msg, args...)}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
