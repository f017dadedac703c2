// Package host is the embedding side of a recording: the callbacks the
// replay engine uses to create script contexts and host-backed objects, and
// a built-in host that runs small line-oriented scripts over the array
// engine.
package host

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/runtime"
)

// Callbacks is the table the replay engine calls for anything that needs
// the host: these are the only host-specific operations it performs.
type Callbacks interface {
	// CreateContext makes a fresh script context with its intrinsics.
	CreateContext(id int64) (*runtime.Context, error)
	// ActivateContext makes ctx current; nil deactivates.
	ActivateContext(ctx *runtime.Context) error
	// CreateExternalObject makes a host-backed object in ctx.
	CreateExternalObject(ctx *runtime.Context) (*runtime.Object, error)
	// NotifyScriptLoaded tells the host a script finished loading.
	NotifyScriptLoaded(ctx *runtime.Context, uri, source string)
}

// Environment extends Callbacks with the script-language operations a
// replay must redo: loading code and recreating host functions.
type Environment interface {
	Callbacks
	// ParseScript compiles source and returns a function that runs it.
	ParseScript(ctx *runtime.Context, uri, source string) (*runtime.Object, error)
	// CreateFunction makes the host external function called name.
	CreateFunction(ctx *runtime.Context, name string) (*runtime.Object, error)
	// RestoreFunction recreates a function captured in a snapshot.
	RestoreFunction(ctx *runtime.Context, name string, external bool) (*runtime.Object, error)
}

// API is what external functions use to touch script state. A recording
// session implements it so those effects land in the log and can be
// replayed without rerunning the external function.
type API interface {
	CallFunction(fn, this runtime.Value, args []runtime.Value) (runtime.Value, error)
	AllocateExternalObject() (*runtime.Object, error)
	SetProperty(obj runtime.Value, name string, v runtime.Value) error
}

// directAPI applies effects straight to the active context.
type directAPI struct{ h *Builtin }

func (d directAPI) CallFunction(fn, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	return runtime.Call(d.h.active, fn, this, args)
}

func (d directAPI) AllocateExternalObject() (*runtime.Object, error) {
	return d.h.CreateExternalObject(d.h.active)
}

func (d directAPI) SetProperty(obj runtime.Value, name string, v runtime.Value) error {
	o, err := runtime.ToObject(d.h.active, obj)
	if err != nil {
		return err
	}
	return o.Set(d.h.active, runtime.Key(name), v)
}

// Builtin is the host used by the CLI and the tests.
type Builtin struct {
	cfg    array.Config
	logger *slog.Logger

	// API is how external functions reach back into script. A recording
	// session replaces it.
	API API
	// Now and Seed are the non-deterministic inputs scripts can read.
	Now  func() float64
	Seed func() (uint64, uint64)
	// Name is returned by the hostName library function.
	Name func() string

	active  *runtime.Context
	counter int
	loaded  []string
}

// NewBuiltin returns a host whose contexts use cfg for arrays. A nil
// logger uses slog.Default().
func NewBuiltin(cfg array.Config, logger *slog.Logger) *Builtin {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Builtin{
		cfg:    cfg,
		logger: logger,
		Now: func() float64 {
			return float64(time.Now().UnixMilli())
		},
		Seed: func() (uint64, uint64) {
			var b [16]byte
			rand.Read(b[:])
			return binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])
		},
		Name: func() string {
			name, err := os.Hostname()
			if err != nil {
				return "unknown"
			}
			return name
		},
	}
	h.API = directAPI{h}
	return h
}

func (h *Builtin) CreateContext(id int64) (*runtime.Context, error) {
	ctx := runtime.NewContext(id)
	array.Install(ctx, h.cfg)
	h.logger.Debug("context created", "context", id)
	return ctx, nil
}

func (h *Builtin) ActivateContext(ctx *runtime.Context) error {
	h.active = ctx
	return nil
}

// Active returns the current context, if any.
func (h *Builtin) Active() *runtime.Context { return h.active }

func (h *Builtin) CreateExternalObject(ctx *runtime.Context) (*runtime.Object, error) {
	if ctx == nil {
		return nil, fmt.Errorf("create external object: no active context")
	}
	o := ctx.NewObject()
	o.SetClass("External")
	return o, nil
}

func (h *Builtin) NotifyScriptLoaded(ctx *runtime.Context, uri, _ string) {
	h.loaded = append(h.loaded, uri)
	h.logger.Debug("script loaded", "context", ctx.ID(), "uri", uri)
}

// Loaded lists the scripts loaded so far, in order.
func (h *Builtin) Loaded() []string { return h.loaded }

func (h *Builtin) CreateFunction(ctx *runtime.Context, name string) (*runtime.Object, error) {
	return h.RestoreFunction(ctx, name, true)
}

func (h *Builtin) RestoreFunction(ctx *runtime.Context, name string, external bool) (*runtime.Object, error) {
	if external {
		ext, ok := externals[name]
		if !ok {
			return nil, fmt.Errorf("unknown external function %q", name)
		}
		return runtime.NewExternalFunction(ctx, name, ext.arity, h.bind(ext.fn)), nil
	}
	lib, ok := library[name]
	if !ok {
		return nil, fmt.Errorf("unknown library function %q", name)
	}
	return runtime.NewFunction(ctx, name, lib.arity, h.bind(lib.fn)), nil
}

type hostFunc func(h *Builtin, ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error)

type binding struct {
	arity int
	fn    hostFunc
}

func (h *Builtin) bind(fn hostFunc) runtime.NativeFunction {
	return func(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return fn(h, ctx, this, args)
	}
}
