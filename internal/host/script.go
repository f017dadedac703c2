package host

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/roach88/rewind/internal/runtime"
)

// ScriptError reports a line the built-in script format cannot accept.
type ScriptError struct {
	URI     string
	Line    int
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.URI, e.Line, e.Message)
}

type declaration struct {
	name     string
	external bool
	line     int
}

// parseDeclarations reads one declaration per line:
//
//	function <name>   binds a library function
//	external <name>   binds a host external function
//
// Blank lines and lines starting with # or // are ignored.
func parseDeclarations(uri, source string) ([]declaration, error) {
	var decls []declaration
	sc := bufio.NewScanner(strings.NewReader(source))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "//") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, &ScriptError{URI: uri, Line: line, Message: fmt.Sprintf("expected '<function|external> <name>', got %q", text)}
		}
		d := declaration{name: fields[1], line: line}
		switch fields[0] {
		case "function":
			if _, ok := library[d.name]; !ok {
				return nil, &ScriptError{URI: uri, Line: line, Message: fmt.Sprintf("unknown library function %q", d.name)}
			}
		case "external":
			if _, ok := externals[d.name]; !ok {
				return nil, &ScriptError{URI: uri, Line: line, Message: fmt.Sprintf("unknown external function %q", d.name)}
			}
			d.external = true
		default:
			return nil, &ScriptError{URI: uri, Line: line, Message: fmt.Sprintf("unknown declaration %q", fields[0])}
		}
		decls = append(decls, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script %s: %w", uri, err)
	}
	return decls, nil
}

// ParseScript compiles source. Running the returned function binds every
// declared name on the global object.
func (h *Builtin) ParseScript(ctx *runtime.Context, uri, source string) (*runtime.Object, error) {
	decls, err := parseDeclarations(uri, source)
	if err != nil {
		return nil, err
	}
	script := runtime.NewFunction(ctx, "", 0, func(ctx *runtime.Context, _ runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		for _, d := range decls {
			fn, err := h.RestoreFunction(ctx, d.name, d.external)
			if err != nil {
				return nil, err
			}
			fn.SetSourceLocation(runtime.SourceLocation{URI: uri, Function: d.name, Line: d.line, Column: 1})
			ctx.DefineGlobal(d.name, fn)
		}
		return runtime.Undefined, nil
	})
	script.SetSourceLocation(runtime.SourceLocation{URI: uri, Line: 1, Column: 1})
	return script, nil
}
