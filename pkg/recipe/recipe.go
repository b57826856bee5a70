// Package recipe evaluates design recipes: small Lisp scripts that declare
// parts and replay a sequence of workspace edits. Scripts run in a fresh
// zygomys sandbox per evaluation.
package recipe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/bangle/pkg/catalog"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/go-gl/mathgl/mgl64"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Op identifies a recipe command.
type Op int

const (
	OpDrop Op = iota
	OpClear
	OpResetLattice
)

func (o Op) String() string {
	switch o {
	case OpDrop:
		return "drop"
	case OpClear:
		return "clear"
	case OpResetLattice:
		return "reset-lattice"
	default:
		return "unknown"
	}
}

// Command is one workspace edit, in script order.
type Command struct {
	Op       Op
	PartID   string     // OpDrop
	Position mgl64.Vec3 // OpDrop
	Count    int        // OpResetLattice
	Length   float64    // OpResetLattice
}

// Recipe is the product of a successful evaluation.
type Recipe struct {
	Parts    []catalog.Part
	Commands []Command
}

// Catalog returns the parts declared by the recipe as a catalog.
func (r *Recipe) Catalog() *catalog.Catalog {
	return catalog.New(r.Parts...)
}

// Engine evaluates recipes. It is safe for concurrent use; each call to
// Evaluate creates a fresh sandboxed environment.
type Engine struct {
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates an engine with the default evaluation timeout.
func NewEngine() *Engine {
	return &Engine{Timeout: EvalTimeout}
}

// Evaluate runs source and collects the declared parts and commands.
//
// Return semantics:
//   - On success: returns recipe + nil errors + nil error
//   - On parse/eval failure: returns nil recipe + eval errors + nil error
//   - On fatal failure: returns nil + nil + error (ErrEvalTimeout,
//     ErrSuperseded or a recovered panic)
func (e *Engine) Evaluate(source string) (*Recipe, []EvalError, error) {
	gen := e.nextGeneration()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		rec, evalErrs, err := e.evaluate(source)
		ch <- evalResult{recipe: rec, errors: evalErrs, err: err}
	}()

	return e.wait(ch, gen)
}

func (e *Engine) evaluate(source string) (*Recipe, []EvalError, error) {
	rec := &Recipe{}
	if strings.TrimSpace(source) == "" {
		return rec, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, rec)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return rec, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting a line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
