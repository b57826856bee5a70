package recipe

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine()

	for _, src := range []string{"", "   \n\t  \n  "} {
		rec, evalErrs, err := eng.Evaluate(src)
		if err != nil {
			t.Fatalf("unexpected fatal error: %v", err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("unexpected eval errors: %v", evalErrs)
		}
		if rec == nil {
			t.Fatal("expected non-nil recipe")
		}
		if len(rec.Parts) != 0 || len(rec.Commands) != 0 {
			t.Errorf("expected empty recipe, got %+v", rec)
		}
	}
}

func TestEvaluateRecipe(t *testing.T) {
	eng := NewEngine()

	source := `
;; two pearls around a charm
(part "pearl" :name "Pearl" :asset "sdf:sphere:0.1" :category "bead")
(part "star" :asset "sdf:charm:0.2" :scale 1.5)
(reset-lattice :count 60 :length 4.5)
(drop "pearl" :at -0.5)
(drop "star" :at 0.05 :y 0.3)
(drop "pearl" :at 0.5)
(clear)
`
	rec, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}

	if len(rec.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(rec.Parts))
	}
	if p := rec.Parts[0]; p.ID != "pearl" || p.Name != "Pearl" || p.AssetRef != "sdf:sphere:0.1" || p.Category != "bead" {
		t.Errorf("first part = %+v", p)
	}
	star := rec.Parts[1]
	if star.ID != "star" || star.DefaultTransform == nil || star.DefaultTransform.Scale != [3]float64{1.5, 1.5, 1.5} {
		t.Errorf("second part = %+v", star)
	}
	if _, ok := rec.Catalog().Lookup("star"); !ok {
		t.Error("recipe catalog is missing star")
	}

	want := []Command{
		{Op: OpResetLattice, Count: 60, Length: 4.5},
		{Op: OpDrop, PartID: "pearl", Position: mgl64.Vec3{-0.5, 0, 0}},
		{Op: OpDrop, PartID: "star", Position: mgl64.Vec3{0.05, 0.3, 0}},
		{Op: OpDrop, PartID: "pearl", Position: mgl64.Vec3{0.5, 0, 0}},
		{Op: OpClear},
	}
	if len(rec.Commands) != len(want) {
		t.Fatalf("commands = %+v, want %+v", rec.Commands, want)
	}
	for i := range want {
		if rec.Commands[i] != want[i] {
			t.Errorf("command %d = %+v, want %+v", i, rec.Commands[i], want[i])
		}
	}
}

func TestEvaluateComputedPositions(t *testing.T) {
	eng := NewEngine()

	source := `
(part "pearl" :asset "sdf:sphere:0.1")
(def step 0.2)
(drop "pearl" :at (* step 2))
(drop "pearl" :at (- 0 step))
`
	rec, evalErrs, err := eng.Evaluate(source)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("Evaluate: %v %v", err, evalErrs)
	}
	if len(rec.Commands) != 2 {
		t.Fatalf("commands = %d, want 2", len(rec.Commands))
	}
	if got := rec.Commands[0].Position.X(); got < 0.399 || got > 0.401 {
		t.Errorf("first drop at %g, want 0.4", got)
	}
	if got := rec.Commands[1].Position.X(); got > -0.199 || got < -0.201 {
		t.Errorf("second drop at %g, want -0.2", got)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"part without id", `(part :asset "sdf:sphere:0.1")`, "part"},
		{"part without asset", `(part "pearl")`, "asset"},
		{"part declared twice", `(part "a" :asset "x") (part "a" :asset "y")`, "twice"},
		{"non-positive scale", `(part "a" :asset "x" :scale 0)`, "scale"},
		{"drop without id", `(drop :at 1)`, "drop"},
		{"drop bad position", `(drop "a" :at "left")`, "expected number"},
		{"clear with args", `(clear 1)`, "no arguments"},
		{"lattice bad count", `(reset-lattice :count 2.5 :length 3)`, "count"},
		{"lattice bad length", `(reset-lattice :count 10)`, "length"},
	}
	eng := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, evalErrs, err := eng.Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if rec != nil {
				t.Fatal("expected nil recipe on eval error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected at least one eval error")
			}
			if !strings.Contains(evalErrs[0].Message, tt.want) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.want)
			}
		})
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine()

	rec, evalErrs, err := eng.Evaluate("(drop \"pearl\" :at 1")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil recipe on syntax error")
	}
	if len(evalErrs) == 0 || evalErrs[0].Message == "" {
		t.Fatalf("expected a populated eval error, got %v", evalErrs)
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := NewEngine()

	rec, evalErrs, err := eng.Evaluate("(drop undefined-part)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if rec != nil || len(evalErrs) == 0 {
		t.Fatalf("expected eval error, got recipe %v errors %v", rec, evalErrs)
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	if s := e.Error(); !strings.Contains(s, "line 5") || !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() = %q", s)
	}
	e2 := EvalError{Message: "no location"}
	if s := e2.Error(); strings.Contains(s, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()
	src := `(part "p" :asset "sdf:sphere:0.1") (drop "p" :at 0.25)`
	for i := 0; i < 5; i++ {
		rec, evalErrs, err := eng.Evaluate(src)
		if err != nil || len(evalErrs) > 0 {
			t.Fatalf("iteration %d: %v %v", i, err, evalErrs)
		}
		if len(rec.Parts) != 1 || len(rec.Commands) != 1 {
			t.Errorf("iteration %d: got %+v", i, rec)
		}
	}
}

func TestWaitTimesOut(t *testing.T) {
	eng := &Engine{Timeout: 20 * time.Millisecond}
	gen := eng.nextGeneration()
	ch := make(chan evalResult) // never sends

	start := time.Now()
	_, _, err := eng.wait(ch, gen)
	if !errors.Is(err, ErrEvalTimeout) {
		t.Fatalf("err = %v, want ErrEvalTimeout", err)
	}
	if !strings.Contains(err.Error(), "20ms") {
		t.Errorf("timeout error should name the limit, got %q", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout took %s", time.Since(start))
	}
}

func TestWaitDiscardsStaleGeneration(t *testing.T) {
	eng := NewEngine()
	stale := eng.nextGeneration()
	eng.nextGeneration()

	ch := make(chan evalResult, 1)
	ch <- evalResult{recipe: &Recipe{}}

	rec, _, err := eng.wait(ch, stale)
	if !errors.Is(err, ErrSuperseded) {
		t.Errorf("err = %v, want ErrSuperseded", err)
	}
	if rec != nil {
		t.Error("stale recipe should be dropped")
	}
}

func TestWaitReturnsCurrentResult(t *testing.T) {
	eng := NewEngine()
	gen := eng.nextGeneration()

	ch := make(chan evalResult, 1)
	ch <- evalResult{recipe: &Recipe{Commands: []Command{{Op: OpClear}}}}

	rec, evalErrs, err := eng.wait(ch, gen)
	if err != nil || len(evalErrs) != 0 {
		t.Fatalf("unexpected failure: %v %v", err, evalErrs)
	}
	if len(rec.Commands) != 1 {
		t.Errorf("got %+v", rec)
	}
}

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"keyword", `(drop "pearl" :at 0.5)`, `(drop "pearl" "__kw_at" 0.5)`},
		{"keyword in string preserved", `(part "p" :asset "sdf:sphere:0.1")`, `(part "p" "__kw_asset" "sdf:sphere:0.1")`},
		{"kebab-case identifier", `(reset-lattice :count 10)`, `(reset_lattice "__kw_count" 10)`},
		{"negative number preserved", `(drop "p" :at -0.5)`, `(drop "p" "__kw_at" -0.5)`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"comment converted", `;; strand :layout`, `// strand :layout`},
		{"assignment preserved", `(def x := 10)`, `(def x := 10)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"error on line format", "Error on line 5: unexpected token\n", 5, "unexpected token"},
		{"no line info", "some generic error", 0, "some generic error"},
		{"line format lowercase", "error on line 12: missing paren", 12, "missing paren"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			if errs[0].Line != tt.wantLine {
				t.Errorf("line = %d, want %d", errs[0].Line, tt.wantLine)
			}
			if !strings.Contains(errs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }
