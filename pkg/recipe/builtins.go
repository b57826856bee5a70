package recipe

import (
	"fmt"
	"strings"

	"github.com/chazu/bangle/pkg/catalog"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms recipe source before passing it to zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: reset-lattice -> reset_lattice
//     zygomys reads a hyphen as the subtraction operator.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}


// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW returns the keyword name if s is a preprocessed keyword.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

func (a kwArgs) float(fn, key string, fallback float64) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return fallback, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	return f, nil
}

func (a kwArgs) str(fn, key string) (string, error) {
	v, ok := a.kw[key]
	if !ok {
		return "", nil
	}
	s, err := toString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toPartID extracts a part id given as a string.
func toPartID(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected part id, got %T (%s)", s, s.SexpString(nil))
	}
	id := strings.TrimSpace(str.S)
	if id == "" {
		return "", fmt.Errorf("part id is empty")
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

// registerBuiltins installs the recipe builtins into env. Each builtin
// appends to rec in call order.
//
// Source code must be preprocessed with preprocessSource() so keywords and
// kebab-case names reach the builtins in the expected form.
func registerBuiltins(env *zygo.Zlisp, rec *Recipe) {
	declared := make(map[string]bool)

	// -----------------------------------------------------------------------
	// (part "pearl" :name "Pearl" :asset "sdf:sphere:0.1" :category "bead"
	//       :scale 1.5)
	// -----------------------------------------------------------------------
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("part requires an id")
		}
		id, err := toPartID(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: %w", err)
		}
		if declared[id] {
			return zygo.SexpNull, fmt.Errorf("part: %q declared twice", id)
		}

		p := catalog.Part{ID: id}
		if p.Name, err = pa.str("part", "name"); err != nil {
			return zygo.SexpNull, err
		}
		if p.Category, err = pa.str("part", "category"); err != nil {
			return zygo.SexpNull, err
		}
		if p.AssetRef, err = pa.str("part", "asset"); err != nil {
			return zygo.SexpNull, err
		}
		if p.AssetRef == "" {
			return zygo.SexpNull, fmt.Errorf("part: %q needs :asset", id)
		}
		if _, ok := pa.kw["scale"]; ok {
			s, err := pa.float("part", "scale", 1)
			if err != nil {
				return zygo.SexpNull, err
			}
			if s <= 0 {
				return zygo.SexpNull, fmt.Errorf("part: scale must be positive, got %g", s)
			}
			p.DefaultTransform = &catalog.Transform{Scale: [3]float64{s, s, s}}
		}

		declared[id] = true
		rec.Parts = append(rec.Parts, p)
		return &zygo.SexpStr{S: id}, nil
	})

	// -----------------------------------------------------------------------
	// (drop "pearl" :at 0.05 :y 0.2 :z 0)
	// -----------------------------------------------------------------------
	env.AddFunction("drop", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("drop requires a part id")
		}
		id, err := toPartID(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("drop: %w", err)
		}
		var pos mgl64.Vec3
		for i, key := range []string{"at", "y", "z"} {
			if pos[i], err = pa.float("drop", key, 0); err != nil {
				return zygo.SexpNull, err
			}
		}
		rec.Commands = append(rec.Commands, Command{Op: OpDrop, PartID: id, Position: pos})
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (clear)
	// -----------------------------------------------------------------------
	env.AddFunction("clear", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 0 {
			return zygo.SexpNull, fmt.Errorf("clear takes no arguments")
		}
		rec.Commands = append(rec.Commands, Command{Op: OpClear})
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (reset-lattice :count 60 :length 4.5)
	// -----------------------------------------------------------------------
	env.AddFunction("reset_lattice", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		count, err := pa.float("reset-lattice", "count", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		length, err := pa.float("reset-lattice", "length", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		if count < 1 || count != float64(int(count)) {
			return zygo.SexpNull, fmt.Errorf("reset-lattice: count must be a positive integer, got %g", count)
		}
		if length <= 0 {
			return zygo.SexpNull, fmt.Errorf("reset-lattice: length must be positive, got %g", length)
		}
		rec.Commands = append(rec.Commands, Command{Op: OpResetLattice, Count: int(count), Length: length})
		return zygo.SexpNull, nil
	})
}
