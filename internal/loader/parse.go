package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString expands every {{ expr }} occurrence in s against env.
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end, exprStart, exprEnd := m[0], m[1], m[2], m[3]
		b.WriteString(s[last:start])

		expression := strings.TrimSpace(s[exprStart:exprEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("compiling %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("running %q: %w", expression, err)
		}
		b.WriteString(fmt.Sprintf("%v", result))
		last = end
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// interpolate recursively walks decoded TOML data and expands {{ }} strings.
func interpolate(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for k, val := range v {
			nv, err := interpolate(val, env)
			if err != nil {
				return nil, err
			}
			v[k] = nv
		}
		return v, nil
	case []any:
		for i, item := range v {
			ni, err := interpolate(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = ni
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func mustMarshal(v any) []byte {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// mergeStructs folds src's non-zero fields into dst, additively for slices
// and maps, OR'd for bools, replace-if-nonzero otherwise. Mirrors the
// teacher's conditional-section merge semantics.
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst).Elem()
	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}
	if dstVal.Type() != srcVal.Type() {
		return errors.New("mergeStructs: mismatched types")
	}

	for i := range srcVal.NumField() {
		sf, df := srcVal.Field(i), dstVal.Field(i)
		if !df.CanSet() {
			continue
		}
		switch df.Kind() {
		case reflect.Slice:
			if !sf.IsNil() {
				df.Set(reflect.AppendSlice(df, sf))
			}
		case reflect.Map:
			if !sf.IsNil() {
				if df.IsNil() {
					df.Set(reflect.MakeMap(df.Type()))
				}
				for _, k := range sf.MapKeys() {
					df.SetMapIndex(k, sf.MapIndex(k))
				}
			}
		case reflect.Bool:
			df.SetBool(df.Bool() || sf.Bool())
		default:
			if !sf.IsZero() {
				df.Set(sf)
			}
		}
	}
	return nil
}

// splitConditional separates a target's raw TOML table into its plain
// TargetDecl fields and its expr-keyed conditional subtables.
func splitConditional(raw map[string]any) (base map[string]any, conditional map[string]map[string]any) {
	base = make(map[string]any)
	conditional = make(map[string]map[string]any)
	for k, v := range raw {
		if knownTargetFields[k] {
			base[k] = v
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			conditional[k] = sub
			continue
		}
		base[k] = v // unrecognized scalar field; let toml.Unmarshal reject it
	}
	return base, conditional
}

// buildTargetDecl decodes one target's raw section into a TargetDecl,
// applying every conditional subtable whose expression evaluates true
// against env. Subtables are applied in map iteration order, not file
// order; when two matching subtables set the same scalar field, which one
// wins is not defined.
func buildTargetDecl(raw map[string]any, env Env) (TargetDecl, error) {
	var decl TargetDecl
	base, conditional := splitConditional(raw)

	if len(base) > 0 {
		if err := toml.Unmarshal(mustMarshal(base), &decl); err != nil {
			return decl, fmt.Errorf("decoding target fields: %w", err)
		}
	}

	for expression, sub := range conditional {
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return decl, fmt.Errorf("compiling condition %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return decl, fmt.Errorf("evaluating condition %q: %w", expression, err)
		}
		matched, ok := result.(bool)
		if !ok || !matched {
			continue
		}

		var condDecl TargetDecl
		if err := toml.Unmarshal(mustMarshal(sub), &condDecl); err != nil {
			return decl, fmt.Errorf("decoding condition %q: %w", expression, err)
		}
		if err := mergeStructs(&decl, condDecl); err != nil {
			return decl, fmt.Errorf("merging condition %q: %w", expression, err)
		}
	}

	return decl, nil
}

// parseFile decodes a BUILD.qgn.toml document, expanding {{ }} interpolation
// throughout before any structural decoding happens, and returns each
// target's fully-merged declaration keyed by name plus the [dependencies]
// table.
func parseFile(rd io.Reader, env Env) (targets map[string]TargetDecl, deps map[string]string, err error) {
	var rawTop map[string]any
	dec := toml.NewDecoder(bufio.NewReader(rd))
	if err := dec.Decode(&rawTop); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, nil, errors.New(derr.String())
		}
		return nil, nil, err
	}

	interpolated, err := interpolate(rawTop, env)
	if err != nil {
		return nil, nil, fmt.Errorf("interpolating: %w", err)
	}
	rawTop = interpolated.(map[string]any)

	var rf rawFile
	if err := toml.Unmarshal(mustMarshal(rawTop), &rf); err != nil {
		return nil, nil, fmt.Errorf("decoding top-level sections: %w", err)
	}

	targets = make(map[string]TargetDecl, len(rf.Target))
	for name, rawSection := range rf.Target {
		decl, err := buildTargetDecl(rawSection, env)
		if err != nil {
			return nil, nil, fmt.Errorf("target %q: %w", name, err)
		}
		targets[name] = decl
	}

	return targets, rf.Dependencies, nil
}
