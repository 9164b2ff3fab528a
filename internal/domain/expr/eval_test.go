package expr

import (
	"strings"
	"testing"
)

func mustCompile(t *testing.T, src string) Node {
	t.Helper()
	n, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	return n
}

func TestEval_ShortCircuitAnd(t *testing.T) {
	t.Parallel()
	n := mustCompile(t, "path.missing && crash()")
	v, err := Eval(n, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truthy(v) {
		t.Fatalf("expected falsy result, got %v", v)
	}
}

func TestEval_ShortCircuitOr(t *testing.T) {
	t.Parallel()
	n := mustCompile(t, "true || crash()")
	v, err := Eval(n, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !truthy(v) {
		t.Fatalf("expected truthy result")
	}
}

func TestEval_StringConcatenation(t *testing.T) {
	t.Parallel()
	n := mustCompile(t, `"a" + name`)
	v, err := Eval(n, map[string]any{"name": "bc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "abc" {
		t.Fatalf("expected \"abc\", got %v", v)
	}
}

func TestEval_ArithmeticCoercion(t *testing.T) {
	t.Parallel()
	n := mustCompile(t, `count * 2`)
	v, err := Eval(n, map[string]any{"count": "5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != float64(10) {
		t.Fatalf("expected 10, got %v", v)
	}
}

func TestEval_DivisionByZero(t *testing.T) {
	t.Parallel()
	n := mustCompile(t, "1 / 0")
	_, err := Eval(n, map[string]any{})
	if err == nil {
		t.Fatalf("expected division by zero error")
	}
}

func TestEval_InNotInContainsMatches(t *testing.T) {
	t.Parallel()
	ctx := map[string]any{"role": "admin", "roles": []any{"admin", "user"}, "tags": []any{"x", "y"}, "email": "a@b.com"}

	tests := []struct {
		src  string
		want bool
	}{
		{`role in roles`, true},
		{`role not_in roles`, false},
		{`tags contains "x"`, true},
		{`email matches "^[a-z]+@[a-z]+\\.com$"`, true},
	}
	for _, tc := range tests {
		n := mustCompile(t, tc.src)
		v, err := Eval(n, ctx)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.src, err)
		}
		if truthy(v) != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.src, tc.want, v)
		}
	}
}

func TestEval_Builtins(t *testing.T) {
	t.Parallel()
	ctx := map[string]any{"items": []any{"a", "b", "c"}, "name": "Widget"}

	cases := map[string]any{
		`len(items)`:               float64(3),
		`len(name)`:                float64(6),
		`lower(name)`:              "widget",
		`upper(name)`:              "WIDGET",
		`abs(-5)`:                  float64(5),
		`min(3, 1, 2)`:             float64(1),
		`max(3, 1, 2)`:             float64(3),
		`starts_with(name, "Wid")`: true,
		`ends_with(name, "get")`:   true,
	}
	for src, want := range cases {
		n := mustCompile(t, src)
		got, err := Eval(n, ctx)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", src, err)
		}
		if got != want {
			t.Errorf("%s: expected %v, got %v", src, want, got)
		}
	}
}

func TestEval_WildcardLen(t *testing.T) {
	t.Parallel()
	ctx := map[string]any{"a": []any{float64(1), float64(2), float64(3)}}
	n := mustCompile(t, "len(a[*])")
	v, err := Eval(n, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != float64(3) {
		t.Fatalf("expected 3, got %v", v)
	}
}

func TestParse_DepthExceeded(t *testing.T) {
	t.Parallel()
	src := strings.Repeat("(", 60) + "1" + strings.Repeat(")", 60)
	_, err := Compile(src)
	if err == nil {
		t.Fatalf("expected depth error")
	}
}

func TestLex_UnterminatedString(t *testing.T) {
	t.Parallel()
	_, err := Compile(`"unterminated`)
	if err == nil {
		t.Fatalf("expected lex error")
	}
	var lexErr *LexError
	if !asLexError(err, &lexErr) {
		t.Fatalf("expected *LexError, got %T", err)
	}
}

func asLexError(err error, target **LexError) bool {
	if le, ok := err.(*LexError); ok {
		*target = le
		return true
	}
	return false
}

func TestEval_UnknownFunction(t *testing.T) {
	t.Parallel()
	n := mustCompile(t, "crash()")
	_, err := Eval(n, map[string]any{})
	if err == nil {
		t.Fatalf("expected unknown function error")
	}
}
