package expr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// EvaluationError is a recoverable evaluation-time failure: bad operand
// types, unknown functions, division by zero, AST too deep.
type EvaluationError struct{ Message string }

func (e *EvaluationError) Error() string { return e.Message }

func evalErr(format string, args ...any) *EvaluationError {
	return &EvaluationError{Message: fmt.Sprintf(format, args...)}
}

// undefined models "this path did not resolve", distinct from a JSON null.
type undefined struct{}

var undefinedVal = undefined{}

// Eval tree-walks node against ctx (the argument tree plus the reserved
// "tool_name" key) and returns a Go value: bool, float64, string,
// []any, or undefinedVal.
func Eval(node Node, ctx map[string]any) (any, error) {
	return evalDepth(node, ctx, 0)
}

func evalDepth(node Node, ctx map[string]any, depth int) (any, error) {
	if depth > maxASTDepth {
		return nil, evalErr("expression evaluation too deep")
	}

	switch n := node.(type) {
	case NumberLit:
		return n.Value, nil
	case StringLit:
		return n.Value, nil
	case BoolLit:
		return n.Value, nil
	case PathExpr:
		return resolvePath(ctx, n.Segments), nil
	case *UnaryExpr:
		return evalUnary(n, ctx, depth)
	case *BinaryExpr:
		return evalBinary(n, ctx, depth)
	case *CallExpr:
		return evalCall(n, ctx, depth)
	}
	return nil, evalErr("unsupported node type %T", node)
}

func resolvePath(ctx map[string]any, segs []PathSegment) any {
	var cur any = map[string]any(ctx)
	for _, seg := range segs {
		switch {
		case seg.Wildcard:
			arr, ok := cur.([]any)
			if !ok {
				return undefinedVal
			}
			cur = arr
		case seg.HasIndex:
			arr, ok := cur.([]any)
			if !ok {
				return undefinedVal
			}
			if seg.Index < 0 || seg.Index >= len(arr) {
				return undefinedVal
			}
			cur = arr[seg.Index]
		default:
			obj, ok := cur.(map[string]any)
			if !ok {
				return undefinedVal
			}
			val, exists := obj[seg.Field]
			if !exists {
				return undefinedVal
			}
			cur = val
		}
	}
	return cur
}

// Truthy reports whether a value returned by Eval counts as true: false,
// 0, "", nil, and undefined are falsy; everything else (including
// non-empty strings, non-zero numbers, and arrays/objects) is truthy.
func Truthy(v any) bool { return truthy(v) }

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case undefined:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func evalUnary(n *UnaryExpr, ctx map[string]any, depth int) (any, error) {
	switch n.Op {
	case "!":
		x, err := evalDepth(n.X, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return !truthy(x), nil
	case "-":
		x, err := evalDepth(n.X, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		f, ok := toNumber(x)
		if !ok {
			return nil, evalErr("cannot negate non-numeric value")
		}
		return -f, nil
	}
	return nil, evalErr("unknown unary operator %q", n.Op)
}

func evalBinary(n *BinaryExpr, ctx map[string]any, depth int) (any, error) {
	// Short-circuit operators must not evaluate the right side unless needed.
	if n.Op == "&&" {
		x, err := evalDepth(n.X, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		if !truthy(x) {
			return false, nil
		}
		y, err := evalDepth(n.Y, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return truthy(y), nil
	}
	if n.Op == "||" {
		x, err := evalDepth(n.X, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		if truthy(x) {
			return true, nil
		}
		y, err := evalDepth(n.Y, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return truthy(y), nil
	}

	x, err := evalDepth(n.X, ctx, depth+1)
	if err != nil {
		return nil, err
	}
	y, err := evalDepth(n.Y, ctx, depth+1)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "+":
		return evalAdd(x, y)
	case "-", "*", "/":
		return evalArith(n.Op, x, y)
	case "==":
		return valuesEqual(x, y), nil
	case "!=":
		return !valuesEqual(x, y), nil
	case "<", ">", "<=", ">=":
		return evalCompare(n.Op, x, y)
	case "in", "not_in":
		return evalMembership(n.Op, x, y)
	case "contains":
		return evalContains(x, y)
	case "matches":
		return evalMatches(x, y)
	}
	return nil, evalErr("unknown binary operator %q", n.Op)
}

func evalAdd(x, y any) (any, error) {
	if isStringLike(x) || isStringLike(y) {
		return stringifyVal(x) + stringifyVal(y), nil
	}
	xf, xok := toNumber(x)
	yf, yok := toNumber(y)
	if !xok || !yok {
		return nil, evalErr("+ requires numeric or string operands")
	}
	return xf + yf, nil
}

func isStringLike(v any) bool {
	_, ok := v.(string)
	return ok
}

func evalArith(op string, x, y any) (any, error) {
	xf, xok := toNumber(x)
	yf, yok := toNumber(y)
	if !xok || !yok {
		return nil, evalErr("%s requires numeric operands", op)
	}
	switch op {
	case "-":
		return xf - yf, nil
	case "*":
		return xf * yf, nil
	case "/":
		if yf == 0 {
			return nil, evalErr("division by zero")
		}
		return xf / yf, nil
	}
	return nil, evalErr("unknown arithmetic operator %q", op)
}

func evalCompare(op string, x, y any) (any, error) {
	xf, xok := toNumber(x)
	yf, yok := toNumber(y)
	if !xok || !yok {
		return nil, evalErr("%s requires numeric operands", op)
	}
	switch op {
	case "<":
		return xf < yf, nil
	case ">":
		return xf > yf, nil
	case "<=":
		return xf <= yf, nil
	case ">=":
		return xf >= yf, nil
	}
	return nil, evalErr("unknown comparison operator %q", op)
}

func valuesEqual(x, y any) bool {
	if xf, xok := toNumber(x); xok {
		if yf, yok := toNumber(y); yok {
			return xf == yf
		}
	}
	return stringifyVal(x) == stringifyVal(y)
}

func evalMembership(op string, x, y any) (any, error) {
	list, ok := y.([]any)
	if !ok {
		return nil, evalErr("%s requires an array right-hand side", op)
	}
	member := false
	for _, item := range list {
		if valuesEqual(x, item) {
			member = true
			break
		}
	}
	if op == "in" {
		return member, nil
	}
	return !member, nil
}

func evalContains(x, y any) (any, error) {
	switch xv := x.(type) {
	case string:
		ys, ok := y.(string)
		if !ok {
			return nil, evalErr("contains on a string requires a string operand")
		}
		return strings.Contains(xv, ys), nil
	case []any:
		for _, item := range xv {
			if valuesEqual(item, y) {
				return true, nil
			}
		}
		return false, nil
	}
	return nil, evalErr("contains requires a string or array left-hand side")
}

func evalMatches(x, y any) (any, error) {
	pattern, ok := y.(string)
	if !ok {
		return nil, evalErr("matches requires a string pattern")
	}
	if len(pattern) > 256 {
		return nil, evalErr("pattern too long: %d characters (max 256)", len(pattern))
	}
	if nestedQuantifierExpr.MatchString(pattern) {
		return nil, evalErr("pattern has nested unbounded quantifiers")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, evalErr("invalid regex: %v", err)
	}
	s, ok := x.(string)
	if !ok {
		s = stringifyVal(x)
	}
	return re.MatchString(s), nil
}

var nestedQuantifierExpr = regexp.MustCompile(`\([^()]*[+*]\)[+*]`)

func evalCall(n *CallExpr, ctx map[string]any, depth int) (any, error) {
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := evalDepth(a, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.Name {
	case "len":
		if len(args) != 1 {
			return nil, evalErr("len() takes exactly 1 argument")
		}
		switch v := args[0].(type) {
		case string:
			return float64(utf8.RuneCountInString(v)), nil
		case []any:
			return float64(len(v)), nil
		}
		return nil, evalErr("len() requires a string or array argument")

	case "lower":
		s, err := requireString(args, "lower")
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil

	case "upper":
		s, err := requireString(args, "upper")
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil

	case "abs":
		if len(args) != 1 {
			return nil, evalErr("abs() takes exactly 1 argument")
		}
		f, ok := toNumber(args[0])
		if !ok {
			return nil, evalErr("abs() requires a numeric argument")
		}
		return math.Abs(f), nil

	case "min", "max":
		if len(args) == 0 {
			return nil, evalErr("%s() requires at least 1 argument", n.Name)
		}
		best, ok := toNumber(args[0])
		if !ok {
			return nil, evalErr("%s() requires numeric arguments", n.Name)
		}
		for _, a := range args[1:] {
			f, ok := toNumber(a)
			if !ok {
				return nil, evalErr("%s() requires numeric arguments", n.Name)
			}
			if (n.Name == "min" && f < best) || (n.Name == "max" && f > best) {
				best = f
			}
		}
		return best, nil

	case "starts_with", "ends_with":
		if len(args) != 2 {
			return nil, evalErr("%s() takes exactly 2 arguments", n.Name)
		}
		s, ok1 := args[0].(string)
		p, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, evalErr("%s() requires string arguments", n.Name)
		}
		if n.Name == "starts_with" {
			return strings.HasPrefix(s, p), nil
		}
		return strings.HasSuffix(s, p), nil
	}

	return nil, evalErr("unknown function %q", n.Name)
}

func requireString(args []any, fn string) (string, error) {
	if len(args) != 1 {
		return "", evalErr("%s() takes exactly 1 argument", fn)
	}
	s, ok := args[0].(string)
	if !ok {
		return "", evalErr("%s() requires a string argument", fn)
	}
	return s, nil
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringifyVal(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case undefined:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
