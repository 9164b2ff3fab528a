package constraint

import "sort"

// FieldCondition is one path-addressed comparison: "field[*].sub operator value".
type FieldCondition struct {
	Path     string
	Operator Operator
	Value    any
}

// Options controls the typing mode used by operator evaluation. The
// default (zero value) is coercive mode.
type Options struct {
	Strict bool
}

// Result is the outcome of evaluating a set of FieldConditions (logical
// AND) against an argument tree.
type Result struct {
	Pass   bool
	Errors []*Error
}

// Evaluate runs every condition against args and aggregates all violations;
// it never short-circuits on the first failure. Conditions
// are sorted deterministically (path, then operator rank) before
// evaluation so that error ordering does not depend on input order.
func Evaluate(conditions []FieldCondition, args map[string]any, opts Options) Result {
	sorted := make([]FieldCondition, len(conditions))
	copy(sorted, conditions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return operatorRank[sorted[i].Operator] < operatorRank[sorted[j].Operator]
	})

	var errs []*Error
	for _, cond := range sorted {
		errs = append(errs, evaluateCondition(cond, args, opts)...)
	}
	return Result{Pass: len(errs) == 0, Errors: errs}
}

func evaluateCondition(cond FieldCondition, args map[string]any, opts Options) []*Error {
	segs := ParsePath(cond.Path)
	cursors := resolve(args, segs)

	if hasWildcard(segs) {
		return evaluateWildcardCondition(cond, cursors, opts)
	}

	if len(cursors) == 0 {
		return []*Error{newError(CodePathNotFound, cond.Path, nil, nil, "path not found")}
	}
	c := cursors[0]
	if !c.found {
		if c.notFoundReason == reasonArrayBounds {
			return []*Error{newError(CodeArrayBounds, cond.Path, nil, nil, "array index out of range")}
		}
		return []*Error{newError(CodePathNotFound, cond.Path, nil, nil, "path not found")}
	}
	if err := evaluateOperator(cond.Operator, c.value, cond.Value, opts.Strict); err != nil {
		err.Path = c.resolvedPath
		return []*Error{err}
	}
	return nil
}

func evaluateWildcardCondition(cond FieldCondition, cursors []cursor, opts Options) []*Error {
	if len(cursors) == 0 {
		// Empty array: vacuously true (for-all over zero elements).
		return nil
	}

	for _, c := range cursors {
		if !c.found && c.notFoundReason == reasonWildcardNonArray {
			return []*Error{newError(CodeTypeMismatch, cond.Path, nil, nil, "wildcard applied to a non-array value")}
		}
	}

	allMissing := true
	for _, c := range cursors {
		if c.found || (c.notFoundReason != reasonMissing && c.notFoundReason != reasonDepthExceeded) {
			allMissing = false
			break
		}
	}
	if allMissing {
		return []*Error{newError(CodePathNotFound, cond.Path, nil, nil, "path not found")}
	}

	var errs []*Error
	for _, c := range cursors {
		if !c.found {
			continue
		}
		if err := evaluateOperator(cond.Operator, c.value, cond.Value, opts.Strict); err != nil {
			err.Path = c.resolvedPath
			errs = append(errs, err)
		}
	}
	return errs
}
