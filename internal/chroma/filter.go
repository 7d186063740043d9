package chroma

import (
	"fmt"
	"reflect"
	"strings"
)

// Filter is a compiled where / where_document pair.
type Filter struct {
	meta predicate
	doc  predicate
}

type predicate func(r Record) bool

// CompileFilter compiles metadata and document filters. Nil maps match everything.
func CompileFilter(where, whereDocument map[string]any) (*Filter, error) {
	f := &Filter{}
	if len(where) > 0 {
		p, err := compileWhere(where)
		if err != nil {
			return nil, err
		}
		f.meta = p
	}
	if len(whereDocument) > 0 {
		p, err := compileWhereDocument(whereDocument)
		if err != nil {
			return nil, err
		}
		f.doc = p
	}
	return f, nil
}

// Match reports whether r satisfies both filters.
func (f *Filter) Match(r Record) bool {
	if f == nil {
		return true
	}
	if f.meta != nil && !f.meta(r) {
		return false
	}
	if f.doc != nil && !f.doc(r) {
		return false
	}
	return true
}

// Empty reports whether the filter matches everything.
func (f *Filter) Empty() bool {
	return f == nil || (f.meta == nil && f.doc == nil)
}

func compileWhere(where map[string]any) (predicate, error) {
	preds := make([]predicate, 0, len(where))
	for key, val := range where {
		switch key {
		case "$and", "$or":
			clauses, ok := val.([]any)
			if !ok || len(clauses) == 0 {
				return nil, fmt.Errorf("%w: %s expects a non-empty list", ErrInvalidArgument, key)
			}
			sub := make([]predicate, 0, len(clauses))
			for _, c := range clauses {
				m, ok := c.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: %s clause must be an object", ErrInvalidArgument, key)
				}
				p, err := compileWhere(m)
				if err != nil {
					return nil, err
				}
				sub = append(sub, p)
			}
			preds = append(preds, combine(key == "$and", sub))
		default:
			if strings.HasPrefix(key, "$") {
				return nil, fmt.Errorf("%w: unknown where operator %q", ErrInvalidArgument, key)
			}
			p, err := compileField(key, val)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
	}
	return combine(true, preds), nil
}

func compileField(field string, val any) (predicate, error) {
	ops, ok := val.(map[string]any)
	if !ok {
		return fieldOp(field, "$eq", val)
	}
	if len(ops) != 1 {
		return nil, fmt.Errorf("%w: field %q expects exactly one operator", ErrInvalidArgument, field)
	}
	for op, operand := range ops {
		return fieldOp(field, op, operand)
	}
	return nil, nil
}

func fieldOp(field, op string, operand any) (predicate, error) {
	get := func(r Record) (any, bool) {
		v, ok := r.Metadata[field]
		return v, ok
	}
	switch op {
	case "$eq":
		return func(r Record) bool {
			v, ok := get(r)
			return ok && equal(v, operand)
		}, nil
	case "$ne":
		return func(r Record) bool {
			v, ok := get(r)
			return !ok || !equal(v, operand)
		}, nil
	case "$gt", "$gte", "$lt", "$lte":
		want, ok := toFloat(operand)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %q expects a number", ErrInvalidArgument, op, field)
		}
		return func(r Record) bool {
			v, ok := get(r)
			if !ok {
				return false
			}
			got, ok := toFloat(v)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return got > want
			case "$gte":
				return got >= want
			case "$lt":
				return got < want
			default:
				return got <= want
			}
		}, nil
	case "$in", "$nin":
		list, ok := operand.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %q expects a list", ErrInvalidArgument, op, field)
		}
		in := op == "$in"
		return func(r Record) bool {
			v, ok := get(r)
			if !ok {
				return !in
			}
			for _, item := range list {
				if equal(v, item) {
					return in
				}
			}
			return !in
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown operator %q on %q", ErrInvalidArgument, op, field)
	}
}

func compileWhereDocument(where map[string]any) (predicate, error) {
	preds := make([]predicate, 0, len(where))
	for key, val := range where {
		switch key {
		case "$contains", "$not_contains":
			needle, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects a string", ErrInvalidArgument, key)
			}
			contains := key == "$contains"
			preds = append(preds, func(r Record) bool {
				return strings.Contains(r.Document, needle) == contains
			})
		case "$and", "$or":
			clauses, ok := val.([]any)
			if !ok || len(clauses) == 0 {
				return nil, fmt.Errorf("%w: %s expects a non-empty list", ErrInvalidArgument, key)
			}
			sub := make([]predicate, 0, len(clauses))
			for _, c := range clauses {
				m, ok := c.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: %s clause must be an object", ErrInvalidArgument, key)
				}
				p, err := compileWhereDocument(m)
				if err != nil {
					return nil, err
				}
				sub = append(sub, p)
			}
			preds = append(preds, combine(key == "$and", sub))
		default:
			return nil, fmt.Errorf("%w: unknown where_document operator %q", ErrInvalidArgument, key)
		}
	}
	return combine(true, preds), nil
}

func combine(all bool, preds []predicate) predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(r Record) bool {
		for _, p := range preds {
			if p(r) != all {
				return !all
			}
		}
		return all
	}
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
