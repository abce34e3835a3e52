// Copyright 2025 James Ross
package store

import (
	"fmt"
	"strings"
)

// Op is one of the CRUD filter's comparison operators.
type Op string

const (
	OpEq    Op = "=="
	OpNeq   Op = "!="
	OpGt    Op = ">"
	OpGte   Op = ">="
	OpLt    Op = "<"
	OpLte   Op = "<="
	OpIn    Op = "in"
	OpLike  Op = "like"
	OpILike Op = "ilike"
)

var sqlOp = map[Op]string{
	OpEq:    "=",
	OpNeq:   "<>",
	OpGt:    ">",
	OpGte:   ">=",
	OpLt:    "<",
	OpLte:   "<=",
	OpIn:    "IN",
	OpLike:  "LIKE",
	OpILike: "ILIKE",
}

// Filter is one WHERE clause predicate: Field OP Value.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// ListOptions controls pagination, ordering, and whether soft-deleted rows
// are included. IncludeDeleted defaults to false: every repository's List
// excludes deleted_at IS NOT NULL rows unless explicitly asked not to.
type ListOptions struct {
	Filters        []Filter
	OrderBy        []Order
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// buildWhere renders filters (plus, unless includeDeleted, a
// "deleted_at IS NULL" clause) into a WHERE clause and its positional
// arguments, starting placeholders at $1.
func buildWhere(filters []Filter, hasSoftDelete, includeDeleted bool) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	argN := 1

	if hasSoftDelete && !includeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}

	for _, f := range filters {
		op, ok := sqlOp[f.Op]
		if !ok {
			continue
		}
		switch f.Op {
		case OpIn:
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", f.Field, argN))
			args = append(args, f.Value)
			argN++
		default:
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", f.Field, op, argN))
			args = append(args, f.Value)
			argN++
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func buildOrderBy(orders []Order) string {
	if len(orders) == 0 {
		return ""
	}
	terms := make([]string, 0, len(orders))
	for _, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, fmt.Sprintf("%s %s", o.Field, dir))
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}

func buildLimitOffset(limit, offset int, argN int) (string, []interface{}) {
	var parts []string
	var args []interface{}
	if limit > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT $%d", argN))
		args = append(args, limit)
		argN++
	}
	if offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET $%d", argN))
		args = append(args, offset)
	}
	return strings.Join(parts, " "), args
}
