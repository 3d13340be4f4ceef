// Package seedspec parses textual seed specifications into canonical
// SeedPredicate values.
//
//	seed     := equality | predicate
//	equality := ident "." ident "=" literal
//	predicate:= ident ":" sql-text
//	literal  := string | number | bool | "null"
package seedspec

import (
	"strconv"
	"strings"

	"github.com/halvorsen/subsetdb/internal/xerrors"
)

// SeedPredicate is the canonical form of one seed spec: a SQL WHERE
// fragment plus its bound parameters, scoped to one table.
type SeedPredicate struct {
	Table      string
	SQLFragment string
	Parameters []any
}

// Parse turns a raw seed string into a SeedPredicate. raw is either the
// equality form "table.col=value" or the predicate form "table:sql-text".
// The predicate form's sql-text is passed through verbatim as a WHERE
// fragment; callers that want a safer parameterized variant should prefer
// the equality form.
func Parse(raw string) (SeedPredicate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: "empty seed spec"}
	}

	if idx := strings.Index(raw, ":"); idx >= 0 && !isEqualityForm(raw) {
		table := strings.TrimSpace(raw[:idx])
		sqlText := strings.TrimSpace(raw[idx+1:])
		if table == "" {
			return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: "missing table name before ':'"}
		}
		if sqlText == "" {
			return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: "missing WHERE fragment after ':'"}
		}
		if !isValidIdent(table) {
			return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: "table name is not a valid identifier"}
		}
		return SeedPredicate{Table: table, SQLFragment: sqlText}, nil
	}

	dot := strings.Index(raw, ".")
	eq := strings.Index(raw, "=")
	if dot < 0 || eq < 0 || eq < dot {
		return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: "expected \"table.column=value\" or \"table:where-fragment\""}
	}

	table := raw[:dot]
	column := raw[dot+1 : eq]
	literal := raw[eq+1:]

	if !isValidIdent(table) {
		return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: "table name is not a valid identifier"}
	}
	if !isValidIdent(column) {
		return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: "column name is not a valid identifier"}
	}

	value, err := parseLiteral(literal)
	if err != nil {
		return SeedPredicate{}, &xerrors.InvalidSeed{Seed: raw, Message: err.Error()}
	}

	if value == nil {
		return SeedPredicate{
			Table:       table,
			SQLFragment: column + " IS NULL",
		}, nil
	}

	return SeedPredicate{
		Table:       table,
		SQLFragment: column + " = $1",
		Parameters:  []any{value},
	}, nil
}

// ParseAll parses each raw seed string and returns the predicates in order.
// Seeds across different tables form a union; seeds on the same table are
// each evaluated independently, per spec (their resulting row sets union).
func ParseAll(raws []string) ([]SeedPredicate, error) {
	out := make([]SeedPredicate, 0, len(raws))
	for _, raw := range raws {
		p, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// isEqualityForm disambiguates "table.col=value" from "table:sql-text" when
// both a ':' and a '.'/'=' could be present (predicate sql-text may itself
// contain '.', so presence of ':' does not alone decide the form — but an
// '=' appearing before the first ':' means this is equality form and the
// ':' belongs to the literal or SQL text, e.g. a timestamp literal).
func isEqualityForm(raw string) bool {
	colon := strings.Index(raw, ":")
	dot := strings.Index(raw, ".")
	eq := strings.Index(raw, "=")
	return dot >= 0 && eq >= 0 && dot < eq && (colon < 0 || eq < colon)
}

func isValidIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isAlpha {
			return false
		}
		if !isAlpha && !isDigit {
			return false
		}
	}
	return true
}

// parseLiteral decodes the EBNF `literal` production: string, number, bool,
// or the bare keyword "null". Returns a nil any for "null".
func parseLiteral(s string) (any, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	// Bare, unquoted text is treated as a string literal, matching the
	// permissive textual seed syntax (spec §6).
	return s, nil
}
