// Package semantic infers the real-world meaning of tabular columns.
//
// Inference is heuristic and deterministic: the same column name and values
// always yield the same Type. Unclassifiable columns fall back to FreeText.
package semantic

import (
	"fmt"
	"sort"
)

// Type is one of the closed set of semantic column types.
type Type string

const (
	Identifier    Type = "identifier"
	Name          Type = "name"
	Date          Type = "date"
	NumericAmount Type = "numeric_amount"
	ContactInfo   Type = "contact_info"
	Categorical   Type = "categorical"
	BooleanFlag   Type = "boolean_flag"
	FreeText      Type = "free_text"
)

// Types lists every semantic type in declaration order.
func Types() []Type {
	return []Type{Identifier, Name, Date, NumericAmount, ContactInfo, Categorical, BooleanFlag, FreeText}
}

// Valid reports whether t belongs to the closed set.
func (t Type) Valid() bool {
	for _, k := range Types() {
		if t == k {
			return true
		}
	}
	return false
}

// ParseType parses a type name.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("semantic: unknown type %q", s)
	}
	return t, nil
}

// Mapping assigns a semantic type to each column name.
type Mapping map[string]Type

// Columns returns the mapped column names in sorted order.
func (m Mapping) Columns() []string {
	out := make([]string, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ColumnsOf returns the sorted columns mapped to t.
func (m Mapping) ColumnsOf(t Type) []string {
	var out []string
	for _, c := range m.Columns() {
		if m[c] == t {
			out = append(out, c)
		}
	}
	return out
}
