package semantic

import (
	"sort"
	"strings"

	"recordnorm/internal/lexical"
	"recordnorm/pkg/records"
)

// sampleLimit bounds how many non-null values per column feed inference.
const sampleLimit = 1000

// Options tunes inference. The zero value applies the plain rules.
type Options struct {
	// StrictShapes tightens two value tests. Phone-like values must use a
	// leading '+' or a separator and must not parse as a date, so ISO dates
	// and bare digit runs are not contacts. The statistical identifier rule
	// skips columns whose values are mostly multi-word, so names and prose
	// are not mistaken for keys.
	StrictShapes bool
}

// Infer maps one column to a semantic type from its name and observed values
// using default Options. Rules are tried in a fixed order and the first match
// wins. With no non-null values only the column-name rules apply.
func Infer(column string, values []string) Type {
	return InferWith(column, values, Options{})
}

// InferWith is Infer with explicit Options.
func InferWith(column string, values []string, opts Options) Type {
	return decide(Tokenize(column), compute(values, opts), opts)
}

func decide(tokens []string, st Stats, opts Options) Type {
	has := st.NonNull > 0
	keyShaped := !opts.StrictShapes || st.SpaceRatio <= 0.1

	switch {
	case (has && st.ContactRatio > 0.5) || contactTokens.matchAny(tokens):
		return ContactInfo
	case has && st.BoolRatio > 0.7:
		return BooleanFlag
	case dateTokens.matchAny(tokens) || (has && st.DateRatio > 0.6):
		return Date
	case (has && st.UniqueRatio > 0.9 && st.AvgLength >= 6 && keyShaped) || identifierTokens.matchAny(tokens):
		return Identifier
	case has && st.NumericRatio > 0.7 && (st.HasCurrency || amountTokens.matchAny(tokens)):
		return NumericAmount
	case nameTokens.matchAny(tokens):
		return Name
	case textTokens.matchAny(tokens) || (has && st.AvgLength > 20):
		return FreeText
	case categoryTokens.matchAny(tokens) || (has && st.UniqueRatio < 0.2):
		return Categorical
	case has && st.NumericRatio > 0.7:
		return NumericAmount
	}
	return FreeText
}

// InferMapping infers a type for each column from row values. When columns is
// nil every column seen in rows is mapped.
func InferMapping(rows []records.Row, columns []string) Mapping {
	return InferMappingWith(rows, columns, Options{})
}

// InferMappingWith is InferMapping with explicit Options.
func InferMappingWith(rows []records.Row, columns []string, opts Options) Mapping {
	if columns == nil {
		columns = ColumnNames(rows)
	}
	m := make(Mapping, len(columns))
	for _, col := range columns {
		m[col] = InferWith(col, columnValues(rows, col, sampleLimit), opts)
	}
	return m
}

// InferFromAnalysis infers types from a column analysis, using each column's
// sample values.
func InferFromAnalysis(cols []records.ColumnAnalysis) Mapping {
	m := make(Mapping, len(cols))
	for _, c := range cols {
		m[c.Name] = Infer(c.Name, c.Samples)
	}
	return m
}

// ColumnNames returns the union of row keys, sorted.
func ColumnNames(rows []records.Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func columnValues(rows []records.Row, col string, limit int) []string {
	out := make([]string, 0, min(len(rows), limit))
	for _, r := range rows {
		v := r.Get(col)
		if v.IsEmpty() {
			continue
		}
		out = append(out, v.Text())
		if len(out) >= limit {
			break
		}
	}
	return out
}

// AnalyzeColumns builds the per-column summary: the narrowest basic
// type every non-empty value satisfies, the share of empty cells and a few
// distinct samples.
func AnalyzeColumns(rows []records.Row, columns []string) []records.ColumnAnalysis {
	if columns == nil {
		columns = ColumnNames(rows)
	}
	out := make([]records.ColumnAnalysis, 0, len(columns))
	for _, col := range columns {
		var (
			vals    []string
			samples []string
			seen    = map[string]struct{}{}
			empty   int
		)
		for _, r := range rows {
			v := r.Get(col)
			if v.IsEmpty() {
				empty++
				continue
			}
			s := strings.TrimSpace(v.Text())
			vals = append(vals, s)
			if _, ok := seen[s]; !ok && len(samples) < 5 {
				seen[s] = struct{}{}
				samples = append(samples, s)
			}
		}
		nullPct := 0.0
		if len(rows) > 0 {
			nullPct = float64(empty) * 100 / float64(len(rows))
		}
		out = append(out, records.ColumnAnalysis{
			Name:           col,
			BasicType:      basicType(vals),
			NullPercentage: nullPct,
			Samples:        samples,
		})
	}
	return out
}

func basicType(vals []string) records.BasicType {
	if len(vals) == 0 {
		return records.BasicString
	}
	switch {
	case allMatch(vals, isInt):
		return records.BasicInteger
	case allMatch(vals, func(s string) bool { _, ok := lexical.ParseBool(s); return ok }):
		return records.BasicBoolean
	case allMatch(vals, func(s string) bool { _, ok := lexical.ParseNumber(s); return ok }):
		return records.BasicFloat
	case allMatch(vals, func(s string) bool { _, ok := lexical.ParseDate(s); return ok }):
		return records.BasicDate
	}
	return records.BasicString
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	return s != "" && strings.Trim(s, "0123456789") == ""
}
